// Package monitoring collects Prometheus metrics for the HTTP surface,
// the action interpreter, sessions, and the upstream AI service.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Interpreter metrics
	ActionsTotal      *prometheus.CounterVec
	SequencesTotal    *prometheus.CounterVec
	SequenceLength    prometheus.Histogram
	SequencesRejected prometheus.Counter

	// Desktop metrics
	WindowsOpen prometheus.Gauge

	// Session metrics
	SessionsSaved    prometheus.Counter
	SessionsRestored prometheus.Counter

	// Upstream AI metrics
	UpstreamCalls    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for the JSON stats endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds aggregate values for the JSON stats endpoint.
type Snapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	TotalSequences int64   `json:"total_sequences"`
	TotalActions   int64   `json:"total_actions"`
	AvgDurationMS  float64 `json:"avg_duration_ms"`
	UptimeSeconds  float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector and registers its families.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desktop_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "desktop_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ActionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desktop_actions_total",
				Help: "Total number of interpreted actions",
			},
			[]string{"kind", "status"},
		),
		SequencesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desktop_sequences_total",
				Help: "Total number of executed action sequences",
			},
			[]string{"status"},
		),
		SequenceLength: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "desktop_sequence_length",
				Help:    "Number of actions per sequence",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
		),
		SequencesRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "desktop_sequences_rejected_total",
				Help: "Sequences rejected because the desktop was busy",
			},
		),

		WindowsOpen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "desktop_windows_open",
				Help: "Number of open windows across all desktops",
			},
		),

		SessionsSaved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "desktop_sessions_saved_total",
				Help: "Total number of sessions saved",
			},
		),
		SessionsRestored: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "desktop_sessions_restored_total",
				Help: "Total number of sessions restored",
			},
		),

		UpstreamCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desktop_upstream_calls_total",
				Help: "Total number of upstream AI calls",
			},
			[]string{"operation", "status"},
		),
		UpstreamDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "desktop_upstream_duration_seconds",
				Help:    "Upstream AI call duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "desktop_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desktop_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "desktop_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordAction records one interpreted action by kind and outcome.
func (m *Metrics) RecordAction(kind, status string) {
	m.ActionsTotal.WithLabelValues(kind, status).Inc()

	m.mu.Lock()
	m.snapshot.TotalActions++
	m.mu.Unlock()
}

// RecordSequence records a completed sequence execution.
func (m *Metrics) RecordSequence(length int, status string) {
	m.SequencesTotal.WithLabelValues(status).Inc()
	m.SequenceLength.Observe(float64(length))

	m.mu.Lock()
	m.snapshot.TotalSequences++
	m.mu.Unlock()
}

// RecordUpstreamCall records an upstream AI call.
func (m *Metrics) RecordUpstreamCall(operation, status string, duration time.Duration) {
	m.UpstreamCalls.WithLabelValues(operation, status).Inc()
	m.UpstreamDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message.
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// SetWindowsOpen sets the open-window gauge.
func (m *Metrics) SetWindowsOpen(count int) {
	m.WindowsOpen.Set(float64(count))
}

// IncWSConnections increments WebSocket connections.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Stats returns aggregate values for the JSON stats endpoint.
func (m *Metrics) Stats() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	if s.TotalRequests > 0 {
		s.AvgDurationMS = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	return s
}
