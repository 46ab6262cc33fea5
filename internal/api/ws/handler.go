// Package ws streams chat turns over a WebSocket, mirroring the REST
// chat endpoint but with per-action progress events.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lumendesk/backend/internal/api/middleware"
	"github.com/lumendesk/backend/internal/domain/action"
	"github.com/lumendesk/backend/internal/domain/desktop"
	"github.com/lumendesk/backend/internal/domain/interp"
	"github.com/lumendesk/backend/internal/infrastructure/logging"
	"github.com/lumendesk/backend/internal/infrastructure/monitoring"
	"github.com/lumendesk/backend/internal/providers/ai"
	"github.com/lumendesk/backend/internal/providers/files"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Upstream is the decision/generation surface, shared with the REST
// handlers.
type Upstream interface {
	Configured() bool
	Decide(ctx context.Context, prompt, snapshot string, schema map[string]interface{}) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
	Search(ctx context.Context, query string) (*ai.SearchResult, error)
}

// Handler manages WebSocket connections.
type Handler struct {
	log      *logging.Logger
	metrics  *monitoring.Metrics
	desktops *desktop.Registry
	files    *files.Store
	upstream Upstream
	pace     time.Duration
}

// NewHandler creates a new WebSocket handler.
func NewHandler(
	log *logging.Logger,
	metrics *monitoring.Metrics,
	desktops *desktop.Registry,
	fileStore *files.Store,
	upstream Upstream,
	pace time.Duration,
) *Handler {
	return &Handler{
		log:      log,
		metrics:  metrics,
		desktops: desktops,
		files:    fileStore,
		upstream: upstream,
		pace:     pace,
	}
}

type clientMessage struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

// HandleConnection handles WebSocket upgrade and messages.
func (h *Handler) HandleConnection(c *gin.Context) {
	user := middleware.User(c)

	log := h.log.WithUser(user)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log.Info("websocket connected")
	defer log.Info("websocket disconnected")

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	reqCtx := c.Request.Context()

	h.send(conn, gin.H{
		"type":    "system",
		"message": "connected",
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case "chat":
			h.handleChat(reqCtx, conn, user, msg.Prompt)
		case "ping":
			h.send(conn, gin.H{"type": "pong"})
		default:
			h.sendError(conn, "unknown message type")
		}
	}
}

// handleChat runs one full agent turn, emitting an event per executed
// action before the final desktop state.
func (h *Handler) handleChat(reqCtx context.Context, conn *websocket.Conn, user, prompt string) {
	if prompt == "" {
		h.sendError(conn, "prompt required")
		return
	}

	d := h.desktops.Get(user)
	if d.Testing() {
		h.sendError(conn, "chat is disabled while testing mode is on")
		return
	}
	if !h.upstream.Configured() {
		h.sendError(conn, "AI service is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(reqCtx, 2*time.Minute)
	defer cancel()

	snapshot := desktop.Describe(d)
	d.AppendMessage("user", prompt)

	timer := monitoring.NewTimer(h.metrics, "decide")
	raw, err := h.upstream.Decide(ctx, prompt, snapshot, action.ResponseSchema())
	if err != nil {
		timer.Stop("error")
		h.sendError(conn, "AI decision failed: "+err.Error())
		return
	}
	timer.Stop("ok")

	seq, err := action.DecodeSequence([]byte(raw))
	if err != nil {
		h.sendError(conn, "model returned an invalid action sequence: "+err.Error())
		return
	}

	h.send(conn, gin.H{
		"type":    "decision",
		"actions": len(seq),
	})

	// A per-connection interpreter lets this turn's progress stream to
	// exactly this client.
	runner := interp.New(h.files, h.upstream, interp.Config{
		Pace:     h.pace,
		Observer: &streamObserver{handler: h, conn: conn},
	})

	if err := runner.Execute(ctx, user, d, seq); err != nil {
		if errors.Is(err, interp.ErrBusy) {
			h.metrics.SequencesRejected.Inc()
			h.sendError(conn, "a sequence is already executing")
			return
		}
		h.sendError(conn, "sequence execution interrupted")
		return
	}

	h.metrics.RecordSequence(len(seq), "ok")
	h.metrics.SetWindowsOpen(h.desktops.WindowCount())

	h.send(conn, gin.H{
		"type":       "complete",
		"transcript": d.Transcript(),
		"desktop":    d.Export(),
		"timestamp":  time.Now().Unix(),
	})
}

type streamObserver struct {
	handler *Handler
	conn    *websocket.Conn
}

func (o *streamObserver) Step(index int, act action.Action, status interp.Status) {
	o.handler.metrics.RecordAction(string(act.Kind), string(status))
	o.handler.send(o.conn, gin.H{
		"type":      "action",
		"index":     index,
		"kind":      act.Kind,
		"status":    status,
		"timestamp": time.Now().Unix(),
	})
}

func (h *Handler) send(conn *websocket.Conn, data gin.H) {
	if err := conn.WriteJSON(data); err != nil {
		return
	}
	if t, ok := data["type"].(string); ok {
		h.metrics.RecordWSMessage("out", t)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, msg string) {
	h.send(conn, gin.H{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}
