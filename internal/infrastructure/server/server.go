// Package server wires configuration, providers, and the HTTP surface
// into a runnable service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/lumendesk/backend/internal/api/http"
	"github.com/lumendesk/backend/internal/api/middleware"
	"github.com/lumendesk/backend/internal/api/ws"
	"github.com/lumendesk/backend/internal/domain/action"
	"github.com/lumendesk/backend/internal/domain/desktop"
	"github.com/lumendesk/backend/internal/domain/interp"
	"github.com/lumendesk/backend/internal/domain/session"
	"github.com/lumendesk/backend/internal/infrastructure/config"
	"github.com/lumendesk/backend/internal/infrastructure/logging"
	"github.com/lumendesk/backend/internal/infrastructure/monitoring"
	"github.com/lumendesk/backend/internal/providers/ai"
	"github.com/lumendesk/backend/internal/providers/auth"
	"github.com/lumendesk/backend/internal/providers/files"
	"github.com/lumendesk/backend/internal/shared/geo"
)

// Server is the desktop backend service.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *monitoring.Metrics
	router  *gin.Engine
	http    *http.Server
}

// NewServer builds the full service from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	log := logging.Must(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	metrics := monitoring.NewMetrics()

	icons := desktop.DefaultIcons()
	if cfg.Desktop.IconManifest != "" {
		loaded, err := desktop.LoadIcons(cfg.Desktop.IconManifest)
		if err != nil {
			return nil, fmt.Errorf("load icon manifest: %w", err)
		}
		icons = loaded
	}

	bounds := geo.Rect{Width: cfg.Desktop.Width, Height: cfg.Desktop.Height}
	desktops := desktop.NewRegistry(bounds, icons)
	fileStore := files.NewStore(cfg.Storage.Dir)
	sessions := session.NewManager(cfg.Storage.Dir)
	authProvider := auth.NewProvider(cfg.Storage.Dir)

	upstream := ai.NewClient(ai.Config{
		BaseURL:    cfg.AI.BaseURL,
		APIKey:     cfg.AI.APIKey,
		TextModel:  cfg.AI.TextModel,
		ImageModel: cfg.AI.ImageModel,
		RPS:        cfg.AI.RPS,
	})
	if !upstream.Configured() {
		log.Warn("AI upstream not configured, chat and generation endpoints will refuse requests")
	}

	interpreter := interp.New(fileStore, upstream, interp.Config{
		Pace:     cfg.Interp.Pace(),
		Observer: &metricsObserver{metrics: metrics},
	})

	handlers := apihttp.NewHandlers(log.Named("http"), metrics, desktops, fileStore, sessions, authProvider, upstream, interpreter)
	wsHandler := ws.NewHandler(log.Named("ws"), metrics, desktops, fileStore, upstream, cfg.Interp.Pace())

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		rlCfg := middleware.DefaultRateLimitConfig()
		if cfg.RateLimit.RequestsPerSecond > 0 {
			rlCfg.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		}
		if cfg.RateLimit.Burst > 0 {
			rlCfg.Burst = cfg.RateLimit.Burst
		}
		router.Use(middleware.RateLimit(rlCfg))
	}

	registerRoutes(router, handlers, wsHandler, authProvider)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	return &Server{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		router:  router,
		http: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute, // Chat turns replay paced action sequences
			IdleTimeout:  2 * time.Minute,
		},
	}, nil
}

func registerRoutes(router *gin.Engine, h *apihttp.Handlers, wsh *ws.Handler, users *auth.Provider) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/stats", h.Stats)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/signup", h.Signup)
	router.POST("/login", h.Login)

	authed := router.Group("/", middleware.Identity(users))
	{
		authed.GET("/files", h.ListFiles)
		authed.POST("/files", h.SaveFile)
		authed.GET("/files/search", h.SearchFiles)
		authed.DELETE("/files/:type/:name", h.DeleteFile)
		authed.GET("/storage", h.StorageUsage)

		authed.GET("/sessions", h.ListSessions)
		authed.POST("/sessions", h.SaveSession)
		authed.GET("/sessions/:id", h.GetSession)
		authed.DELETE("/sessions/:id", h.DeleteSession)
		authed.POST("/sessions/:id/restore", h.RestoreSession)

		authed.GET("/desktop", h.GetDesktop)
		authed.PUT("/desktop/testing", h.SetTesting)

		authed.POST("/ai/chat", h.Chat)
		authed.POST("/ai/generate-image", h.GenerateImage)
		authed.POST("/ai/google-search", h.GoogleSearch)

		authed.GET("/stream", wsh.HandleConnection)
	}
}

// metricsObserver feeds per-action counters from REST-driven sequence
// runs.
type metricsObserver struct {
	metrics *monitoring.Metrics
}

func (o *metricsObserver) Step(_ int, act action.Action, status interp.Status) {
	o.metrics.RecordAction(string(act.Kind), string(status))
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening",
			zap.String("addr", s.http.Addr),
			zap.String("storage_dir", s.cfg.Storage.Dir),
		)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// Close releases server resources.
func (s *Server) Close() {
	_ = s.log.Sync()
}
