// Package http contains the REST handlers for the desktop service.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumendesk/backend/internal/domain/desktop"
	"github.com/lumendesk/backend/internal/domain/interp"
	"github.com/lumendesk/backend/internal/domain/session"
	"github.com/lumendesk/backend/internal/infrastructure/logging"
	"github.com/lumendesk/backend/internal/infrastructure/monitoring"
	"github.com/lumendesk/backend/internal/providers/ai"
	"github.com/lumendesk/backend/internal/providers/auth"
	"github.com/lumendesk/backend/internal/providers/files"
)

// Upstream is the generative-AI surface the handlers proxy to.
type Upstream interface {
	Configured() bool
	Decide(ctx context.Context, prompt, snapshot string, schema map[string]interface{}) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
	Search(ctx context.Context, query string) (*ai.SearchResult, error)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	log      *logging.Logger
	metrics  *monitoring.Metrics
	desktops *desktop.Registry
	files    *files.Store
	sessions *session.Manager
	auth     *auth.Provider
	upstream Upstream
	interp   *interp.Interpreter
}

// NewHandlers creates a new handler set.
func NewHandlers(
	log *logging.Logger,
	metrics *monitoring.Metrics,
	desktops *desktop.Registry,
	fileStore *files.Store,
	sessions *session.Manager,
	authProvider *auth.Provider,
	upstream Upstream,
	interpreter *interp.Interpreter,
) *Handlers {
	return &Handlers{
		log:      log,
		metrics:  metrics,
		desktops: desktops,
		files:    fileStore,
		sessions: sessions,
		auth:     authProvider,
		upstream: upstream,
		interp:   interpreter,
	}
}

// Root handles GET /.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "lumendesk-backend",
		"status":  "running",
	})
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"desktops": h.desktops.Count(),
		"windows":  h.desktops.WindowCount(),
	})
}

// Stats handles GET /stats with aggregate counters as JSON.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Stats())
}
