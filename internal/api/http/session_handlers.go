package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumendesk/backend/internal/api/middleware"
	"github.com/lumendesk/backend/internal/domain/session"
)

// ListSessions handles GET /sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": h.sessions.List(middleware.User(c)),
	})
}

type saveSessionRequest struct {
	Name string `json:"name"`
}

// SaveSession handles POST /sessions. The desktop state is captured
// server-side; the client only names the snapshot.
func (h *Handlers) SaveSession(c *gin.Context) {
	var req saveSessionRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	user := middleware.User(c)
	d := h.desktops.Get(user)

	s, err := h.sessions.Save(user, req.Name, d.Export())
	if err != nil {
		h.log.Error("session save failed", zap.String("user", user), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
		return
	}

	h.metrics.SessionsSaved.Inc()
	c.JSON(http.StatusCreated, gin.H{
		"session_id": s.ID,
		"name":       s.Name,
	})
}

// GetSession handles GET /sessions/:id.
func (h *Handlers) GetSession(c *gin.Context) {
	s, err := h.sessions.Get(middleware.User(c), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}

// RestoreSession handles POST /sessions/:id/restore. The user's
// desktop runtime is replaced wholesale with the saved state.
func (h *Handlers) RestoreSession(c *gin.Context) {
	user := middleware.User(c)
	d := h.desktops.Get(user)

	s, err := h.sessions.Restore(user, c.Param("id"), d)
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	h.metrics.SessionsRestored.Inc()
	h.metrics.SetWindowsOpen(h.desktops.WindowCount())
	c.JSON(http.StatusOK, gin.H{
		"session_id": s.ID,
		"desktop":    d.Export(),
	})
}

// DeleteSession handles DELETE /sessions/:id.
func (h *Handlers) DeleteSession(c *gin.Context) {
	err := h.sessions.Delete(middleware.User(c), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}
