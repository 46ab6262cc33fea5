package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumendesk/backend/internal/api/middleware"
)

// GetDesktop handles GET /desktop with the full UI-facing state.
func (h *Handlers) GetDesktop(c *gin.Context) {
	d := h.desktops.Get(middleware.User(c))
	c.JSON(http.StatusOK, gin.H{
		"bounds":  d.Bounds(),
		"icons":   d.Icons(),
		"desktop": d.Export(),
		"testing": d.Testing(),
	})
}

type testingRequest struct {
	Enabled bool `json:"enabled"`
}

// SetTesting handles PUT /desktop/testing. While enabled, the chat
// path is disabled so tests can drive the desktop deterministically.
func (h *Handlers) SetTesting(c *gin.Context) {
	var req testingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	d := h.desktops.Get(middleware.User(c))
	d.SetTesting(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"testing": req.Enabled})
}
