package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumendesk/backend/internal/api/middleware"
	"github.com/lumendesk/backend/internal/domain/action"
	"github.com/lumendesk/backend/internal/domain/desktop"
	"github.com/lumendesk/backend/internal/domain/interp"
	"github.com/lumendesk/backend/internal/infrastructure/monitoring"
	"github.com/lumendesk/backend/internal/providers/ai"
)

type chatRequest struct {
	Prompt string `json:"prompt"`
}

// Chat handles POST /ai/chat: one full agent turn. The prompt plus a
// fresh desktop snapshot go to the upstream model; the returned
// decision is strictly decoded and executed against the user's
// desktop before the response is sent.
func (h *Handlers) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt required"})
		return
	}

	user := middleware.User(c)
	d := h.desktops.Get(user)

	if d.Testing() {
		c.JSON(http.StatusForbidden, gin.H{"error": "chat is disabled while testing mode is on"})
		return
	}
	if !h.upstream.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI service is not configured"})
		return
	}

	// The snapshot is recomputed per request; window layout may have
	// changed since the previous turn.
	snapshot := desktop.Describe(d)
	d.AppendMessage("user", req.Prompt)

	timer := monitoring.NewTimer(h.metrics, "decide")
	raw, err := h.upstream.Decide(c.Request.Context(), req.Prompt, snapshot, action.ResponseSchema())
	if err != nil {
		timer.Stop("error")
		h.log.Error("decision failed", zap.String("user", user), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI decision failed: " + err.Error()})
		return
	}
	timer.Stop("ok")

	// A malformed decision is a hard failure surfaced to the user, not
	// something to repair silently.
	seq, err := action.DecodeSequence([]byte(raw))
	if err != nil {
		h.log.Warn("invalid decision payload", zap.String("user", user), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "model returned an invalid action sequence: " + err.Error()})
		return
	}

	if err := h.interp.Execute(c.Request.Context(), user, d, seq); err != nil {
		if errors.Is(err, interp.ErrBusy) {
			h.metrics.SequencesRejected.Inc()
			c.JSON(http.StatusConflict, gin.H{"error": "a sequence is already executing"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sequence execution interrupted"})
		return
	}

	h.metrics.RecordSequence(len(seq), "ok")
	h.metrics.SetWindowsOpen(h.desktops.WindowCount())

	c.JSON(http.StatusOK, gin.H{
		"decision":   seq,
		"transcript": d.Transcript(),
		"desktop":    d.Export(),
	})
}

type generateImageRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateImage handles POST /ai/generate-image.
func (h *Handlers) GenerateImage(c *gin.Context) {
	var req generateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt required"})
		return
	}

	timer := monitoring.NewTimer(h.metrics, "generate_image")
	url, err := h.upstream.GenerateImage(c.Request.Context(), req.Prompt)
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		timer.Stop("error")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI service is not configured"})
	case errors.Is(err, ai.ErrNoImage):
		timer.Stop("empty")
		c.JSON(http.StatusOK, gin.H{"image": nil})
	case err != nil:
		timer.Stop("error")
		c.JSON(http.StatusBadGateway, gin.H{"error": "image generation failed: " + err.Error()})
	default:
		timer.Stop("ok")
		c.JSON(http.StatusOK, gin.H{"image": url})
	}
}

type searchRequest struct {
	Query string `json:"query"`
}

// GoogleSearch handles POST /ai/google-search.
func (h *Handlers) GoogleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query required"})
		return
	}

	timer := monitoring.NewTimer(h.metrics, "search")
	result, err := h.upstream.Search(c.Request.Context(), req.Query)
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		timer.Stop("error")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI service is not configured"})
	case err != nil:
		timer.Stop("error")
		c.JSON(http.StatusBadGateway, gin.H{"error": "search failed: " + err.Error()})
	default:
		timer.Stop("ok")
		c.JSON(http.StatusOK, gin.H{
			"summary": result.Summary,
			"sources": result.Sources,
		})
	}
}
