package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumendesk/backend/internal/api/middleware"
	"github.com/lumendesk/backend/internal/providers/files"
)

// ListFiles handles GET /files.
func (h *Handlers) ListFiles(c *gin.Context) {
	user := middleware.User(c)
	documents, images := h.files.List(user)
	c.JSON(http.StatusOK, gin.H{
		"documents": documents,
		"images":    images,
	})
}

type saveFileRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// SaveFile handles POST /files.
func (h *Handlers) SaveFile(c *gin.Context) {
	var req saveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user := middleware.User(c)
	f, err := h.files.Save(user, req.Type, req.Name, req.Content)
	switch {
	case errors.Is(err, files.ErrInvalidType),
		errors.Is(err, files.ErrInvalidName),
		errors.Is(err, files.ErrNotAnImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.log.Error("file save failed", zap.String("user", user), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
	default:
		c.JSON(http.StatusCreated, gin.H{"file": f})
	}
}

// DeleteFile handles DELETE /files/:type/:name.
func (h *Handlers) DeleteFile(c *gin.Context) {
	user := middleware.User(c)
	ftype := c.Param("type")
	name := c.Param("name")

	err := h.files.Delete(user, ftype, name)
	switch {
	case errors.Is(err, files.ErrInvalidType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, files.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete file"})
	default:
		c.JSON(http.StatusOK, gin.H{"deleted": name})
	}
}

// SearchFiles handles GET /files/search?pattern=.
func (h *Handlers) SearchFiles(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pattern query parameter required"})
		return
	}

	matches, err := h.files.Search(middleware.User(c), pattern)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// StorageUsage handles GET /storage.
func (h *Handlers) StorageUsage(c *gin.Context) {
	user := middleware.User(c)
	used, err := h.files.Usage(user)
	if err != nil {
		h.log.Error("storage usage failed", zap.String("user", user), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute storage usage"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"used": used})
}
