package webhooks

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPHandler handles webhook subscription management requests.
type HTTPHandler struct {
	svc    Service
	logger *zap.Logger
}

// NewHTTPHandler creates a new webhooks HTTP handler.
func NewHTTPHandler(svc Service, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the webhook management routes on the given group.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	hooks := rg.Group("/webhooks")
	{
		hooks.POST("", h.createWebhook)
		hooks.GET("", h.listWebhooks)
		hooks.GET("/:id", h.getWebhook)
		hooks.DELETE("/:id", h.deleteWebhook)
	}
}

func (h *HTTPHandler) createWebhook(c *gin.Context) {
	var req struct {
		URL    string   `json:"url" binding:"required,url"`
		Secret string   `json:"secret" binding:"required,min=8"`
		Events []string `json:"events" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.svc.CreateWebhook(c.Request.Context(), req.URL, req.Secret, req.Events)
	if err != nil {
		h.logger.Error("Failed to create webhook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create webhook"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *HTTPHandler) listWebhooks(c *gin.Context) {
	hooks, err := h.svc.ListWebhooks(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list webhooks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list webhooks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": hooks})
}

func (h *HTTPHandler) getWebhook(c *gin.Context) {
	hook, err := h.svc.GetWebhook(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "webhook not found"})
			return
		}
		h.logger.Error("Failed to get webhook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get webhook"})
		return
	}
	c.JSON(http.StatusOK, hook)
}

func (h *HTTPHandler) deleteWebhook(c *gin.Context) {
	if err := h.svc.DeleteWebhook(c.Request.Context(), c.Param("id")); err != nil {
		h.logger.Error("Failed to delete webhook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete webhook"})
		return
	}
	c.Status(http.StatusNoContent)
}
