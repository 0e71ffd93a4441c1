package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mathi4s/gatehouse/internal/services"
)

// SettingsHandler serves the admin site-settings store plus the
// notification test endpoint.
type SettingsHandler struct {
	settings *services.SettingsService
	notifier *services.NotificationService
}

func NewSettingsHandler(settings *services.SettingsService, notifier *services.NotificationService) *SettingsHandler {
	return &SettingsHandler{settings: settings, notifier: notifier}
}

// List handles GET /api/v1/admin/settings
func (h *SettingsHandler) List(c *gin.Context) {
	settings, err := h.settings.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// Get handles GET /api/v1/admin/settings/:key
func (h *SettingsHandler) Get(c *gin.Context) {
	setting, err := h.settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, services.ErrSettingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "setting not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, setting)
}

type settingRequest struct {
	Value    string `json:"value" binding:"required"`
	Type     string `json:"type"`
	Category string `json:"category"`
}

// Set handles PUT /api/v1/admin/settings/:key
func (h *SettingsHandler) Set(c *gin.Context) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}

	setting, err := h.settings.Set(c.Request.Context(), c.Param("key"), req.Value, req.Type, req.Category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, setting)
}

// TestNotification handles POST /api/v1/admin/notifications/test
func (h *SettingsHandler) TestNotification(c *gin.Context) {
	if err := h.notifier.Test(); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "test notification sent"})
}
