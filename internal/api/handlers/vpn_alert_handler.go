package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mathi4s/gatehouse/internal/models"
	"github.com/mathi4s/gatehouse/internal/services"
)

// VpnAlertHandler serves the admin review queue for reputation alerts.
type VpnAlertHandler struct {
	alerts     *services.VpnAlertService
	moderation *services.ModerationService
	notifier   *services.NotificationService
}

func NewVpnAlertHandler(alerts *services.VpnAlertService, moderation *services.ModerationService, notifier *services.NotificationService) *VpnAlertHandler {
	return &VpnAlertHandler{alerts: alerts, moderation: moderation, notifier: notifier}
}

// List handles GET /api/v1/admin/vpn-alerts
func (h *VpnAlertHandler) List(c *gin.Context) {
	status := models.VpnAlertStatus(c.Query("status"))
	alerts, err := h.alerts.List(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// Get handles GET /api/v1/admin/vpn-alerts/:id
func (h *VpnAlertHandler) Get(c *gin.Context) {
	alert, err := h.alerts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrVpnAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vpn alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alert)
}

// Stats handles GET /api/v1/admin/vpn-alerts/stats
func (h *VpnAlertHandler) Stats(c *gin.Context) {
	stats, err := h.alerts.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type alertUpdateRequest struct {
	Status    string `json:"status" binding:"required"`
	Note      string `json:"note"`
	ExpiresIn int    `json:"expires_in_hours"` // only meaningful with status Blocked; 0 blocks permanently
}

// Update handles PUT /api/v1/admin/vpn-alerts/:id. Setting the status to
// Blocked or Allowlisted also writes the corresponding ledger entry.
func (h *VpnAlertHandler) Update(c *gin.Context) {
	var req alertUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	status := models.VpnAlertStatus(req.Status)
	alert, err := h.alerts.UpdateStatus(c.Request.Context(), c.Param("id"), status, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrVpnAlertNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "vpn alert not found"})
		case errors.Is(err, services.ErrInvalidVpnAlertStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	switch status {
	case models.VpnAlertBlocked:
		var expiresAt *time.Time
		if req.ExpiresIn > 0 {
			t := time.Now().Add(time.Duration(req.ExpiresIn) * time.Hour)
			expiresAt = &t
		}
		reason := "VPN/proxy abuse (" + alert.Type + ")"
		if _, err := h.moderation.Block(c.Request.Context(), alert.IP, reason, expiresAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		h.notifier.IPBlocked(alert.IP, reason, false)
	case models.VpnAlertAllowlisted:
		if _, err := h.moderation.Allowlist(c.Request.Context(), alert.IP, "cleared from VPN alert review"); err != nil &&
			!errors.Is(err, services.ErrAlreadyAllowlisted) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, alert)
}
