package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mathi4s/gatehouse/internal/services"
)

// ModerationHandler serves the admin block and allowlist ledgers.
type ModerationHandler struct {
	moderation *services.ModerationService
	notifier   *services.NotificationService
}

func NewModerationHandler(moderation *services.ModerationService, notifier *services.NotificationService) *ModerationHandler {
	return &ModerationHandler{moderation: moderation, notifier: notifier}
}

// ListBlocked handles GET /api/v1/admin/blocked-ips
func (h *ModerationHandler) ListBlocked(c *gin.Context) {
	blocks, err := h.moderation.ListBlocked(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, blocks)
}

type blockRequest struct {
	IP        string `json:"ip" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
	ExpiresIn int    `json:"expires_in_hours"`
}

// Block handles POST /api/v1/admin/blocked-ips
func (h *ModerationHandler) Block(c *gin.Context) {
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ip and reason are required"})
		return
	}

	var expiresAt *time.Time
	if req.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(req.ExpiresIn) * time.Hour)
		expiresAt = &t
	}

	block, err := h.moderation.Block(c.Request.Context(), req.IP, req.Reason, expiresAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.notifier.IPBlocked(block.IP, block.Reason, false)
	c.JSON(http.StatusCreated, block)
}

// Unblock handles DELETE /api/v1/admin/blocked-ips/:id
func (h *ModerationHandler) Unblock(c *gin.Context) {
	if err := h.moderation.Unblock(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrBlockedIPNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "blocked IP not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "IP unblocked"})
}

// ListAllowlist handles GET /api/v1/admin/allowlist
func (h *ModerationHandler) ListAllowlist(c *gin.Context) {
	entries, err := h.moderation.ListAllowlist(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

type allowlistRequest struct {
	IP   string `json:"ip" binding:"required"`
	Note string `json:"note"`
}

// Allowlist handles POST /api/v1/admin/allowlist
func (h *ModerationHandler) Allowlist(c *gin.Context) {
	var req allowlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ip is required"})
		return
	}

	entry, err := h.moderation.Allowlist(c.Request.Context(), req.IP, req.Note)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyAllowlisted) {
			c.JSON(http.StatusConflict, gin.H{"error": "IP already allowlisted"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// RemoveAllowlist handles DELETE /api/v1/admin/allowlist/:id
func (h *ModerationHandler) RemoveAllowlist(c *gin.Context) {
	if err := h.moderation.RemoveAllowlist(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrAllowlistIPNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "allowlist entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "allowlist entry removed"})
}
