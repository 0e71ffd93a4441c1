package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mathi4s/gatehouse/internal/models"
	"github.com/mathi4s/gatehouse/internal/services"
)

// AppealHandler serves appeal submission (public) and review (admin).
type AppealHandler struct {
	appeals  *services.AppealService
	notifier *services.NotificationService
}

func NewAppealHandler(appeals *services.AppealService, notifier *services.NotificationService) *AppealHandler {
	return &AppealHandler{appeals: appeals, notifier: notifier}
}

type appealRequest struct {
	Email  string `json:"email"`
	Reason string `json:"reason" binding:"required"`
}

// Submit handles POST /api/v1/appeals
func (h *AppealHandler) Submit(c *gin.Context) {
	var req appealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}
	if req.Email != "" && !services.ValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
		return
	}

	appeal, err := h.appeals.Submit(c.Request.Context(), c.ClientIP(), req.Email, req.Reason, c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoRestriction):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active restriction found for this IP or email"})
		case errors.Is(err, services.ErrAppealPending):
			c.JSON(http.StatusConflict, gin.H{"error": "an appeal is already pending"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	h.notifier.AppealReceived(appeal.IP, appeal.Email, string(appeal.RestrictionType), appeal.TimesAppealed)
	c.JSON(http.StatusCreated, appeal)
}

// List handles GET /api/v1/admin/appeals
func (h *AppealHandler) List(c *gin.Context) {
	status := models.AppealStatus(c.Query("status"))
	appeals, err := h.appeals.List(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, appeals)
}

// Stats handles GET /api/v1/admin/appeals/stats
func (h *AppealHandler) Stats(c *gin.Context) {
	stats, err := h.appeals.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type resolveRequest struct {
	Verdict    string `json:"verdict" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

// Resolve handles POST /api/v1/admin/appeals/:id/resolve
func (h *AppealHandler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "verdict is required"})
		return
	}

	appeal, err := h.appeals.Resolve(c.Request.Context(), c.Param("id"), models.AppealStatus(req.Verdict), req.AdminNotes)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAppealNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "appeal not found"})
		case errors.Is(err, services.ErrInvalidVerdict):
			c.JSON(http.StatusBadRequest, gin.H{"error": "verdict must be Approved or Denied"})
		case errors.Is(err, services.ErrAppealResolved):
			c.JSON(http.StatusConflict, gin.H{"error": "appeal already resolved"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, appeal)
}
