package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mathi4s/gatehouse/internal/services"
)

// AnalyticsHandler serves page-view tracking and the admin stats.
type AnalyticsHandler struct {
	analytics *services.AnalyticsService
}

func NewAnalyticsHandler(analytics *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

type trackRequest struct {
	Page      string `json:"page" binding:"required"`
	Referrer  string `json:"referrer"`
	Language  string `json:"language"`
	SessionID string `json:"session_id"`
}

// Track handles POST /api/v1/analytics/track
func (h *AnalyticsHandler) Track(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page is required"})
		return
	}

	_, err := h.analytics.Track(c.Request.Context(), services.PageViewInput{
		Page:      req.Page,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  req.Referrer,
		Language:  req.Language,
		SessionID: req.SessionID,
	})
	if err != nil {
		if errors.Is(err, services.ErrTrackingDisabled) {
			// Tracking off is not the visitor's problem.
			c.JSON(http.StatusOK, gin.H{"tracked": false})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracked": true})
}

// sinceParam parses ?days=N (default 30).
func sinceParam(c *gin.Context) time.Time {
	days := 30
	if v := c.Query("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	return time.Now().AddDate(0, 0, -days)
}

// Stats handles GET /api/v1/admin/analytics/pages
func (h *AnalyticsHandler) Stats(c *gin.Context) {
	stats, err := h.analytics.Stats(c.Request.Context(), sinceParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Countries handles GET /api/v1/admin/analytics/countries
func (h *AnalyticsHandler) Countries(c *gin.Context) {
	stats, err := h.analytics.Countries(c.Request.Context(), sinceParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
