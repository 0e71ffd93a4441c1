package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mathi4s/gatehouse/internal/admission"
	"github.com/mathi4s/gatehouse/internal/services"
)

// DonationHandler serves checkout creation, the gateway webhook and the
// admin ledger.
type DonationHandler struct {
	donations  *services.DonationService
	mail       *services.MailService
	notifier   *services.NotificationService
	classifier *admission.Classifier
}

func NewDonationHandler(donations *services.DonationService, mail *services.MailService, notifier *services.NotificationService, classifier *admission.Classifier) *DonationHandler {
	return &DonationHandler{donations: donations, mail: mail, notifier: notifier, classifier: classifier}
}

type checkoutRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required"`
	Currency    string `json:"currency"`
}

// CreateSession handles POST /api/v1/donations/session
func (h *DonationHandler) CreateSession(c *gin.Context) {
	if !Admit(c, h.classifier, admission.ActionDonation) {
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount_cents is required"})
		return
	}

	session, err := h.donations.CreateSession(c.Request.Context(), req.AmountCents, req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDonationAmountRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be between 1 and 10000"})
		case errors.Is(err, services.ErrPaymentsDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "donations are temporarily unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": session.ID, "url": session.URL})
}

// Webhook handles POST /api/v1/donations/webhook
func (h *DonationHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	donation, err := h.donations.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}
	if donation != nil {
		h.notifier.DonationReceived(donation.Amount, donation.Currency, donation.Email)
		h.mail.SendDonationThanks(donation.Email, donation.Amount, donation.Currency)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// List handles GET /api/v1/admin/donations
func (h *DonationHandler) List(c *gin.Context) {
	donations, err := h.donations.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, donations)
}

// Stats handles GET /api/v1/admin/donations/stats
func (h *DonationHandler) Stats(c *gin.Context) {
	stats, err := h.donations.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
