package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mathi4s/gatehouse/internal/admission"
	"github.com/mathi4s/gatehouse/internal/models"
	"github.com/mathi4s/gatehouse/internal/services"
)

// NewsletterHandler serves the double-opt-in newsletter flow.
type NewsletterHandler struct {
	subscribers *services.SubscriberService
	mail        *services.MailService
	notifier    *services.NotificationService
	classifier  *admission.Classifier
}

func NewNewsletterHandler(subscribers *services.SubscriberService, mail *services.MailService, notifier *services.NotificationService, classifier *admission.Classifier) *NewsletterHandler {
	return &NewsletterHandler{subscribers: subscribers, mail: mail, notifier: notifier, classifier: classifier}
}

type subscribeRequest struct {
	Email string `json:"email" binding:"required"`
}

// Subscribe handles POST /api/v1/newsletter/subscribe
func (h *NewsletterHandler) Subscribe(c *gin.Context) {
	if !Admit(c, h.classifier, admission.ActionNewsletter) {
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	sub, err := h.subscribers.Subscribe(c.Request.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
		case errors.Is(err, services.ErrAlreadySubscribed):
			// Same response as success so the endpoint can't be used to
			// probe the list.
			c.JSON(http.StatusOK, gin.H{"message": "check your inbox to confirm your subscription"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	h.mail.SendSubscribeConfirmation(sub.Email, sub.ConfirmToken)
	c.JSON(http.StatusOK, gin.H{"message": "check your inbox to confirm your subscription"})
}

// Confirm handles GET /api/v1/newsletter/confirm?token=...
func (h *NewsletterHandler) Confirm(c *gin.Context) {
	sub, err := h.subscribers.Confirm(c.Request.Context(), c.Query("token"))
	if err != nil {
		if errors.Is(err, services.ErrConfirmTokenBad) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired confirmation link"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.notifier.NewSubscriber(sub.Email)
	c.JSON(http.StatusOK, gin.H{"message": "subscription confirmed"})
}

type unsubscribeRequest struct {
	Email  string `json:"email" binding:"required"`
	Reason string `json:"reason"`
}

// Unsubscribe handles POST /api/v1/newsletter/unsubscribe
func (h *NewsletterHandler) Unsubscribe(c *gin.Context) {
	var req unsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	err := h.subscribers.Unsubscribe(c.Request.Context(), req.Email, req.Reason, c.ClientIP())
	if err != nil && !errors.Is(err, services.ErrSubscriberNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err == nil {
		h.notifier.Unsubscribed(req.Email, req.Reason)
	}

	// Unknown addresses get the same answer; nothing to probe here either.
	c.JSON(http.StatusOK, gin.H{"message": "unsubscribed"})
}

type broadcastRequest struct {
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

// Broadcast handles POST /api/v1/admin/newsletter/send. Delivery is
// best-effort per recipient; the response reports how many sends were queued.
func (h *NewsletterHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject and body are required"})
		return
	}

	subs, err := h.subscribers.List(c.Request.Context(), models.SubscriberActive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for i := range subs {
		h.mail.SendNewsletterIssue(subs[i].Email, req.Subject, req.Body)
	}

	c.JSON(http.StatusOK, gin.H{"message": "newsletter queued", "recipients": len(subs)})
}

// List handles GET /api/v1/admin/subscribers
func (h *NewsletterHandler) List(c *gin.Context) {
	status := models.SubscriberStatus(c.Query("status"))
	subs, err := h.subscribers.List(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, subs)
}
