package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mathi4s/gatehouse/internal/admission"
	"github.com/mathi4s/gatehouse/internal/services"
)

// ContactHandler relays contact form submissions to the site owner.
type ContactHandler struct {
	mail       *services.MailService
	notifier   *services.NotificationService
	classifier *admission.Classifier
	ownerEmail string
}

func NewContactHandler(mail *services.MailService, notifier *services.NotificationService, classifier *admission.Classifier, ownerEmail string) *ContactHandler {
	return &ContactHandler{mail: mail, notifier: notifier, classifier: classifier, ownerEmail: ownerEmail}
}

type contactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Subject string `json:"subject"`
	Message string `json:"message" binding:"required"`
}

const maxMessageLen = 5000

// Submit handles POST /api/v1/contact
func (h *ContactHandler) Submit(c *gin.Context) {
	if !Admit(c, h.classifier, admission.ActionContact) {
		return
	}

	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, email and message are required"})
		return
	}
	if !services.ValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
		return
	}
	if len(req.Message) > maxMessageLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message too long"})
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		req.Subject = "New contact message"
	}

	h.mail.RelayContactMessage(h.ownerEmail, req.Name, req.Email, req.Subject, req.Message)
	h.notifier.ContactMessage(req.Name, req.Email, req.Subject)
	c.JSON(http.StatusOK, gin.H{"message": "message sent"})
}
