package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mathi4s/gatehouse/internal/admission"
)

// AdmissionHandler exposes the admission check directly so clients can probe
// before rendering a form.
type AdmissionHandler struct {
	classifier *admission.Classifier
}

func NewAdmissionHandler(classifier *admission.Classifier) *AdmissionHandler {
	return &AdmissionHandler{classifier: classifier}
}

type admissionRequest struct {
	Action string `json:"action" binding:"required"`
}

// Check handles POST /api/v1/admission/check
func (h *AdmissionHandler) Check(c *gin.Context) {
	var req admissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}
	action := admission.Action(req.Action)
	if !admission.ValidAction(action) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}

	decision := h.classifier.Classify(c.Request.Context(), c.ClientIP(), action)
	c.JSON(decisionStatus(decision), decision)
}

// decisionStatus maps a decision to its HTTP status: 403 for blocks, 429 for
// rate limits, 200 otherwise (including fail-open).
func decisionStatus(d admission.Decision) int {
	switch {
	case d.Blocked:
		return http.StatusForbidden
	case d.RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusOK
	}
}

// Admit runs the admission check for a public form endpoint. On a deny it
// writes the decision response and returns false; the caller must stop.
func Admit(c *gin.Context, classifier *admission.Classifier, action admission.Action) bool {
	decision := classifier.Classify(c.Request.Context(), c.ClientIP(), action)
	if decision.Allowed {
		return true
	}
	c.JSON(decisionStatus(decision), decision)
	return false
}
