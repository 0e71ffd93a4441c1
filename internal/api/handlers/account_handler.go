package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mathi4s/gatehouse/internal/admission"
	"github.com/mathi4s/gatehouse/internal/api/middleware"
	"github.com/mathi4s/gatehouse/internal/models"
	"github.com/mathi4s/gatehouse/internal/services"
)

// AccountHandler serves registration, login and the session-scoped profile.
type AccountHandler struct {
	accounts   *services.AccountService
	mail       *services.MailService
	notifier   *services.NotificationService
	classifier *admission.Classifier
}

func NewAccountHandler(accounts *services.AccountService, mail *services.MailService, notifier *services.NotificationService, classifier *admission.Classifier) *AccountHandler {
	return &AccountHandler{accounts: accounts, mail: mail, notifier: notifier, classifier: classifier}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /api/v1/account/register
func (h *AccountHandler) Register(c *gin.Context) {
	if !Admit(c, h.classifier, admission.ActionSignup) {
		return
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email, name and password are required"})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
		case errors.Is(err, services.ErrDisposableEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "disposable email domains are not accepted"})
		case errors.Is(err, services.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		case errors.Is(err, services.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	h.mail.SendVerificationEmail(user.Email, user.VerificationToken)
	h.notifier.NewSignup(user.Email, user.Name)
	c.JSON(http.StatusCreated, user)
}

// Verify handles GET /api/v1/account/verify?token=...
func (h *AccountHandler) Verify(c *gin.Context) {
	if _, err := h.accounts.VerifyEmail(c.Request.Context(), c.Query("token")); err != nil {
		if errors.Is(err, services.ErrVerifyTokenBad) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired verification link"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/v1/account/login
func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	token, user, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		case errors.Is(err, services.ErrAccountRestricted):
			c.JSON(http.StatusForbidden, gin.H{
				"error":     "account is " + string(user.Status),
				"appealUrl": "/appeal",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ForgotPassword handles POST /api/v1/account/password/forgot. The response
// is the same whether or not the address has an account.
func (h *AccountHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	user, err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, services.ErrUserNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err == nil {
		h.mail.SendPasswordReset(user.Email, user.ResetToken)
	}

	c.JSON(http.StatusOK, gin.H{"message": "if that address has an account, a reset link is on its way"})
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ResetPassword handles POST /api/v1/account/password/reset
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token and password are required"})
		return
	}

	if _, err := h.accounts.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, services.ErrResetTokenBad):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired reset link"})
		case errors.Is(err, services.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// Me handles GET /api/v1/account/me (behind SessionAuth).
func (h *AccountHandler) Me(c *gin.Context) {
	claims := middleware.GetSessionClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return
	}

	user, err := h.accounts.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

type statusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus handles PUT /api/v1/admin/users/:id/status
func (h *AccountHandler) UpdateStatus(c *gin.Context) {
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	status := models.UserStatus(req.Status)
	switch status {
	case models.UserStatusActive, models.UserStatusSuspended, models.UserStatusInactive:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	user, err := h.accounts.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}
