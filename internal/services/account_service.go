package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mathi4s/gatehouse/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountRestricted  = errors.New("account suspended or inactive")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrDisposableEmail    = errors.New("disposable email domains are not accepted")
	ErrVerifyTokenBad     = errors.New("invalid or expired verification token")
	ErrResetTokenBad      = errors.New("invalid or expired reset token")
	ErrInvalidToken       = errors.New("invalid session token")
)

// disposableDomains are throwaway-mail providers rejected at signup.
var disposableDomains = map[string]bool{
	"mailinator.com":     true,
	"guerrillamail.com":  true,
	"10minutemail.com":   true,
	"tempmail.com":       true,
	"temp-mail.org":      true,
	"throwawaymail.com":  true,
	"yopmail.com":        true,
	"sharklasers.com":    true,
	"trashmail.com":      true,
	"getnada.com":        true,
	"maildrop.cc":        true,
	"dispostable.com":    true,
	"fakeinbox.com":      true,
	"mintemail.com":      true,
	"mytemp.email":       true,
	"burnermail.io":      true,
	"emailondeck.com":    true,
	"spamgourmet.com":    true,
	"mailnesia.com":      true,
	"tempinbox.com":      true,
}

const (
	sessionTokenTTL = 24 * time.Hour
	verifyTokenTTL  = 48 * time.Hour
	resetTokenTTL   = time.Hour
)

// SessionClaims is the JWT payload for a logged-in account.
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// AccountService handles registration, login and session tokens.
type AccountService struct {
	db        *gorm.DB
	jwtSecret []byte
}

// NewAccountService returns an AccountService using the provided DB and
// signing secret.
func NewAccountService(db *gorm.DB, jwtSecret string) *AccountService {
	return &AccountService{db: db, jwtSecret: []byte(jwtSecret)}
}

// Register creates an account in Active status with a pending email
// verification. The returned user carries the verification token for the
// mailer.
func (s *AccountService) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if domain := emailDomain(email); disposableDomains[domain] {
		return nil, ErrDisposableEmail
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	expiry := time.Now().Add(verifyTokenTTL)
	user := models.User{
		UUID:               uuid.NewString(),
		Email:              email,
		Name:               strings.TrimSpace(name),
		Status:             models.UserStatusActive,
		VerificationToken:  uuid.NewString(),
		VerificationExpiry: &expiry,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyEmail marks the account matching the token as verified.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrVerifyTokenBad
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("verification_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVerifyTokenBad
		}
		return nil, err
	}
	if user.VerificationExpiry != nil && user.VerificationExpiry.Before(time.Now()) {
		return nil, ErrVerifyTokenBad
	}

	user.EmailVerified = true
	user.VerificationToken = ""
	user.VerificationExpiry = nil
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// RequestPasswordReset issues a short-lived reset token for the account.
// Unknown addresses return ErrUserNotFound; the handler answers uniformly so
// the endpoint cannot be used to probe for accounts.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	expiry := time.Now().Add(resetTokenTTL)
	user.ResetToken = uuid.NewString()
	user.ResetExpiry = &expiry
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ResetPassword sets a new password for the account matching the token and
// burns the token.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) (*models.User, error) {
	if token == "" {
		return nil, ErrResetTokenBad
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("reset_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResetTokenBad
		}
		return nil, err
	}
	if user.ResetExpiry == nil || user.ResetExpiry.Before(time.Now()) {
		return nil, ErrResetTokenBad
	}

	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.ResetToken = ""
	user.ResetExpiry = nil
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Login checks credentials and issues a signed session token. Suspended and
// Inactive accounts are refused with ErrAccountRestricted so the handler can
// point the user at the appeal form.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !user.CheckPassword(password) {
		return "", nil, ErrInvalidCredentials
	}
	if user.Restricted() {
		return "", &user, ErrAccountRestricted
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return "", nil, err
	}

	token, err := s.issueToken(&user, now)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

func (s *AccountService) issueToken(user *models.User, now time.Time) (string, error) {
	claims := SessionClaims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a session token and returns its claims.
func (s *AccountService) ParseToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Get returns the account identified by UUID.
func (s *AccountService) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("uuid = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateStatus applies an admin status change to the account.
func (s *AccountService) UpdateStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Status = status
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return email[at+1:]
}
