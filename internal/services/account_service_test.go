package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mathi4s/gatehouse/internal/models"
)

func setupAccountTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func TestAccountService_RegisterAndLogin(t *testing.T) {
	svc := NewAccountService(setupAccountTestDB(t), "test-secret")
	ctx := context.Background()

	user, err := svc.Register(ctx, "User@Example.com", "User", "longpassword")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.False(t, user.EmailVerified)
	assert.NotEmpty(t, user.VerificationToken)

	token, logged, err := svc.Login(ctx, "user@example.com", "longpassword")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotNil(t, logged.LastLogin)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.UUID, claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestAccountService_RegisterValidation(t *testing.T) {
	svc := NewAccountService(setupAccountTestDB(t), "test-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, "bad-email", "A", "longpassword")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.Register(ctx, "a@mailinator.com", "A", "longpassword")
	assert.ErrorIs(t, err, ErrDisposableEmail)

	_, err = svc.Register(ctx, "a@example.com", "A", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = svc.Register(ctx, "a@example.com", "A", "longpassword")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "a@example.com", "B", "longpassword")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAccountService_LoginFailures(t *testing.T) {
	svc := NewAccountService(setupAccountTestDB(t), "test-secret")
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "ghost@example.com", "whatever1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register(ctx, "a@example.com", "A", "longpassword")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "a@example.com", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAccountService_RestrictedAccountCannotLogin(t *testing.T) {
	svc := NewAccountService(setupAccountTestDB(t), "test-secret")
	ctx := context.Background()

	user, err := svc.Register(ctx, "sus@example.com", "S", "longpassword")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, user.UUID, models.UserStatusSuspended)
	require.NoError(t, err)

	_, got, err := svc.Login(ctx, "sus@example.com", "longpassword")
	assert.ErrorIs(t, err, ErrAccountRestricted)
	require.NotNil(t, got)
	assert.Equal(t, models.UserStatusSuspended, got.Status)
}

func TestAccountService_VerifyEmail(t *testing.T) {
	svc := NewAccountService(setupAccountTestDB(t), "test-secret")
	ctx := context.Background()

	user, err := svc.Register(ctx, "v@example.com", "V", "longpassword")
	require.NoError(t, err)

	verified, err := svc.VerifyEmail(ctx, user.VerificationToken)
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)
	assert.Empty(t, verified.VerificationToken)

	_, err = svc.VerifyEmail(ctx, "bogus")
	assert.ErrorIs(t, err, ErrVerifyTokenBad)
}

func TestAccountService_PasswordReset(t *testing.T) {
	svc := NewAccountService(setupAccountTestDB(t), "test-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, "r@example.com", "R", "oldpassword")
	require.NoError(t, err)

	user, err := svc.RequestPasswordReset(ctx, "R@Example.com")
	require.NoError(t, err)
	require.NotEmpty(t, user.ResetToken)

	reset, err := svc.ResetPassword(ctx, user.ResetToken, "newpassword")
	require.NoError(t, err)
	assert.Empty(t, reset.ResetToken)

	_, _, err = svc.Login(ctx, "r@example.com", "oldpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "r@example.com", "newpassword")
	require.NoError(t, err)

	// The token is single-use.
	_, err = svc.ResetPassword(ctx, user.ResetToken, "anotherpassword")
	assert.ErrorIs(t, err, ErrResetTokenBad)
}

func TestAccountService_PasswordResetRejections(t *testing.T) {
	db := setupAccountTestDB(t)
	svc := NewAccountService(db, "test-secret")
	ctx := context.Background()

	_, err := svc.RequestPasswordReset(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.ResetPassword(ctx, "bogus", "newpassword")
	assert.ErrorIs(t, err, ErrResetTokenBad)

	user, err := svc.Register(ctx, "r@example.com", "R", "oldpassword")
	require.NoError(t, err)
	requested, err := svc.RequestPasswordReset(ctx, "r@example.com")
	require.NoError(t, err)

	_, err = svc.ResetPassword(ctx, requested.ResetToken, "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&models.User{}).Where("uuid = ?", user.UUID).
		Update("reset_expiry", &past).Error)
	_, err = svc.ResetPassword(ctx, requested.ResetToken, "newpassword")
	assert.ErrorIs(t, err, ErrResetTokenBad)
}

func TestAccountService_ParseTokenRejectsTampering(t *testing.T) {
	svc := NewAccountService(setupAccountTestDB(t), "test-secret")
	other := NewAccountService(setupAccountTestDB(t), "different-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@example.com", "A", "longpassword")
	require.NoError(t, err)
	token, _, err := svc.Login(ctx, "a@example.com", "longpassword")
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ParseToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
