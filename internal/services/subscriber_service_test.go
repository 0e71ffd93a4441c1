package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mathi4s/gatehouse/internal/models"
)

func setupSubscriberTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Subscriber{}, &models.Unsubscribed{}))
	return db
}

func TestSubscriberService_SubscribeAndConfirm(t *testing.T) {
	svc := NewSubscriberService(setupSubscriberTestDB(t))
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "Reader@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", sub.Email)
	assert.Equal(t, models.SubscriberPending, sub.Status)
	assert.NotEmpty(t, sub.ConfirmToken)

	confirmed, err := svc.Confirm(ctx, sub.ConfirmToken)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberActive, confirmed.Status)
	assert.NotNil(t, confirmed.ConfirmedAt)
	assert.Empty(t, confirmed.ConfirmToken)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSubscriberService_InvalidEmail(t *testing.T) {
	svc := NewSubscriberService(setupSubscriberTestDB(t))

	_, err := svc.Subscribe(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestSubscriberService_PendingResubscribeReissuesToken(t *testing.T) {
	svc := NewSubscriberService(setupSubscriberTestDB(t))
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	second, err := svc.Subscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.ConfirmToken, second.ConfirmToken)
}

func TestSubscriberService_ActiveResubscribeRejected(t *testing.T) {
	svc := NewSubscriberService(setupSubscriberTestDB(t))
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, sub.ConfirmToken)
	require.NoError(t, err)

	_, err = svc.Subscribe(ctx, "reader@example.com")
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
}

func TestSubscriberService_ConfirmBadToken(t *testing.T) {
	svc := NewSubscriberService(setupSubscriberTestDB(t))

	_, err := svc.Confirm(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrConfirmTokenBad)
	_, err = svc.Confirm(context.Background(), "")
	assert.ErrorIs(t, err, ErrConfirmTokenBad)
}

func TestSubscriberService_UnsubscribeKeepsAudit(t *testing.T) {
	db := setupSubscriberTestDB(t)
	svc := NewSubscriberService(db)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, sub.ConfirmToken)
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, "reader@example.com", "too many emails", "1.2.3.4"))

	subs, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, subs)

	var record models.Unsubscribed
	require.NoError(t, db.Where("email = ?", "reader@example.com").First(&record).Error)
	assert.Equal(t, "too many emails", record.Reason)
	assert.Equal(t, "1.2.3.4", record.IP)
	assert.NotNil(t, record.SubscribedAt)
}

func TestSubscriberService_UnsubscribeUnknown(t *testing.T) {
	svc := NewSubscriberService(setupSubscriberTestDB(t))

	err := svc.Unsubscribe(context.Background(), "ghost@example.com", "", "")
	assert.ErrorIs(t, err, ErrSubscriberNotFound)
}
