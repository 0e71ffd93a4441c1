package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mathi4s/gatehouse/internal/models"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrAlreadySubscribed  = errors.New("email already subscribed")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrConfirmTokenBad    = errors.New("invalid or expired confirmation token")
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether the address looks deliverable enough to accept.
func ValidEmail(email string) bool {
	return len(email) <= 254 && emailRegex.MatchString(email)
}

// SubscriberService runs the double-opt-in newsletter list.
type SubscriberService struct {
	db *gorm.DB
}

// NewSubscriberService returns a SubscriberService using the provided DB.
func NewSubscriberService(db *gorm.DB) *SubscriberService {
	return &SubscriberService{db: db}
}

// Subscribe registers a pending signup and returns the row carrying the
// confirmation token for the opt-in email. Re-subscribing a pending address
// reissues the token; an active address gets ErrAlreadySubscribed.
func (s *SubscriberService) Subscribe(ctx context.Context, email string) (*models.Subscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	var existing models.Subscriber
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		if existing.Status == models.SubscriberActive {
			return nil, ErrAlreadySubscribed
		}
		existing.ConfirmToken = uuid.NewString()
		existing.SubscribedAt = time.Now()
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sub := models.Subscriber{
		UUID:         uuid.NewString(),
		Email:        email,
		Status:       models.SubscriberPending,
		ConfirmToken: uuid.NewString(),
		SubscribedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// Confirm activates the signup matching the token.
func (s *SubscriberService) Confirm(ctx context.Context, token string) (*models.Subscriber, error) {
	if token == "" {
		return nil, ErrConfirmTokenBad
	}
	var sub models.Subscriber
	if err := s.db.WithContext(ctx).Where("confirm_token = ?", token).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfirmTokenBad
		}
		return nil, err
	}

	now := time.Now()
	sub.Status = models.SubscriberActive
	sub.ConfirmToken = ""
	sub.ConfirmedAt = &now
	if err := s.db.WithContext(ctx).Save(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// Unsubscribe removes the address from the list and keeps an audit record.
func (s *SubscriberService) Unsubscribe(ctx context.Context, email, reason, ip string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var sub models.Subscriber
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubscriberNotFound
		}
		return err
	}

	subscribedAt := sub.SubscribedAt
	record := models.Unsubscribed{
		Email:          email,
		Reason:         reason,
		IP:             ip,
		SubscribedAt:   &subscribedAt,
		UnsubscribedAt: time.Now(),
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return tx.Delete(&sub).Error
	})
}

// List returns subscribers newest first, optionally filtered by status.
func (s *SubscriberService) List(ctx context.Context, status models.SubscriberStatus) ([]models.Subscriber, error) {
	q := s.db.WithContext(ctx).Order("subscribed_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var subs []models.Subscriber
	if err := q.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// Count returns the number of active subscribers.
func (s *SubscriberService) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Subscriber{}).
		Where("status = ?", models.SubscriberActive).Count(&count).Error
	return count, err
}
