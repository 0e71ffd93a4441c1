package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mathi4s/gatehouse/internal/logger"
	"github.com/mathi4s/gatehouse/internal/models"
	"github.com/mathi4s/gatehouse/internal/payments"
)

var (
	ErrDonationAmountRange = errors.New("donation amount must be between 1 and 10000")
	ErrPaymentsDisabled    = errors.New("payments are not configured")
)

const (
	minDonationCents = 100
	maxDonationCents = 1_000_000
)

// DonationService creates checkout sessions and records completed donations
// reported by the gateway webhook.
type DonationService struct {
	db      *gorm.DB
	gateway payments.CheckoutClient
	siteURL string
}

// NewDonationService returns a DonationService. A nil gateway disables
// checkout creation but keeps the ledger readable.
func NewDonationService(db *gorm.DB, gateway payments.CheckoutClient, siteURL string) *DonationService {
	return &DonationService{db: db, gateway: gateway, siteURL: strings.TrimSuffix(siteURL, "/")}
}

// CreateSession validates the amount and opens a hosted checkout session.
func (s *DonationService) CreateSession(ctx context.Context, amountCents int64, currency string) (payments.Session, error) {
	if s.gateway == nil {
		return payments.Session{}, ErrPaymentsDisabled
	}
	if amountCents < minDonationCents || amountCents > maxDonationCents {
		return payments.Session{}, ErrDonationAmountRange
	}
	if currency == "" {
		currency = "usd"
	}

	session, err := s.gateway.CreateSession(ctx, amountCents, strings.ToLower(currency),
		s.siteURL+"/donate/thanks?session_id={CHECKOUT_SESSION_ID}",
		s.siteURL+"/donate")
	if err != nil {
		return payments.Session{}, fmt.Errorf("create donation session: %w", err)
	}
	return session, nil
}

// HandleWebhook verifies and records a gateway event. Returns the recorded
// donation, or nil for events the ledger ignores. Replayed events are
// swallowed: the session id is unique and the first record wins.
func (s *DonationService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*models.Donation, error) {
	if s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}
	completed, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return nil, err
	}
	if completed == nil {
		return nil, nil
	}

	donation := models.Donation{
		UUID:      uuid.NewString(),
		SessionID: completed.SessionID,
		Amount:    completed.Amount,
		Currency:  completed.Currency,
		Email:     completed.Email,
		Status:    "completed",
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&donation).Error; err != nil {
		var existing models.Donation
		if lookupErr := s.db.WithContext(ctx).Where("session_id = ?", completed.SessionID).First(&existing).Error; lookupErr == nil {
			logger.WithFields(map[string]interface{}{"session_id": completed.SessionID}).Debug("duplicate donation webhook ignored")
			return &existing, nil
		}
		return nil, err
	}
	return &donation, nil
}

// List returns donations newest first.
func (s *DonationService) List(ctx context.Context) ([]models.Donation, error) {
	var donations []models.Donation
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&donations).Error; err != nil {
		return nil, err
	}
	return donations, nil
}

// DonationStats summarizes the donation ledger.
type DonationStats struct {
	Count int64   `json:"count"`
	Total float64 `json:"total"`
}

// Stats computes donation count and total amount.
func (s *DonationService) Stats(ctx context.Context) (*DonationStats, error) {
	var stats DonationStats
	if err := s.db.WithContext(ctx).Model(&models.Donation{}).Count(&stats.Count).Error; err != nil {
		return nil, err
	}
	var total *float64
	if err := s.db.WithContext(ctx).Model(&models.Donation{}).Select("SUM(amount)").Scan(&total).Error; err != nil {
		return nil, err
	}
	if total != nil {
		stats.Total = *total
	}
	return &stats, nil
}
