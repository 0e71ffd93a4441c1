package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mathi4s/gatehouse/internal/logger"
	"github.com/mathi4s/gatehouse/internal/models"
)

var (
	ErrAppealNotFound = errors.New("appeal not found")
	ErrNoRestriction  = errors.New("no active restriction to appeal")
	ErrAppealPending  = errors.New("an appeal is already pending for this subject")
	ErrAppealResolved = errors.New("appeal already resolved")
	ErrInvalidVerdict = errors.New("invalid appeal verdict")
)

// AppealService runs the dispute workflow for blocked IPs and restricted
// accounts.
type AppealService struct {
	db *gorm.DB
}

// NewAppealService returns an AppealService using the provided DB.
func NewAppealService(db *gorm.DB) *AppealService {
	return &AppealService{db: db}
}

// Submit files an appeal. The restriction type is derived, never
// client-supplied: an active IP block wins over account restrictions. With no
// restriction on either the IP or the account, ErrNoRestriction is returned.
func (s *AppealService) Submit(ctx context.Context, ip, email, reason, userAgent string) (*models.Appeal, error) {
	now := time.Now()

	restriction, err := s.findRestriction(ctx, ip, email, now)
	if err != nil {
		return nil, err
	}

	// One pending appeal per subject, where the subject follows the derived
	// restriction: the IP for ip_block appeals, the email for account-level
	// ones. A denied appeal may be re-filed; the new row carries the running
	// count and the prior verdict.
	history := s.db.WithContext(ctx)
	if restriction == models.RestrictionIPBlock {
		history = history.Where("ip = ?", ip)
	} else {
		history = history.Where("email = ?", email)
	}
	var prior []models.Appeal
	if err := history.Order("submitted_at desc").Find(&prior).Error; err != nil {
		return nil, err
	}

	timesAppealed := 1
	var previousStatus models.AppealStatus
	for i := range prior {
		if !prior[i].Resolved() {
			return nil, ErrAppealPending
		}
		if i == 0 {
			previousStatus = prior[i].Status
		}
		timesAppealed++
	}

	appeal := models.Appeal{
		UUID:            uuid.NewString(),
		IP:              ip,
		Email:           email,
		Reason:          reason,
		RestrictionType: restriction,
		Status:          models.AppealStatusPending,
		UserAgent:       userAgent,
		TimesAppealed:   timesAppealed,
		PreviousStatus:  previousStatus,
		SubmittedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(&appeal).Error; err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"ip": ip, "restriction": restriction, "times_appealed": timesAppealed,
	}).Info("appeal submitted")
	return &appeal, nil
}

func (s *AppealService) findRestriction(ctx context.Context, ip, email string, now time.Time) (models.RestrictionType, error) {
	var blocks []models.BlockedIP
	if err := s.db.WithContext(ctx).Where("ip = ?", ip).Find(&blocks).Error; err != nil {
		return "", err
	}
	for i := range blocks {
		if blocks[i].Active(now) {
			return models.RestrictionIPBlock, nil
		}
	}

	if email != "" {
		var user models.User
		err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
		if err == nil {
			switch user.Status {
			case models.UserStatusSuspended:
				return models.RestrictionAccountSuspend, nil
			case models.UserStatusInactive:
				return models.RestrictionAccountInactive, nil
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
	}

	return "", ErrNoRestriction
}

// Get returns the appeal identified by UUID.
func (s *AppealService) Get(ctx context.Context, id string) (*models.Appeal, error) {
	var appeal models.Appeal
	if err := s.db.WithContext(ctx).Where("uuid = ?", id).First(&appeal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppealNotFound
		}
		return nil, err
	}
	return &appeal, nil
}

// List returns appeals newest first, optionally filtered by status.
func (s *AppealService) List(ctx context.Context, status models.AppealStatus) ([]models.Appeal, error) {
	q := s.db.WithContext(ctx).Order("submitted_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var appeals []models.Appeal
	if err := q.Find(&appeals).Error; err != nil {
		return nil, err
	}
	return appeals, nil
}

// Resolve records an admin verdict. Approving an account-level appeal resets
// the account to Active. Approving an ip_block appeal does NOT lift the
// block: the admin lifts it explicitly through the moderation ledger, so a
// sympathetic verdict never silently reopens a hole.
func (s *AppealService) Resolve(ctx context.Context, id string, verdict models.AppealStatus, adminNotes string) (*models.Appeal, error) {
	if verdict != models.AppealStatusApproved && verdict != models.AppealStatusDenied {
		return nil, ErrInvalidVerdict
	}

	appeal, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appeal.Resolved() {
		return nil, ErrAppealResolved
	}

	now := time.Now()
	appeal.Status = verdict
	appeal.AdminNotes = adminNotes
	appeal.ResolvedAt = &now
	if err := s.db.WithContext(ctx).Save(appeal).Error; err != nil {
		return nil, err
	}

	if verdict == models.AppealStatusApproved && appeal.RestrictionType.AccountRestriction() {
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("email = ?", appeal.Email).
			Update("status", models.UserStatusActive).Error; err != nil {
			return nil, err
		}
		logger.WithFields(map[string]interface{}{"email": appeal.Email}).Info("account reinstated via appeal")
	}

	return appeal, nil
}

// AppealStats summarizes the appeal queue for the admin dashboard.
type AppealStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Denied   int64 `json:"denied"`
}

// Stats computes appeal counts per status.
func (s *AppealService) Stats(ctx context.Context) (*AppealStats, error) {
	var stats AppealStats
	db := s.db.WithContext(ctx).Model(&models.Appeal{})

	if err := db.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("status = ?", models.AppealStatusPending).Count(&stats.Pending).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("status = ?", models.AppealStatusApproved).Count(&stats.Approved).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("status = ?", models.AppealStatusDenied).Count(&stats.Denied).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
