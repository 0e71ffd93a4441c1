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
	ErrBlockedIPNotFound   = errors.New("blocked IP not found")
	ErrAllowlistIPNotFound = errors.New("allowlist entry not found")
	ErrAlreadyAllowlisted  = errors.New("IP already allowlisted")
)

// ModerationService owns the block and allowlist ledgers. It satisfies the
// admission classifier's Ledger interface.
type ModerationService struct {
	db *gorm.DB
}

// NewModerationService returns a ModerationService using the provided DB.
func NewModerationService(db *gorm.DB) *ModerationService {
	return &ModerationService{db: db}
}

// IsAllowlisted reports whether the IP has an allowlist entry.
func (s *ModerationService) IsAllowlisted(ctx context.Context, ip string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.AllowlistIP{}).Where("ip = ?", ip).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ActiveBlock returns the newest still-enforced block for the IP, or nil when
// the IP is not blocked. Expired rows are kept for audit but never returned.
func (s *ModerationService) ActiveBlock(ctx context.Context, ip string, now time.Time) (*models.BlockedIP, error) {
	var blocks []models.BlockedIP
	if err := s.db.WithContext(ctx).Where("ip = ?", ip).Order("blocked_at desc").Find(&blocks).Error; err != nil {
		return nil, err
	}
	for i := range blocks {
		if blocks[i].Active(now) {
			return &blocks[i], nil
		}
	}
	return nil, nil
}

// Block records a manual block. A repeat block of the same IP updates the
// existing row: last write wins on reason and expiry.
func (s *ModerationService) Block(ctx context.Context, ip, reason string, expiresAt *time.Time) (*models.BlockedIP, error) {
	var existing models.BlockedIP
	err := s.db.WithContext(ctx).Where("ip = ?", ip).Order("blocked_at desc").First(&existing).Error
	if err == nil {
		existing.Reason = reason
		existing.ExpiresAt = expiresAt
		existing.AutoBlocked = false
		existing.BlockedAt = time.Now()
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	block := models.BlockedIP{
		UUID:      uuid.NewString(),
		IP:        ip,
		Reason:    reason,
		ExpiresAt: expiresAt,
		BlockedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&block).Error; err != nil {
		return nil, err
	}
	return &block, nil
}

// AutoBlock records a classifier-initiated block. Permanent until an admin
// removes it.
func (s *ModerationService) AutoBlock(ctx context.Context, ip, reason string) (*models.BlockedIP, error) {
	block, err := s.Block(ctx, ip, reason, nil)
	if err != nil {
		return nil, err
	}
	block.AutoBlocked = true
	if err := s.db.WithContext(ctx).Save(block).Error; err != nil {
		return nil, err
	}
	return block, nil
}

// Unblock removes the block identified by UUID.
func (s *ModerationService) Unblock(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.BlockedIP{}, "uuid = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBlockedIPNotFound
	}
	return nil
}

// ListBlocked returns blocks ordered newest first.
func (s *ModerationService) ListBlocked(ctx context.Context) ([]models.BlockedIP, error) {
	var blocks []models.BlockedIP
	if err := s.db.WithContext(ctx).Order("blocked_at desc").Find(&blocks).Error; err != nil {
		return nil, err
	}
	return blocks, nil
}

// Allowlist adds an IP to the allowlist.
func (s *ModerationService) Allowlist(ctx context.Context, ip, note string) (*models.AllowlistIP, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.AllowlistIP{}).Where("ip = ?", ip).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrAlreadyAllowlisted
	}

	entry := models.AllowlistIP{
		UUID:    uuid.NewString(),
		IP:      ip,
		Note:    note,
		AddedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// RemoveAllowlist removes the allowlist entry identified by UUID.
func (s *ModerationService) RemoveAllowlist(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.AllowlistIP{}, "uuid = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAllowlistIPNotFound
	}
	return nil
}

// ListAllowlist returns allowlist entries ordered newest first.
func (s *ModerationService) ListAllowlist(ctx context.Context) ([]models.AllowlistIP, error) {
	var entries []models.AllowlistIP
	if err := s.db.WithContext(ctx).Order("added_at desc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// PurgeExpired deletes blocks whose expiry passed more than the retention ago.
// Run from the maintenance cron.
func (s *ModerationService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res := s.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at < ?", cutoff).Delete(&models.BlockedIP{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logger.WithFields(map[string]interface{}{"removed": res.RowsAffected}).Info("purged expired IP blocks")
	}
	return res.RowsAffected, nil
}
