package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mathi4s/gatehouse/internal/models"
	"github.com/mathi4s/gatehouse/internal/reputation"
)

var (
	ErrVpnAlertNotFound      = errors.New("vpn alert not found")
	ErrInvalidVpnAlertStatus = errors.New("invalid vpn alert status")
)

// VpnAlertService owns the reputation-alert ledger. It satisfies the
// admission classifier's AlertSink interface.
type VpnAlertService struct {
	db *gorm.DB
}

// NewVpnAlertService returns a VpnAlertService using the provided DB.
func NewVpnAlertService(db *gorm.DB) *VpnAlertService {
	return &VpnAlertService{db: db}
}

// RecordDetection upserts the alert for (ip, action): repeat detections bump
// Count and LastSeen on the existing row, and a detection against a Resolved
// alert reopens it. Blocked/Allowlisted/Ignored alerts keep their status so
// an admin verdict is not undone by traffic.
func (s *VpnAlertService) RecordDetection(ctx context.Context, ip, action string, rep reputation.Result) (*models.VpnAlert, error) {
	now := time.Now()

	var alert models.VpnAlert
	err := s.db.WithContext(ctx).Where("ip = ? AND action = ?", ip, action).Order("last_seen desc").First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		alert = models.VpnAlert{
			UUID:      uuid.NewString(),
			IP:        ip,
			Action:    action,
			Status:    models.VpnAlertOpen,
			Count:     1,
			Type:      rep.Type,
			Risk:      rep.Risk,
			ASN:       rep.ASN,
			FirstSeen: now,
			LastSeen:  now,
		}
		if err := s.db.WithContext(ctx).Create(&alert).Error; err != nil {
			return nil, err
		}
		return &alert, nil
	}
	if err != nil {
		return nil, err
	}

	alert.Count++
	alert.LastSeen = now
	alert.Type = rep.Type
	alert.Risk = rep.Risk
	if rep.ASN != "" {
		alert.ASN = rep.ASN
	}
	if alert.Status == models.VpnAlertResolved {
		alert.Status = models.VpnAlertOpen
	}
	if err := s.db.WithContext(ctx).Save(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

// Get returns the alert identified by UUID.
func (s *VpnAlertService) Get(ctx context.Context, id string) (*models.VpnAlert, error) {
	var alert models.VpnAlert
	if err := s.db.WithContext(ctx).Where("uuid = ?", id).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVpnAlertNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// List returns alerts newest first, optionally filtered by status.
func (s *VpnAlertService) List(ctx context.Context, status models.VpnAlertStatus) ([]models.VpnAlert, error) {
	q := s.db.WithContext(ctx).Order("last_seen desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var alerts []models.VpnAlert
	if err := q.Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// UpdateStatus applies an admin verdict to the alert. Ledger side effects
// (blocking or allowlisting the IP) are the caller's responsibility.
func (s *VpnAlertService) UpdateStatus(ctx context.Context, id string, status models.VpnAlertStatus, note string) (*models.VpnAlert, error) {
	switch status {
	case models.VpnAlertOpen, models.VpnAlertResolved, models.VpnAlertBlocked,
		models.VpnAlertAllowlisted, models.VpnAlertIgnored:
	default:
		return nil, ErrInvalidVpnAlertStatus
	}

	alert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	alert.Status = status
	alert.LastActionAt = &now
	if note != "" {
		alert.AdminNote = note
	}
	if err := s.db.WithContext(ctx).Save(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

// VpnAlertStats summarizes the alert ledger for the admin dashboard.
type VpnAlertStats struct {
	Total  int64 `json:"total"`
	Open   int64 `json:"open"`
	High   int64 `json:"high_risk"`
	Last24 int64 `json:"last_24h"`
}

// Stats computes alert counts.
func (s *VpnAlertService) Stats(ctx context.Context) (*VpnAlertStats, error) {
	var stats VpnAlertStats
	db := s.db.WithContext(ctx).Model(&models.VpnAlert{})

	if err := db.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("status = ?", models.VpnAlertOpen).Count(&stats.Open).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("risk = ?", "high").Count(&stats.High).Error; err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	if err := db.Session(&gorm.Session{}).Where("last_seen > ?", cutoff).Count(&stats.Last24).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
