package services

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"

	"github.com/mathi4s/gatehouse/internal/models"
)

var ErrSettingNotFound = errors.New("setting not found")

// SettingsService stores site-wide key/value settings.
type SettingsService struct {
	db *gorm.DB
}

// NewSettingsService returns a SettingsService using the provided DB.
func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Get returns the setting for key.
func (s *SettingsService) Get(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	return &setting, nil
}

// GetBool returns the setting parsed as a boolean, or fallback when the key
// is absent or unparseable.
func (s *SettingsService) GetBool(ctx context.Context, key string, fallback bool) bool {
	setting, err := s.Get(ctx, key)
	if err != nil {
		return fallback
	}
	v, err := strconv.ParseBool(setting.Value)
	if err != nil {
		return fallback
	}
	return v
}

// Set upserts a setting.
func (s *SettingsService) Set(ctx context.Context, key, value, valueType, category string) (*models.Setting, error) {
	var setting models.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.Setting{Key: key, Value: value, Type: valueType, Category: category}
		if setting.Type == "" {
			setting.Type = "string"
		}
		if err := s.db.WithContext(ctx).Create(&setting).Error; err != nil {
			return nil, err
		}
		return &setting, nil
	}
	if err != nil {
		return nil, err
	}

	setting.Value = value
	if valueType != "" {
		setting.Type = valueType
	}
	if category != "" {
		setting.Category = category
	}
	if err := s.db.WithContext(ctx).Save(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

// List returns settings, optionally filtered by category.
func (s *SettingsService) List(ctx context.Context, category string) ([]models.Setting, error) {
	q := s.db.WithContext(ctx).Order("key asc")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var settings []models.Setting
	if err := q.Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}
