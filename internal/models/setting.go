package models

import (
	"time"
)

// Setting is a key/value site setting (tracking toggle, newsletter footer,
// banner text, ...).
type Setting struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Key       string    `json:"key" gorm:"uniqueIndex"`
	Value     string    `json:"value"`
	Type      string    `json:"type" gorm:"default:'string'"`
	Category  string    `json:"category" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Well-known setting keys.
const (
	SettingTrackingEnabled = "analytics.tracking_enabled"
)
