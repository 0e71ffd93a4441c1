package models

import (
	"time"
)

// BlockedIP bars a client IP from the public forms. A row with a past
// ExpiresAt is kept for audit but no longer enforced.
type BlockedIP struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	UUID        string     `json:"uuid" gorm:"uniqueIndex"`
	IP          string     `json:"ip" gorm:"index"`
	Reason      string     `json:"reason"`
	AutoBlocked bool       `json:"auto_blocked"`
	BlockedAt   time.Time  `json:"blocked_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Active reports whether the block is currently enforced.
func (b *BlockedIP) Active(now time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}
