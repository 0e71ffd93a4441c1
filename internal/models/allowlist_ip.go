package models

import (
	"time"
)

// AllowlistIP exempts a client IP from every abuse check. Takes precedence
// over blocks, spam patterns and reputation lookups.
type AllowlistIP struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	IP        string    `json:"ip" gorm:"uniqueIndex"`
	Note      string    `json:"note"`
	AddedAt   time.Time `json:"added_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
