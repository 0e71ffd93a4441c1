package models

import (
	"time"
)

// Donation records a completed checkout session reported by the payment
// gateway webhook.
type Donation struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	SessionID string    `json:"session_id" gorm:"uniqueIndex"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
