package models

import (
	"time"
)

// PageView is a single tracked visit.
type PageView struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Page      string    `json:"page" gorm:"index"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Device    string    `json:"device"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
	Referrer  string    `json:"referrer"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	Language  string    `json:"language"`
	SessionID string    `json:"session_id" gorm:"index"`
	ViewedAt  time.Time `json:"viewed_at" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}
