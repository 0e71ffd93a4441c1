package models

import (
	"time"
)

// SubscriberStatus tracks double-opt-in state.
type SubscriberStatus string

const (
	SubscriberPending SubscriberStatus = "Pending"
	SubscriberActive  SubscriberStatus = "Active"
)

// Subscriber is a newsletter signup.
type Subscriber struct {
	ID           uint             `json:"id" gorm:"primaryKey"`
	UUID         string           `json:"uuid" gorm:"uniqueIndex"`
	Email        string           `json:"email" gorm:"uniqueIndex"`
	Status       SubscriberStatus `json:"status" gorm:"default:'Pending'"`
	ConfirmToken string           `json:"-" gorm:"index"`
	SubscribedAt time.Time        `json:"subscribed_at"`
	ConfirmedAt  *time.Time       `json:"confirmed_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Unsubscribed keeps an audit trail of removed subscribers so repeat signups
// and churn can be reviewed.
type Unsubscribed struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Email          string     `json:"email" gorm:"index"`
	Reason         string     `json:"reason"`
	IP             string     `json:"ip"`
	SubscribedAt   *time.Time `json:"subscribed_at,omitempty"`
	UnsubscribedAt time.Time  `json:"unsubscribed_at"`
	CreatedAt      time.Time  `json:"created_at"`
}
