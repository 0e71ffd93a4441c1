package models

import (
	"time"
)

// AppealStatus is the review state of a dispute. Pending is the only
// non-terminal state.
type AppealStatus string

const (
	AppealStatusPending  AppealStatus = "Pending"
	AppealStatusApproved AppealStatus = "Approved"
	AppealStatusDenied   AppealStatus = "Denied"
)

// RestrictionType names what the appellant is disputing.
type RestrictionType string

const (
	RestrictionIPBlock         RestrictionType = "ip_block"
	RestrictionAccountSuspend  RestrictionType = "account_suspended"
	RestrictionAccountInactive RestrictionType = "account_inactive"
)

// AccountRestriction reports whether the restriction is account-level.
// Approving an account-level appeal reinstates the account; approving an
// IP-level appeal does not lift the block (unblocking is a separate admin
// action).
func (r RestrictionType) AccountRestriction() bool {
	return r == RestrictionAccountSuspend || r == RestrictionAccountInactive
}

// Appeal is a dispute over an IP block or account restriction.
// TimesAppealed is fixed at submission time (1 + prior appeals for the same
// subject) and never recomputed.
type Appeal struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	UUID            string          `json:"uuid" gorm:"uniqueIndex"`
	IP              string          `json:"ip" gorm:"index"`
	Email           string          `json:"email" gorm:"index"`
	Reason          string          `json:"reason" gorm:"type:text"`
	RestrictionType RestrictionType `json:"restriction_type"`
	Status          AppealStatus    `json:"status" gorm:"index;default:'Pending'"`
	AdminNotes      string          `json:"admin_notes"`
	UserAgent       string          `json:"user_agent"`
	TimesAppealed   int             `json:"times_appealed" gorm:"default:1"`
	PreviousStatus  AppealStatus    `json:"previous_status"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Resolved reports whether the appeal reached a terminal state.
func (a *Appeal) Resolved() bool {
	return a.Status == AppealStatusApproved || a.Status == AppealStatusDenied
}
