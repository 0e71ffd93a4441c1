package models

import (
	"time"
)

// VpnAlertStatus is the review state of a reputation alert. Everything but
// Open is set by an admin.
type VpnAlertStatus string

const (
	VpnAlertOpen        VpnAlertStatus = "Open"
	VpnAlertResolved    VpnAlertStatus = "Resolved"
	VpnAlertBlocked     VpnAlertStatus = "Blocked"
	VpnAlertAllowlisted VpnAlertStatus = "Allowlisted"
	VpnAlertIgnored     VpnAlertStatus = "Ignored"
)

// VpnAlert aggregates repeated reputation-positive detections of one IP on
// one action category. There is at most one open alert per (ip, action)
// pair; repeat detections bump Count and LastSeen instead of creating rows.
type VpnAlert struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	UUID         string         `json:"uuid" gorm:"uniqueIndex"`
	IP           string         `json:"ip" gorm:"index:idx_vpn_alert_subject"`
	Action       string         `json:"action" gorm:"index:idx_vpn_alert_subject"`
	Status       VpnAlertStatus `json:"status" gorm:"index;default:'Open'"`
	Count        int            `json:"count" gorm:"default:1"`
	Type         string         `json:"type"` // vpn, proxy, tor, relay
	Risk         string         `json:"risk"` // low, medium, high
	ASN          string         `json:"asn"`  // network operator
	AdminNote    string         `json:"note"`
	FirstSeen    time.Time      `json:"first_seen"`
	LastSeen     time.Time      `json:"last_seen" gorm:"index"`
	LastActionAt *time.Time     `json:"last_action_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
