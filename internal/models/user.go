package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UserStatus gates login. Suspended and Inactive accounts can only come back
// through an approved appeal or an admin edit.
type UserStatus string

const (
	UserStatusActive    UserStatus = "Active"
	UserStatusSuspended UserStatus = "Suspended"
	UserStatusInactive  UserStatus = "Inactive"
)

// User represents a site account.
type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	UUID         string     `json:"uuid" gorm:"uniqueIndex"`
	Email        string     `json:"email" gorm:"uniqueIndex"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"` // Never serialize password hash
	Status       UserStatus `json:"status" gorm:"default:'Active'"`

	EmailVerified      bool       `json:"email_verified" gorm:"default:false"`
	VerificationToken  string     `json:"-" gorm:"index"`
	VerificationExpiry *time.Time `json:"-"`
	ResetToken         string     `json:"-" gorm:"index"`
	ResetExpiry        *time.Time `json:"-"`

	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SetPassword hashes and sets the user's password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares the provided password with the stored hash.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// Restricted reports whether the account is barred from logging in.
func (u *User) Restricted() bool {
	return u.Status == UserStatusSuspended || u.Status == UserStatusInactive
}
