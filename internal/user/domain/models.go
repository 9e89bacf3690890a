package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleAdmin               Role = "admin"
	RoleAdministrativeStaff Role = "administrative_staff"
	RoleTeacher             Role = "teacher"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAdministrativeStaff, RoleTeacher:
		return true
	}
	return false
}

type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Email        string       `gorm:"uniqueIndex;not null" json:"email"`
	FullName     string       `gorm:"not null" json:"full_name"`
	PasswordHash string       `gorm:"not null" json:"-"`
	Role         Role         `gorm:"not null;default:'administrative_staff'" json:"role"`
	IsActive     bool         `gorm:"not null;default:true" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Session is an opaque server-side token. Logout or expiry ends it.
type Session struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;index" json:"user_id"`
	Token     string       `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time    `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Session) TableName() string { return "sessions" }

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
