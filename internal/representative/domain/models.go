package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Representative struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	FirstName      string       `gorm:"not null" json:"first_name"`
	LastName       string       `gorm:"not null" json:"last_name"`
	Cedula         string       `gorm:"uniqueIndex;not null" json:"cedula"`
	RIF            string       `gorm:"column:rif" json:"rif,omitempty"`
	Email          string       `gorm:"uniqueIndex;not null" json:"email"`
	Phone          string       `json:"phone_main,omitempty"`
	PhoneSecondary string       `json:"phone_secondary,omitempty"`
	Address        string       `json:"address,omitempty"`
	Profession     string       `json:"profession,omitempty"`
	Workplace      string       `json:"workplace,omitempty"`

	// AvailableCreditVES is the explicit balance created by credit
	// notes. Unallocated payment remainders are computed, not stored.
	AvailableCreditVES float64 `gorm:"column:available_credit_ves;not null;default:0" json:"available_credit_ves"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Representative) TableName() string { return "representatives" }

func (r Representative) FullName() string {
	return r.FirstName + " " + r.LastName
}

// FiscalID prefers the RIF over the cedula for invoice snapshots.
func (r Representative) FiscalID() string {
	if r.RIF != "" {
		return r.RIF
	}
	return r.Cedula
}
