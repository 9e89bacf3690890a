package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
)

type GradeLevel struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"uniqueIndex;not null" json:"name"`
	Description string       `json:"description,omitempty"`
	SortOrder   int          `gorm:"not null;default:0" json:"sort_order"`
	IsActive    bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (GradeLevel) TableName() string { return "grade_levels" }

type Student struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	FirstName        string        `gorm:"not null" json:"first_name"`
	LastName         string        `gorm:"not null" json:"last_name"`
	Cedula           string        `json:"cedula,omitempty"`
	BirthDate        *time.Time    `gorm:"type:date" json:"birth_date,omitempty"`
	RepresentativeID snowflake.ID  `gorm:"not null;index" json:"representative_id"`
	GradeLevelID     *snowflake.ID `gorm:"index" json:"grade_level_id,omitempty"`
	IsActive         bool          `gorm:"not null;default:true" json:"is_active"`

	// Scholarship: percentage wins over fixed amount when both are set.
	HasScholarship         bool    `gorm:"not null;default:false" json:"has_scholarship"`
	ScholarshipPercentage  float64 `gorm:"not null;default:0" json:"scholarship_percentage"`
	ScholarshipFixedAmount float64 `gorm:"not null;default:0" json:"scholarship_fixed_amount"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Student) TableName() string { return "students" }

func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// ApplyScholarship discounts an amount due for this student. The
// percentage discount applies when positive; otherwise a fixed amount
// is subtracted. Results never go below zero.
func (s Student) ApplyScholarship(amount float64) float64 {
	if !s.HasScholarship {
		return money.Round2(amount)
	}
	out := amount
	if s.ScholarshipPercentage > 0 {
		out -= money.Round2(amount * s.ScholarshipPercentage / 100)
	} else if s.ScholarshipFixedAmount > 0 {
		out -= s.ScholarshipFixedAmount
	}
	if out < 0 {
		out = 0
	}
	return money.Round2(out)
}
