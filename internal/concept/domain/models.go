package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
)

type Frequency string

const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyOneTime    Frequency = "one_time"
	FrequencyEnrollment Frequency = "enrollment"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyOneTime, FrequencyEnrollment:
		return true
	}
	return false
}

type Category string

const (
	CategoryTuition    Category = "tuition"
	CategoryEnrollment Category = "enrollment"
	CategoryUniform    Category = "uniform"
	CategoryTransport  Category = "transport"
	CategoryOther      Category = "other"
)

// ChargeConcept is the billable catalog entry. The default amount may
// be denominated in USD or EUR; issuance converts it to VES.
type ChargeConcept struct {
	ID                    snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name                  string         `gorm:"not null" json:"name"`
	Code                  string         `gorm:"uniqueIndex;not null" json:"code"`
	Description           string         `json:"description,omitempty"`
	DefaultAmount         float64        `gorm:"not null" json:"default_amount"`
	DefaultAmountCurrency money.Currency `gorm:"not null;default:'VES'" json:"default_amount_currency"`
	Frequency             Frequency      `gorm:"not null;default:'one_time'" json:"default_frequency"`
	Category              Category       `gorm:"not null;default:'other'" json:"category"`
	IVAPercentage         float64        `gorm:"column:iva_percentage;not null;default:0" json:"iva_percentage"`
	ApplicableGradeLevel  *snowflake.ID  `gorm:"column:applicable_grade_level_id;index" json:"applicable_grade_level_id,omitempty"`
	IsActive              bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt             time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ChargeConcept) TableName() string { return "charge_concepts" }
