package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
)

type ExchangeRate struct {
	ID           snowflake.ID   `gorm:"primaryKey" json:"id"`
	FromCurrency money.Currency `gorm:"not null;index:idx_rate_pair_date,unique" json:"from_currency"`
	ToCurrency   money.Currency `gorm:"not null;index:idx_rate_pair_date,unique" json:"to_currency"`
	Rate         float64        `gorm:"not null" json:"rate"`
	RateDate     time.Time      `gorm:"type:date;not null;index:idx_rate_pair_date,unique" json:"rate_date"`
	Source       string         `json:"source,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ExchangeRate) TableName() string { return "exchange_rates" }
