package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
)

// MethodCreditBalance marks synthetic payments created when a credit
// note balance is drained into open charges.
const MethodCreditBalance = "credit_note_balance"

type Payment struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	RepresentativeID snowflake.ID `gorm:"not null;index" json:"representative_id"`
	PaymentDate      time.Time    `gorm:"type:date;not null;index" json:"payment_date"`

	AmountOriginal      float64        `gorm:"not null" json:"amount_original"`
	Currency            money.Currency `gorm:"not null" json:"currency"`
	AmountVESEquivalent float64        `gorm:"column:amount_ves_equivalent;not null" json:"amount_ves_equivalent"`
	ExchangeRateApplied *float64       `gorm:"column:exchange_rate_applied" json:"exchange_rate_applied,omitempty"`

	PaymentMethod   string `json:"payment_method,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	ReceiptToken    string `gorm:"uniqueIndex;not null" json:"receipt_token"`
	Notes           string `json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// PaymentAllocation ties a slice of a payment's VES value to a charge.
type PaymentAllocation struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	PaymentID snowflake.ID `gorm:"not null;index" json:"payment_id"`
	ChargeID  snowflake.ID `gorm:"column:applied_charge_id;not null;index" json:"applied_charge_id"`
	AmountVES float64      `gorm:"column:amount_ves;not null" json:"amount_ves"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (PaymentAllocation) TableName() string { return "payment_allocations" }
