package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
)

type ChargeStatus string

const (
	ChargeStatusPending       ChargeStatus = "pending"
	ChargeStatusPartiallyPaid ChargeStatus = "partially_paid"
	ChargeStatusPaid          ChargeStatus = "paid"
	ChargeStatusOverdue       ChargeStatus = "overdue"
	ChargeStatusCancelled     ChargeStatus = "cancelled"
)

// OpenStatuses are the states a charge can still receive money in.
var OpenStatuses = []ChargeStatus{
	ChargeStatusPending,
	ChargeStatusPartiallyPaid,
	ChargeStatusOverdue,
}

// AppliedCharge is one student obligation on the dual-currency ledger.
// The VES value at emission never changes; indexed charges additionally
// track the original-currency amounts so the outstanding debt follows
// the exchange rate.
type AppliedCharge struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	StudentID   snowflake.ID `gorm:"not null;index" json:"student_id"`
	ConceptID   snowflake.ID `gorm:"not null;index" json:"charge_concept_id"`
	Description string       `json:"description,omitempty"`
	IssueDate   time.Time    `gorm:"type:date;not null;index" json:"issue_date"`
	DueDate     time.Time    `gorm:"type:date;not null;index" json:"due_date"`

	AmountDueOriginal      float64        `gorm:"not null" json:"amount_due_original"`
	Currency               money.Currency `gorm:"not null" json:"currency"`
	AmountDueVESAtEmission float64        `gorm:"column:amount_due_ves_at_emission;not null" json:"amount_due_ves_at_emission"`
	ExchangeRateAtEmission *float64       `gorm:"column:exchange_rate_applied_at_emission" json:"exchange_rate_applied_at_emission,omitempty"`

	AmountPaidOriginal float64 `gorm:"not null;default:0" json:"amount_paid_original"`
	AmountPaidVES      float64 `gorm:"column:amount_paid_ves;not null;default:0" json:"amount_paid_ves"`

	Status    ChargeStatus  `gorm:"not null;default:'pending';index" json:"status"`
	InvoiceID *snowflake.ID `gorm:"index" json:"invoice_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AppliedCharge) TableName() string { return "applied_charges" }

// Indexed reports whether the debt is denominated in a foreign
// currency and revalued at payment time.
func (c AppliedCharge) Indexed() bool {
	return c.Currency != money.VES
}

// PendingOriginal is the unpaid remainder in the charge's currency.
func (c AppliedCharge) PendingOriginal() float64 {
	out := money.Round2(c.AmountDueOriginal - c.AmountPaidOriginal)
	if out < 0 {
		return 0
	}
	return out
}

// PendingVESAtEmission is the unpaid remainder valued at emission.
func (c AppliedCharge) PendingVESAtEmission() float64 {
	out := money.Round2(c.AmountDueVESAtEmission - c.AmountPaidVES)
	if out < 0 {
		return 0
	}
	return out
}

// RecomputeStatus derives the payment status from the paid amounts.
// Indexed charges settle in their own currency; VES charges settle on
// the emission value. Cancelled is sticky.
func (c *AppliedCharge) RecomputeStatus() {
	if c.Status == ChargeStatusCancelled {
		return
	}
	settled := false
	if c.Indexed() {
		settled = money.GTE(c.AmountPaidOriginal, c.AmountDueOriginal)
	} else {
		settled = money.GTE(c.AmountPaidVES, c.AmountDueVESAtEmission)
	}
	switch {
	case settled:
		c.Status = ChargeStatusPaid
	case money.Positive(c.AmountPaidVES):
		c.Status = ChargeStatusPartiallyPaid
	default:
		if c.Status != ChargeStatusOverdue {
			c.Status = ChargeStatusPending
		}
	}
}
