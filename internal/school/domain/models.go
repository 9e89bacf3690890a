package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SchoolConfiguration is a single-row table. It carries the fiscal
// identity snapshotted into invoices plus both document correlatives.
// Correlative consumption must lock the row.
type SchoolConfiguration struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	SchoolName    string       `gorm:"not null" json:"school_name"`
	SchoolRIF     string       `gorm:"column:school_rif" json:"school_rif"`
	SchoolAddress string       `json:"school_address,omitempty"`
	SchoolPhone   string       `json:"school_phone,omitempty"`

	InvoiceReferencePrefix string `gorm:"column:internal_invoice_reference_prefix" json:"internal_invoice_reference_prefix"`
	NextInvoiceReference   int64  `gorm:"column:next_internal_invoice_reference;not null;default:1" json:"next_internal_invoice_reference"`

	CreditNoteReferencePrefix string `gorm:"column:credit_note_reference_prefix" json:"credit_note_reference_prefix"`
	NextCreditNoteReference   int64  `gorm:"column:next_credit_note_reference;not null;default:1" json:"next_credit_note_reference"`

	DefaultIVAPercentage float64 `gorm:"column:default_iva_percentage;not null;default:0.16" json:"default_iva_percentage"`

	// PaymentDueDay is the day of month recurring charges fall due,
	// clamped to the month's last day.
	PaymentDueDay int `gorm:"not null;default:5" json:"payment_due_day"`

	SchoolYearStartMonth int `gorm:"not null;default:9" json:"school_year_start_month"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SchoolConfiguration) TableName() string { return "school_configurations" }
