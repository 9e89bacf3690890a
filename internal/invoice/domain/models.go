package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type InvoiceStatus string

const (
	InvoiceStatusPendingEmission InvoiceStatus = "pending_emission"
	InvoiceStatusEmitted         InvoiceStatus = "emitted"
	InvoiceStatusAnnulled        InvoiceStatus = "annulled"
)

// EmissionType selects how the document obtains its fiscal identity.
type EmissionType string

const (
	// EmissionFiscalPrinter waits for the printing machine's numbers,
	// recorded later through UpdateFiscalDetails.
	EmissionFiscalPrinter EmissionType = "fiscal_printer"
	// EmissionDigital emits immediately with provider-issued
	// identifiers and a document URL.
	EmissionDigital EmissionType = "digital"
	// EmissionFormaLibre uses pre-printed authorised paper; the control
	// number is typed in by hand and must be globally unique.
	EmissionFormaLibre EmissionType = "forma_libre"
)

func (e EmissionType) Valid() bool {
	switch e {
	case EmissionFiscalPrinter, EmissionDigital, EmissionFormaLibre:
		return true
	}
	return false
}

// Invoice is an internal correlative document over a set of charges.
// Bill-to fields are snapshots taken at creation time so later edits
// to the representative never rewrite an emitted document.
type Invoice struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceNumber    string       `gorm:"uniqueIndex;not null" json:"invoice_number"`
	RepresentativeID snowflake.ID `gorm:"not null;index" json:"representative_id"`
	IssueDate        time.Time    `gorm:"type:date;not null;index" json:"issue_date"`

	Status       InvoiceStatus `gorm:"not null;default:'pending_emission';index" json:"status"`
	EmissionType EmissionType  `gorm:"not null;default:'fiscal_printer'" json:"emission_type"`

	// Fiscal numbers come from the printing machine once the document
	// is emitted. Forma libre documents carry the manually entered
	// control number from the start; digital ones a provider URL.
	FiscalInvoiceNumber string `json:"fiscal_invoice_number,omitempty"`
	FiscalControlNumber string `json:"fiscal_control_number,omitempty"`
	ManualControlNumber string `json:"manual_control_number,omitempty"`
	DigitalDocumentURL  string `gorm:"column:digital_document_url" json:"digital_document_url,omitempty"`

	BillToName     string `gorm:"not null" json:"bill_to_name"`
	BillToFiscalID string `gorm:"column:bill_to_fiscal_id" json:"bill_to_fiscal_id,omitempty"`
	BillToAddress  string `gorm:"not null" json:"bill_to_address"`
	BillToPhone    string `json:"bill_to_phone,omitempty"`

	SubtotalVES float64 `gorm:"column:subtotal_ves;not null" json:"subtotal_ves"`
	IVAVES      float64 `gorm:"column:iva_ves;not null" json:"iva_ves"`
	TotalVES    float64 `gorm:"column:total_ves;not null" json:"total_ves"`

	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

// InvoiceItem freezes one charge's emission value into the document.
type InvoiceItem struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	ChargeID    snowflake.ID `gorm:"column:applied_charge_id;not null" json:"applied_charge_id"`
	Description string       `gorm:"not null" json:"description"`

	UnitPriceVES  float64 `gorm:"column:unit_price_ves;not null" json:"unit_price_ves"`
	IVAPercentage float64 `gorm:"column:iva_percentage;not null" json:"iva_percentage"`
	IVAAmountVES  float64 `gorm:"column:iva_amount_ves;not null" json:"iva_amount_ves"`
	TotalVES      float64 `gorm:"column:total_ves;not null" json:"total_ves"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }

// CreditNote reverses a non-annulled invoice and moves its total to
// the representative's credit balance.
type CreditNote struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	CreditNoteNumber string       `gorm:"uniqueIndex;not null" json:"credit_note_number"`
	InvoiceID        snowflake.ID `gorm:"uniqueIndex;not null" json:"invoice_id"`
	RepresentativeID snowflake.ID `gorm:"not null;index" json:"representative_id"`
	IssueDate        time.Time    `gorm:"type:date;not null" json:"issue_date"`
	Reason           string       `gorm:"not null" json:"reason"`

	SubtotalVES float64 `gorm:"column:subtotal_ves;not null" json:"subtotal_ves"`
	IVAVES      float64 `gorm:"column:iva_ves;not null" json:"iva_ves"`
	TotalVES    float64 `gorm:"column:total_ves;not null" json:"total_ves"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CreditNote) TableName() string { return "credit_notes" }

type CreditNoteItem struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	CreditNoteID snowflake.ID `gorm:"not null;index" json:"credit_note_id"`
	Description  string       `gorm:"not null" json:"description"`

	UnitPriceVES  float64 `gorm:"column:unit_price_ves;not null" json:"unit_price_ves"`
	IVAPercentage float64 `gorm:"column:iva_percentage;not null" json:"iva_percentage"`
	IVAAmountVES  float64 `gorm:"column:iva_amount_ves;not null" json:"iva_amount_ves"`
	TotalVES      float64 `gorm:"column:total_ves;not null" json:"total_ves"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CreditNoteItem) TableName() string { return "credit_note_items" }
