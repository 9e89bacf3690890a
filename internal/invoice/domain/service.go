package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

// BillToOverride replaces the representative's fiscal identity on the
// document. A fiscal address is mandatory when overriding.
type BillToOverride struct {
	Name     string
	FiscalID string
	Address  string
	Phone    string
}

type CreateInvoiceRequest struct {
	RepresentativeID snowflake.ID
	ChargeIDs        []snowflake.ID
	IssueDate        time.Time
	// EmissionType defaults to fiscal_printer when empty. Forma libre
	// requires ManualControlNumber.
	EmissionType        EmissionType
	ManualControlNumber string
	BillTo              *BillToOverride
	Notes               string
}

type UpdateFiscalDetailsRequest struct {
	FiscalInvoiceNumber string
	FiscalControlNumber string
}

type ListInvoiceFilter struct {
	RepresentativeID snowflake.ID
	Status           InvoiceStatus
	From             *time.Time
	To               *time.Time
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Items []Invoice `json:"items"`
}

type CreateCreditNoteRequest struct {
	InvoiceID snowflake.ID
	Reason    string
}

type ListCreditNoteFilter struct {
	RepresentativeID snowflake.ID
	From             *time.Time
	To               *time.Time
}

type ListCreditNoteResponse struct {
	pagination.PageInfo
	Items []CreditNote `json:"items"`
}

type Service interface {
	Create(context.Context, CreateInvoiceRequest) (Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (Invoice, error)
	Items(ctx context.Context, invoiceID snowflake.ID) ([]InvoiceItem, error)
	List(ctx context.Context, filter ListInvoiceFilter, page pagination.Pagination) (ListInvoiceResponse, error)
	// UpdateFiscalDetails records the printing machine's numbers and
	// moves the document to emitted.
	UpdateFiscalDetails(ctx context.Context, id snowflake.ID, req UpdateFiscalDetailsRequest) (Invoice, error)
	// Annul voids the document and releases its charges so they can be
	// invoiced again.
	Annul(ctx context.Context, id snowflake.ID, reason string) (Invoice, error)

	CreateCreditNote(context.Context, CreateCreditNoteRequest) (CreditNote, error)
	GetCreditNote(ctx context.Context, id snowflake.ID) (CreditNote, error)
	CreditNoteItems(ctx context.Context, creditNoteID snowflake.ID) ([]CreditNoteItem, error)
	ListCreditNotes(ctx context.Context, filter ListCreditNoteFilter, page pagination.Pagination) (ListCreditNoteResponse, error)
}

var (
	ErrNotFound               = errors.New("invoice_not_found")
	ErrRepresentativeNotFound = errors.New("invoice_representative_not_found")
	ErrNoCharges              = errors.New("invoice_requires_charges")
	ErrDuplicateCharge        = errors.New("invoice_duplicate_charge")
	ErrChargeNotFound         = errors.New("invoice_charge_not_found")
	ErrChargeWrongOwner       = errors.New("invoice_charge_wrong_representative")
	ErrChargeCancelled        = errors.New("invoice_charge_cancelled")
	ErrChargeInvoiced         = errors.New("invoice_charge_already_invoiced")
	ErrMissingFiscalAddress   = errors.New("invoice_missing_fiscal_address")
	ErrNumberExists           = errors.New("invoice_number_conflict")
	ErrFiscalNumberExists     = errors.New("invoice_fiscal_number_conflict")
	ErrInvalidFiscalNumbers   = errors.New("invoice_invalid_fiscal_numbers")
	ErrInvalidEmissionType    = errors.New("invalid_emission_type")
	ErrManualControlRequired  = errors.New("invoice_manual_control_number_required")
	ErrNotPendingEmission     = errors.New("invoice_not_pending_emission")
	ErrAlreadyAnnulled        = errors.New("invoice_already_annulled")
	ErrInvalidReason          = errors.New("invalid_annulment_reason")

	ErrCreditNoteNotFound = errors.New("credit_note_not_found")
	ErrCreditNoteExists   = errors.New("credit_note_already_exists")
	ErrInvoiceAnnulled    = errors.New("credit_note_invoice_annulled")
)
