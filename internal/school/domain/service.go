package domain

import (
	"context"
	"errors"
)

type UpdateConfigurationRequest struct {
	SchoolName    *string
	SchoolRIF     *string
	SchoolAddress *string
	SchoolPhone   *string

	InvoiceReferencePrefix *string
	NextInvoiceReference   *int64

	CreditNoteReferencePrefix *string
	NextCreditNoteReference   *int64

	DefaultIVAPercentage *float64
	PaymentDueDay        *int
	SchoolYearStartMonth *int
}

type Service interface {
	Get(ctx context.Context) (SchoolConfiguration, error)
	Update(ctx context.Context, req UpdateConfigurationRequest) (SchoolConfiguration, error)
}

var (
	ErrNotConfigured     = errors.New("school_not_configured")
	ErrInvalidDueDay     = errors.New("invalid_payment_due_day")
	ErrInvalidIVA        = errors.New("invalid_iva_percentage")
	ErrInvalidReference  = errors.New("invalid_reference")
	ErrInvalidStartMonth = errors.New("invalid_school_year_start_month")
)
