package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateChargeRequest struct {
	StudentID   snowflake.ID
	ConceptID   snowflake.ID
	Description string
	IssueDate   time.Time
	DueDate     time.Time
}

type ListChargeFilter struct {
	StudentID        snowflake.ID
	RepresentativeID snowflake.ID
	Status           ChargeStatus
	IssueFrom        *time.Time
	IssueTo          *time.Time
	DueFrom          *time.Time
	DueTo            *time.Time
	UninvoicedOnly   bool
}

type ListChargeResponse struct {
	pagination.PageInfo
	Items []AppliedCharge `json:"items"`
}

type Service interface {
	Create(context.Context, CreateChargeRequest) (AppliedCharge, error)
	// CreateWithin issues a charge inside a caller-managed transaction.
	// The recurring billing engine uses it so a whole run commits at once.
	CreateWithin(ctx context.Context, tx *gorm.DB, req CreateChargeRequest) (AppliedCharge, error)
	GetByID(ctx context.Context, id snowflake.ID) (AppliedCharge, error)
	List(ctx context.Context, filter ListChargeFilter, page pagination.Pagination) (ListChargeResponse, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status ChargeStatus) (AppliedCharge, error)
}

var (
	ErrNotFound        = errors.New("charge_not_found")
	ErrStudentNotFound = errors.New("charge_student_not_found")
	ErrConceptNotFound = errors.New("charge_concept_not_found")
	ErrStudentInactive = errors.New("student_inactive")
	ErrConceptInactive = errors.New("concept_inactive")
	ErrInvalidDates    = errors.New("invalid_charge_dates")
	ErrInvalidStatus   = errors.New("invalid_charge_status")
	ErrForbiddenStatus = errors.New("charge_status_transition_not_allowed")
	ErrChargeHasMoney  = errors.New("charge_has_payments")
	ErrChargeInvoiced  = errors.New("charge_already_invoiced")
)
