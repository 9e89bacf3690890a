package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/pkg/db/pagination"
	"gorm.io/gorm"
)

type AllocationRequest struct {
	ChargeID snowflake.ID
	// Amount is expressed in the payment's currency.
	Amount float64
}

type CreatePaymentRequest struct {
	RepresentativeID snowflake.ID
	PaymentDate      time.Time
	Amount           float64
	Currency         money.Currency
	PaymentMethod    string
	ReferenceNumber  string
	Notes            string
	Allocations      []AllocationRequest
}

type ListPaymentFilter struct {
	RepresentativeID snowflake.ID
	From             *time.Time
	To               *time.Time
}

type ListPaymentResponse struct {
	pagination.PageInfo
	Items []Payment `json:"items"`
}

// CreditAllocation is one slice moved during a credit application.
type CreditAllocation struct {
	PaymentID snowflake.ID `json:"payment_id"`
	ChargeID  snowflake.ID `json:"applied_charge_id"`
	AmountVES float64      `json:"amount_ves"`
}

type CreditApplicationResult struct {
	RepresentativeID snowflake.ID       `json:"representative_id"`
	Applications     []CreditAllocation `json:"applications"`
	TotalAppliedVES  float64            `json:"total_applied_ves"`
	RemainingCredit  float64            `json:"remaining_credit_ves"`
}

type Service interface {
	Create(context.Context, CreatePaymentRequest) (Payment, error)
	GetByID(ctx context.Context, id snowflake.ID) (Payment, error)
	List(ctx context.Context, filter ListPaymentFilter, page pagination.Pagination) (ListPaymentResponse, error)
	Allocations(ctx context.Context, paymentID snowflake.ID) ([]PaymentAllocation, error)
	UnallocatedAmount(ctx context.Context, paymentID snowflake.ID) (float64, error)
	// TotalAvailableCredit sums unallocated payment remainders. The
	// explicit credit-note balance lives on the representative row.
	TotalAvailableCredit(ctx context.Context, representativeID snowflake.ID) (float64, error)
	// ApplyCredit drains unallocated payment remainders into open
	// charges, oldest first on both sides.
	ApplyCredit(ctx context.Context, representativeID snowflake.ID) (CreditApplicationResult, error)
	// ApplyCreditWithin runs the same drain inside a caller-managed
	// transaction; the recurring billing engine uses it.
	ApplyCreditWithin(ctx context.Context, tx *gorm.DB, representativeID snowflake.ID) (CreditApplicationResult, error)
	// ApplyExplicitCredit converts the representative's credit-note
	// balance into a synthetic payment and drains it.
	ApplyExplicitCredit(ctx context.Context, representativeID snowflake.ID) (CreditApplicationResult, error)
}

var (
	ErrNotFound               = errors.New("payment_not_found")
	ErrRepresentativeNotFound = errors.New("payment_representative_not_found")
	ErrInvalidAmount          = errors.New("invalid_payment_amount")
	ErrInvalidCurrency        = errors.New("invalid_payment_currency")
	ErrChargeNotFound         = errors.New("allocation_charge_not_found")
	ErrChargeNotPayable       = errors.New("allocation_charge_not_payable")
	ErrChargeWrongOwner       = errors.New("allocation_charge_wrong_representative")
	ErrAllocationExceeds      = errors.New("allocation_exceeds_balance")
	ErrOverAllocated          = errors.New("allocations_exceed_payment")
	ErrNoCredit               = errors.New("no_available_credit")
)
