package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type CreateRunRequest struct {
	RunType         RunType
	PeriodStart     time.Time
	PeriodEnd       time.Time
	ExchangeRateUSD *float64
	Notes           string
}

type ListRunFilter struct {
	Status RunStatus
	Type   RunType
	From   *time.Time
	To     *time.Time
}

type ListRunResponse struct {
	pagination.PageInfo
	Items []PayrollRun `json:"items"`
}

type CreateAdjustmentRequest struct {
	EmployeeID     snowflake.ID
	AdjustmentDate time.Time
	AdjustmentType AdjustmentType
	Description    string
	Amount         float64
	Currency       money.Currency

	// TargetPayableItemID names the payable item a deduction discounts.
	// Required for deductions, ignored for earnings.
	TargetPayableItemID *snowflake.ID
}

// PayableAllocationRequest applies part of an employee payment to one
// payable item, always in VES.
type PayableAllocationRequest struct {
	PayableItemID snowflake.ID
	AmountVES     float64
}

type CreateEmployeePaymentRequest struct {
	EmployeeID  snowflake.ID
	PaymentDate time.Time
	Amount      float64
	Currency    money.Currency
	Allocations []PayableAllocationRequest
	Method      string
	Reference   string
	Notes       string
}

type Service interface {
	CreateRun(context.Context, CreateRunRequest) (PayrollRun, error)
	GetRun(ctx context.Context, id snowflake.ID) (PayrollRun, error)
	ListRuns(ctx context.Context, filter ListRunFilter, page pagination.Pagination) (ListRunResponse, error)
	// Confirm computes every active employee's detail, credits their
	// balances and drains hourly hours. Reconfirming a draft replaces
	// previously computed details.
	Confirm(ctx context.Context, id snowflake.ID, processedBy snowflake.ID) (PayrollRun, error)
	// UpdateStatus handles the post-confirmation transitions: paid_out
	// and cancelled. Cancelled is terminal.
	UpdateStatus(ctx context.Context, id snowflake.ID, status RunStatus) (PayrollRun, error)
	DeleteDraft(ctx context.Context, id snowflake.ID) error
	Details(ctx context.Context, runID snowflake.ID) ([]RunEmployeeDetail, error)

	CreateAdjustment(context.Context, CreateAdjustmentRequest) (BalanceAdjustment, error)
	Adjustments(ctx context.Context, employeeID snowflake.ID) ([]BalanceAdjustment, error)

	CreateEmployeePayment(context.Context, CreateEmployeePaymentRequest) (EmployeePayment, error)
	EmployeePayments(ctx context.Context, employeeID snowflake.ID) ([]EmployeePayment, error)
	PayableItems(ctx context.Context, employeeID snowflake.ID) ([]EmployeePayableItem, error)

	GetPayslip(ctx context.Context, id snowflake.ID) (Payslip, error)
	Payslips(ctx context.Context, employeeID snowflake.ID) ([]Payslip, error)
}

var (
	ErrRunNotFound       = errors.New("payroll_run_not_found")
	ErrInvalidRunType    = errors.New("invalid_payroll_run_type")
	ErrInvalidPeriod     = errors.New("invalid_payroll_period")
	ErrInvalidRate       = errors.New("invalid_payroll_rate")
	ErrNotDraft          = errors.New("payroll_run_not_draft")
	ErrForbiddenStatus   = errors.New("payroll_status_forbidden")
	ErrInvalidStatus     = errors.New("invalid_payroll_status")
	ErrEmployeeNotFound  = errors.New("payroll_employee_not_found")
	ErrInvalidAdjustment = errors.New("invalid_balance_adjustment")
	ErrInvalidAmount     = errors.New("invalid_payroll_payment_amount")
	ErrInvalidCurrency   = errors.New("invalid_payroll_payment_currency")
	ErrPayslipNotFound   = errors.New("payslip_not_found")

	ErrPayableNotFound      = errors.New("payable_item_not_found")
	ErrPayableWrongEmployee = errors.New("payable_item_wrong_employee")
	ErrPayablePaid          = errors.New("payable_item_already_paid")
	ErrPayableRequired      = errors.New("payable_item_required")
	ErrAllocationExceeds    = errors.New("payable_allocation_exceeds_pending")
	ErrOverAllocated        = errors.New("payroll_payment_over_allocated")
)
