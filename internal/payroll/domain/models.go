package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
	"gorm.io/datatypes"
)

type RunType string

const (
	RunTypeMonthly     RunType = "monthly"
	RunTypeFortnightly RunType = "fortnightly"
	RunTypeSpecial     RunType = "special"
)

func (t RunType) Valid() bool {
	switch t {
	case RunTypeMonthly, RunTypeFortnightly, RunTypeSpecial:
		return true
	}
	return false
}

type RunStatus string

const (
	RunStatusDraft     RunStatus = "draft"
	RunStatusConfirmed RunStatus = "confirmed"
	RunStatusPaidOut   RunStatus = "paid_out"
	RunStatusCancelled RunStatus = "cancelled"
)

// PayrollRun is the state machine head for one pay period. Details
// exist only after confirmation; confirming again replaces them.
type PayrollRun struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	RunType     RunType      `gorm:"not null" json:"run_type"`
	PeriodStart time.Time    `gorm:"type:date;not null" json:"period_start"`
	PeriodEnd   time.Time    `gorm:"type:date;not null;index" json:"period_end"`

	Status RunStatus `gorm:"not null;default:'draft';index" json:"status"`

	// ExchangeRateUSD values USD salaries for the whole run. When nil
	// at confirmation time the latest USD rate at the period end is
	// used instead.
	ExchangeRateUSD *float64 `gorm:"column:exchange_rate_usd" json:"exchange_rate_usd,omitempty"`

	Notes string `json:"notes,omitempty"`

	ProcessedBy *snowflake.ID `json:"processed_by,omitempty"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PayrollRun) TableName() string { return "payroll_runs" }

// BreakdownLine is one row of a detail's salary composition. The list
// always opens with the period's base salary.
type BreakdownLine struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	AmountVES float64 `json:"amount_ves"`
}

const (
	BreakdownEarning   = "earning"
	BreakdownDeduction = "deduction"
)

// BaseSalaryLineName labels the opening breakdown line.
const BaseSalaryLineName = "Salario Base del Período"

type RunEmployeeDetail struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	PayrollRunID snowflake.ID `gorm:"not null;index" json:"payroll_run_id"`
	EmployeeID   snowflake.ID `gorm:"not null;index" json:"employee_id"`

	BaseSalaryVES      float64 `gorm:"column:base_salary_ves;not null" json:"base_salary_ves"`
	TotalEarningsVES   float64 `gorm:"column:total_earnings_ves;not null" json:"total_earnings_ves"`
	TotalDeductionsVES float64 `gorm:"column:total_deductions_ves;not null" json:"total_deductions_ves"`
	NetPayVES          float64 `gorm:"column:net_pay_ves;not null" json:"net_pay_ves"`

	HoursWorked float64 `gorm:"not null;default:0" json:"hours_worked"`

	Breakdown datatypes.JSON `json:"breakdown"`
	Notes     string         `json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (RunEmployeeDetail) TableName() string { return "payroll_run_employee_details" }

type AdjustmentType string

const (
	AdjustmentEarning   AdjustmentType = "earning"
	AdjustmentDeduction AdjustmentType = "deduction"
)

// BalanceAdjustment changes an employee's balance outside a run, for
// example a bonus or a cash advance discount.
type BalanceAdjustment struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	EmployeeID     snowflake.ID   `gorm:"not null;index" json:"employee_id"`
	AdjustmentDate time.Time      `gorm:"type:date;not null" json:"adjustment_date"`
	AdjustmentType AdjustmentType `gorm:"not null" json:"adjustment_type"`
	Description    string         `gorm:"not null" json:"description"`

	AmountOriginal      float64        `gorm:"not null" json:"amount_original"`
	Currency            money.Currency `gorm:"not null" json:"currency"`
	AmountVES           float64        `gorm:"column:amount_ves;not null" json:"amount_ves"`
	ExchangeRateApplied *float64       `gorm:"column:exchange_rate_applied" json:"exchange_rate_applied,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (BalanceAdjustment) TableName() string { return "employee_balance_adjustments" }

type PayableSourceType string

const (
	PayableSourcePayrollRun PayableSourceType = "payroll_run"
	PayableSourceAdjustment PayableSourceType = "balance_adjustment"
)

type PayableStatus string

const (
	PayableStatusPending       PayableStatus = "pending"
	PayableStatusPartiallyPaid PayableStatus = "partially_paid"
	PayableStatusPaid          PayableStatus = "paid"
)

// EmployeePayableItem is one debt the school owes an employee, the
// staff-side mirror of an applied charge. Confirmed runs materialise
// one per detail; earning adjustments add standalone ones. Deduction
// adjustments shrink the owed amount, payments raise the paid amount.
type EmployeePayableItem struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	EmployeeID snowflake.ID      `gorm:"not null;index" json:"employee_id"`
	SourceType PayableSourceType `gorm:"not null" json:"source_type"`
	SourceID   snowflake.ID      `gorm:"not null;index" json:"source_id"`

	Description string `gorm:"not null" json:"description"`

	AmountOriginal      float64        `gorm:"not null" json:"amount_original"`
	CurrencyOriginal    money.Currency `gorm:"column:currency_original;not null" json:"currency_original"`
	AmountVESAtCreation float64        `gorm:"column:amount_ves_at_creation;not null" json:"amount_ves_at_creation"`
	AmountPaidVES       float64        `gorm:"column:amount_paid_ves;not null;default:0" json:"amount_paid_ves"`

	Status PayableStatus `gorm:"not null;default:'pending';index" json:"status"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (EmployeePayableItem) TableName() string { return "employee_payable_items" }

func (i EmployeePayableItem) PendingVES() float64 {
	return money.Round2(i.AmountVESAtCreation - i.AmountPaidVES)
}

func (i *EmployeePayableItem) RecomputeStatus() {
	switch {
	case money.GTE(i.AmountPaidVES, i.AmountVESAtCreation):
		i.Status = PayableStatusPaid
	case money.Positive(i.AmountPaidVES):
		i.Status = PayableStatusPartiallyPaid
	default:
		i.Status = PayableStatusPending
	}
}

// EmployeePayment is a disbursement against the employee's balance.
// Each one books a paid expense, settles the selected payable items
// and snapshots a payslip.
type EmployeePayment struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	EmployeeID  snowflake.ID `gorm:"not null;index" json:"employee_id"`
	PaymentDate time.Time    `gorm:"type:date;not null" json:"payment_date"`

	AmountOriginal      float64        `gorm:"not null" json:"amount_original"`
	Currency            money.Currency `gorm:"not null;default:'VES'" json:"currency"`
	AmountVES           float64        `gorm:"column:amount_ves;not null" json:"amount_ves"`
	ExchangeRateApplied *float64       `gorm:"column:exchange_rate_applied" json:"exchange_rate_applied,omitempty"`

	Method    string        `json:"method,omitempty"`
	Reference string        `json:"reference,omitempty"`
	Notes     string        `json:"notes,omitempty"`
	ExpenseID *snowflake.ID `json:"expense_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (EmployeePayment) TableName() string { return "employee_payments" }

// EmployeePaymentAllocation links a slice of a payment to one payable
// item. An item's amount_paid_ves is always the sum of its allocations.
type EmployeePaymentAllocation struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	EmployeePaymentID snowflake.ID `gorm:"not null;index" json:"employee_payment_id"`
	PayableItemID     snowflake.ID `gorm:"column:employee_payable_item_id;not null;index" json:"employee_payable_item_id"`
	AmountVES         float64      `gorm:"column:amount_allocated_ves;not null" json:"amount_allocated_ves"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (EmployeePaymentAllocation) TableName() string { return "employee_payment_allocations" }

// Payslip freezes what was handed to the employee: identity, amount
// and the salary breakdown behind it.
type Payslip struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	EmployeeID        snowflake.ID `gorm:"not null;index" json:"employee_id"`
	EmployeePaymentID snowflake.ID `gorm:"uniqueIndex;not null" json:"employee_payment_id"`
	IssuedAt          time.Time    `gorm:"not null" json:"issued_at"`

	EmployeeName   string `gorm:"not null" json:"employee_name"`
	EmployeeCedula string `gorm:"not null" json:"employee_cedula"`
	PositionName   string `json:"position_name,omitempty"`

	AmountVES float64        `gorm:"column:amount_ves;not null" json:"amount_ves"`
	Breakdown datatypes.JSON `json:"breakdown"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Payslip) TableName() string { return "payslips" }
