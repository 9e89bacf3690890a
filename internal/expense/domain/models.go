package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
)

// SalaryCategoryName is the reserved category payroll payments land in.
const SalaryCategoryName = "Sueldos y Salarios del Personal"

type Supplier struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"not null" json:"name"`
	RIF         string       `gorm:"column:rif;uniqueIndex" json:"rif,omitempty"`
	ContactName string       `json:"contact_name,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	Email       string       `json:"email,omitempty"`
	Address     string       `json:"address,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Supplier) TableName() string { return "suppliers" }

type ExpenseCategory struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"uniqueIndex;not null" json:"name"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ExpenseCategory) TableName() string { return "expense_categories" }

type ExpenseStatus string

const (
	ExpenseStatusPending       ExpenseStatus = "pending"
	ExpenseStatusPartiallyPaid ExpenseStatus = "partially_paid"
	ExpenseStatusPaid          ExpenseStatus = "paid"
)

// Expense mirrors the income side's dual-currency bookkeeping: the
// amount is converted to VES on the expense date and settled against
// that value.
type Expense struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	CategoryID  snowflake.ID  `gorm:"column:expense_category_id;not null;index" json:"expense_category_id"`
	SupplierID  *snowflake.ID `gorm:"index" json:"supplier_id,omitempty"`
	Description string        `gorm:"not null" json:"description"`
	ExpenseDate time.Time     `gorm:"type:date;not null;index" json:"expense_date"`

	AmountOriginal      float64        `gorm:"not null" json:"amount_original"`
	Currency            money.Currency `gorm:"not null" json:"currency"`
	AmountVES           float64        `gorm:"column:amount_ves;not null" json:"amount_ves"`
	ExchangeRateApplied *float64       `gorm:"column:exchange_rate_applied" json:"exchange_rate_applied,omitempty"`

	Status        ExpenseStatus `gorm:"not null;default:'pending';index" json:"status"`
	InvoiceNumber string        `json:"invoice_number,omitempty"`
	Notes         string        `json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Expense) TableName() string { return "expenses" }

type ExpensePayment struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ExpenseID   snowflake.ID `gorm:"not null;index" json:"expense_id"`
	PaymentDate time.Time    `gorm:"type:date;not null" json:"payment_date"`
	AmountVES   float64      `gorm:"column:amount_ves;not null" json:"amount_ves"`
	Method      string       `json:"method,omitempty"`
	Reference   string       `json:"reference,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ExpensePayment) TableName() string { return "expense_payments" }
