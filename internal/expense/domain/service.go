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

type CreateSupplierRequest struct {
	Name        string
	RIF         string
	ContactName string
	Phone       string
	Email       string
	Address     string
	Notes       string
}

type CreateExpenseRequest struct {
	CategoryID    snowflake.ID
	SupplierID    *snowflake.ID
	Description   string
	ExpenseDate   time.Time
	Amount        float64
	Currency      money.Currency
	InvoiceNumber string
	Notes         string
}

type RegisterPaymentRequest struct {
	ExpenseID   snowflake.ID
	PaymentDate time.Time
	AmountVES   float64
	Method      string
	Reference   string
	Notes       string
}

type ListExpenseFilter struct {
	CategoryID snowflake.ID
	SupplierID snowflake.ID
	Status     ExpenseStatus
	From       *time.Time
	To         *time.Time
}

type ListExpenseResponse struct {
	pagination.PageInfo
	Items []Expense `json:"items"`
}

type Service interface {
	CreateSupplier(context.Context, CreateSupplierRequest) (Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)

	CreateCategory(ctx context.Context, name, description string) (ExpenseCategory, error)
	ListCategories(ctx context.Context) ([]ExpenseCategory, error)

	Create(context.Context, CreateExpenseRequest) (Expense, error)
	GetByID(ctx context.Context, id snowflake.ID) (Expense, error)
	List(ctx context.Context, filter ListExpenseFilter, page pagination.Pagination) (ListExpenseResponse, error)
	RegisterPayment(context.Context, RegisterPaymentRequest) (Expense, error)
	Payments(ctx context.Context, expenseID snowflake.ID) ([]ExpensePayment, error)

	// CreateSalaryExpenseWithin books an already-settled salary
	// disbursement inside a caller-managed transaction. The payroll
	// payment flow uses it.
	CreateSalaryExpenseWithin(ctx context.Context, tx *gorm.DB, description string, amountVES float64, date time.Time) (Expense, error)
}

var (
	ErrNotFound         = errors.New("expense_not_found")
	ErrSupplierNotFound = errors.New("supplier_not_found")
	ErrSupplierExists   = errors.New("supplier_conflict")
	ErrCategoryNotFound = errors.New("expense_category_not_found")
	ErrCategoryExists   = errors.New("expense_category_conflict")
	ErrInvalidName      = errors.New("invalid_expense_name")
	ErrInvalidAmount    = errors.New("invalid_expense_amount")
	ErrInvalidCurrency  = errors.New("invalid_expense_currency")
	ErrAlreadyPaid      = errors.New("expense_already_paid")
	ErrPaymentExceeds   = errors.New("expense_payment_exceeds_balance")
)
