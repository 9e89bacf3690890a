package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type DelinquencyLevel string

const (
	LevelGreen  DelinquencyLevel = "green"
	LevelOrange DelinquencyLevel = "orange"
	LevelRed    DelinquencyLevel = "red"
)

// DelinquencyEntry classifies one family by its oldest overdue charge:
// green with nothing overdue, orange when the debt started this month
// or the previous one, red when it is two or more months old.
type DelinquencyEntry struct {
	RepresentativeID   snowflake.ID     `json:"representative_id"`
	RepresentativeName string           `json:"representative_name"`
	Level              DelinquencyLevel `json:"level"`
	OverdueCharges     int              `json:"overdue_charges"`
	OverdueVES         float64          `json:"overdue_ves"`
	OldestDueDate      *time.Time       `json:"oldest_due_date,omitempty"`
}

type StatementCharge struct {
	ChargeID    snowflake.ID `json:"charge_id"`
	Description string       `json:"description"`
	IssueDate   time.Time    `json:"issue_date"`
	DueDate     time.Time    `json:"due_date"`
	DueVES      float64      `json:"due_ves"`
	PaidVES     float64      `json:"paid_ves"`
	PendingVES  float64      `json:"pending_ves"`
	Status      string       `json:"status"`
}

type StatementPayment struct {
	PaymentID    snowflake.ID `json:"payment_id"`
	PaymentDate  time.Time    `json:"payment_date"`
	AmountVES    float64      `json:"amount_ves"`
	Method       string       `json:"method,omitempty"`
	AllocatedVES float64      `json:"allocated_ves"`
}

// AccountStatement is the family-facing summary of everything owed
// and everything received.
type AccountStatement struct {
	RepresentativeID   snowflake.ID       `json:"representative_id"`
	RepresentativeName string             `json:"representative_name"`
	GeneratedAt        time.Time          `json:"generated_at"`
	Charges            []StatementCharge  `json:"charges"`
	Payments           []StatementPayment `json:"payments"`
	TotalDueVES        float64            `json:"total_due_ves"`
	TotalPaidVES       float64            `json:"total_paid_ves"`
	OutstandingVES     float64            `json:"outstanding_ves"`
	AvailableCreditVES float64            `json:"available_credit_ves"`
}

type Dashboard struct {
	ActiveStudents  int64 `json:"active_students"`
	Representatives int64 `json:"representatives"`
	ActiveEmployees int64 `json:"active_employees"`

	MonthIncomeVES   float64 `json:"month_income_ves"`
	MonthExpensesVES float64 `json:"month_expenses_ves"`
	OutstandingVES   float64 `json:"outstanding_ves"`
	OverdueCharges   int64   `json:"overdue_charges"`
}

type MonthSummary struct {
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	IssuedVES  float64 `json:"issued_ves"`
	PaidVES    float64 `json:"paid_ves"`
	PendingVES float64 `json:"pending_ves"`
	Charges    int     `json:"charges"`
}

// StudentAnnualSummary walks the school year month by month, starting
// at the configured start month.
type StudentAnnualSummary struct {
	StudentID   snowflake.ID   `json:"student_id"`
	StudentName string         `json:"student_name"`
	YearStart   int            `json:"year_start"`
	Months      []MonthSummary `json:"months"`
	TotalDueVES float64        `json:"total_due_ves"`
	TotalPaid   float64        `json:"total_paid_ves"`
}

type Service interface {
	Delinquency(ctx context.Context) ([]DelinquencyEntry, error)
	AccountStatement(ctx context.Context, representativeID snowflake.ID) (AccountStatement, error)
	Dashboard(ctx context.Context) (Dashboard, error)
	// StudentAnnualSummary reports the school year that begins in
	// yearStart.
	StudentAnnualSummary(ctx context.Context, studentID snowflake.ID, yearStart int) (StudentAnnualSummary, error)
}

var (
	ErrRepresentativeNotFound = errors.New("report_representative_not_found")
	ErrStudentNotFound        = errors.New("report_student_not_found")
	ErrInvalidYear            = errors.New("invalid_report_year")
)
