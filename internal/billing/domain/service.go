package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
)

type RunRequest struct {
	Year  int
	Month int

	// Optional overrides: the run defaults to issuing on the first of
	// the month with the configured payment day as due date, over every
	// active monthly concept.
	IssueDate  *time.Time
	DueDate    *time.Time
	ConceptIDs []snowflake.ID
}

// PairError records a student and concept combination the run could
// not bill. The run keeps going past these.
type PairError struct {
	StudentID snowflake.ID `json:"student_id"`
	ConceptID snowflake.ID `json:"charge_concept_id"`
	Reason    string       `json:"reason"`
}

type RunResult struct {
	Year             int         `json:"year"`
	Month            int         `json:"month"`
	ChargesCreated   int         `json:"charges_created"`
	ChargesSkipped   int         `json:"charges_skipped"`
	Warnings         []string    `json:"warnings,omitempty"`
	Errors           []PairError `json:"errors,omitempty"`
	CreditAppliedVES float64     `json:"credit_applied_ves"`
	CreditedFamilies int         `json:"credited_families"`
}

// GlobalChargeTarget selects which students a one-shot application
// reaches.
type GlobalChargeTarget string

const (
	TargetAllActive GlobalChargeTarget = "all_active"
	TargetAll       GlobalChargeTarget = "all"
)

type GlobalChargeRequest struct {
	ConceptID snowflake.ID
	IssueDate time.Time
	DueDate   time.Time
	// Target defaults to all_active.
	Target GlobalChargeTarget
	// Overrides replace the concept's default amount and currency.
	OverrideAmount   *float64
	OverrideCurrency *money.Currency
	Description      string
}

type GlobalChargeError struct {
	StudentID   snowflake.ID `json:"student_id"`
	StudentName string       `json:"student_name"`
	Reason      string       `json:"reason"`
}

type GlobalChargeResult struct {
	ConceptName       string              `json:"concept_name"`
	Target            GlobalChargeTarget  `json:"target"`
	Currency          money.Currency      `json:"currency"`
	StudentsEvaluated int                 `json:"students_evaluated"`
	ChargesCreated    int                 `json:"charges_created"`
	TotalOriginal     float64             `json:"total_original"`
	TotalVES          float64             `json:"total_ves"`
	Errors            []GlobalChargeError `json:"errors,omitempty"`
}

type Service interface {
	// Run issues the month's recurring charges for every active
	// student and applies available credit per family, all in one
	// transaction.
	Run(ctx context.Context, req RunRequest) (RunResult, error)
	// ApplyGlobalCharge issues one concept to every targeted student
	// at once. Percentage scholarships discount in the concept's
	// original currency before conversion; fixed VES scholarships come
	// off after. Per-student failures are collected, not fatal.
	ApplyGlobalCharge(ctx context.Context, req GlobalChargeRequest) (GlobalChargeResult, error)
}

var (
	ErrInvalidPeriod   = errors.New("invalid_billing_period")
	ErrInvalidTarget   = errors.New("invalid_global_charge_target")
	ErrInvalidAmount   = errors.New("invalid_global_charge_amount")
	ErrInvalidCurrency = errors.New("invalid_global_charge_currency")
)
