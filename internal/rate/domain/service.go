package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type CreateRateRequest struct {
	FromCurrency money.Currency
	ToCurrency   money.Currency
	Rate         float64
	RateDate     time.Time
	Source       string
	Notes        string
}

type UpdateRateRequest struct {
	ID       snowflake.ID
	Rate     *float64
	RateDate *time.Time
	Source   *string
	Notes    *string
}

type ListRateFilter struct {
	FromCurrency money.Currency
	ToCurrency   money.Currency
	StartDate    *time.Time
	EndDate      *time.Time
}

type ListRateResponse struct {
	pagination.PageInfo
	Items []ExchangeRate `json:"items"`
}

// Conversion is the result of valuing an amount in VES at a given date.
type Conversion struct {
	AmountVES   float64
	RateApplied *float64
}

// RateAlert reports whether the USD-VES rate is fresh for "today" in
// the school's timezone.
type RateAlert struct {
	NeedsUpdate   bool       `json:"needs_update"`
	Message       string     `json:"message"`
	LatestDate    *time.Time `json:"latest_rate_date,omitempty"`
	CurrentDate   time.Time  `json:"current_date_on_server"`
}

type Service interface {
	Create(context.Context, CreateRateRequest) (ExchangeRate, error)
	Update(context.Context, UpdateRateRequest) (ExchangeRate, error)
	Delete(ctx context.Context, id snowflake.ID) error
	GetByID(ctx context.Context, id snowflake.ID) (ExchangeRate, error)
	List(ctx context.Context, filter ListRateFilter, page pagination.Pagination) (ListRateResponse, error)
	Latest(ctx context.Context, from, to money.Currency, onDate time.Time) (*ExchangeRate, error)
	ConvertToVES(ctx context.Context, amount float64, currency money.Currency, onDate time.Time) (Conversion, error)
	Freshness(ctx context.Context) (RateAlert, error)
}

var (
	ErrNotFound        = errors.New("rate_not_found")
	ErrRateExists      = errors.New("rate_conflict")
	ErrInvalidRate     = errors.New("invalid_rate")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrRateMissing     = errors.New("rate_missing")
)
