package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type CreateConceptRequest struct {
	Name                  string
	Description           string
	DefaultAmount         float64
	DefaultAmountCurrency money.Currency
	Frequency             Frequency
	Category              Category
	IVAPercentage         float64
	ApplicableGradeLevel  *snowflake.ID
}

type UpdateConceptRequest struct {
	ID                    snowflake.ID
	Name                  *string
	Description           *string
	DefaultAmount         *float64
	DefaultAmountCurrency *money.Currency
	Frequency             *Frequency
	Category              *Category
	IVAPercentage         *float64
	ApplicableGradeLevel  *snowflake.ID
	IsActive              *bool
}

type ListConceptFilter struct {
	Frequency  Frequency
	Category   Category
	ActiveOnly bool
	Search     string
}

type ListConceptResponse struct {
	pagination.PageInfo
	Items []ChargeConcept `json:"items"`
}

type Service interface {
	Create(context.Context, CreateConceptRequest) (ChargeConcept, error)
	Update(context.Context, UpdateConceptRequest) (ChargeConcept, error)
	GetByID(ctx context.Context, id snowflake.ID) (ChargeConcept, error)
	List(ctx context.Context, filter ListConceptFilter, page pagination.Pagination) (ListConceptResponse, error)
}

var (
	ErrNotFound         = errors.New("concept_not_found")
	ErrInvalidName      = errors.New("invalid_concept_name")
	ErrInvalidAmount    = errors.New("invalid_concept_amount")
	ErrInvalidFrequency = errors.New("invalid_concept_frequency")
	ErrInvalidCurrency  = errors.New("invalid_concept_currency")
	ErrCodeExists       = errors.New("concept_code_conflict")
	ErrConceptInUse     = errors.New("concept_has_open_charges")
)
