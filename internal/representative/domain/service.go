package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type CreateRepresentativeRequest struct {
	FirstName      string
	LastName       string
	Cedula         string
	RIF            string
	Email          string
	Phone          string
	PhoneSecondary string
	Address        string
	Profession     string
	Workplace      string
}

type UpdateRepresentativeRequest struct {
	ID             snowflake.ID
	FirstName      *string
	LastName       *string
	RIF            *string
	Email          *string
	Phone          *string
	PhoneSecondary *string
	Address        *string
	Profession     *string
	Workplace      *string
}

type ListRepresentativeFilter struct {
	Search string
}

type ListRepresentativeResponse struct {
	pagination.PageInfo
	Items []Representative `json:"items"`
}

type Service interface {
	Create(context.Context, CreateRepresentativeRequest) (Representative, error)
	Update(context.Context, UpdateRepresentativeRequest) (Representative, error)
	GetByID(ctx context.Context, id snowflake.ID) (Representative, error)
	List(ctx context.Context, filter ListRepresentativeFilter, page pagination.Pagination) (ListRepresentativeResponse, error)
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrNotFound      = errors.New("representative_not_found")
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidCedula = errors.New("invalid_cedula")
	ErrInvalidEmail  = errors.New("invalid_email")
	ErrCedulaExists  = errors.New("cedula_conflict")
	ErrEmailExists   = errors.New("email_conflict")
	ErrHasDependents = errors.New("representative_has_dependents")
)
