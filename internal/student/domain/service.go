package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type CreateStudentRequest struct {
	FirstName              string
	LastName               string
	Cedula                 string
	BirthDate              *time.Time
	RepresentativeID       snowflake.ID
	GradeLevelID           *snowflake.ID
	HasScholarship         bool
	ScholarshipPercentage  float64
	ScholarshipFixedAmount float64
	Notes                  string
}

type UpdateStudentRequest struct {
	ID                     snowflake.ID
	FirstName              *string
	LastName               *string
	Cedula                 *string
	BirthDate              *time.Time
	GradeLevelID           *snowflake.ID
	IsActive               *bool
	HasScholarship         *bool
	ScholarshipPercentage  *float64
	ScholarshipFixedAmount *float64
	Notes                  *string
}

type ListStudentFilter struct {
	RepresentativeID snowflake.ID
	GradeLevelID     snowflake.ID
	ActiveOnly       bool
	Search           string
}

type ListStudentResponse struct {
	pagination.PageInfo
	Items []Student `json:"items"`
}

type CreateGradeLevelRequest struct {
	Name        string
	Description string
	SortOrder   int
}

type UpdateGradeLevelRequest struct {
	ID          snowflake.ID
	Name        *string
	Description *string
	SortOrder   *int
	IsActive    *bool
}

type Service interface {
	Create(context.Context, CreateStudentRequest) (Student, error)
	Update(context.Context, UpdateStudentRequest) (Student, error)
	GetByID(ctx context.Context, id snowflake.ID) (Student, error)
	List(ctx context.Context, filter ListStudentFilter, page pagination.Pagination) (ListStudentResponse, error)

	CreateGradeLevel(context.Context, CreateGradeLevelRequest) (GradeLevel, error)
	// UpdateGradeLevel refuses to deactivate a grade that still has
	// active students enrolled.
	UpdateGradeLevel(context.Context, UpdateGradeLevelRequest) (GradeLevel, error)
	ListGradeLevels(ctx context.Context) ([]GradeLevel, error)
}

var (
	ErrNotFound               = errors.New("student_not_found")
	ErrGradeLevelNotFound     = errors.New("grade_level_not_found")
	ErrGradeLevelExists       = errors.New("grade_level_conflict")
	ErrGradeLevelInUse        = errors.New("grade_level_has_active_students")
	ErrInvalidName            = errors.New("invalid_name")
	ErrInvalidScholarship     = errors.New("invalid_scholarship")
	ErrRepresentativeNotFound = errors.New("student_representative_not_found")
)
