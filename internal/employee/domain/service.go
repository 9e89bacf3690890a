package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type CreateEmployeeRequest struct {
	FirstName string
	LastName  string
	Cedula    string
	Email     string
	Phone     string
	Address   string

	HireDate     *time.Time
	PositionID   *snowflake.ID
	DepartmentID *snowflake.ID

	SalaryType         SalaryType
	BaseSalaryAmount   float64
	BaseSalaryCurrency money.Currency

	BankName    string
	BankAccount string
	Notes       string
}

type UpdateEmployeeRequest struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Address   *string

	HireDate        *time.Time
	TerminationDate *time.Time
	PositionID      *snowflake.ID
	DepartmentID    *snowflake.ID
	IsActive        *bool

	SalaryType         *SalaryType
	BaseSalaryAmount   *float64
	BaseSalaryCurrency *money.Currency

	BankName    *string
	BankAccount *string
	Notes       *string
}

type ListEmployeeFilter struct {
	DepartmentID snowflake.ID
	PositionID   snowflake.ID
	ActiveOnly   bool
	Search       string
}

type ListEmployeeResponse struct {
	pagination.PageInfo
	Items []Employee `json:"items"`
}

type CreateComponentRequest struct {
	Name              string
	ComponentType     ComponentType
	CalculationType   CalculationType
	DefaultAmount     float64
	DefaultCurrency   money.Currency
	DefaultPercentage float64
}

type AssignComponentRequest struct {
	EmployeeID  snowflake.ID
	ComponentID snowflake.ID

	OverrideAmount     *float64
	OverrideCurrency   *money.Currency
	OverridePercentage *float64
}

type Service interface {
	Create(context.Context, CreateEmployeeRequest) (Employee, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateEmployeeRequest) (Employee, error)
	GetByID(ctx context.Context, id snowflake.ID) (Employee, error)
	List(ctx context.Context, filter ListEmployeeFilter, page pagination.Pagination) (ListEmployeeResponse, error)
	// AddHours accumulates worked hours on an hourly employee.
	AddHours(ctx context.Context, id snowflake.ID, hours float64) (Employee, error)
	SalaryHistory(ctx context.Context, id snowflake.ID) ([]SalaryHistory, error)

	CreateDepartment(ctx context.Context, name, description string) (Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)
	CreatePosition(ctx context.Context, name, description string, departmentID *snowflake.ID) (Position, error)
	ListPositions(ctx context.Context) ([]Position, error)

	CreateComponent(context.Context, CreateComponentRequest) (SalaryComponentDefinition, error)
	ListComponents(ctx context.Context) ([]SalaryComponentDefinition, error)
	AssignComponent(context.Context, AssignComponentRequest) (EmployeeSalaryComponent, error)
	RemoveComponent(ctx context.Context, assignmentID snowflake.ID) error
	EmployeeComponents(ctx context.Context, employeeID snowflake.ID) ([]EmployeeSalaryComponent, error)
}

var (
	ErrNotFound           = errors.New("employee_not_found")
	ErrInvalidName        = errors.New("invalid_employee_name")
	ErrInvalidCedula      = errors.New("invalid_employee_cedula")
	ErrCedulaExists       = errors.New("employee_cedula_conflict")
	ErrInvalidSalary      = errors.New("invalid_employee_salary")
	ErrNotHourly          = errors.New("employee_not_hourly")
	ErrInvalidHours       = errors.New("invalid_hours")
	ErrDepartmentNotFound = errors.New("department_not_found")
	ErrDepartmentExists   = errors.New("department_conflict")
	ErrPositionNotFound   = errors.New("position_not_found")
	ErrPositionExists     = errors.New("position_conflict")
	ErrComponentNotFound  = errors.New("salary_component_not_found")
	ErrComponentExists    = errors.New("salary_component_conflict")
	ErrInvalidComponent   = errors.New("invalid_salary_component")
	ErrAssignmentNotFound = errors.New("component_assignment_not_found")
	ErrComponentAssigned  = errors.New("component_already_assigned")
)
