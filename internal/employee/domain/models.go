package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/money"
)

type Department struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"uniqueIndex;not null" json:"name"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Department) TableName() string { return "departments" }

type Position struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name         string        `gorm:"uniqueIndex;not null" json:"name"`
	Description  string        `json:"description,omitempty"`
	DepartmentID *snowflake.ID `gorm:"index" json:"department_id,omitempty"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Position) TableName() string { return "positions" }

type SalaryType string

const (
	SalaryTypeMonthly     SalaryType = "monthly"
	SalaryTypeFortnightly SalaryType = "fortnightly"
	SalaryTypeHourly      SalaryType = "hourly"
)

func (t SalaryType) Valid() bool {
	return t == SalaryTypeMonthly || t == SalaryTypeFortnightly || t == SalaryTypeHourly
}

// Employee carries the payroll inputs next to the personal record.
// CurrentBalanceVES is what the school owes the employee; payroll
// confirmation raises it and employee payments lower it.
type Employee struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	FirstName string       `gorm:"not null" json:"first_name"`
	LastName  string       `gorm:"not null" json:"last_name"`
	Cedula    string       `gorm:"uniqueIndex;not null" json:"cedula"`
	Email     string       `json:"email,omitempty"`
	Phone     string       `json:"phone,omitempty"`
	Address   string       `json:"address,omitempty"`

	HireDate        *time.Time `gorm:"type:date" json:"hire_date,omitempty"`
	TerminationDate *time.Time `gorm:"type:date" json:"termination_date,omitempty"`

	PositionID   *snowflake.ID `gorm:"index" json:"position_id,omitempty"`
	DepartmentID *snowflake.ID `gorm:"index" json:"department_id,omitempty"`
	IsActive     bool          `gorm:"not null;default:true;index" json:"is_active"`

	SalaryType         SalaryType     `gorm:"not null;default:'monthly'" json:"salary_type"`
	BaseSalaryAmount   float64        `gorm:"not null;default:0" json:"base_salary_amount"`
	BaseSalaryCurrency money.Currency `gorm:"not null;default:'VES'" json:"base_salary_currency"`

	// Hourly employees accumulate worked hours between runs; a
	// confirmed run drains them.
	AccumulatedHours float64 `gorm:"not null;default:0" json:"accumulated_hours"`

	CurrentBalanceVES float64 `gorm:"column:current_balance_ves;not null;default:0" json:"current_balance_ves"`

	BankName    string `json:"bank_name,omitempty"`
	BankAccount string `json:"bank_account,omitempty"`
	Notes       string `json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Employee) TableName() string { return "employees" }

func (e Employee) FullName() string { return e.FirstName + " " + e.LastName }

type ComponentType string

const (
	ComponentEarning   ComponentType = "earning"
	ComponentDeduction ComponentType = "deduction"
)

type CalculationType string

const (
	CalculationFixed      CalculationType = "fixed_amount"
	CalculationPercentage CalculationType = "percentage_of_base"
)

// SalaryComponentDefinition is a reusable recurring earning or
// deduction, for example a transport bonus or social security.
type SalaryComponentDefinition struct {
	ID   snowflake.ID `gorm:"primaryKey" json:"id"`
	Name string       `gorm:"uniqueIndex;not null" json:"name"`

	ComponentType   ComponentType   `gorm:"not null" json:"component_type"`
	CalculationType CalculationType `gorm:"not null" json:"calculation_type"`

	DefaultAmount     float64        `gorm:"not null;default:0" json:"default_amount"`
	DefaultCurrency   money.Currency `gorm:"not null;default:'VES'" json:"default_currency"`
	DefaultPercentage float64        `gorm:"not null;default:0" json:"default_percentage"`

	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SalaryComponentDefinition) TableName() string { return "salary_component_definitions" }

// EmployeeSalaryComponent assigns a definition to one employee, with
// optional overrides of the default amount or percentage.
type EmployeeSalaryComponent struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	EmployeeID  snowflake.ID `gorm:"not null;index:idx_employee_component,unique" json:"employee_id"`
	ComponentID snowflake.ID `gorm:"column:salary_component_definition_id;not null;index:idx_employee_component,unique" json:"salary_component_definition_id"`

	OverrideAmount     *float64        `json:"override_amount,omitempty"`
	OverrideCurrency   *money.Currency `json:"override_currency,omitempty"`
	OverridePercentage *float64        `json:"override_percentage,omitempty"`

	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (EmployeeSalaryComponent) TableName() string { return "employee_salary_components" }

// SalaryHistory keeps one row per base salary change.
type SalaryHistory struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	EmployeeID    snowflake.ID   `gorm:"not null;index" json:"employee_id"`
	EffectiveDate time.Time      `gorm:"type:date;not null" json:"effective_date"`
	SalaryType    SalaryType     `gorm:"not null" json:"salary_type"`
	Amount        float64        `gorm:"not null" json:"amount"`
	Currency      money.Currency `gorm:"not null" json:"currency"`
	Notes         string         `json:"notes,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (SalaryHistory) TableName() string { return "employee_salary_histories" }
