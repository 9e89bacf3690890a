package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/internal/clock"
	"github.com/smallbiznis/aula/internal/dates"
	"github.com/smallbiznis/aula/internal/employee/domain"
	"github.com/smallbiznis/aula/internal/money"
	pkgdb "github.com/smallbiznis/aula/pkg/db"
	"github.com/smallbiznis/aula/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("employee.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateEmployeeRequest) (domain.Employee, error) {
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return domain.Employee{}, domain.ErrInvalidName
	}
	if strings.TrimSpace(req.Cedula) == "" {
		return domain.Employee{}, domain.ErrInvalidCedula
	}
	if !req.SalaryType.Valid() || req.BaseSalaryAmount < 0 || !req.BaseSalaryCurrency.Valid() {
		return domain.Employee{}, domain.ErrInvalidSalary
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Employee{}).Where("cedula = ?", req.Cedula).Count(&count).Error; err != nil {
		return domain.Employee{}, err
	}
	if count > 0 {
		return domain.Employee{}, domain.ErrCedulaExists
	}
	if req.PositionID != nil {
		if err := s.positionExists(ctx, *req.PositionID); err != nil {
			return domain.Employee{}, err
		}
	}
	if req.DepartmentID != nil {
		if err := s.departmentExists(ctx, *req.DepartmentID); err != nil {
			return domain.Employee{}, err
		}
	}

	now := s.clock.Now()
	employee := domain.Employee{
		ID:                 s.genID.Generate(),
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Cedula:             req.Cedula,
		Email:              req.Email,
		Phone:              req.Phone,
		Address:            req.Address,
		HireDate:           req.HireDate,
		PositionID:         req.PositionID,
		DepartmentID:       req.DepartmentID,
		IsActive:           true,
		SalaryType:         req.SalaryType,
		BaseSalaryAmount:   money.Round2(req.BaseSalaryAmount),
		BaseSalaryCurrency: req.BaseSalaryCurrency,
		BankName:           req.BankName,
		BankAccount:        req.BankAccount,
		Notes:              req.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(&employee).Error; err != nil {
			return err
		}
		return s.recordSalary(ctx, tx, employee, "initial salary")
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Employee{}, domain.ErrCedulaExists
		}
		return domain.Employee{}, err
	}
	return employee, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateEmployeeRequest) (domain.Employee, error) {
	var out domain.Employee
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var employee domain.Employee
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&employee, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		salaryChanged := false
		if req.SalaryType != nil {
			if !req.SalaryType.Valid() {
				return domain.ErrInvalidSalary
			}
			if *req.SalaryType != employee.SalaryType {
				employee.SalaryType = *req.SalaryType
				salaryChanged = true
			}
		}
		if req.BaseSalaryAmount != nil {
			if *req.BaseSalaryAmount < 0 {
				return domain.ErrInvalidSalary
			}
			amount := money.Round2(*req.BaseSalaryAmount)
			if amount != employee.BaseSalaryAmount {
				employee.BaseSalaryAmount = amount
				salaryChanged = true
			}
		}
		if req.BaseSalaryCurrency != nil {
			if !req.BaseSalaryCurrency.Valid() {
				return domain.ErrInvalidSalary
			}
			if *req.BaseSalaryCurrency != employee.BaseSalaryCurrency {
				employee.BaseSalaryCurrency = *req.BaseSalaryCurrency
				salaryChanged = true
			}
		}

		if req.PositionID != nil {
			if err := s.positionExists(ctx, *req.PositionID); err != nil {
				return err
			}
			employee.PositionID = req.PositionID
		}
		if req.DepartmentID != nil {
			if err := s.departmentExists(ctx, *req.DepartmentID); err != nil {
				return err
			}
			employee.DepartmentID = req.DepartmentID
		}

		applyString(&employee.FirstName, req.FirstName)
		applyString(&employee.LastName, req.LastName)
		applyString(&employee.Email, req.Email)
		applyString(&employee.Phone, req.Phone)
		applyString(&employee.Address, req.Address)
		applyString(&employee.BankName, req.BankName)
		applyString(&employee.BankAccount, req.BankAccount)
		applyString(&employee.Notes, req.Notes)
		if req.HireDate != nil {
			d := dates.Day(*req.HireDate)
			employee.HireDate = &d
		}
		if req.TerminationDate != nil {
			d := dates.Day(*req.TerminationDate)
			employee.TerminationDate = &d
		}
		if req.IsActive != nil {
			employee.IsActive = *req.IsActive
		}
		if strings.TrimSpace(employee.FirstName) == "" || strings.TrimSpace(employee.LastName) == "" {
			return domain.ErrInvalidName
		}

		employee.UpdatedAt = s.clock.Now()
		if err := tx.WithContext(ctx).Save(&employee).Error; err != nil {
			return err
		}
		if salaryChanged {
			if err := s.recordSalary(ctx, tx, employee, "salary updated"); err != nil {
				return err
			}
		}
		out = employee
		return nil
	})
	if err != nil {
		return domain.Employee{}, err
	}
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Employee, error) {
	var employee domain.Employee
	err := s.db.WithContext(ctx).First(&employee, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Employee{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Employee{}, err
	}
	return employee, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListEmployeeFilter, page pagination.Pagination) (domain.ListEmployeeResponse, error) {
	page = page.Normalize()
	stmt := s.db.WithContext(ctx).Model(&domain.Employee{})
	if filter.DepartmentID != 0 {
		stmt = stmt.Where("department_id = ?", filter.DepartmentID)
	}
	if filter.PositionID != 0 {
		stmt = stmt.Where("position_id = ?", filter.PositionID)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	if filter.Search != "" {
		needle := "%" + strings.ToLower(filter.Search) + "%"
		stmt = stmt.Where(
			"lower(first_name) LIKE ? OR lower(last_name) LIKE ? OR lower(cedula) LIKE ?",
			needle, needle, needle,
		)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return domain.ListEmployeeResponse{}, err
	}

	var items []domain.Employee
	err := stmt.Order("last_name asc, first_name asc").
		Offset(page.Skip).Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return domain.ListEmployeeResponse{}, err
	}

	return domain.ListEmployeeResponse{
		PageInfo: pagination.BuildPageInfo(total, page),
		Items:    items,
	}, nil
}

func (s *Service) AddHours(ctx context.Context, id snowflake.ID, hours float64) (domain.Employee, error) {
	if hours <= 0 {
		return domain.Employee{}, domain.ErrInvalidHours
	}

	var out domain.Employee
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var employee domain.Employee
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&employee, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if employee.SalaryType != domain.SalaryTypeHourly {
			return domain.ErrNotHourly
		}

		employee.AccumulatedHours += hours
		employee.UpdatedAt = s.clock.Now()
		if err := tx.WithContext(ctx).Save(&employee).Error; err != nil {
			return err
		}
		out = employee
		return nil
	})
	if err != nil {
		return domain.Employee{}, err
	}
	return out, nil
}

func (s *Service) SalaryHistory(ctx context.Context, id snowflake.ID) ([]domain.SalaryHistory, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	var history []domain.SalaryHistory
	err := s.db.WithContext(ctx).
		Where("employee_id = ?", id).
		Order("effective_date desc, created_at desc").
		Find(&history).Error
	return history, err
}

func (s *Service) CreateDepartment(ctx context.Context, name, description string) (domain.Department, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Department{}, domain.ErrInvalidName
	}
	now := s.clock.Now()
	department := domain.Department{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&department).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Department{}, domain.ErrDepartmentExists
		}
		return domain.Department{}, err
	}
	return department, nil
}

func (s *Service) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	var departments []domain.Department
	err := s.db.WithContext(ctx).Order("name asc").Find(&departments).Error
	return departments, err
}

func (s *Service) CreatePosition(ctx context.Context, name, description string, departmentID *snowflake.ID) (domain.Position, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Position{}, domain.ErrInvalidName
	}
	if departmentID != nil {
		if err := s.departmentExists(ctx, *departmentID); err != nil {
			return domain.Position{}, err
		}
	}
	now := s.clock.Now()
	position := domain.Position{
		ID:           s.genID.Generate(),
		Name:         name,
		Description:  description,
		DepartmentID: departmentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&position).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Position{}, domain.ErrPositionExists
		}
		return domain.Position{}, err
	}
	return position, nil
}

func (s *Service) ListPositions(ctx context.Context) ([]domain.Position, error) {
	var positions []domain.Position
	err := s.db.WithContext(ctx).Order("name asc").Find(&positions).Error
	return positions, err
}

func (s *Service) CreateComponent(ctx context.Context, req domain.CreateComponentRequest) (domain.SalaryComponentDefinition, error) {
	if strings.TrimSpace(req.Name) == "" {
		return domain.SalaryComponentDefinition{}, domain.ErrInvalidComponent
	}
	if req.ComponentType != domain.ComponentEarning && req.ComponentType != domain.ComponentDeduction {
		return domain.SalaryComponentDefinition{}, domain.ErrInvalidComponent
	}
	switch req.CalculationType {
	case domain.CalculationFixed:
		if req.DefaultAmount < 0 || !req.DefaultCurrency.Valid() {
			return domain.SalaryComponentDefinition{}, domain.ErrInvalidComponent
		}
	case domain.CalculationPercentage:
		if req.DefaultPercentage <= 0 || req.DefaultPercentage > 100 {
			return domain.SalaryComponentDefinition{}, domain.ErrInvalidComponent
		}
	default:
		return domain.SalaryComponentDefinition{}, domain.ErrInvalidComponent
	}

	now := s.clock.Now()
	component := domain.SalaryComponentDefinition{
		ID:                s.genID.Generate(),
		Name:              req.Name,
		ComponentType:     req.ComponentType,
		CalculationType:   req.CalculationType,
		DefaultAmount:     money.Round2(req.DefaultAmount),
		DefaultCurrency:   req.DefaultCurrency,
		DefaultPercentage: req.DefaultPercentage,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if component.DefaultCurrency == "" {
		component.DefaultCurrency = money.VES
	}
	if err := s.db.WithContext(ctx).Create(&component).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.SalaryComponentDefinition{}, domain.ErrComponentExists
		}
		return domain.SalaryComponentDefinition{}, err
	}
	return component, nil
}

func (s *Service) ListComponents(ctx context.Context) ([]domain.SalaryComponentDefinition, error) {
	var components []domain.SalaryComponentDefinition
	err := s.db.WithContext(ctx).Order("name asc").Find(&components).Error
	return components, err
}

func (s *Service) AssignComponent(ctx context.Context, req domain.AssignComponentRequest) (domain.EmployeeSalaryComponent, error) {
	if _, err := s.GetByID(ctx, req.EmployeeID); err != nil {
		return domain.EmployeeSalaryComponent{}, err
	}
	var component domain.SalaryComponentDefinition
	err := s.db.WithContext(ctx).First(&component, "id = ?", req.ComponentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.EmployeeSalaryComponent{}, domain.ErrComponentNotFound
	}
	if err != nil {
		return domain.EmployeeSalaryComponent{}, err
	}

	if req.OverrideAmount != nil && *req.OverrideAmount < 0 {
		return domain.EmployeeSalaryComponent{}, domain.ErrInvalidComponent
	}
	if req.OverrideCurrency != nil && !req.OverrideCurrency.Valid() {
		return domain.EmployeeSalaryComponent{}, domain.ErrInvalidComponent
	}
	if req.OverridePercentage != nil && (*req.OverridePercentage <= 0 || *req.OverridePercentage > 100) {
		return domain.EmployeeSalaryComponent{}, domain.ErrInvalidComponent
	}

	now := s.clock.Now()
	assignment := domain.EmployeeSalaryComponent{
		ID:                 s.genID.Generate(),
		EmployeeID:         req.EmployeeID,
		ComponentID:        req.ComponentID,
		OverrideAmount:     req.OverrideAmount,
		OverrideCurrency:   req.OverrideCurrency,
		OverridePercentage: req.OverridePercentage,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.db.WithContext(ctx).Create(&assignment).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.EmployeeSalaryComponent{}, domain.ErrComponentAssigned
		}
		return domain.EmployeeSalaryComponent{}, err
	}
	return assignment, nil
}

func (s *Service) RemoveComponent(ctx context.Context, assignmentID snowflake.ID) error {
	result := s.db.WithContext(ctx).Delete(&domain.EmployeeSalaryComponent{}, "id = ?", assignmentID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAssignmentNotFound
	}
	return nil
}

func (s *Service) EmployeeComponents(ctx context.Context, employeeID snowflake.ID) ([]domain.EmployeeSalaryComponent, error) {
	var assignments []domain.EmployeeSalaryComponent
	err := s.db.WithContext(ctx).
		Where("employee_id = ? AND is_active = ?", employeeID, true).
		Order("id asc").
		Find(&assignments).Error
	return assignments, err
}

func (s *Service) recordSalary(ctx context.Context, tx *gorm.DB, employee domain.Employee, notes string) error {
	now := s.clock.Now()
	history := domain.SalaryHistory{
		ID:            s.genID.Generate(),
		EmployeeID:    employee.ID,
		EffectiveDate: dates.Day(now),
		SalaryType:    employee.SalaryType,
		Amount:        employee.BaseSalaryAmount,
		Currency:      employee.BaseSalaryCurrency,
		Notes:         notes,
		CreatedAt:     now,
	}
	return tx.WithContext(ctx).Create(&history).Error
}

func (s *Service) departmentExists(ctx context.Context, id snowflake.ID) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Department{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrDepartmentNotFound
	}
	return nil
}

func (s *Service) positionExists(ctx context.Context, id snowflake.ID) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Position{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrPositionNotFound
	}
	return nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
