package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	employeedomain "github.com/smallbiznis/aula/internal/employee/domain"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type createEmployeeRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Cedula    string `json:"cedula"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`

	HireDate     string `json:"hire_date"`
	PositionID   string `json:"position_id"`
	DepartmentID string `json:"department_id"`

	SalaryType         string  `json:"salary_type"`
	BaseSalaryAmount   float64 `json:"base_salary_amount"`
	BaseSalaryCurrency string  `json:"base_salary_currency"`

	BankName    string `json:"bank_name"`
	BankAccount string `json:"bank_account"`
	Notes       string `json:"notes"`
}

type updateEmployeeRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`

	HireDate        *string `json:"hire_date"`
	TerminationDate *string `json:"termination_date"`
	PositionID      *string `json:"position_id"`
	DepartmentID    *string `json:"department_id"`
	IsActive        *bool   `json:"is_active"`

	SalaryType         *string  `json:"salary_type"`
	BaseSalaryAmount   *float64 `json:"base_salary_amount"`
	BaseSalaryCurrency *string  `json:"base_salary_currency"`

	BankName    *string `json:"bank_name"`
	BankAccount *string `json:"bank_account"`
	Notes       *string `json:"notes"`
}

type addHoursRequest struct {
	Hours float64 `json:"hours"`
}

type createDepartmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createPositionRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DepartmentID string `json:"department_id"`
}

type createSalaryComponentRequest struct {
	Name              string  `json:"name"`
	ComponentType     string  `json:"component_type"`
	CalculationType   string  `json:"calculation_type"`
	DefaultAmount     float64 `json:"default_amount"`
	DefaultCurrency   string  `json:"default_currency"`
	DefaultPercentage float64 `json:"default_percentage"`
}

type assignSalaryComponentRequest struct {
	EmployeeID  string `json:"employee_id"`
	ComponentID string `json:"salary_component_definition_id"`

	OverrideAmount     *float64 `json:"override_amount"`
	OverrideCurrency   *string  `json:"override_currency"`
	OverridePercentage *float64 `json:"override_percentage"`
}

func (s *Server) CreateEmployee(c *gin.Context) {
	var req createEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	hireDate, err := parseOptionalTime(req.HireDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("hire_date", "invalid_hire_date", "invalid hire_date"))
		return
	}
	positionID, err := parseSnowflakeIDPtr(req.PositionID)
	if err != nil {
		AbortWithError(c, newValidationError("position_id", "invalid_position_id", "invalid position_id"))
		return
	}
	departmentID, err := parseSnowflakeIDPtr(req.DepartmentID)
	if err != nil {
		AbortWithError(c, newValidationError("department_id", "invalid_department_id", "invalid department_id"))
		return
	}

	resp, err := s.empSvc.Create(c.Request.Context(), employeedomain.CreateEmployeeRequest{
		FirstName:          strings.TrimSpace(req.FirstName),
		LastName:           strings.TrimSpace(req.LastName),
		Cedula:             strings.TrimSpace(req.Cedula),
		Email:              strings.TrimSpace(req.Email),
		Phone:              strings.TrimSpace(req.Phone),
		Address:            strings.TrimSpace(req.Address),
		HireDate:           hireDate,
		PositionID:         positionID,
		DepartmentID:       departmentID,
		SalaryType:         employeedomain.SalaryType(strings.TrimSpace(req.SalaryType)),
		BaseSalaryAmount:   req.BaseSalaryAmount,
		BaseSalaryCurrency: money.Currency(strings.ToUpper(strings.TrimSpace(req.BaseSalaryCurrency))),
		BankName:           strings.TrimSpace(req.BankName),
		BankAccount:        strings.TrimSpace(req.BankAccount),
		Notes:              strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListEmployees(c *gin.Context) {
	var query struct {
		pagination.Pagination
		DepartmentID string `form:"department_id"`
		PositionID   string `form:"position_id"`
		ActiveOnly   bool   `form:"active_only"`
		Search       string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	departmentID, err := parseOptionalSnowflakeID(query.DepartmentID)
	if err != nil {
		AbortWithError(c, newValidationError("department_id", "invalid_department_id", "invalid department_id"))
		return
	}
	positionID, err := parseOptionalSnowflakeID(query.PositionID)
	if err != nil {
		AbortWithError(c, newValidationError("position_id", "invalid_position_id", "invalid position_id"))
		return
	}

	resp, err := s.empSvc.List(c.Request.Context(), employeedomain.ListEmployeeFilter{
		DepartmentID: departmentID,
		PositionID:   positionID,
		ActiveOnly:   query.ActiveOnly,
		Search:       strings.TrimSpace(query.Search),
	}, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetEmployee(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.empSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateEmployee(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := employeedomain.UpdateEmployeeRequest{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		IsActive:         req.IsActive,
		BaseSalaryAmount: req.BaseSalaryAmount,
		BankName:         req.BankName,
		BankAccount:      req.BankAccount,
		Notes:            req.Notes,
	}
	if req.HireDate != nil {
		hireDate, err := parseRequiredTime(*req.HireDate)
		if err != nil {
			AbortWithError(c, newValidationError("hire_date", "invalid_hire_date", "invalid hire_date"))
			return
		}
		update.HireDate = &hireDate
	}
	if req.TerminationDate != nil {
		terminationDate, err := parseRequiredTime(*req.TerminationDate)
		if err != nil {
			AbortWithError(c, newValidationError("termination_date", "invalid_termination_date", "invalid termination_date"))
			return
		}
		update.TerminationDate = &terminationDate
	}
	if req.PositionID != nil {
		positionID, err := parseSnowflakeIDPtr(*req.PositionID)
		if err != nil {
			AbortWithError(c, newValidationError("position_id", "invalid_position_id", "invalid position_id"))
			return
		}
		update.PositionID = positionID
	}
	if req.DepartmentID != nil {
		departmentID, err := parseSnowflakeIDPtr(*req.DepartmentID)
		if err != nil {
			AbortWithError(c, newValidationError("department_id", "invalid_department_id", "invalid department_id"))
			return
		}
		update.DepartmentID = departmentID
	}
	if req.SalaryType != nil {
		salaryType := employeedomain.SalaryType(strings.TrimSpace(*req.SalaryType))
		update.SalaryType = &salaryType
	}
	if req.BaseSalaryCurrency != nil {
		currency := money.Currency(strings.ToUpper(strings.TrimSpace(*req.BaseSalaryCurrency)))
		update.BaseSalaryCurrency = &currency
	}

	resp, err := s.empSvc.Update(c.Request.Context(), id, update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddEmployeeHours(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req addHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.empSvc.AddHours(c.Request.Context(), id, req.Hours)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) EmployeeSalaryHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.empSvc.SalaryHistory(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) EmployeeComponents(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.empSvc.EmployeeComponents(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateDepartment(c *gin.Context) {
	var req createDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.empSvc.CreateDepartment(c.Request.Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Description))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDepartments(c *gin.Context) {
	resp, err := s.empSvc.ListDepartments(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreatePosition(c *gin.Context) {
	var req createPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	departmentID, err := parseSnowflakeIDPtr(req.DepartmentID)
	if err != nil {
		AbortWithError(c, newValidationError("department_id", "invalid_department_id", "invalid department_id"))
		return
	}

	resp, err := s.empSvc.CreatePosition(c.Request.Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Description), departmentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPositions(c *gin.Context) {
	resp, err := s.empSvc.ListPositions(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateSalaryComponent(c *gin.Context) {
	var req createSalaryComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.empSvc.CreateComponent(c.Request.Context(), employeedomain.CreateComponentRequest{
		Name:              strings.TrimSpace(req.Name),
		ComponentType:     employeedomain.ComponentType(strings.TrimSpace(req.ComponentType)),
		CalculationType:   employeedomain.CalculationType(strings.TrimSpace(req.CalculationType)),
		DefaultAmount:     req.DefaultAmount,
		DefaultCurrency:   money.Currency(strings.ToUpper(strings.TrimSpace(req.DefaultCurrency))),
		DefaultPercentage: req.DefaultPercentage,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSalaryComponents(c *gin.Context) {
	resp, err := s.empSvc.ListComponents(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AssignSalaryComponent(c *gin.Context) {
	var req assignSalaryComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	employeeID, err := parseOptionalSnowflakeID(req.EmployeeID)
	if err != nil || employeeID == 0 {
		AbortWithError(c, newValidationError("employee_id", "invalid_employee_id", "invalid employee_id"))
		return
	}
	componentID, err := parseOptionalSnowflakeID(req.ComponentID)
	if err != nil || componentID == 0 {
		AbortWithError(c, newValidationError("salary_component_definition_id", "invalid_component_id", "invalid salary_component_definition_id"))
		return
	}

	assign := employeedomain.AssignComponentRequest{
		EmployeeID:         employeeID,
		ComponentID:        componentID,
		OverrideAmount:     req.OverrideAmount,
		OverridePercentage: req.OverridePercentage,
	}
	if req.OverrideCurrency != nil {
		currency := money.Currency(strings.ToUpper(strings.TrimSpace(*req.OverrideCurrency)))
		assign.OverrideCurrency = &currency
	}

	resp, err := s.empSvc.AssignComponent(c.Request.Context(), assign)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemoveSalaryComponent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.empSvc.RemoveComponent(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"removed": true}})
}
