package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	expensedomain "github.com/smallbiznis/aula/internal/expense/domain"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type createSupplierRequest struct {
	Name        string `json:"name"`
	RIF         string `json:"rif"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	Notes       string `json:"notes"`
}

type createExpenseCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createExpenseRequest struct {
	CategoryID    string  `json:"expense_category_id"`
	SupplierID    string  `json:"supplier_id"`
	Description   string  `json:"description"`
	ExpenseDate   string  `json:"expense_date"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	InvoiceNumber string  `json:"invoice_number"`
	Notes         string  `json:"notes"`
}

type registerExpensePaymentRequest struct {
	PaymentDate string  `json:"payment_date"`
	AmountVES   float64 `json:"amount_ves"`
	Method      string  `json:"method"`
	Reference   string  `json:"reference"`
	Notes       string  `json:"notes"`
}

func (s *Server) CreateSupplier(c *gin.Context) {
	var req createSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.expenseSvc.CreateSupplier(c.Request.Context(), expensedomain.CreateSupplierRequest{
		Name:        strings.TrimSpace(req.Name),
		RIF:         strings.TrimSpace(req.RIF),
		ContactName: strings.TrimSpace(req.ContactName),
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		Address:     strings.TrimSpace(req.Address),
		Notes:       strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSuppliers(c *gin.Context) {
	resp, err := s.expenseSvc.ListSuppliers(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateExpenseCategory(c *gin.Context) {
	var req createExpenseCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.expenseSvc.CreateCategory(c.Request.Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Description))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListExpenseCategories(c *gin.Context) {
	resp, err := s.expenseSvc.ListCategories(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateExpense(c *gin.Context) {
	var req createExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	categoryID, err := parseOptionalSnowflakeID(req.CategoryID)
	if err != nil || categoryID == 0 {
		AbortWithError(c, newValidationError("expense_category_id", "invalid_category_id", "invalid expense_category_id"))
		return
	}
	supplierID, err := parseSnowflakeIDPtr(req.SupplierID)
	if err != nil {
		AbortWithError(c, newValidationError("supplier_id", "invalid_supplier_id", "invalid supplier_id"))
		return
	}
	expenseDate, err := parseRequiredTime(req.ExpenseDate)
	if err != nil {
		AbortWithError(c, newValidationError("expense_date", "invalid_expense_date", "invalid expense_date"))
		return
	}

	resp, err := s.expenseSvc.Create(c.Request.Context(), expensedomain.CreateExpenseRequest{
		CategoryID:    categoryID,
		SupplierID:    supplierID,
		Description:   strings.TrimSpace(req.Description),
		ExpenseDate:   expenseDate,
		Amount:        req.Amount,
		Currency:      money.Currency(strings.ToUpper(strings.TrimSpace(req.Currency))),
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListExpenses(c *gin.Context) {
	var query struct {
		pagination.Pagination
		CategoryID string `form:"expense_category_id"`
		SupplierID string `form:"supplier_id"`
		Status     string `form:"status"`
		From       string `form:"from"`
		To         string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	categoryID, err := parseOptionalSnowflakeID(query.CategoryID)
	if err != nil {
		AbortWithError(c, newValidationError("expense_category_id", "invalid_category_id", "invalid expense_category_id"))
		return
	}
	supplierID, err := parseOptionalSnowflakeID(query.SupplierID)
	if err != nil {
		AbortWithError(c, newValidationError("supplier_id", "invalid_supplier_id", "invalid supplier_id"))
		return
	}
	from, err := parseOptionalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(query.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	resp, err := s.expenseSvc.List(c.Request.Context(), expensedomain.ListExpenseFilter{
		CategoryID: categoryID,
		SupplierID: supplierID,
		Status:     expensedomain.ExpenseStatus(strings.TrimSpace(query.Status)),
		From:       from,
		To:         to,
	}, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetExpense(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.expenseSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RegisterExpensePayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req registerExpensePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paymentDate, err := parseRequiredTime(req.PaymentDate)
	if err != nil {
		AbortWithError(c, newValidationError("payment_date", "invalid_payment_date", "invalid payment_date"))
		return
	}

	resp, err := s.expenseSvc.RegisterPayment(c.Request.Context(), expensedomain.RegisterPaymentRequest{
		ExpenseID:   id,
		PaymentDate: paymentDate,
		AmountVES:   req.AmountVES,
		Method:      strings.TrimSpace(req.Method),
		Reference:   strings.TrimSpace(req.Reference),
		Notes:       strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListExpensePayments(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.expenseSvc.Payments(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
