package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/aula/internal/money"
	payrolldomain "github.com/smallbiznis/aula/internal/payroll/domain"
	"github.com/smallbiznis/aula/internal/providers/pdf"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type createPayrollRunRequest struct {
	RunType         string   `json:"run_type"`
	PeriodStart     string   `json:"period_start"`
	PeriodEnd       string   `json:"period_end"`
	ExchangeRateUSD *float64 `json:"exchange_rate_usd"`
	Notes           string   `json:"notes"`
}

type updatePayrollStatusRequest struct {
	Status string `json:"status"`
}

type createAdjustmentRequest struct {
	AdjustmentDate      string  `json:"adjustment_date"`
	AdjustmentType      string  `json:"adjustment_type"`
	Description         string  `json:"description"`
	Amount              float64 `json:"amount"`
	Currency            string  `json:"currency"`
	TargetPayableItemID string  `json:"target_payable_item_id"`
}

type payableAllocationRequest struct {
	PayableItemID string  `json:"payable_item_id"`
	AmountVES     float64 `json:"amount_ves"`
}

type createEmployeePaymentRequest struct {
	PaymentDate string                     `json:"payment_date"`
	Amount      float64                    `json:"amount"`
	Currency    string                     `json:"currency"`
	Allocations []payableAllocationRequest `json:"allocations"`
	Method      string                     `json:"method"`
	Reference   string                     `json:"reference"`
	Notes       string                     `json:"notes"`
}

func (s *Server) CreatePayrollRun(c *gin.Context) {
	var req createPayrollRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	periodStart, err := parseRequiredTime(req.PeriodStart)
	if err != nil {
		AbortWithError(c, newValidationError("period_start", "invalid_period_start", "invalid period_start"))
		return
	}
	periodEnd, err := parseRequiredTime(req.PeriodEnd)
	if err != nil {
		AbortWithError(c, newValidationError("period_end", "invalid_period_end", "invalid period_end"))
		return
	}

	resp, err := s.payrollSvc.CreateRun(c.Request.Context(), payrolldomain.CreateRunRequest{
		RunType:         payrolldomain.RunType(strings.TrimSpace(req.RunType)),
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		ExchangeRateUSD: req.ExchangeRateUSD,
		Notes:           strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayrollRuns(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
		Type   string `form:"run_type"`
		From   string `form:"from"`
		To     string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
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

	resp, err := s.payrollSvc.ListRuns(c.Request.Context(), payrolldomain.ListRunFilter{
		Status: payrolldomain.RunStatus(strings.TrimSpace(query.Status)),
		Type:   payrolldomain.RunType(strings.TrimSpace(query.Type)),
		From:   from,
		To:     to,
	}, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayrollRun(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.payrollSvc.GetRun(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PayrollRunDetails(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.payrollSvc.Details(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ConfirmPayrollRun(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.payrollSvc.Confirm(c.Request.Context(), id, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePayrollRunStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updatePayrollStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payrollSvc.UpdateStatus(c.Request.Context(), id, payrolldomain.RunStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePayrollRun(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.payrollSvc.DeleteDraft(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) CreateBalanceAdjustment(c *gin.Context) {
	employeeID, ok := pathID(c)
	if !ok {
		return
	}

	var req createAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	adjustmentDate, err := parseRequiredTime(req.AdjustmentDate)
	if err != nil {
		AbortWithError(c, newValidationError("adjustment_date", "invalid_adjustment_date", "invalid adjustment_date"))
		return
	}

	targetItemID, err := parseSnowflakeIDPtr(req.TargetPayableItemID)
	if err != nil {
		AbortWithError(c, newValidationError("target_payable_item_id", "invalid_target_payable_item_id", "invalid target_payable_item_id"))
		return
	}

	resp, err := s.payrollSvc.CreateAdjustment(c.Request.Context(), payrolldomain.CreateAdjustmentRequest{
		EmployeeID:          employeeID,
		AdjustmentDate:      adjustmentDate,
		AdjustmentType:      payrolldomain.AdjustmentType(strings.TrimSpace(req.AdjustmentType)),
		Description:         strings.TrimSpace(req.Description),
		Amount:              req.Amount,
		Currency:            money.Currency(strings.ToUpper(strings.TrimSpace(req.Currency))),
		TargetPayableItemID: targetItemID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBalanceAdjustments(c *gin.Context) {
	employeeID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.payrollSvc.Adjustments(c.Request.Context(), employeeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateEmployeePayment(c *gin.Context) {
	employeeID, ok := pathID(c)
	if !ok {
		return
	}

	var req createEmployeePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paymentDate, err := parseRequiredTime(req.PaymentDate)
	if err != nil {
		AbortWithError(c, newValidationError("payment_date", "invalid_payment_date", "invalid payment_date"))
		return
	}

	allocations := make([]payrolldomain.PayableAllocationRequest, 0, len(req.Allocations))
	for _, alloc := range req.Allocations {
		itemID, err := parseOptionalSnowflakeID(alloc.PayableItemID)
		if err != nil || itemID == 0 {
			AbortWithError(c, newValidationError("allocations", "invalid_payable_item_id", "invalid payable_item_id"))
			return
		}
		allocations = append(allocations, payrolldomain.PayableAllocationRequest{
			PayableItemID: itemID,
			AmountVES:     alloc.AmountVES,
		})
	}

	resp, err := s.payrollSvc.CreateEmployeePayment(c.Request.Context(), payrolldomain.CreateEmployeePaymentRequest{
		EmployeeID:  employeeID,
		PaymentDate: paymentDate,
		Amount:      req.Amount,
		Currency:    money.Currency(strings.ToUpper(strings.TrimSpace(req.Currency))),
		Allocations: allocations,
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

func (s *Server) ListPayableItems(c *gin.Context) {
	employeeID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.payrollSvc.PayableItems(c.Request.Context(), employeeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListEmployeePayments(c *gin.Context) {
	employeeID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.payrollSvc.EmployeePayments(c.Request.Context(), employeeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayslips(c *gin.Context) {
	employeeID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.payrollSvc.Payslips(c.Request.Context(), employeeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayslip(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.payrollSvc.GetPayslip(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PayslipPDF(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	payslip, err := s.payrollSvc.GetPayslip(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	cfg, err := s.schoolSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var lines []payrolldomain.BreakdownLine
	if len(payslip.Breakdown) > 0 {
		if err := json.Unmarshal(payslip.Breakdown, &lines); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	data := pdf.PayslipData{
		SchoolName:     cfg.SchoolName,
		SchoolRIF:      cfg.SchoolRIF,
		EmployeeName:   payslip.EmployeeName,
		EmployeeCedula: payslip.EmployeeCedula,
		PositionName:   payslip.PositionName,
		IssuedAt:       payslip.IssuedAt.Format("02/01/2006"),
		AmountPaid:     formatAmount(payslip.AmountVES),
	}
	for _, line := range lines {
		data.Lines = append(data.Lines, pdf.PayslipLine{
			Name:   line.Name,
			Type:   line.Type,
			Amount: formatAmount(line.AmountVES),
		})
	}

	doc, err := s.pdfProvider.GeneratePayslip(c.Request.Context(), data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	raw, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="payslip-`+payslip.ID.String()+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", raw)
}
