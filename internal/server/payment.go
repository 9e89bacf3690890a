package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/aula/internal/money"
	paymentdomain "github.com/smallbiznis/aula/internal/payment/domain"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type allocationRequest struct {
	ChargeID string  `json:"applied_charge_id"`
	Amount   float64 `json:"amount"`
}

type createPaymentRequest struct {
	RepresentativeID string              `json:"representative_id"`
	PaymentDate      string              `json:"payment_date"`
	Amount           float64             `json:"amount"`
	Currency         string              `json:"currency"`
	PaymentMethod    string              `json:"payment_method"`
	ReferenceNumber  string              `json:"reference_number"`
	Notes            string              `json:"notes"`
	Allocations      []allocationRequest `json:"allocations"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	representativeID, err := parseOptionalSnowflakeID(req.RepresentativeID)
	if err != nil || representativeID == 0 {
		AbortWithError(c, newValidationError("representative_id", "invalid_representative_id", "invalid representative_id"))
		return
	}
	paymentDate, err := parseRequiredTime(req.PaymentDate)
	if err != nil {
		AbortWithError(c, newValidationError("payment_date", "invalid_payment_date", "invalid payment_date"))
		return
	}

	allocations := make([]paymentdomain.AllocationRequest, 0, len(req.Allocations))
	for _, alloc := range req.Allocations {
		chargeID, err := parseOptionalSnowflakeID(alloc.ChargeID)
		if err != nil || chargeID == 0 {
			AbortWithError(c, newValidationError("allocations", "invalid_applied_charge_id", "invalid applied_charge_id"))
			return
		}
		allocations = append(allocations, paymentdomain.AllocationRequest{
			ChargeID: chargeID,
			Amount:   alloc.Amount,
		})
	}

	resp, err := s.paymentSvc.Create(c.Request.Context(), paymentdomain.CreatePaymentRequest{
		RepresentativeID: representativeID,
		PaymentDate:      paymentDate,
		Amount:           req.Amount,
		Currency:         money.Currency(strings.ToUpper(strings.TrimSpace(req.Currency))),
		PaymentMethod:    strings.TrimSpace(req.PaymentMethod),
		ReferenceNumber:  strings.TrimSpace(req.ReferenceNumber),
		Notes:            strings.TrimSpace(req.Notes),
		Allocations:      allocations,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	var query struct {
		pagination.Pagination
		RepresentativeID string `form:"representative_id"`
		From             string `form:"from"`
		To               string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	representativeID, err := parseOptionalSnowflakeID(query.RepresentativeID)
	if err != nil {
		AbortWithError(c, newValidationError("representative_id", "invalid_representative_id", "invalid representative_id"))
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

	resp, err := s.paymentSvc.List(c.Request.Context(), paymentdomain.ListPaymentFilter{
		RepresentativeID: representativeID,
		From:             from,
		To:               to,
	}, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.paymentSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPaymentAllocations(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	allocations, err := s.paymentSvc.Allocations(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	unallocated, err := s.paymentSvc.UnallocatedAmount(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"items":           allocations,
		"unallocated_ves": money.Round2(unallocated),
	}})
}
