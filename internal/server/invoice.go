package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/aula/internal/invoice/domain"
	"github.com/smallbiznis/aula/internal/providers/pdf"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type billToOverrideRequest struct {
	Name     string `json:"name"`
	FiscalID string `json:"fiscal_id"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
}

type createInvoiceRequest struct {
	RepresentativeID    string                 `json:"representative_id"`
	ChargeIDs           []string               `json:"applied_charge_ids"`
	IssueDate           string                 `json:"issue_date"`
	EmissionType        string                 `json:"emission_type"`
	ManualControlNumber string                 `json:"manual_control_number"`
	BillTo              *billToOverrideRequest `json:"bill_to"`
	Notes               string                 `json:"notes"`
}

type updateFiscalDetailsRequest struct {
	FiscalInvoiceNumber string `json:"fiscal_invoice_number"`
	FiscalControlNumber string `json:"fiscal_control_number"`
}

type annulInvoiceRequest struct {
	Reason string `json:"reason"`
}

type createCreditNoteRequest struct {
	InvoiceID string `json:"invoice_id"`
	Reason    string `json:"reason"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	representativeID, err := parseOptionalSnowflakeID(req.RepresentativeID)
	if err != nil || representativeID == 0 {
		AbortWithError(c, newValidationError("representative_id", "invalid_representative_id", "invalid representative_id"))
		return
	}
	issueDate, err := parseRequiredTime(req.IssueDate)
	if err != nil {
		AbortWithError(c, newValidationError("issue_date", "invalid_issue_date", "invalid issue_date"))
		return
	}

	create := invoicedomain.CreateInvoiceRequest{
		RepresentativeID:    representativeID,
		IssueDate:           issueDate,
		EmissionType:        invoicedomain.EmissionType(strings.TrimSpace(req.EmissionType)),
		ManualControlNumber: strings.TrimSpace(req.ManualControlNumber),
		Notes:               strings.TrimSpace(req.Notes),
	}
	for _, raw := range req.ChargeIDs {
		chargeID, err := parseOptionalSnowflakeID(raw)
		if err != nil || chargeID == 0 {
			AbortWithError(c, newValidationError("applied_charge_ids", "invalid_applied_charge_id", "invalid applied_charge_id"))
			return
		}
		create.ChargeIDs = append(create.ChargeIDs, chargeID)
	}
	if req.BillTo != nil {
		create.BillTo = &invoicedomain.BillToOverride{
			Name:     strings.TrimSpace(req.BillTo.Name),
			FiscalID: strings.TrimSpace(req.BillTo.FiscalID),
			Address:  strings.TrimSpace(req.BillTo.Address),
			Phone:    strings.TrimSpace(req.BillTo.Phone),
		}
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), create)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		RepresentativeID string `form:"representative_id"`
		Status           string `form:"status"`
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

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceFilter{
		RepresentativeID: representativeID,
		Status:           invoicedomain.InvoiceStatus(strings.TrimSpace(query.Status)),
		From:             from,
		To:               to,
	}, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.invoiceSvc.Items(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"invoice": invoice,
		"items":   items,
	}})
}

func (s *Server) UpdateInvoiceFiscalDetails(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateFiscalDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.UpdateFiscalDetails(c.Request.Context(), id, invoicedomain.UpdateFiscalDetailsRequest{
		FiscalInvoiceNumber: strings.TrimSpace(req.FiscalInvoiceNumber),
		FiscalControlNumber: strings.TrimSpace(req.FiscalControlNumber),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AnnulInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req annulInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Annul(c.Request.Context(), id, strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) InvoicePDF(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.invoiceSvc.Items(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	cfg, err := s.schoolSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := pdf.InvoiceData{
		SchoolName:          cfg.SchoolName,
		SchoolRIF:           cfg.SchoolRIF,
		SchoolAddress:       cfg.SchoolAddress,
		SchoolPhone:         cfg.SchoolPhone,
		InvoiceNumber:       invoice.InvoiceNumber,
		FiscalInvoiceNumber: invoice.FiscalInvoiceNumber,
		FiscalControlNumber: invoice.FiscalControlNumber,
		IssueDate:           invoice.IssueDate.Format("02/01/2006"),
		Status:              string(invoice.Status),
		BillToName:          invoice.BillToName,
		BillToFiscalID:      invoice.BillToFiscalID,
		BillToAddress:       invoice.BillToAddress,
		BillToPhone:         invoice.BillToPhone,
		Subtotal:            formatAmount(invoice.SubtotalVES),
		IVA:                 formatAmount(invoice.IVAVES),
		Total:               formatAmount(invoice.TotalVES),
		Notes:               invoice.Notes,
	}
	for _, item := range items {
		data.Items = append(data.Items, pdf.InvoiceLine{
			Description: item.Description,
			UnitPrice:   formatAmount(item.UnitPriceVES),
			IVA:         formatAmount(item.IVAAmountVES),
			Amount:      formatAmount(item.TotalVES),
		})
	}

	doc, err := s.pdfProvider.GenerateInvoice(c.Request.Context(), data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	raw, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+invoice.InvoiceNumber+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", raw)
}

func (s *Server) CreateCreditNote(c *gin.Context) {
	var req createCreditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoiceID, err := parseOptionalSnowflakeID(req.InvoiceID)
	if err != nil || invoiceID == 0 {
		AbortWithError(c, newValidationError("invoice_id", "invalid_invoice_id", "invalid invoice_id"))
		return
	}

	resp, err := s.invoiceSvc.CreateCreditNote(c.Request.Context(), invoicedomain.CreateCreditNoteRequest{
		InvoiceID: invoiceID,
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCreditNotes(c *gin.Context) {
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

	resp, err := s.invoiceSvc.ListCreditNotes(c.Request.Context(), invoicedomain.ListCreditNoteFilter{
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

func (s *Server) GetCreditNote(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	note, err := s.invoiceSvc.GetCreditNote(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.invoiceSvc.CreditNoteItems(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"credit_note": note,
		"items":       items,
	}})
}
