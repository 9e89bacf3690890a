package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	schooldomain "github.com/smallbiznis/aula/internal/school/domain"
)

type updateSchoolConfigurationRequest struct {
	SchoolName    *string `json:"school_name"`
	SchoolRIF     *string `json:"school_rif"`
	SchoolAddress *string `json:"school_address"`
	SchoolPhone   *string `json:"school_phone"`

	InvoiceReferencePrefix *string `json:"internal_invoice_reference_prefix"`
	NextInvoiceReference   *int64  `json:"next_internal_invoice_reference"`

	CreditNoteReferencePrefix *string `json:"credit_note_reference_prefix"`
	NextCreditNoteReference   *int64  `json:"next_credit_note_reference"`

	DefaultIVAPercentage *float64 `json:"default_iva_percentage"`
	PaymentDueDay        *int     `json:"payment_due_day"`
	SchoolYearStartMonth *int     `json:"school_year_start_month"`
}

func (s *Server) GetSchoolConfiguration(c *gin.Context) {
	resp, err := s.schoolSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateSchoolConfiguration(c *gin.Context) {
	var req updateSchoolConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.schoolSvc.Update(c.Request.Context(), schooldomain.UpdateConfigurationRequest{
		SchoolName:                req.SchoolName,
		SchoolRIF:                 req.SchoolRIF,
		SchoolAddress:             req.SchoolAddress,
		SchoolPhone:               req.SchoolPhone,
		InvoiceReferencePrefix:    req.InvoiceReferencePrefix,
		NextInvoiceReference:      req.NextInvoiceReference,
		CreditNoteReferencePrefix: req.CreditNoteReferencePrefix,
		NextCreditNoteReference:   req.NextCreditNoteReference,
		DefaultIVAPercentage:      req.DefaultIVAPercentage,
		PaymentDueDay:             req.PaymentDueDay,
		SchoolYearStartMonth:      req.SchoolYearStartMonth,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
