package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/aula/internal/billing/domain"
	"github.com/smallbiznis/aula/internal/money"
)

type runBillingRequest struct {
	Year       int      `json:"year"`
	Month      int      `json:"month"`
	IssueDate  string   `json:"issue_date"`
	DueDate    string   `json:"due_date"`
	ConceptIDs []string `json:"concept_ids"`
}

type applyGlobalChargeRequest struct {
	ConceptID        string   `json:"concept_id"`
	IssueDate        string   `json:"issue_date"`
	DueDate          string   `json:"due_date"`
	Target           string   `json:"target"`
	OverrideAmount   *float64 `json:"override_amount"`
	OverrideCurrency string   `json:"override_currency"`
	Description      string   `json:"description"`
}

func (s *Server) RunRecurringBilling(c *gin.Context) {
	var req runBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	issueDate, err := parseOptionalTime(req.IssueDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("issue_date", "invalid_issue_date", "invalid issue_date"))
		return
	}
	dueDate, err := parseOptionalTime(req.DueDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_due_date", "invalid due_date"))
		return
	}

	conceptIDs := make([]snowflake.ID, 0, len(req.ConceptIDs))
	for _, raw := range req.ConceptIDs {
		id, err := parseOptionalSnowflakeID(raw)
		if err != nil || id == 0 {
			AbortWithError(c, newValidationError("concept_ids", "invalid_concept_id", "invalid concept_id"))
			return
		}
		conceptIDs = append(conceptIDs, id)
	}

	resp, err := s.billingSvc.Run(c.Request.Context(), billingdomain.RunRequest{
		Year:       req.Year,
		Month:      req.Month,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		ConceptIDs: conceptIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApplyGlobalCharge(c *gin.Context) {
	var req applyGlobalChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	conceptID, err := parseOptionalSnowflakeID(req.ConceptID)
	if err != nil || conceptID == 0 {
		AbortWithError(c, newValidationError("concept_id", "invalid_concept_id", "invalid concept_id"))
		return
	}
	issueDate, err := parseRequiredTime(req.IssueDate)
	if err != nil {
		AbortWithError(c, newValidationError("issue_date", "invalid_issue_date", "invalid issue_date"))
		return
	}
	dueDate, err := parseRequiredTime(req.DueDate)
	if err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_due_date", "invalid due_date"))
		return
	}

	var overrideCurrency *money.Currency
	if trimmed := strings.ToUpper(strings.TrimSpace(req.OverrideCurrency)); trimmed != "" {
		currency := money.Currency(trimmed)
		overrideCurrency = &currency
	}

	resp, err := s.billingSvc.ApplyGlobalCharge(c.Request.Context(), billingdomain.GlobalChargeRequest{
		ConceptID:        conceptID,
		IssueDate:        issueDate,
		DueDate:          dueDate,
		Target:           billingdomain.GlobalChargeTarget(strings.TrimSpace(req.Target)),
		OverrideAmount:   req.OverrideAmount,
		OverrideCurrency: overrideCurrency,
		Description:      strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
