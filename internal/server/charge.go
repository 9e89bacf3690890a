package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	chargedomain "github.com/smallbiznis/aula/internal/charge/domain"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type createChargeRequest struct {
	StudentID   string `json:"student_id"`
	ConceptID   string `json:"charge_concept_id"`
	Description string `json:"description"`
	IssueDate   string `json:"issue_date"`
	DueDate     string `json:"due_date"`
}

type updateChargeStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) CreateCharge(c *gin.Context) {
	var req createChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	studentID, err := parseOptionalSnowflakeID(req.StudentID)
	if err != nil || studentID == 0 {
		AbortWithError(c, newValidationError("student_id", "invalid_student_id", "invalid student_id"))
		return
	}
	conceptID, err := parseOptionalSnowflakeID(req.ConceptID)
	if err != nil || conceptID == 0 {
		AbortWithError(c, newValidationError("charge_concept_id", "invalid_charge_concept_id", "invalid charge_concept_id"))
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

	resp, err := s.chargeSvc.Create(c.Request.Context(), chargedomain.CreateChargeRequest{
		StudentID:   studentID,
		ConceptID:   conceptID,
		Description: strings.TrimSpace(req.Description),
		IssueDate:   issueDate,
		DueDate:     dueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCharges(c *gin.Context) {
	var query struct {
		pagination.Pagination
		StudentID        string `form:"student_id"`
		RepresentativeID string `form:"representative_id"`
		Status           string `form:"status"`
		IssueFrom        string `form:"issue_from"`
		IssueTo          string `form:"issue_to"`
		DueFrom          string `form:"due_from"`
		DueTo            string `form:"due_to"`
		UninvoicedOnly   bool   `form:"uninvoiced_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	studentID, err := parseOptionalSnowflakeID(query.StudentID)
	if err != nil {
		AbortWithError(c, newValidationError("student_id", "invalid_student_id", "invalid student_id"))
		return
	}
	representativeID, err := parseOptionalSnowflakeID(query.RepresentativeID)
	if err != nil {
		AbortWithError(c, newValidationError("representative_id", "invalid_representative_id", "invalid representative_id"))
		return
	}
	issueFrom, err := parseOptionalTime(query.IssueFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("issue_from", "invalid_issue_from", "invalid issue_from"))
		return
	}
	issueTo, err := parseOptionalTime(query.IssueTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("issue_to", "invalid_issue_to", "invalid issue_to"))
		return
	}
	dueFrom, err := parseOptionalTime(query.DueFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("due_from", "invalid_due_from", "invalid due_from"))
		return
	}
	dueTo, err := parseOptionalTime(query.DueTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("due_to", "invalid_due_to", "invalid due_to"))
		return
	}

	resp, err := s.chargeSvc.List(c.Request.Context(), chargedomain.ListChargeFilter{
		StudentID:        studentID,
		RepresentativeID: representativeID,
		Status:           chargedomain.ChargeStatus(strings.TrimSpace(query.Status)),
		IssueFrom:        issueFrom,
		IssueTo:          issueTo,
		DueFrom:          dueFrom,
		DueTo:            dueTo,
		UninvoicedOnly:   query.UninvoicedOnly,
	}, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCharge(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.chargeSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateChargeStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateChargeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.chargeSvc.UpdateStatus(c.Request.Context(), id, chargedomain.ChargeStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
