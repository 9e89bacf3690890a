package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	conceptdomain "github.com/smallbiznis/aula/internal/concept/domain"
	"github.com/smallbiznis/aula/internal/money"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type createChargeConceptRequest struct {
	Name                  string  `json:"name"`
	Description           string  `json:"description"`
	DefaultAmount         float64 `json:"default_amount"`
	DefaultAmountCurrency string  `json:"default_amount_currency"`
	Frequency             string  `json:"frequency"`
	Category              string  `json:"category"`
	IVAPercentage         float64 `json:"iva_percentage"`
	ApplicableGradeLevel  string  `json:"applicable_grade_level_id"`
}

type updateChargeConceptRequest struct {
	Name                  *string  `json:"name"`
	Description           *string  `json:"description"`
	DefaultAmount         *float64 `json:"default_amount"`
	DefaultAmountCurrency *string  `json:"default_amount_currency"`
	Frequency             *string  `json:"frequency"`
	Category              *string  `json:"category"`
	IVAPercentage         *float64 `json:"iva_percentage"`
	ApplicableGradeLevel  *string  `json:"applicable_grade_level_id"`
	IsActive              *bool    `json:"is_active"`
}

func (s *Server) CreateChargeConcept(c *gin.Context) {
	var req createChargeConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	gradeLevel, err := parseSnowflakeIDPtr(req.ApplicableGradeLevel)
	if err != nil {
		AbortWithError(c, newValidationError("applicable_grade_level_id", "invalid_grade_level_id", "invalid applicable_grade_level_id"))
		return
	}

	resp, err := s.conceptSvc.Create(c.Request.Context(), conceptdomain.CreateConceptRequest{
		Name:                  strings.TrimSpace(req.Name),
		Description:           strings.TrimSpace(req.Description),
		DefaultAmount:         req.DefaultAmount,
		DefaultAmountCurrency: money.Currency(strings.ToUpper(strings.TrimSpace(req.DefaultAmountCurrency))),
		Frequency:             conceptdomain.Frequency(strings.TrimSpace(req.Frequency)),
		Category:              conceptdomain.Category(strings.TrimSpace(req.Category)),
		IVAPercentage:         req.IVAPercentage,
		ApplicableGradeLevel:  gradeLevel,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListChargeConcepts(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Frequency  string `form:"frequency"`
		Category   string `form:"category"`
		ActiveOnly bool   `form:"active_only"`
		Search     string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.conceptSvc.List(c.Request.Context(), conceptdomain.ListConceptFilter{
		Frequency:  conceptdomain.Frequency(strings.TrimSpace(query.Frequency)),
		Category:   conceptdomain.Category(strings.TrimSpace(query.Category)),
		ActiveOnly: query.ActiveOnly,
		Search:     strings.TrimSpace(query.Search),
	}, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetChargeConcept(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.conceptSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateChargeConcept(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateChargeConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := conceptdomain.UpdateConceptRequest{
		ID:            id,
		Name:          req.Name,
		Description:   req.Description,
		DefaultAmount: req.DefaultAmount,
		IVAPercentage: req.IVAPercentage,
		IsActive:      req.IsActive,
	}
	if req.DefaultAmountCurrency != nil {
		currency := money.Currency(strings.ToUpper(strings.TrimSpace(*req.DefaultAmountCurrency)))
		update.DefaultAmountCurrency = &currency
	}
	if req.Frequency != nil {
		frequency := conceptdomain.Frequency(strings.TrimSpace(*req.Frequency))
		update.Frequency = &frequency
	}
	if req.Category != nil {
		category := conceptdomain.Category(strings.TrimSpace(*req.Category))
		update.Category = &category
	}
	if req.ApplicableGradeLevel != nil {
		gradeLevel, err := parseOptionalSnowflakeID(*req.ApplicableGradeLevel)
		if err != nil {
			AbortWithError(c, newValidationError("applicable_grade_level_id", "invalid_grade_level_id", "invalid applicable_grade_level_id"))
			return
		}
		update.ApplicableGradeLevel = &gradeLevel
	}

	resp, err := s.conceptSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
