package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	studentdomain "github.com/smallbiznis/aula/internal/student/domain"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type createStudentRequest struct {
	FirstName              string  `json:"first_name"`
	LastName               string  `json:"last_name"`
	Cedula                 string  `json:"cedula"`
	BirthDate              string  `json:"birth_date"`
	RepresentativeID       string  `json:"representative_id"`
	GradeLevelID           string  `json:"grade_level_id"`
	HasScholarship         bool    `json:"has_scholarship"`
	ScholarshipPercentage  float64 `json:"scholarship_percentage"`
	ScholarshipFixedAmount float64 `json:"scholarship_fixed_amount"`
	Notes                  string  `json:"notes"`
}

type updateStudentRequest struct {
	FirstName              *string  `json:"first_name"`
	LastName               *string  `json:"last_name"`
	Cedula                 *string  `json:"cedula"`
	BirthDate              *string  `json:"birth_date"`
	GradeLevelID           *string  `json:"grade_level_id"`
	IsActive               *bool    `json:"is_active"`
	HasScholarship         *bool    `json:"has_scholarship"`
	ScholarshipPercentage  *float64 `json:"scholarship_percentage"`
	ScholarshipFixedAmount *float64 `json:"scholarship_fixed_amount"`
	Notes                  *string  `json:"notes"`
}

type createGradeLevelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order"`
}

type updateGradeLevelRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	SortOrder   *int    `json:"sort_order"`
	IsActive    *bool   `json:"is_active"`
}

func (s *Server) CreateStudent(c *gin.Context) {
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	representativeID, err := parseOptionalSnowflakeID(req.RepresentativeID)
	if err != nil || representativeID == 0 {
		AbortWithError(c, newValidationError("representative_id", "invalid_representative_id", "invalid representative_id"))
		return
	}
	gradeLevelID, err := parseSnowflakeIDPtr(req.GradeLevelID)
	if err != nil {
		AbortWithError(c, newValidationError("grade_level_id", "invalid_grade_level_id", "invalid grade_level_id"))
		return
	}
	birthDate, err := parseOptionalTime(req.BirthDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("birth_date", "invalid_birth_date", "invalid birth_date"))
		return
	}

	resp, err := s.studentSvc.Create(c.Request.Context(), studentdomain.CreateStudentRequest{
		FirstName:              strings.TrimSpace(req.FirstName),
		LastName:               strings.TrimSpace(req.LastName),
		Cedula:                 strings.TrimSpace(req.Cedula),
		BirthDate:              birthDate,
		RepresentativeID:       representativeID,
		GradeLevelID:           gradeLevelID,
		HasScholarship:         req.HasScholarship,
		ScholarshipPercentage:  req.ScholarshipPercentage,
		ScholarshipFixedAmount: req.ScholarshipFixedAmount,
		Notes:                  strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListStudents(c *gin.Context) {
	var query struct {
		pagination.Pagination
		RepresentativeID string `form:"representative_id"`
		GradeLevelID     string `form:"grade_level_id"`
		ActiveOnly       bool   `form:"active_only"`
		Search           string `form:"search"`
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
	gradeLevelID, err := parseOptionalSnowflakeID(query.GradeLevelID)
	if err != nil {
		AbortWithError(c, newValidationError("grade_level_id", "invalid_grade_level_id", "invalid grade_level_id"))
		return
	}

	resp, err := s.studentSvc.List(c.Request.Context(), studentdomain.ListStudentFilter{
		RepresentativeID: representativeID,
		GradeLevelID:     gradeLevelID,
		ActiveOnly:       query.ActiveOnly,
		Search:           strings.TrimSpace(query.Search),
	}, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetStudent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.studentSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateStudent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := studentdomain.UpdateStudentRequest{
		ID:                     id,
		FirstName:              req.FirstName,
		LastName:               req.LastName,
		Cedula:                 req.Cedula,
		IsActive:               req.IsActive,
		HasScholarship:         req.HasScholarship,
		ScholarshipPercentage:  req.ScholarshipPercentage,
		ScholarshipFixedAmount: req.ScholarshipFixedAmount,
		Notes:                  req.Notes,
	}
	if req.BirthDate != nil {
		birthDate, err := parseRequiredTime(*req.BirthDate)
		if err != nil {
			AbortWithError(c, newValidationError("birth_date", "invalid_birth_date", "invalid birth_date"))
			return
		}
		update.BirthDate = &birthDate
	}
	if req.GradeLevelID != nil {
		gradeLevelID, err := snowflake.ParseString(strings.TrimSpace(*req.GradeLevelID))
		if err != nil || gradeLevelID == 0 {
			AbortWithError(c, newValidationError("grade_level_id", "invalid_grade_level_id", "invalid grade_level_id"))
			return
		}
		update.GradeLevelID = &gradeLevelID
	}

	resp, err := s.studentSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) StudentAnnualSummary(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var query struct {
		YearStart int `form:"year_start"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reportSvc.StudentAnnualSummary(c.Request.Context(), id, query.YearStart)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateGradeLevel(c *gin.Context) {
	var req createGradeLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.studentSvc.CreateGradeLevel(c.Request.Context(), studentdomain.CreateGradeLevelRequest{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateGradeLevel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateGradeLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.studentSvc.UpdateGradeLevel(c.Request.Context(), studentdomain.UpdateGradeLevelRequest{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListGradeLevels(c *gin.Context) {
	resp, err := s.studentSvc.ListGradeLevels(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
