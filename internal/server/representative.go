package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/aula/internal/money"
	repdomain "github.com/smallbiznis/aula/internal/representative/domain"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type createRepresentativeRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Cedula         string `json:"cedula"`
	RIF            string `json:"rif"`
	Email          string `json:"email"`
	Phone          string `json:"phone_main"`
	PhoneSecondary string `json:"phone_secondary"`
	Address        string `json:"address"`
	Profession     string `json:"profession"`
	Workplace      string `json:"workplace"`
}

type updateRepresentativeRequest struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	RIF            *string `json:"rif"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone_main"`
	PhoneSecondary *string `json:"phone_secondary"`
	Address        *string `json:"address"`
	Profession     *string `json:"profession"`
	Workplace      *string `json:"workplace"`
}

func (s *Server) CreateRepresentative(c *gin.Context) {
	var req createRepresentativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.repSvc.Create(c.Request.Context(), repdomain.CreateRepresentativeRequest{
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Cedula:         strings.TrimSpace(req.Cedula),
		RIF:            strings.TrimSpace(req.RIF),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		PhoneSecondary: strings.TrimSpace(req.PhoneSecondary),
		Address:        strings.TrimSpace(req.Address),
		Profession:     strings.TrimSpace(req.Profession),
		Workplace:      strings.TrimSpace(req.Workplace),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRepresentatives(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Search string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.repSvc.List(c.Request.Context(), repdomain.ListRepresentativeFilter{
		Search: strings.TrimSpace(query.Search),
	}, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRepresentative(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.repSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateRepresentative(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateRepresentativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.repSvc.Update(c.Request.Context(), repdomain.UpdateRepresentativeRequest{
		ID:             id,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		RIF:            req.RIF,
		Email:          req.Email,
		Phone:          req.Phone,
		PhoneSecondary: req.PhoneSecondary,
		Address:        req.Address,
		Profession:     req.Profession,
		Workplace:      req.Workplace,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteRepresentative(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.repSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) RepresentativeStatement(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.reportSvc.AccountStatement(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// RepresentativeCredit reports both credit pools: unallocated payment
// remainders and the explicit credit-note balance.
func (s *Server) RepresentativeCredit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	rep, err := s.repSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	unallocated, err := s.paymentSvc.TotalAvailableCredit(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"representative_id":        rep.ID,
		"unallocated_payments_ves": money.Round2(unallocated),
		"credit_note_balance_ves":  money.Round2(rep.AvailableCreditVES),
		"total_credit_ves":         money.Round2(unallocated + rep.AvailableCreditVES),
	}})
}

func (s *Server) ApplyCredit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.paymentSvc.ApplyCredit(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApplyCreditBalance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.paymentSvc.ApplyExplicitCredit(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
