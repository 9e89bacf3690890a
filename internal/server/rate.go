package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/aula/internal/money"
	ratedomain "github.com/smallbiznis/aula/internal/rate/domain"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type createExchangeRateRequest struct {
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Rate         float64 `json:"rate"`
	RateDate     string  `json:"rate_date"`
	Source       string  `json:"source"`
	Notes        string  `json:"notes"`
}

type updateExchangeRateRequest struct {
	Rate     *float64 `json:"rate"`
	RateDate *string  `json:"rate_date"`
	Source   *string  `json:"source"`
	Notes    *string  `json:"notes"`
}

func (s *Server) CreateExchangeRate(c *gin.Context) {
	var req createExchangeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rateDate, err := parseRequiredTime(req.RateDate)
	if err != nil {
		AbortWithError(c, newValidationError("rate_date", "invalid_rate_date", "invalid rate_date"))
		return
	}

	resp, err := s.rateSvc.Create(c.Request.Context(), ratedomain.CreateRateRequest{
		FromCurrency: money.Currency(strings.ToUpper(strings.TrimSpace(req.FromCurrency))),
		ToCurrency:   money.Currency(strings.ToUpper(strings.TrimSpace(req.ToCurrency))),
		Rate:         req.Rate,
		RateDate:     rateDate,
		Source:       strings.TrimSpace(req.Source),
		Notes:        strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListExchangeRates(c *gin.Context) {
	var query struct {
		pagination.Pagination
		FromCurrency string `form:"from_currency"`
		ToCurrency   string `form:"to_currency"`
		StartDate    string `form:"start_date"`
		EndDate      string `form:"end_date"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startDate, err := parseOptionalTime(query.StartDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	endDate, err := parseOptionalTime(query.EndDate, true)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end_date"))
		return
	}

	resp, err := s.rateSvc.List(c.Request.Context(), ratedomain.ListRateFilter{
		FromCurrency: money.Currency(strings.ToUpper(strings.TrimSpace(query.FromCurrency))),
		ToCurrency:   money.Currency(strings.ToUpper(strings.TrimSpace(query.ToCurrency))),
		StartDate:    startDate,
		EndDate:      endDate,
	}, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ExchangeRateAlert(c *gin.Context) {
	resp, err := s.rateSvc.Freshness(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateExchangeRate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateExchangeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := ratedomain.UpdateRateRequest{
		ID:     id,
		Rate:   req.Rate,
		Source: req.Source,
		Notes:  req.Notes,
	}
	if req.RateDate != nil {
		rateDate, err := parseRequiredTime(*req.RateDate)
		if err != nil {
			AbortWithError(c, newValidationError("rate_date", "invalid_rate_date", "invalid rate_date"))
			return
		}
		update.RateDate = &rateDate
	}

	resp, err := s.rateSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteExchangeRate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.rateSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}
