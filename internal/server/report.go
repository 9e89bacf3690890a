package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) DelinquencyReport(c *gin.Context) {
	resp, err := s.reportSvc.Delinquency(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DashboardReport(c *gin.Context) {
	resp, err := s.reportSvc.Dashboard(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
