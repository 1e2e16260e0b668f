package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListStatMonths(c *gin.Context) {
	months, err := s.dashboardSvc.Months(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": months})
}

// GetComponentTrend returns the stage averages of the last six stat months.
func (s *Server) GetComponentTrend(c *gin.Context) {
	points, err := s.dashboardSvc.ComponentTrend(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": points})
}

func (s *Server) GetMonthSummary(c *gin.Context) {
	summary, err := s.dashboardSvc.MonthSummary(c.Request.Context(), strings.TrimSpace(c.Param("month")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// GetTicket looks up one serial. The optional month query prefers the cycle
// record of that stat month.
func (s *Server) GetTicket(c *gin.Context) {
	ticket, err := s.dashboardSvc.Ticket(c.Request.Context(), c.Param("serial"), strings.TrimSpace(c.Query("month")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ticket})
}
