package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	maintenancedomain "github.com/smallbiznis/meseboard/internal/maintenance/domain"
	"github.com/smallbiznis/meseboard/internal/observability/logger"
	"github.com/smallbiznis/meseboard/internal/oplog"
)

func (s *Server) TruncateTable(c *gin.Context) {
	var req maintenancedomain.TruncateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	log := s.newOpLog(c)
	result, err := s.maintenanceSvc.Truncate(c.Request.Context(), req, log)
	s.respondMaintenance(c, result, err)
}

func (s *Server) DeleteCycleMonth(c *gin.Context) {
	var req maintenancedomain.DeleteMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	log := s.newOpLog(c)
	result, err := s.maintenanceSvc.DeleteMonth(c.Request.Context(), req, log)
	s.respondMaintenance(c, result, err)
}

func (s *Server) CleanupDuplicates(c *gin.Context) {
	var req maintenancedomain.CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	log := s.newOpLog(c)
	result, err := s.maintenanceSvc.Cleanup(c.Request.Context(), req, log)
	s.respondMaintenance(c, result, err)
}

func (s *Server) newOpLog(c *gin.Context) *oplog.Log {
	return oplog.New(logger.FromContext(c.Request.Context()), s.clock.Now)
}

// respondMaintenance keeps the operation log in failed responses; a store
// failure is reported verbatim through the log as a 502.
func (s *Server) respondMaintenance(c *gin.Context, result *maintenancedomain.Result, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"data": result})
		return
	}

	status, payload := mapError(err)
	if status == http.StatusInternalServerError {
		status = http.StatusBadGateway
		payload = errorPayload{Type: "store_error", Message: "the store rejected the operation"}
	}
	body := gin.H{"error": payload}
	if result != nil {
		body["data"] = result
	}
	c.AbortWithStatusJSON(status, body)
}
