package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/meseboard/internal/dashboard/viewstate"
)

type createViewRequest struct {
	Year int `json:"year"`
}

// CreateView opens a view session. Without a year the current year is used.
func (s *Server) CreateView(c *gin.Context) {
	var req createViewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	if req.Year == 0 {
		req.Year = s.clock.Now().In(s.cfg.Location()).Year()
	}

	snap, err := s.views.Create(c.Request.Context(), req.Year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": snap})
}

func (s *Server) GetView(c *gin.Context) {
	snap, err := s.views.Get(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snap})
}

func (s *Server) CloseView(c *gin.Context) {
	s.views.Close(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) DispatchViewAction(c *gin.Context) {
	var action viewstate.Action
	if err := c.ShouldBindJSON(&action); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	snap, err := s.views.Dispatch(c.Request.Context(), c.Param("id"), action)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snap})
}
