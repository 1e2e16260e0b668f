package server

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/smallbiznis/meseboard/internal/dashboard/domain"
	"github.com/smallbiznis/meseboard/internal/export"
)

func (s *Server) GetYearDashboard(c *gin.Context) {
	year, err := parseYearParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dashboardSvc.Year(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFilterOptions(c *gin.Context) {
	year, err := parseYearParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dashboardSvc.FilterOptions(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTrendView(c *gin.Context) {
	s.filteredView(c, func(c *gin.Context, year int, f dashboarddomain.Filters) (any, error) {
		return s.dashboardSvc.Trend(c.Request.Context(), year, f)
	})
}

func (s *Server) GetAmountView(c *gin.Context) {
	s.filteredView(c, func(c *gin.Context, year int, f dashboarddomain.Filters) (any, error) {
		return s.dashboardSvc.Amount(c.Request.Context(), year, f)
	})
}

func (s *Server) GetFaultView(c *gin.Context) {
	s.filteredView(c, func(c *gin.Context, year int, f dashboarddomain.Filters) (any, error) {
		return s.dashboardSvc.Faults(c.Request.Context(), year, f)
	})
}

func (s *Server) GetDepartmentView(c *gin.Context) {
	s.filteredView(c, func(c *gin.Context, year int, f dashboarddomain.Filters) (any, error) {
		return s.dashboardSvc.Departments(c.Request.Context(), year, f)
	})
}

func (s *Server) GetCustomerView(c *gin.Context) {
	s.filteredView(c, func(c *gin.Context, year int, f dashboarddomain.Filters) (any, error) {
		return s.dashboardSvc.Customers(c.Request.Context(), year, f)
	})
}

func (s *Server) filteredView(c *gin.Context, load func(*gin.Context, int, dashboarddomain.Filters) (any, error)) {
	year, err := parseYearParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	filters, err := bindFilters(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := load(c, year, filters)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetShareView(c *gin.Context) {
	year, err := parseYearParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dashboardSvc.Shares(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDetails(c *gin.Context) {
	list, ok := s.loadDetails(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func (s *Server) ExportDetails(c *gin.Context) {
	list, ok := s.loadDetails(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteDetailXLSX(&buf, list); err != nil {
		AbortWithError(c, err)
		return
	}

	year, _ := parseYearParam(c)
	c.Header("Content-Disposition", `attachment; filename="`+export.DetailFilename(year, list.Kind)+`"`)
	c.Data(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}

func (s *Server) loadDetails(c *gin.Context) (*dashboarddomain.DetailList, bool) {
	year, err := parseYearParam(c)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	kind, err := dashboarddomain.ParseDetailKind(strings.TrimSpace(c.Query("kind")))
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}

	list, err := s.dashboardSvc.Details(c.Request.Context(), year, kind, c.Query("value"))
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	return list, true
}

func (s *Server) ExportReport(c *gin.Context) {
	year, err := parseYearParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data, err := s.dashboardSvc.Year(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := export.RenderYearReport(data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.ReportFilename(year)+`"`)
	c.Data(http.StatusOK, export.ContentTypePDF, doc)
}
