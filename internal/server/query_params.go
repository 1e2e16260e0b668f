package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/smallbiznis/meseboard/internal/dashboard/domain"
)

func parseYearParam(c *gin.Context) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(c.Param("year")))
	if err != nil {
		return 0, dashboarddomain.ErrInvalidYear
	}
	return year, nil
}

func bindFilters(c *gin.Context) (dashboarddomain.Filters, error) {
	var filters dashboarddomain.Filters
	if err := c.ShouldBindQuery(&filters); err != nil {
		return dashboarddomain.Filters{}, invalidRequestError()
	}
	filters.Department = strings.TrimSpace(filters.Department)
	filters.Customer = strings.TrimSpace(filters.Customer)
	filters.MaterialType = strings.TrimSpace(filters.MaterialType)
	filters.WarrantyType = strings.TrimSpace(filters.WarrantyType)
	filters.Category = strings.TrimSpace(filters.Category)
	return filters, nil
}

// parseDelimiter accepts a single character or one of the names "tab",
// "comma" and "semicolon". Blank means sniff from the file.
func parseDelimiter(value string) (rune, error) {
	switch strings.ToLower(value) {
	case "":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	}
	runes := []rune(value)
	if len(runes) != 1 {
		return 0, newValidationError("delimiter", "invalid_delimiter", "delimiter must be a single character")
	}
	return runes[0], nil
}
