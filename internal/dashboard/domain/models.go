package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meseboard/internal/analytics"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
)

var (
	ErrInvalidYear       = errors.New("invalid_year")
	ErrInvalidMonth      = errors.New("invalid_month")
	ErrInvalidSerial     = errors.New("invalid_serial")
	ErrTicketNotFound    = errors.New("ticket_not_found")
	ErrUnknownDetailKind = errors.New("unknown_detail_kind")
)

// Dataset is everything one report year needs. Overview rows are partitioned
// by report_year, ledger rows by report_year and cycle rows by the year of
// their stat month.
type Dataset struct {
	Year          int                             `json:"year"`
	OverviewCount int64                           `json:"overviewCount"`
	Overview      []recorddomain.OverviewRecord   `json:"overview"`
	Ledger        []recorddomain.LedgerRecord     `json:"ledger"`
	Cycle         []recorddomain.CycleStatsRecord `json:"cycle"`
}

// YearData is the year dashboard.
type YearData struct {
	Year           int   `json:"year"`
	AvailableYears []int `json:"availableYears"`

	TotalCount       int64                  `json:"totalCount"`
	AvgCycleTime     float64                `json:"avgCycleTime"`
	TopDept          analytics.TopItem      `json:"topDept"`
	WarrantyTypeData []analytics.Bucket     `json:"warrantyTypeData"`
	MonthlyTrend     []analytics.TrendPoint `json:"monthlyTrend"`
	DepartmentData   []analytics.Bucket     `json:"departmentData"`
	TopMaterials     []analytics.Bucket     `json:"topMaterials"`
	TopFaults        []analytics.Bucket     `json:"topFaults"`

	AmountTotal        decimal.Decimal          `json:"amountTotal"`
	AvgAmount          decimal.Decimal          `json:"avgAmount"`
	CloseRate          float64                  `json:"closeRate"`
	MonthlyAmountTrend []analytics.AmountPoint  `json:"monthlyAmountTrend"`
	ResolutionData     []analytics.Bucket       `json:"resolutionData"`
	CategoryData       []analytics.Bucket       `json:"categoryData"`
	CategoryAmountData []analytics.AmountBucket `json:"categoryAmountData"`
	DeptAmountTop      []analytics.AmountBucket `json:"deptAmountTop"`
	CustomerAmountTop  []analytics.AmountBucket `json:"customerAmountTop"`
}

// Filters narrow a modal view. Blank or "全部" means unfiltered.
type Filters struct {
	Department   string `form:"department" json:"department,omitempty"`
	Customer     string `form:"customer" json:"customer,omitempty"`
	MaterialType string `form:"material_type" json:"material_type,omitempty"`
	WarrantyType string `form:"warranty_type" json:"warranty_type,omitempty"`
	Category     string `form:"category" json:"category,omitempty"`
}

const (
	FilterDepartment   = "department"
	FilterCustomer     = "customer"
	FilterMaterialType = "material_type"
	FilterWarrantyType = "warranty_type"
	FilterCategory     = "category"
)

// Set assigns one named filter. It reports false for an unknown name.
func (f *Filters) Set(name, value string) bool {
	switch name {
	case FilterDepartment:
		f.Department = value
	case FilterCustomer:
		f.Customer = value
	case FilterMaterialType:
		f.MaterialType = value
	case FilterWarrantyType:
		f.WarrantyType = value
	case FilterCategory:
		f.Category = value
	default:
		return false
	}
	return true
}

// FilterOptions lists the choices of every modal view, keyed by filter name.
// Each list starts with "全部".
type FilterOptions struct {
	Trend       map[string][]string `json:"trend"`
	Amount      map[string][]string `json:"amount"`
	Faults      map[string][]string `json:"faults"`
	Departments map[string][]string `json:"departments"`
	Customers   map[string][]string `json:"customers"`
}

type TrendView struct {
	Count          int                    `json:"count"`
	AvgCycleTime   float64                `json:"avgCycleTime"`
	MonthlyTrend   []analytics.TrendPoint `json:"monthlyTrend"`
	DepartmentData []analytics.Bucket     `json:"departmentData"`
}

type AmountView struct {
	Totals            analytics.LedgerTotals   `json:"totals"`
	MonthlyAmount     []analytics.AmountPoint  `json:"monthlyAmount"`
	DeptAmountTop     []analytics.AmountBucket `json:"deptAmountTop"`
	CustomerAmountTop []analytics.AmountBucket `json:"customerAmountTop"`
}

type FaultView struct {
	Count  int                    `json:"count"`
	Groups []analytics.FaultGroup `json:"groups"`
}

type DepartmentView struct {
	Count       int                `json:"count"`
	Departments []analytics.Bucket `json:"departments"`
}

type CustomerView struct {
	Count     int                      `json:"count"`
	Customers []analytics.AmountBucket `json:"customers"`
}

type ShareView struct {
	WarrantyType   []analytics.Share `json:"warrantyType"`
	Category       []analytics.Share `json:"category"`
	CategoryAmount []analytics.Share `json:"categoryAmount"`
}

// DetailKind selects the rows behind a clicked chart segment.
type DetailKind string

const (
	DetailCategory       DetailKind = "category"
	DetailCategoryAmount DetailKind = "categoryAmount"
	DetailDepartment     DetailKind = "department"
	DetailWarrantyType   DetailKind = "warrantyType"
	DetailMaterial       DetailKind = "material"
)

func ParseDetailKind(raw string) (DetailKind, error) {
	switch k := DetailKind(raw); k {
	case DetailCategory, DetailCategoryAmount, DetailDepartment, DetailWarrantyType, DetailMaterial:
		return k, nil
	default:
		return "", ErrUnknownDetailKind
	}
}

// FromLedger reports whether the kind drills into ledger rows rather than
// overview rows.
func (k DetailKind) FromLedger() bool {
	return k == DetailCategory || k == DetailCategoryAmount || k == DetailDepartment
}

var (
	LedgerDetailColumns = []string{
		"serial_number", "material_name", "drawing_number", "apply_date", "customer_name",
		"department", "category", "amount", "status", "resolution", "cause",
	}
	OverviewDetailColumns = []string{
		"serial_number", "material_name", "drawing_number", "customer_name", "department", "warranty_type",
	}
)

// DetailRow is one drill-down row. Columns lists which fields apply.
type DetailRow struct {
	SerialNumber  string           `json:"serial_number"`
	MaterialName  string           `json:"material_name"`
	DrawingNumber string           `json:"drawing_number"`
	ApplyDate     string           `json:"apply_date,omitempty"`
	CustomerName  string           `json:"customer_name"`
	Department    string           `json:"department"`
	Category      string           `json:"category,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Status        string           `json:"status,omitempty"`
	Resolution    string           `json:"resolution,omitempty"`
	Cause         string           `json:"cause,omitempty"`
	WarrantyType  string           `json:"warranty_type,omitempty"`
}

// Value renders one column as text.
func (r DetailRow) Value(column string) string {
	switch column {
	case "serial_number":
		return r.SerialNumber
	case "material_name":
		return r.MaterialName
	case "drawing_number":
		return r.DrawingNumber
	case "apply_date":
		return r.ApplyDate
	case "customer_name":
		return r.CustomerName
	case "department":
		return r.Department
	case "category":
		return r.Category
	case "amount":
		if r.Amount == nil {
			return ""
		}
		return r.Amount.String()
	case "status":
		return r.Status
	case "resolution":
		return r.Resolution
	case "cause":
		return r.Cause
	case "warranty_type":
		return r.WarrantyType
	default:
		return ""
	}
}

type DetailList struct {
	Kind      DetailKind  `json:"kind"`
	Value     string      `json:"value"`
	Columns   []string    `json:"columns"`
	Rows      []DetailRow `json:"rows"`
	Total     int         `json:"total"`
	Truncated bool        `json:"truncated"`
}

// TicketDetail is everything known about one serial number.
type TicketDetail struct {
	Serial     string                         `json:"serial"`
	Month      string                         `json:"month,omitempty"`
	Overview   []recorddomain.OverviewRecord  `json:"overview"`
	Steps      []analytics.StepDuration       `json:"steps"`
	Cycle      *recorddomain.CycleStatsRecord `json:"cycle"`
	CycleMonth string                         `json:"cycleMonth,omitempty"`
	Stages     []analytics.Stage              `json:"stages"`
}

type Service interface {
	Load(ctx context.Context, year int) (*Dataset, error)
	Year(ctx context.Context, year int) (*YearData, error)
	FilterOptions(ctx context.Context, year int) (*FilterOptions, error)
	Trend(ctx context.Context, year int, filters Filters) (*TrendView, error)
	Amount(ctx context.Context, year int, filters Filters) (*AmountView, error)
	Faults(ctx context.Context, year int, filters Filters) (*FaultView, error)
	Departments(ctx context.Context, year int, filters Filters) (*DepartmentView, error)
	Customers(ctx context.Context, year int, filters Filters) (*CustomerView, error)
	Shares(ctx context.Context, year int) (*ShareView, error)
	Details(ctx context.Context, year int, kind DetailKind, value string) (*DetailList, error)

	Months(ctx context.Context) ([]string, error)
	ComponentTrend(ctx context.Context) ([]analytics.ComponentPoint, error)
	MonthSummary(ctx context.Context, month string) (*analytics.MonthSummary, error)
	Ticket(ctx context.Context, serial, month string) (*TicketDetail, error)
}
