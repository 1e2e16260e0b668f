// Package view turns a loaded year dataset into dashboard payloads. Every
// function here is pure so the HTTP handlers and the view sessions share it.
package view

import (
	"strings"

	"github.com/smallbiznis/meseboard/internal/analytics"
	"github.com/smallbiznis/meseboard/internal/dashboard/domain"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
)

const (
	topTen = 10
)

// Year builds the year dashboard.
func Year(ds *domain.Dataset) *domain.YearData {
	departments := analytics.CountBy(ds.Overview, analytics.OverviewDepartment)
	ledger := analytics.SummarizeLedger(ds.Ledger)

	return &domain.YearData{
		Year:             ds.Year,
		TotalCount:       ds.OverviewCount,
		AvgCycleTime:     analytics.AverageCycleTime(ds.Cycle),
		TopDept:          analytics.Leader(departments),
		WarrantyTypeData: analytics.CountBy(ds.Overview, analytics.OverviewWarrantyType),
		MonthlyTrend:     analytics.MonthlyTrend(ds.Cycle),
		DepartmentData:   analytics.TopN(departments, topTen),
		TopMaterials:     analytics.TopN(analytics.CountBy(ds.Overview, analytics.OverviewMaterial), topTen),
		TopFaults:        analytics.TopN(analytics.CountBy(ds.Overview, analytics.OverviewFault), topTen),

		AmountTotal:        ledger.Amount,
		AvgAmount:          ledger.AvgAmount,
		CloseRate:          ledger.CloseRate,
		MonthlyAmountTrend: analytics.MonthlyAmount(ds.Ledger),
		ResolutionData:     analytics.CountBy(ds.Ledger, analytics.LedgerResolution),
		CategoryData:       analytics.CountBy(ds.Ledger, analytics.LedgerCategory),
		CategoryAmountData: analytics.SumBy(ds.Ledger, analytics.LedgerCategory, analytics.LedgerAmount),
		DeptAmountTop:      analytics.TopN(analytics.SumBy(ds.Ledger, analytics.LedgerDepartment, analytics.LedgerAmount), topTen),
		CustomerAmountTop:  analytics.TopN(analytics.SumBy(ds.Ledger, analytics.LedgerCustomer, analytics.LedgerAmount), topTen),
	}
}

func FilterOptions(ds *domain.Dataset) *domain.FilterOptions {
	return &domain.FilterOptions{
		Trend: map[string][]string{
			domain.FilterDepartment:   analytics.Options(analytics.Distinct(ds.Cycle, analytics.CycleDepartment)),
			domain.FilterCustomer:     analytics.Options(analytics.Distinct(ds.Cycle, analytics.CycleCustomer)),
			domain.FilterMaterialType: analytics.Options(analytics.Distinct(ds.Cycle, analytics.CycleMaterialType)),
		},
		Amount: map[string][]string{
			domain.FilterDepartment: analytics.Options(analytics.Distinct(ds.Ledger, analytics.LedgerDepartment)),
			domain.FilterCustomer:   analytics.Options(analytics.Distinct(ds.Ledger, analytics.LedgerCustomer)),
		},
		Faults: map[string][]string{
			domain.FilterDepartment: analytics.Options(analytics.Distinct(ds.Overview, analytics.OverviewDepartment)),
			domain.FilterCustomer:   analytics.Options(analytics.Distinct(ds.Overview, analytics.OverviewCustomer)),
		},
		Departments: map[string][]string{
			domain.FilterCustomer:     analytics.Options(analytics.Distinct(ds.Overview, analytics.OverviewCustomer)),
			domain.FilterWarrantyType: analytics.Options(analytics.Distinct(ds.Overview, analytics.OverviewWarrantyType)),
		},
		Customers: map[string][]string{
			domain.FilterDepartment: analytics.Options(analytics.Distinct(ds.Ledger, analytics.LedgerDepartment)),
			domain.FilterCategory:   analytics.Options(analytics.Distinct(ds.Ledger, analytics.LedgerCategory)),
		},
	}
}

// Trend is the cycle-time modal, filtered by department, customer and
// material type.
func Trend(ds *domain.Dataset, f domain.Filters) *domain.TrendView {
	rows := analytics.Filter(ds.Cycle, func(r recorddomain.CycleStatsRecord) bool {
		return analytics.Matches(f.Department, r.Department) &&
			analytics.Matches(f.Customer, r.CustomerName) &&
			analytics.Matches(f.MaterialType, r.MaterialType)
	})
	return &domain.TrendView{
		Count:          len(rows),
		AvgCycleTime:   analytics.AverageCycleTime(rows),
		MonthlyTrend:   analytics.MonthlyTrend(rows),
		DepartmentData: analytics.CountBy(rows, analytics.CycleDepartment),
	}
}

func Amount(ds *domain.Dataset, f domain.Filters) *domain.AmountView {
	rows := filterLedger(ds.Ledger, f.Department, f.Customer, "")
	return &domain.AmountView{
		Totals:            analytics.SummarizeLedger(rows),
		MonthlyAmount:     analytics.MonthlyAmount(rows),
		DeptAmountTop:     analytics.TopN(analytics.SumBy(rows, analytics.LedgerDepartment, analytics.LedgerAmount), topTen),
		CustomerAmountTop: analytics.TopN(analytics.SumBy(rows, analytics.LedgerCustomer, analytics.LedgerAmount), topTen),
	}
}

func Faults(ds *domain.Dataset, f domain.Filters) *domain.FaultView {
	rows := analytics.Filter(ds.Overview, func(r recorddomain.OverviewRecord) bool {
		return analytics.Matches(f.Department, r.Department) && analytics.Matches(f.Customer, r.CustomerName)
	})
	return &domain.FaultView{Count: len(rows), Groups: analytics.FaultBreakdown(rows)}
}

// Departments ranks every department, narrowed by customer and warranty type.
func Departments(ds *domain.Dataset, f domain.Filters) *domain.DepartmentView {
	rows := analytics.Filter(ds.Overview, func(r recorddomain.OverviewRecord) bool {
		return analytics.Matches(f.Customer, r.CustomerName) && analytics.Matches(f.WarrantyType, r.WarrantyType)
	})
	return &domain.DepartmentView{
		Count:       len(rows),
		Departments: analytics.CountBy(rows, analytics.OverviewDepartment),
	}
}

// Customers ranks customers by ledger amount, narrowed by department and
// category.
func Customers(ds *domain.Dataset, f domain.Filters) *domain.CustomerView {
	rows := filterLedger(ds.Ledger, f.Department, "", f.Category)
	return &domain.CustomerView{
		Count:     len(rows),
		Customers: analytics.SumBy(rows, analytics.LedgerCustomer, analytics.LedgerAmount),
	}
}

func Shares(ds *domain.Dataset) *domain.ShareView {
	return &domain.ShareView{
		WarrantyType:   analytics.Shares(analytics.CountBy(ds.Overview, analytics.OverviewWarrantyType)),
		Category:       analytics.Shares(analytics.CountBy(ds.Ledger, analytics.LedgerCategory)),
		CategoryAmount: analytics.AmountShares(analytics.SumBy(ds.Ledger, analytics.LedgerCategory, analytics.LedgerAmount)),
	}
}

func filterLedger(rows []recorddomain.LedgerRecord, department, customer, category string) []recorddomain.LedgerRecord {
	return analytics.Filter(rows, func(r recorddomain.LedgerRecord) bool {
		return analytics.Matches(department, r.Department) &&
			analytics.Matches(customer, r.CustomerName) &&
			analytics.Matches(category, r.Category)
	})
}

// Details lists the rows behind a chart segment. value is compared against
// the displayed label, so "未知" selects rows with a blank field.
func Details(ds *domain.Dataset, kind domain.DetailKind, value string, limit int) (*domain.DetailList, error) {
	if _, err := domain.ParseDetailKind(string(kind)); err != nil {
		return nil, err
	}
	list := &domain.DetailList{Kind: kind, Value: value, Rows: []domain.DetailRow{}}

	if kind.FromLedger() {
		list.Columns = domain.LedgerDetailColumns
		field := analytics.LedgerCategory
		if kind == domain.DetailDepartment {
			field = analytics.LedgerDepartment
		}
		drawing := drawingLookup(ds.Overview)
		for _, r := range ds.Ledger {
			if analytics.Label(field(r), analytics.Unknown) != value {
				continue
			}
			list.Total++
			if limit > 0 && len(list.Rows) >= limit {
				continue
			}
			list.Rows = append(list.Rows, ledgerRow(r, drawing(r.SerialNumber, r.MaterialName)))
		}
	} else {
		list.Columns = domain.OverviewDetailColumns
		field := analytics.OverviewMaterial
		if kind == domain.DetailWarrantyType {
			field = analytics.OverviewWarrantyType
		}
		for _, r := range ds.Overview {
			if analytics.Label(field(r), analytics.Unknown) != value {
				continue
			}
			list.Total++
			if limit > 0 && len(list.Rows) >= limit {
				continue
			}
			list.Rows = append(list.Rows, domain.DetailRow{
				SerialNumber:  r.SerialNumber,
				MaterialName:  r.MaterialName,
				DrawingNumber: r.DrawingNumber,
				CustomerName:  r.CustomerName,
				Department:    r.Department,
				WarrantyType:  r.WarrantyType,
			})
		}
	}

	list.Truncated = list.Total > len(list.Rows)
	return list, nil
}

func ledgerRow(r recorddomain.LedgerRecord, drawing string) domain.DetailRow {
	amount := r.Amount.Round(0)
	row := domain.DetailRow{
		SerialNumber:  r.SerialNumber,
		MaterialName:  r.MaterialName,
		DrawingNumber: drawing,
		CustomerName:  r.CustomerName,
		Department:    r.Department,
		Category:      r.Category,
		Amount:        &amount,
		Status:        r.Status,
		Resolution:    r.Resolution,
		Cause:         r.Cause,
	}
	if r.ApplyDate != nil {
		row.ApplyDate = r.ApplyDate.UTC().Format("2006-01-02")
	}
	return row
}

// drawingLookup matches a ledger row to an overview row of the same year by
// serial, and by material name when the ledger row has one.
func drawingLookup(rows []recorddomain.OverviewRecord) func(serial, material string) string {
	bySerial := map[string][]recorddomain.OverviewRecord{}
	for _, r := range rows {
		bySerial[r.SerialNumber] = append(bySerial[r.SerialNumber], r)
	}
	return func(serial, material string) string {
		material = strings.TrimSpace(material)
		for _, c := range bySerial[serial] {
			if material == "" || c.MaterialName == material {
				return c.DrawingNumber
			}
		}
		return ""
	}
}
