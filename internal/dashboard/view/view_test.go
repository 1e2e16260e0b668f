package view

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meseboard/internal/analytics"
	"github.com/smallbiznis/meseboard/internal/dashboard/domain"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func dataset() *domain.Dataset {
	return &domain.Dataset{
		Year:          2025,
		OverviewCount: 4,
		Overview: []recorddomain.OverviewRecord{
			{SerialNumber: "MBY25001", Department: "华东", CustomerName: "甲", MaterialName: "主板", DrawingNumber: "D-1", WarrantyType: "整机", FaultDescription: "门机异响"},
			{SerialNumber: "MBY25001", Department: "华东", CustomerName: "甲", MaterialName: "门机", DrawingNumber: "D-2", WarrantyType: "整机", FaultDescription: "门机异响"},
			{SerialNumber: "MBY25002", Department: "华南", CustomerName: "乙", MaterialName: "主板", DrawingNumber: "D-3", WarrantyType: "部件"},
			{SerialNumber: "MBY25003", CustomerName: "乙", MaterialName: "", DrawingNumber: "D-4"},
		},
		Ledger: []recorddomain.LedgerRecord{
			{SerialNumber: "MBY25001", Department: "华东", CustomerName: "甲", MaterialName: "门机", Category: "电气", Amount: decimal.RequireFromString("100.40"), Status: "已结案", ApplyDate: date(2025, 1, 5)},
			{SerialNumber: "MBY25002", Department: "华南", CustomerName: "乙", Category: "电气", Amount: decimal.RequireFromString("50.60"), Status: "处理中", ApplyDate: date(2025, 2, 5)},
			{SerialNumber: "MBY25009", Department: "华南", CustomerName: "丙", Category: "", Amount: decimal.RequireFromString("10"), Status: "结"},
		},
		Cycle: []recorddomain.CycleStatsRecord{
			{SerialNumber: "MBY25001", StatMonth: "2025-01", TotalCycleTime: 2, Department: "华东", CustomerName: "甲", MaterialType: "A基板"},
			{SerialNumber: "MBY25002", StatMonth: "2025-01", TotalCycleTime: 4, Department: "华南", CustomerName: "乙", MaterialType: "B基板"},
			{SerialNumber: "MBY25003", StatMonth: "2025-03", TotalCycleTime: 10, Department: "华东", CustomerName: "乙", MaterialType: "A基板"},
		},
	}
}

func TestYear(t *testing.T) {
	data := Year(dataset())

	assert.Equal(t, int64(4), data.TotalCount)
	assert.Equal(t, analytics.TopItem{Name: "华东", Count: 2}, data.TopDept)
	assert.Equal(t, 5.33, data.AvgCycleTime)
	assert.Equal(t, []analytics.TrendPoint{
		{Month: "2025-01", Count: 2, AvgTime: "3.00"},
		{Month: "2025-03", Count: 1, AvgTime: "10.00"},
	}, data.MonthlyTrend)
	assert.Equal(t, 4, analytics.Total(data.DepartmentData))
	assert.Equal(t, analytics.Unknown, data.DepartmentData[2].Name)
	assert.Equal(t, "161", data.AmountTotal.String())
	assert.Equal(t, 66.7, data.CloseRate)
	require.Len(t, data.CategoryAmountData, 2)
	assert.Equal(t, "电气", data.CategoryAmountData[0].Name)
	assert.Equal(t, analytics.Unknown, data.CategoryAmountData[1].Name)
	assert.Len(t, data.MonthlyAmountTrend, 2)
}

func TestTrendFilters(t *testing.T) {
	ds := dataset()

	all := Trend(ds, domain.Filters{Department: analytics.All})
	assert.Equal(t, 3, all.Count)

	east := Trend(ds, domain.Filters{Department: "华东", MaterialType: "A基板"})
	assert.Equal(t, 2, east.Count)
	assert.Equal(t, 6.0, east.AvgCycleTime)
}

func TestAmountAndCustomers(t *testing.T) {
	ds := dataset()

	south := Amount(ds, domain.Filters{Department: "华南"})
	assert.Equal(t, 2, south.Totals.Count)
	assert.Equal(t, "60.6", south.Totals.Amount.String())

	customers := Customers(ds, domain.Filters{Category: "电气"})
	assert.Equal(t, 2, customers.Count)
	require.Len(t, customers.Customers, 2)
	assert.Equal(t, "甲", customers.Customers[0].Name)
}

func TestDepartmentsAndFaults(t *testing.T) {
	ds := dataset()

	depts := Departments(ds, domain.Filters{Customer: "乙"})
	assert.Equal(t, 2, depts.Count)

	faults := Faults(ds, domain.Filters{Customer: "甲"})
	require.Len(t, faults.Groups, 1)
	assert.Equal(t, 2, faults.Groups[0].Count)
}

func TestFilterOptionsStartWithAll(t *testing.T) {
	opts := FilterOptions(dataset())

	assert.Equal(t, []string{analytics.All, "A基板", "B基板"}, opts.Trend[domain.FilterMaterialType])
	assert.Equal(t, []string{analytics.All, "电气"}, opts.Customers[domain.FilterCategory])
	assert.Equal(t, []string{analytics.All, "华东", "华南"}, opts.Faults[domain.FilterDepartment])
}

func TestShares(t *testing.T) {
	shares := Shares(dataset())

	require.Len(t, shares.Category, 2)
	assert.Equal(t, 67, shares.Category[0].Percent)
	assert.Equal(t, 33, shares.Category[1].Percent)
}

func TestDetailsLedgerJoinsDrawing(t *testing.T) {
	list, err := Details(dataset(), domain.DetailCategory, "电气", 200)
	require.NoError(t, err)

	assert.Equal(t, domain.LedgerDetailColumns, list.Columns)
	require.Len(t, list.Rows, 2)
	assert.Equal(t, "D-2", list.Rows[0].DrawingNumber)
	assert.Equal(t, "2025-01-05", list.Rows[0].ApplyDate)
	assert.Equal(t, "100", list.Rows[0].Value("amount"))
	assert.Equal(t, "D-3", list.Rows[1].DrawingNumber)
	assert.False(t, list.Truncated)
}

func TestDetailsUnknownLabelAndLimit(t *testing.T) {
	ds := dataset()

	list, err := Details(ds, domain.DetailMaterial, analytics.Unknown, 200)
	require.NoError(t, err)
	require.Len(t, list.Rows, 1)
	assert.Equal(t, "MBY25003", list.Rows[0].SerialNumber)

	capped, err := Details(ds, domain.DetailMaterial, "主板", 1)
	require.NoError(t, err)
	assert.Len(t, capped.Rows, 1)
	assert.Equal(t, 2, capped.Total)
	assert.True(t, capped.Truncated)

	_, err = Details(ds, "bogus", "x", 10)
	assert.ErrorIs(t, err, domain.ErrUnknownDetailKind)
}
