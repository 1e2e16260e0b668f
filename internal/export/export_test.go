package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meseboard/internal/analytics"
	"github.com/smallbiznis/meseboard/internal/dashboard/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteDetailXLSX(t *testing.T) {
	amount := decimal.NewFromInt(1250)
	list := &domain.DetailList{
		Kind:    domain.DetailCategory,
		Value:   "漏水",
		Columns: []string{"serial_number", "category", "amount"},
		Rows: []domain.DetailRow{
			{SerialNumber: "SN-1", Category: "漏水", Amount: &amount},
			{SerialNumber: "SN-2", Category: "漏水"},
		},
		Total: 2,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDetailXLSX(&buf, list))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(detailSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"三包流水号", "问题类别", "金额"}, rows[0])
	assert.Equal(t, []string{"SN-1", "漏水", "1250"}, rows[1])
	assert.Equal(t, []string{"SN-2", "漏水"}, rows[2])
}

func TestWriteDetailXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDetailXLSX(&buf, nil))
	assert.NotZero(t, buf.Len())
}

func TestColumnTitleFallsBackToKey(t *testing.T) {
	assert.Equal(t, "图号", ColumnTitle("drawing_number"))
	assert.Equal(t, "unknown", ColumnTitle("unknown"))
}

func TestFilenames(t *testing.T) {
	assert.Equal(t, "details_2025_categoryAmount.xlsx", DetailFilename(2025, domain.DetailCategoryAmount))
	assert.Equal(t, "report_2025.pdf", ReportFilename(2025))
}

func TestRenderYearReport(t *testing.T) {
	data := &domain.YearData{
		Year:         2025,
		TotalCount:   12,
		AvgCycleTime: 8.5,
		TopDept:      analytics.TopItem{Name: "North", Count: 7},
		AmountTotal:  decimal.NewFromFloat(1234.5),
		AvgAmount:    decimal.NewFromFloat(102.88),
		CloseRate:    75,
		DepartmentData: []analytics.Bucket{
			{Name: "North", Value: 7},
			{Name: "South", Value: 5},
		},
		DeptAmountTop: []analytics.AmountBucket{{Name: "North", Value: decimal.NewFromInt(900)}},
		MonthlyTrend:  []analytics.TrendPoint{{Month: "2025-01", Count: 3, AvgTime: "8.50"}},
	}

	out, err := RenderYearReport(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
