package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meseboard/internal/clock"
	"github.com/smallbiznis/meseboard/internal/config"
	dashboarddomain "github.com/smallbiznis/meseboard/internal/dashboard/domain"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
	"github.com/smallbiznis/meseboard/internal/record/repository"
	"github.com/smallbiznis/meseboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2025, 11, 20, 8, 0, 0, 0, time.UTC)

func newService(t *testing.T) dashboarddomain.Service {
	t.Helper()
	ctx := context.Background()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(recorddomain.Models()...))
	repo := repository.Provide()

	var overview []recorddomain.OverviewRecord
	for i := 0; i < 5; i++ {
		overview = append(overview, recorddomain.OverviewRecord{
			ID:            snowflake.ID(100 + i),
			SerialNumber:  fmt.Sprintf("MBY2500%d", i),
			ReportYear:    2025,
			Department:    "华东",
			MaterialName:  "主板",
			DrawingNumber: fmt.Sprintf("D-%d", i),
		})
	}
	overview = append(overview, recorddomain.OverviewRecord{ID: 200, SerialNumber: "MBY24001", ReportYear: 2024, MaterialName: "门机"})
	require.NoError(t, repo.UpsertOverview(ctx, conn, overview))

	require.NoError(t, repo.UpsertLedger(ctx, conn, []recorddomain.LedgerRecord{
		{ID: 300, SerialNumber: "MBY25000", ReportYear: 2025, Department: "华东", Category: "电气", Amount: decimal.NewFromInt(120), Status: "已结案"},
		{ID: 301, SerialNumber: "MBY25001", ReportYear: 2025, Department: "华南", Category: "机械", Amount: decimal.NewFromInt(80), Status: "处理中"},
	}))

	require.NoError(t, repo.UpsertCycleStats(ctx, conn, []recorddomain.CycleStatsRecord{
		{ID: 400, SerialNumber: "MBY25000", StatMonth: "2025-03", TotalCycleTime: 5, HQAuditTime: 1},
		{ID: 401, SerialNumber: "MBY25001", StatMonth: "2025-03", TotalCycleTime: 25},
		{ID: 402, SerialNumber: "MBY25002", StatMonth: "2025-03", TotalCycleTime: 9},
		{ID: 403, SerialNumber: "MBY25000", StatMonth: "2025-04", TotalCycleTime: 30, HQAuditTime: 3},
		{ID: 404, SerialNumber: "MBY24001", StatMonth: "2024-12", TotalCycleTime: 7},
	}))

	start := time.Date(2025, 11, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertPersonNodes(ctx, conn, []recorddomain.PersonNodeRecord{
		{ID: 500, SerialNumber: "MBY25000", Node: "提交", PersonName: "张三", StartTime: start, EndTime: start.Add(48 * time.Hour)},
		{ID: 501, SerialNumber: "MBY25000", Node: "审核", PersonName: "李四", StartTime: start.Add(48 * time.Hour), EndTime: recorddomain.SentinelTime},
	}))

	return NewService(Params{
		DB:   conn,
		Log:  zap.NewNop(),
		Repo: repo,
		Config: config.Config{Dashboard: config.DashboardConfig{
			AvailableYears: []int{2024, 2025},
			FetchPageSize:  2,
			DetailLimit:    200,
			LongCycleDays:  20,
		}},
		Clock: clock.NewFakeClock(now),
	})
}

func TestLoadPagesThroughEveryRow(t *testing.T) {
	svc := newService(t)

	ds, err := svc.Load(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(5), ds.OverviewCount)
	assert.Len(t, ds.Overview, 5)
	assert.Len(t, ds.Ledger, 2)
	assert.Len(t, ds.Cycle, 4)
}

func TestLoadRejectsInvalidYear(t *testing.T) {
	svc := newService(t)

	_, err := svc.Year(context.Background(), 1999)
	assert.ErrorIs(t, err, dashboarddomain.ErrInvalidYear)
}

func TestYearDashboard(t *testing.T) {
	svc := newService(t)

	data, err := svc.Year(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025}, data.AvailableYears)
	assert.Equal(t, int64(5), data.TotalCount)
	assert.Equal(t, "华东", data.TopDept.Name)
	assert.Equal(t, 17.25, data.AvgCycleTime)
	assert.Equal(t, "200", data.AmountTotal.String())
	assert.Equal(t, 50.0, data.CloseRate)
}

func TestEmptyYearYieldsZeros(t *testing.T) {
	svc := newService(t)

	data, err := svc.Year(context.Background(), 2026)
	require.NoError(t, err)
	assert.Zero(t, data.TotalCount)
	assert.Zero(t, data.AvgCycleTime)
	assert.Equal(t, "N/A", data.TopDept.Name)
	assert.Empty(t, data.DepartmentData)
}

func TestDetailsValidatesKind(t *testing.T) {
	svc := newService(t)

	_, err := svc.Details(context.Background(), 2025, "nope", "x")
	assert.ErrorIs(t, err, dashboarddomain.ErrUnknownDetailKind)

	list, err := svc.Details(context.Background(), 2025, dashboarddomain.DetailDepartment, "华东")
	require.NoError(t, err)
	require.Len(t, list.Rows, 1)
	assert.Equal(t, "D-0", list.Rows[0].DrawingNumber)
}

func TestMonthsNewestFirst(t *testing.T) {
	svc := newService(t)

	months, err := svc.Months(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-04", "2025-03", "2024-12"}, months)
}

func TestComponentTrend(t *testing.T) {
	svc := newService(t)

	points, err := svc.ComponentTrend(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "2024-12", points[0].Month)
	assert.Equal(t, "2025-04", points[2].Month)
	assert.Equal(t, "3.00", points[2].AvgAudit)
}

func TestMonthSummary(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	summary, err := svc.MonthSummary(ctx, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalCount)
	assert.Equal(t, 13.0, summary.AvgCycleTime)
	assert.Equal(t, 9.0, summary.MedianCycleTime)
	assert.Equal(t, 1, summary.LongCycleCount)
	assert.Equal(t, "MBY25001", summary.LongCycleList[0].SerialNumber)

	_, err = svc.MonthSummary(ctx, "2025-3")
	assert.ErrorIs(t, err, dashboarddomain.ErrInvalidMonth)
}

func TestTicketFallsBackToLatestMonth(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	detail, err := svc.Ticket(ctx, "MBY25000", "2025-01")
	require.NoError(t, err)
	require.NotNil(t, detail.Cycle)
	assert.Equal(t, "2025-04", detail.CycleMonth)
	assert.Len(t, detail.Overview, 1)

	require.Len(t, detail.Steps, 2)
	assert.Equal(t, 2.0, detail.Steps[0].Days)
	assert.False(t, detail.Steps[0].Open)
	assert.True(t, detail.Steps[1].Open)
	assert.Equal(t, 8.0, detail.Steps[1].Days)

	exact, err := svc.Ticket(ctx, "MBY25000", "2025-03")
	require.NoError(t, err)
	assert.Equal(t, "2025-03", exact.CycleMonth)
}

func TestTicketNotFound(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Ticket(ctx, "ZZZ", "")
	assert.ErrorIs(t, err, dashboarddomain.ErrTicketNotFound)

	_, err = svc.Ticket(ctx, "  ", "")
	assert.ErrorIs(t, err, dashboarddomain.ErrInvalidSerial)
}
