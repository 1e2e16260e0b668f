package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meseboard/internal/analytics"
	"github.com/smallbiznis/meseboard/internal/clock"
	"github.com/smallbiznis/meseboard/internal/config"
	dashboarddomain "github.com/smallbiznis/meseboard/internal/dashboard/domain"
	"github.com/smallbiznis/meseboard/internal/dashboard/viewstate"
	ingestdomain "github.com/smallbiznis/meseboard/internal/ingest/domain"
	maintenancedomain "github.com/smallbiznis/meseboard/internal/maintenance/domain"
	"github.com/smallbiznis/meseboard/internal/observability"
	"github.com/smallbiznis/meseboard/internal/oplog"
	"github.com/smallbiznis/meseboard/internal/ratelimit"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type fakeDashboardService struct {
	lastFilters dashboarddomain.Filters
	lastKind    dashboarddomain.DetailKind
	lastValue   string
	lastMonth   string
	loads       []int
}

func (f *fakeDashboardService) Load(ctx context.Context, year int) (*dashboarddomain.Dataset, error) {
	if year < 2000 || year > 2099 {
		return nil, dashboarddomain.ErrInvalidYear
	}
	f.loads = append(f.loads, year)
	return &dashboarddomain.Dataset{Year: year}, nil
}

func (f *fakeDashboardService) Year(ctx context.Context, year int) (*dashboarddomain.YearData, error) {
	if year < 2000 || year > 2099 {
		return nil, dashboarddomain.ErrInvalidYear
	}
	return &dashboarddomain.YearData{
		Year:           year,
		AvailableYears: []int{2024, 2025},
		TotalCount:     3,
		AmountTotal:    decimal.NewFromInt(300),
		DepartmentData: []analytics.Bucket{{Name: "North", Value: 3}},
	}, nil
}

func (f *fakeDashboardService) FilterOptions(ctx context.Context, year int) (*dashboarddomain.FilterOptions, error) {
	return &dashboarddomain.FilterOptions{Trend: map[string][]string{"department": {"全部", "North"}}}, nil
}

func (f *fakeDashboardService) Trend(ctx context.Context, year int, filters dashboarddomain.Filters) (*dashboarddomain.TrendView, error) {
	f.lastFilters = filters
	return &dashboarddomain.TrendView{Count: 2}, nil
}

func (f *fakeDashboardService) Amount(ctx context.Context, year int, filters dashboarddomain.Filters) (*dashboarddomain.AmountView, error) {
	f.lastFilters = filters
	return &dashboarddomain.AmountView{}, nil
}

func (f *fakeDashboardService) Faults(ctx context.Context, year int, filters dashboarddomain.Filters) (*dashboarddomain.FaultView, error) {
	f.lastFilters = filters
	return &dashboarddomain.FaultView{}, nil
}

func (f *fakeDashboardService) Departments(ctx context.Context, year int, filters dashboarddomain.Filters) (*dashboarddomain.DepartmentView, error) {
	f.lastFilters = filters
	return &dashboarddomain.DepartmentView{}, nil
}

func (f *fakeDashboardService) Customers(ctx context.Context, year int, filters dashboarddomain.Filters) (*dashboarddomain.CustomerView, error) {
	f.lastFilters = filters
	return &dashboarddomain.CustomerView{Count: 1}, nil
}

func (f *fakeDashboardService) Shares(ctx context.Context, year int) (*dashboarddomain.ShareView, error) {
	return &dashboarddomain.ShareView{}, nil
}

func (f *fakeDashboardService) Details(ctx context.Context, year int, kind dashboarddomain.DetailKind, value string) (*dashboarddomain.DetailList, error) {
	f.lastKind = kind
	f.lastValue = value
	return &dashboarddomain.DetailList{
		Kind:    kind,
		Value:   value,
		Columns: dashboarddomain.OverviewDetailColumns,
		Rows:    []dashboarddomain.DetailRow{{SerialNumber: "MBY25001", MaterialName: "电机"}},
		Total:   1,
	}, nil
}

func (f *fakeDashboardService) Months(ctx context.Context) ([]string, error) {
	return []string{"2025-02", "2025-01"}, nil
}

func (f *fakeDashboardService) ComponentTrend(ctx context.Context) ([]analytics.ComponentPoint, error) {
	return []analytics.ComponentPoint{}, nil
}

func (f *fakeDashboardService) MonthSummary(ctx context.Context, month string) (*analytics.MonthSummary, error) {
	f.lastMonth = month
	if month != "2025-01" {
		return nil, dashboarddomain.ErrInvalidMonth
	}
	return &analytics.MonthSummary{}, nil
}

func (f *fakeDashboardService) Ticket(ctx context.Context, serial, month string) (*dashboarddomain.TicketDetail, error) {
	if serial != "MBY25001" {
		return nil, dashboarddomain.ErrTicketNotFound
	}
	return &dashboarddomain.TicketDetail{Serial: serial, Month: month}, nil
}

type fakeIngestService struct {
	req ingestdomain.UploadRequest
	err error
}

func (f *fakeIngestService) Upload(ctx context.Context, req ingestdomain.UploadRequest, log *oplog.Log) (*ingestdomain.UploadResult, error) {
	f.req = req
	log.Info("开始处理文件: %s (%s)", req.Filename, req.Kind)
	if f.err != nil {
		log.Error("%s", f.err.Error())
	} else {
		log.Success("%s 处理完成！", req.Filename)
	}
	return &ingestdomain.UploadResult{Kind: req.Kind, Filename: req.Filename, Logs: log.Entries()}, f.err
}

type fakeMaintenanceService struct {
	err error
}

func (f *fakeMaintenanceService) result(op string, log *oplog.Log, err error) (*maintenancedomain.Result, error) {
	if err == nil {
		err = f.err
	}
	if err != nil {
		log.Error("%s", err.Error())
	} else {
		log.Success("ok")
	}
	return &maintenancedomain.Result{Operation: op, Logs: log.Entries()}, err
}

func (f *fakeMaintenanceService) Truncate(ctx context.Context, req maintenancedomain.TruncateRequest, log *oplog.Log) (*maintenancedomain.Result, error) {
	if req.Confirm != maintenancedomain.ConfirmToken {
		return f.result(maintenancedomain.OperationTruncate, log, maintenancedomain.ErrConfirmationRequired)
	}
	return f.result(maintenancedomain.OperationTruncate, log, nil)
}

func (f *fakeMaintenanceService) DeleteMonth(ctx context.Context, req maintenancedomain.DeleteMonthRequest, log *oplog.Log) (*maintenancedomain.Result, error) {
	if req.Month != "2025-01" {
		return f.result(maintenancedomain.OperationDeleteMonth, log, maintenancedomain.ErrInvalidMonth)
	}
	return f.result(maintenancedomain.OperationDeleteMonth, log, nil)
}

func (f *fakeMaintenanceService) Cleanup(ctx context.Context, req maintenancedomain.CleanupRequest, log *oplog.Log) (*maintenancedomain.Result, error) {
	return f.result(maintenancedomain.OperationCleanup, log, nil)
}

type fakeLimiter struct {
	res *ratelimit.Result
	err error
}

func (f *fakeLimiter) Enabled() bool { return true }

func (f *fakeLimiter) Allow(ctx context.Context, client string) (*ratelimit.Result, error) {
	return f.res, f.err
}

type testServer struct {
	*Server
	dashboard   *fakeDashboardService
	ingest      *fakeIngestService
	maintenance *fakeMaintenanceService
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)

	dash := &fakeDashboardService{}
	ing := &fakeIngestService{}
	maint := &fakeMaintenanceService{}
	cfg := config.Config{Timezone: "UTC", Upload: config.UploadConfig{MaxBytes: 1 << 20}}

	srv := NewServer(ServerParams{
		Gin:            NewEngine(observability.Config{}, nil),
		Cfg:            cfg,
		Clock:          clock.NewFakeClock(testNow),
		Log:            zap.NewNop(),
		IngestSvc:      ing,
		DashboardSvc:   dash,
		MaintenanceSvc: maint,
		Views:          viewstate.NewStore(dash, time.Minute, 200, zap.NewNop()),
	})
	return &testServer{Server: srv, dashboard: dash, ingest: ing, maintenance: maint}
}
