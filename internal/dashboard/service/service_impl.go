package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/meseboard/internal/analytics"
	"github.com/smallbiznis/meseboard/internal/clock"
	"github.com/smallbiznis/meseboard/internal/config"
	dashboarddomain "github.com/smallbiznis/meseboard/internal/dashboard/domain"
	"github.com/smallbiznis/meseboard/internal/dashboard/view"
	"github.com/smallbiznis/meseboard/internal/normalize"
	obsmetrics "github.com/smallbiznis/meseboard/internal/observability/metrics"
	"github.com/smallbiznis/meseboard/internal/observability/tracing"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
	"github.com/smallbiznis/meseboard/pkg/db/pagination"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minYear = 2000
	maxYear = 2099

	defaultDetailLimit = 200
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    recorddomain.Repository
	Config  config.Config
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    recorddomain.Repository
	clock   clock.Clock
	metrics *obsmetrics.Metrics

	years         []int
	pageSize      int
	detailLimit   int
	longCycleDays float64
}

func NewService(p Params) dashboarddomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	detailLimit := p.Config.Dashboard.DetailLimit
	if detailLimit <= 0 {
		detailLimit = defaultDetailLimit
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("dashboard.service"),
		repo:          p.Repo,
		clock:         clk,
		metrics:       p.Metrics,
		years:         p.Config.Dashboard.AvailableYears,
		pageSize:      p.Config.Dashboard.FetchPageSize,
		detailLimit:   detailLimit,
		longCycleDays: p.Config.Dashboard.LongCycleDays,
	}
}

// Load fetches the three datasets of a year page by page, plus the exact
// overview count.
func (s *Service) Load(ctx context.Context, year int) (_ *dashboarddomain.Dataset, err error) {
	if year < minYear || year > maxYear {
		return nil, dashboarddomain.ErrInvalidYear
	}

	ctx, span := otel.Tracer("meseboard/dashboard").Start(ctx, "dashboard.load")
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(attribute.Int("dashboard.year", year))...)
	defer func() {
		if err != nil {
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, "load failed")
		}
	}()

	conn := s.db.WithContext(ctx)
	ds := &dashboarddomain.Dataset{Year: year}

	if ds.OverviewCount, err = s.repo.CountOverviewByYear(ctx, conn, year); err != nil {
		return nil, err
	}
	ds.Overview, err = pagination.FetchAll(ctx, s.pageSize, func(ctx context.Context, offset, limit int) ([]recorddomain.OverviewRecord, error) {
		return s.repo.ListOverviewByYear(ctx, conn, year, offset, limit)
	})
	if err != nil {
		return nil, err
	}
	ds.Ledger, err = pagination.FetchAll(ctx, s.pageSize, func(ctx context.Context, offset, limit int) ([]recorddomain.LedgerRecord, error) {
		return s.repo.ListLedgerByYear(ctx, conn, year, offset, limit)
	})
	if err != nil {
		return nil, err
	}
	ds.Cycle, err = pagination.FetchAll(ctx, s.pageSize, func(ctx context.Context, offset, limit int) ([]recorddomain.CycleStatsRecord, error) {
		return s.repo.ListCycleStatsByYear(ctx, conn, year, offset, limit)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDashboardLoad(ctx, year)
	s.log.Debug("year dataset loaded",
		zap.Int("year", year),
		zap.Int64("overview_count", ds.OverviewCount),
		zap.Int("overview_rows", len(ds.Overview)),
		zap.Int("ledger_rows", len(ds.Ledger)),
		zap.Int("cycle_rows", len(ds.Cycle)),
	)
	return ds, nil
}

func (s *Service) Year(ctx context.Context, year int) (*dashboarddomain.YearData, error) {
	ds, err := s.Load(ctx, year)
	if err != nil {
		return nil, err
	}
	data := view.Year(ds)
	data.AvailableYears = s.years
	return data, nil
}

func (s *Service) FilterOptions(ctx context.Context, year int) (*dashboarddomain.FilterOptions, error) {
	ds, err := s.Load(ctx, year)
	if err != nil {
		return nil, err
	}
	return view.FilterOptions(ds), nil
}

func (s *Service) Trend(ctx context.Context, year int, filters dashboarddomain.Filters) (*dashboarddomain.TrendView, error) {
	ds, err := s.Load(ctx, year)
	if err != nil {
		return nil, err
	}
	return view.Trend(ds, filters), nil
}

func (s *Service) Amount(ctx context.Context, year int, filters dashboarddomain.Filters) (*dashboarddomain.AmountView, error) {
	ds, err := s.Load(ctx, year)
	if err != nil {
		return nil, err
	}
	return view.Amount(ds, filters), nil
}

func (s *Service) Faults(ctx context.Context, year int, filters dashboarddomain.Filters) (*dashboarddomain.FaultView, error) {
	ds, err := s.Load(ctx, year)
	if err != nil {
		return nil, err
	}
	return view.Faults(ds, filters), nil
}

func (s *Service) Departments(ctx context.Context, year int, filters dashboarddomain.Filters) (*dashboarddomain.DepartmentView, error) {
	ds, err := s.Load(ctx, year)
	if err != nil {
		return nil, err
	}
	return view.Departments(ds, filters), nil
}

func (s *Service) Customers(ctx context.Context, year int, filters dashboarddomain.Filters) (*dashboarddomain.CustomerView, error) {
	ds, err := s.Load(ctx, year)
	if err != nil {
		return nil, err
	}
	return view.Customers(ds, filters), nil
}

func (s *Service) Shares(ctx context.Context, year int) (*dashboarddomain.ShareView, error) {
	ds, err := s.Load(ctx, year)
	if err != nil {
		return nil, err
	}
	return view.Shares(ds), nil
}

func (s *Service) Details(ctx context.Context, year int, kind dashboarddomain.DetailKind, value string) (*dashboarddomain.DetailList, error) {
	if _, err := dashboarddomain.ParseDetailKind(string(kind)); err != nil {
		return nil, err
	}
	ds, err := s.Load(ctx, year)
	if err != nil {
		return nil, err
	}
	return view.Details(ds, kind, value, s.detailLimit)
}

// Months lists the stat months that have cycle data, newest first.
func (s *Service) Months(ctx context.Context) ([]string, error) {
	months, err := s.repo.DistinctStatMonths(ctx, s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if months == nil {
		months = []string{}
	}
	return months, nil
}

func (s *Service) ComponentTrend(ctx context.Context) ([]analytics.ComponentPoint, error) {
	conn := s.db.WithContext(ctx)
	rows, err := pagination.FetchAll(ctx, s.pageSize, func(ctx context.Context, offset, limit int) ([]recorddomain.CycleStatsRecord, error) {
		return s.repo.ListCycleStats(ctx, conn, offset, limit)
	})
	if err != nil {
		return nil, err
	}
	return analytics.ComponentTrend(rows), nil
}

func (s *Service) MonthSummary(ctx context.Context, month string) (*analytics.MonthSummary, error) {
	if !normalize.ValidStatMonth(month) {
		return nil, dashboarddomain.ErrInvalidMonth
	}
	conn := s.db.WithContext(ctx)
	rows, err := pagination.FetchAll(ctx, s.pageSize, func(ctx context.Context, offset, limit int) ([]recorddomain.CycleStatsRecord, error) {
		return s.repo.ListCycleStatsByMonth(ctx, conn, month, offset, limit)
	})
	if err != nil {
		return nil, err
	}
	summary := analytics.SummarizeMonth(month, rows, s.longCycleDays)
	return &summary, nil
}

// Ticket gathers the overview rows and node log matching a serial prefix, and
// the cycle record of month. When month has no record for the serial the
// latest month is used instead.
func (s *Service) Ticket(ctx context.Context, serial, month string) (*dashboarddomain.TicketDetail, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, dashboarddomain.ErrInvalidSerial
	}
	if month != "" && !normalize.ValidStatMonth(month) {
		return nil, dashboarddomain.ErrInvalidMonth
	}

	conn := s.db.WithContext(ctx)
	overview, err := s.repo.FindOverviewBySerialPrefix(ctx, conn, serial)
	if err != nil {
		return nil, err
	}
	nodes, err := s.repo.FindPersonNodesBySerialPrefix(ctx, conn, serial)
	if err != nil {
		return nil, err
	}

	var cycle *recorddomain.CycleStatsRecord
	if month != "" {
		if cycle, err = s.repo.FindCycleStats(ctx, conn, serial, month); err != nil {
			return nil, err
		}
	}
	if cycle == nil {
		if cycle, err = s.repo.FindLatestCycleStats(ctx, conn, serial); err != nil {
			return nil, err
		}
	}

	if len(overview) == 0 && len(nodes) == 0 && cycle == nil {
		return nil, dashboarddomain.ErrTicketNotFound
	}

	detail := &dashboarddomain.TicketDetail{
		Serial:   serial,
		Month:    month,
		Overview: overview,
		Steps:    analytics.StepDurations(nodes, s.clock.Now()),
		Cycle:    cycle,
		Stages:   analytics.Stages(cycle),
	}
	if detail.Overview == nil {
		detail.Overview = []recorddomain.OverviewRecord{}
	}
	if cycle != nil {
		detail.CycleMonth = cycle.StatMonth
	}
	return detail, nil
}
