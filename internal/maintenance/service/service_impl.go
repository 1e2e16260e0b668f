package service

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/meseboard/internal/clock"
	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/smallbiznis/meseboard/internal/ingest/hints"
	maintenancedomain "github.com/smallbiznis/meseboard/internal/maintenance/domain"
	"github.com/smallbiznis/meseboard/internal/normalize"
	"github.com/smallbiznis/meseboard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/meseboard/internal/observability/metrics"
	"github.com/smallbiznis/meseboard/internal/observability/tracing"
	"github.com/smallbiznis/meseboard/internal/oplog"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// truncateLabels name the datasets as operators know them.
var truncateLabels = map[recorddomain.Kind]string{
	recorddomain.KindOverview:   "MESE三包概况",
	recorddomain.KindPersonNode: "人员节点日志",
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    recorddomain.Repository
	Rules   *config.IngestConfigHolder
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    recorddomain.Repository
	rules   *config.IngestConfigHolder
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

func NewService(p Params) maintenancedomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("maintenance.service"),
		repo:    p.Repo,
		rules:   p.Rules,
		clock:   clk,
		metrics: p.Metrics,
	}
}

// Truncate wipes the overview or person-node table.
func (s *Service) Truncate(ctx context.Context, req maintenancedomain.TruncateRequest, log *oplog.Log) (*maintenancedomain.Result, error) {
	ctx, span := s.start(ctx, maintenancedomain.OperationTruncate, attribute.String("mese.table", req.Table))
	defer span.End()
	log = s.oplog(ctx, log)
	result := &maintenancedomain.Result{Operation: maintenancedomain.OperationTruncate}

	kind, ok := truncatableKind(req.Table)
	if !ok {
		log.Error("不支持清空的数据表: %s", req.Table)
		return s.finish(ctx, span, result, log, maintenancedomain.ErrNotTruncatable)
	}
	result.Table = kind.Table()
	if !confirmed(req.Confirm) {
		log.Warn("操作已取消")
		return s.finish(ctx, span, result, log, maintenancedomain.ErrConfirmationRequired)
	}

	label := truncateLabels[kind]
	log.Warn("正在清空 %s 数据...", label)
	if err := s.repo.TruncateTable(ctx, s.db.WithContext(ctx), kind.Table()); err != nil {
		log.Error("清空失败: %s", err.Error())
		hints.Emit(log, s.hintRules(), hints.ScopeMaintenance, err)
		return s.finish(ctx, span, result, log, err)
	}
	log.Success("%s 数据已全部清空", label)
	return s.finish(ctx, span, result, log, nil)
}

// DeleteMonth removes the cycle statistics of one stat month. The month
// format is checked before the confirmation.
func (s *Service) DeleteMonth(ctx context.Context, req maintenancedomain.DeleteMonthRequest, log *oplog.Log) (*maintenancedomain.Result, error) {
	ctx, span := s.start(ctx, maintenancedomain.OperationDeleteMonth, attribute.String("mese.stat_month", req.Month))
	defer span.End()
	log = s.oplog(ctx, log)

	month := strings.TrimSpace(req.Month)
	result := &maintenancedomain.Result{
		Operation: maintenancedomain.OperationDeleteMonth,
		Table:     recorddomain.KindCycleStats.Table(),
		Month:     month,
	}

	if !normalize.ValidStatMonth(month) {
		log.Error("格式错误！请使用 YYYY-MM 格式，例如 2026-01")
		return s.finish(ctx, span, result, log, maintenancedomain.ErrInvalidMonth)
	}
	if !confirmed(req.Confirm) {
		log.Warn("操作已取消")
		return s.finish(ctx, span, result, log, maintenancedomain.ErrConfirmationRequired)
	}

	log.Warn("正在删除 %s 月份的周期数据...", month)
	deleted, err := s.repo.DeleteCycleStatsByMonth(ctx, s.db.WithContext(ctx), month)
	if err != nil {
		log.Error("删除失败: %s", err.Error())
		hints.Emit(log, s.hintRules(), hints.ScopeMaintenance, err)
		return s.finish(ctx, span, result, log, err)
	}
	result.Deleted = &deleted
	log.Success("删除成功！已清除 %s 月份的数据", month)
	return s.finish(ctx, span, result, log, nil)
}

// Cleanup runs the duplicate cleanup procedure and reports its counters
// unchanged.
func (s *Service) Cleanup(ctx context.Context, req maintenancedomain.CleanupRequest, log *oplog.Log) (*maintenancedomain.Result, error) {
	ctx, span := s.start(ctx, maintenancedomain.OperationCleanup)
	defer span.End()
	log = s.oplog(ctx, log)
	result := &maintenancedomain.Result{Operation: maintenancedomain.OperationCleanup}

	if !confirmed(req.Confirm) {
		log.Warn("操作已取消")
		return s.finish(ctx, span, result, log, maintenancedomain.ErrConfirmationRequired)
	}

	log.Info("开始执行数据库去重...")
	cleanup, err := s.repo.CleanupDuplicates(ctx, s.db.WithContext(ctx))
	if err != nil {
		log.Error("去重失败: %s", err.Error())
		hints.Emit(log, s.hintRules(), hints.ScopeMaintenance, err)
		return s.finish(ctx, span, result, log, err)
	}
	result.Cleanup = &cleanup
	log.Success("去重完成！清理无效数据: %d 条, 重复概况: %d 条, 重复节点: %d 条",
		cleanup.DeletedNullSN, cleanup.DeletedOverview, cleanup.DeletedNodes)
	return s.finish(ctx, span, result, log, nil)
}

func (s *Service) start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("meseboard/maintenance").Start(ctx, "maintenance."+operation)
	span.SetAttributes(tracing.SafeAttributes(attrs...)...)
	return ctx, span
}

func (s *Service) oplog(ctx context.Context, log *oplog.Log) *oplog.Log {
	if log != nil {
		return log
	}
	return oplog.New(logger.WithContext(ctx, s.log), s.clock.Now)
}

func (s *Service) finish(ctx context.Context, span trace.Span, result *maintenancedomain.Result, log *oplog.Log, err error) (*maintenancedomain.Result, error) {
	result.Logs = log.Entries()

	outcome := outcomeSuccess
	switch {
	case err == nil:
	case isRejection(err):
		outcome = outcomeRejected
	default:
		outcome = outcomeFailed
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "maintenance failed")
	}
	s.metrics.RecordMaintenance(ctx, result.Operation, outcome)

	fields := []zap.Field{zap.String("operation", result.Operation), zap.String("outcome", outcome)}
	if result.Table != "" {
		fields = append(fields, zap.String("table", result.Table))
	}
	if err != nil {
		s.log.Warn("maintenance operation not completed", append(fields, zap.Error(err))...)
	} else {
		s.log.Info("maintenance operation completed", fields...)
	}
	return result, err
}

func (s *Service) hintRules() []config.HintRule {
	if s.rules == nil {
		return nil
	}
	return s.rules.Get().Hints
}

func confirmed(token string) bool {
	return token == maintenancedomain.ConfirmToken
}

func isRejection(err error) bool {
	return errors.Is(err, maintenancedomain.ErrConfirmationRequired) ||
		errors.Is(err, maintenancedomain.ErrNotTruncatable) ||
		errors.Is(err, maintenancedomain.ErrInvalidMonth)
}

// truncatableKind accepts a logical dataset name or its table name.
func truncatableKind(raw string) (recorddomain.Kind, bool) {
	raw = strings.TrimSpace(raw)
	kind, err := recorddomain.ParseKind(raw)
	if err != nil {
		for _, k := range []recorddomain.Kind{recorddomain.KindOverview, recorddomain.KindPersonNode} {
			if raw == k.Table() {
				kind, err = k, nil
			}
		}
	}
	if err != nil || !kind.Truncatable() {
		return "", false
	}
	return kind, true
}
