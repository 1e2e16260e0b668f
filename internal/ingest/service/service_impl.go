package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/meseboard/internal/archive"
	"github.com/smallbiznis/meseboard/internal/clock"
	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/smallbiznis/meseboard/internal/csvfile"
	"github.com/smallbiznis/meseboard/internal/ingest/batcher"
	ingestdomain "github.com/smallbiznis/meseboard/internal/ingest/domain"
	"github.com/smallbiznis/meseboard/internal/ingest/hints"
	"github.com/smallbiznis/meseboard/internal/normalize"
	obscontext "github.com/smallbiznis/meseboard/internal/observability/context"
	"github.com/smallbiznis/meseboard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/meseboard/internal/observability/metrics"
	"github.com/smallbiznis/meseboard/internal/observability/tracing"
	"github.com/smallbiznis/meseboard/internal/oplog"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	outcomeSuccess    = "success"
	outcomeInputError = "input_error"
	outcomeWriteError = "write_error"

	archiveContentType = "text/csv"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          recorddomain.Repository
	Normalizer    *normalize.Normalizer
	Rules         *config.IngestConfigHolder
	Config        config.Config
	Clock         clock.Clock
	Archive       archive.Store             `optional:"true"`
	Metrics       *obsmetrics.Metrics       `optional:"true"`
	IngestMetrics *obsmetrics.IngestMetrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID         *snowflake.Node
	repo          recorddomain.Repository
	normalizer    *normalize.Normalizer
	rules         *config.IngestConfigHolder
	clock         clock.Clock
	archive       archive.Store
	batchSize     int
	maxBytes      int64
	metrics       *obsmetrics.Metrics
	ingestMetrics *obsmetrics.IngestMetrics
}

func NewService(p Params) ingestdomain.Service {
	store := p.Archive
	if store == nil {
		store = archive.Disabled()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("ingest.service"),

		genID:         p.GenID,
		repo:          p.Repo,
		normalizer:    p.Normalizer,
		rules:         p.Rules,
		clock:         clk,
		archive:       store,
		batchSize:     p.Config.Upload.BatchSize,
		maxBytes:      p.Config.Upload.MaxBytes,
		metrics:       p.Metrics,
		ingestMetrics: p.IngestMetrics,
	}
}

// run tracks the state of one upload.
type run struct {
	kind    recorddomain.Kind
	log     *oplog.Log
	zap     *zap.Logger
	result  *ingestdomain.UploadResult
	started time.Time
}

func (s *Service) Upload(ctx context.Context, req ingestdomain.UploadRequest, log *oplog.Log) (*ingestdomain.UploadResult, error) {
	uploadID := ulid.Make().String()
	ctx = obscontext.WithUploadID(ctx, uploadID)

	ctx, span := otel.Tracer("meseboard/ingest").Start(ctx, "ingest.upload")
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("mese.kind", string(req.Kind)),
		attribute.String("mese.upload_id", uploadID),
		attribute.Int("mese.bytes", len(req.Content)),
	)...)

	zlog := logger.WithUpload(logger.WithContext(ctx, s.log), uploadID, string(req.Kind))
	if log == nil {
		log = oplog.New(zlog, s.clock.Now)
	}

	r := &run{
		kind:    req.Kind,
		log:     log,
		zap:     zlog,
		started: time.Now(),
		result: &ingestdomain.UploadResult{
			UploadID: uploadID,
			Kind:     req.Kind,
			Filename: req.Filename,
		},
	}

	err := s.upload(ctx, req, r)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "upload failed")
	}
	return s.finish(ctx, r, err)
}

func (s *Service) upload(ctx context.Context, req ingestdomain.UploadRequest, r *run) error {
	log := r.log
	log.Info("开始处理文件: %s (%s)", req.Filename, req.Kind)

	if req.Kind.Table() == "" {
		log.Error("未知的数据类型: %s", req.Kind)
		return &ingestdomain.InputError{Err: recorddomain.ErrUnknownKind}
	}
	if len(req.Content) == 0 {
		log.Error("CSV 解析失败: 文件为空")
		return &ingestdomain.InputError{Err: ingestdomain.ErrEmptyUpload}
	}
	if s.maxBytes > 0 && int64(len(req.Content)) > s.maxBytes {
		log.Error("文件过大: %d 字节 (上限 %d 字节)", len(req.Content), s.maxBytes)
		return &ingestdomain.InputError{Err: ingestdomain.ErrFileTooLarge}
	}

	var statMonth string
	if req.Kind == recorddomain.KindCycleStats {
		month, err := s.normalizer.StatMonthFor(req.StatMonth, req.Filename)
		if err != nil {
			log.Error("月份格式无效: %s (应为 YYYY-MM)", req.StatMonth)
			return &ingestdomain.InputError{Err: err}
		}
		statMonth = month
	}

	s.archiveFile(ctx, req, r)

	table, err := csvfile.Decode(req.Content, csvfile.Options{Delimiter: req.Delimiter})
	if err != nil {
		log.Error("CSV 解析失败: %s", err.Error())
		return &ingestdomain.InputError{Err: err}
	}
	r.result.Encoding = table.Encoding
	if table.Encoding == csvfile.EncodingGB18030 {
		log.Info("[调试] 文件编码识别为 GB18030，已自动转换为 UTF-8")
	}
	if len(table.Rows) > 0 {
		log.Info("[调试] CSV表头识别: %s", strings.Join(table.VisibleHeader(), ", "))
		if table.HeaderLooksGarbled() {
			log.Warn("[警告] 检测到表头疑似乱码，请另存为 UTF-8 再上传。")
		}
	}
	r.result.RawRows = len(table.Rows)

	switch req.Kind {
	case recorddomain.KindOverview:
		err = s.syncOverview(ctx, table, r)
	case recorddomain.KindPersonNode:
		err = s.syncPersonNodes(ctx, table, r)
	case recorddomain.KindCycleStats:
		r.result.StatMonth = statMonth
		err = s.syncCycleStats(ctx, table, statMonth, r)
	case recorddomain.KindLedger:
		r.result.ReportYear = s.normalizer.ReportYearFor(req.Filename)
		err = s.syncLedger(ctx, table, r.result.ReportYear, r)
	}
	if err != nil {
		return err
	}

	log.Success("%s 处理完成！", req.Filename)
	return nil
}

func (s *Service) syncOverview(ctx context.Context, table *csvfile.Table, r *run) error {
	records, err := s.normalizer.Overview(table)
	if err != nil {
		return s.inputError(r, err, s.rules.Get().Aliases.Overview[config.FieldSerial])
	}
	unique := batcher.Dedupe(records)
	for i := range unique {
		unique[i].ID = s.genID.Generate()
	}
	r.log.Info("正在同步 %d 条%s (原始 %d 条, 去重后保留最新)...", len(unique), r.kind.Label(), r.result.RawRows)
	return submit(ctx, s, r, unique, s.repo.UpsertOverview)
}

func (s *Service) syncPersonNodes(ctx context.Context, table *csvfile.Table, r *run) error {
	records, err := s.normalizer.PersonNodes(table)
	if err != nil {
		return s.inputError(r, err, s.rules.Get().Aliases.PersonNode[config.FieldSerial])
	}
	unique := batcher.Dedupe(records)
	for i := range unique {
		unique[i].ID = s.genID.Generate()
	}
	r.log.Info("正在同步 %d 条%s (原始 %d 条, 去重后保留最新)...", len(unique), r.kind.Label(), r.result.RawRows)
	return submit(ctx, s, r, unique, s.repo.UpsertPersonNodes)
}

func (s *Service) syncCycleStats(ctx context.Context, table *csvfile.Table, statMonth string, r *run) error {
	records, err := s.normalizer.CycleStats(table, statMonth)
	if err != nil {
		return s.inputError(r, err, s.rules.Get().Aliases.CycleStats[config.FieldSerial])
	}
	unique := batcher.Dedupe(records)
	for i := range unique {
		unique[i].ID = s.genID.Generate()
	}
	r.log.Info("正在同步 %d 条%s (月份: %s)...", len(unique), r.kind.Label(), statMonth)
	return submit(ctx, s, r, unique, s.repo.UpsertCycleStats)
}

func (s *Service) syncLedger(ctx context.Context, table *csvfile.Table, year int, r *run) error {
	records, err := s.normalizer.Ledger(table, year)
	if err != nil {
		return s.inputError(r, err, s.rules.Get().Aliases.Ledger[config.FieldSerial])
	}
	unique := batcher.Dedupe(records)
	for i := range unique {
		unique[i].ID = s.genID.Generate()
	}
	r.log.Info("正在同步 %d 条%s (%d)...", len(unique), r.kind.Label(), year)
	return submit(ctx, s, r, unique, s.repo.UpsertLedger)
}

// submit runs the batch loop for one kind. Methods cannot carry type
// parameters, hence the free function.
func submit[T any](
	ctx context.Context,
	s *Service,
	r *run,
	records []T,
	upsert func(context.Context, *gorm.DB, []T) error,
) error {
	kind := string(r.kind)
	r.result.UniqueRows = len(records)

	b := batcher.Batcher[T]{
		Size: s.batchSize,
		Submit: func(ctx context.Context, batch []T) error {
			return upsert(ctx, s.db.WithContext(ctx), batch)
		},
		Progress: func(done, total int) {
			r.log.Info("进度: %d/%d", done, total)
		},
		Observe: func(size int, took time.Duration, err error) {
			s.ingestMetrics.ObserveBatch(kind, took, err)
			if err == nil {
				s.ingestMetrics.AddRows(kind, obsmetrics.RowStageSynced, size)
			}
		},
	}

	batches, err := b.Run(ctx, records)
	r.result.Batches = batches
	if err == nil {
		return nil
	}

	cause := err
	var batchErr *batcher.BatchError
	if errors.As(err, &batchErr) {
		cause = batchErr.Err
		r.zap.Warn("batch aborted",
			zap.Int("offset", batchErr.Offset),
			zap.Int("size", batchErr.Size),
			zap.Int("committed_batches", batches),
		)
	}
	r.log.Error("数据入库失败: %s", cause.Error())
	hints.Emit(r.log, s.rules.Get().Hints, kind, cause)
	return &ingestdomain.WriteError{Err: err}
}

func (s *Service) inputError(r *run, err error, serialAliases []string) error {
	if errors.Is(err, normalize.ErrMissingKeyColumn) {
		r.log.Error("CSV 解析失败: 缺少关键列 (%s)", strings.Join(serialAliases, " / "))
	} else {
		r.log.Error("CSV 解析失败: %s", err.Error())
	}
	return &ingestdomain.InputError{Err: err}
}

// archiveFile never fails the upload. The archive is best effort.
func (s *Service) archiveFile(ctx context.Context, req ingestdomain.UploadRequest, r *run) {
	if s.archive.Bucket() == "" {
		return
	}

	path := archive.ObjectPath(req.Kind, req.Filename, s.clock.Now().UTC())
	r.log.Info("正在上传原始文件到存储桶: %s...", path)

	if err := s.archive.Put(ctx, path, req.Content, archiveContentType); err != nil {
		if errors.Is(err, archive.ErrBucketNotFound) {
			r.log.Error("存储桶 %s 不存在，请联系管理员创建", s.archive.Bucket())
		}
		r.log.Warn("[警告] 原始文件归档失败: %s (不影响数据入库)", err.Error())
		r.zap.Warn("archive failed", zap.String("object", path), zap.Error(err))
		return
	}
	r.result.ArchivePath = path
	r.log.Success("原始文件归档成功")
}

func (s *Service) finish(ctx context.Context, r *run, err error) (*ingestdomain.UploadResult, error) {
	kind := string(r.kind)
	if r.kind.Table() == "" {
		kind = "unknown"
	}
	r.result.Logs = r.log.Entries()

	outcome := outcomeSuccess
	var inputErr *ingestdomain.InputError
	switch {
	case err == nil:
	case errors.As(err, &inputErr):
		outcome = outcomeInputError
	default:
		outcome = outcomeWriteError
		s.ingestMetrics.IncFailure(kind, err)
	}

	s.ingestMetrics.AddRows(kind, obsmetrics.RowStageRaw, r.result.RawRows)
	s.ingestMetrics.AddRows(kind, obsmetrics.RowStageUnique, r.result.UniqueRows)
	s.ingestMetrics.ObserveUpload(kind, time.Since(r.started))
	s.metrics.RecordUpload(ctx, kind, outcome, synced(r.result, s.batchSize))

	fields := []zap.Field{
		zap.String("outcome", outcome),
		zap.Int("raw_rows", r.result.RawRows),
		zap.Int("unique_rows", r.result.UniqueRows),
		zap.Int("batches", r.result.Batches),
		zap.Duration("took", time.Since(r.started)),
	}
	if err != nil {
		r.zap.Warn("upload finished with error", append(fields, zap.Error(err))...)
		return r.result, fmt.Errorf("upload %s: %w", r.result.Filename, err)
	}
	r.zap.Info("upload finished", fields...)
	return r.result, nil
}

func synced(result *ingestdomain.UploadResult, batchSize int) int {
	if batchSize <= 0 {
		batchSize = batcher.DefaultSize
	}
	n := result.Batches * batchSize
	if n > result.UniqueRows {
		n = result.UniqueRows
	}
	return n
}
