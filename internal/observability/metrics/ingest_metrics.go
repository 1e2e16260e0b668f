package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	IngestReasonDeadlineExceeded   = "deadline_exceeded"
	IngestReasonUndefinedTable     = "undefined_table"
	IngestReasonUndefinedFunction  = "undefined_function"
	IngestReasonConstraintMismatch = "constraint_mismatch"
	IngestReasonUniqueViolation    = "unique_violation"
	IngestReasonInvalidValue       = "invalid_value"
	IngestReasonUnknown            = "unknown"
)

const (
	RowStageRaw    = "raw"
	RowStageUnique = "unique"
	RowStageSynced = "synced"
)

// IngestMetrics tracks the batched upsert pipeline shared by the API and the CLIs.
type IngestMetrics struct {
	rows           *prometheus.CounterVec
	batches        *prometheus.CounterVec
	failures       *prometheus.CounterVec
	batchDuration  *prometheus.HistogramVec
	uploadDuration *prometheus.HistogramVec
}

var (
	ingestMetricsOnce sync.Once
	ingestMetrics     *IngestMetrics
)

// Ingest returns the singleton ingest metrics registry.
func Ingest() *IngestMetrics {
	return IngestWithConfig(Config{})
}

// IngestWithConfig returns the singleton ingest metrics registry using config labels.
func IngestWithConfig(cfg Config) *IngestMetrics {
	ingestMetricsOnce.Do(func() {
		ingestMetrics = NewIngestMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ingestMetrics
}

// ResetIngestMetricsForTest resets the ingest metrics singleton for tests.
func ResetIngestMetricsForTest() {
	ingestMetricsOnce = sync.Once{}
	ingestMetrics = nil
}

// NewIngestMetrics registers the ingest instruments on registerer. The CLIs
// use a private registry so the metrics can be pushed at exit.
func NewIngestMetrics(registerer prometheus.Registerer, cfg Config) *IngestMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "meseboard_ingest_rows_total",
		Help:        "Rows seen by the ingest pipeline by dataset kind and stage.",
		ConstLabels: constLabels,
	}, []string{"kind", "stage"})
	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "meseboard_ingest_batches_total",
		Help:        "Upsert batches submitted by dataset kind and outcome.",
		ConstLabels: constLabels,
	}, []string{"kind", "outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "meseboard_ingest_failures_total",
		Help:        "Ingest failures by dataset kind and low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"kind", "reason"})
	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "meseboard_ingest_batch_duration_seconds",
		Help:        "Latency of a single upsert batch.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"kind"})
	uploadDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "meseboard_ingest_upload_duration_seconds",
		Help:        "End-to-end latency of one uploaded file.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"kind"})

	registerer.MustRegister(rows, batches, failures, batchDuration, uploadDuration)

	return &IngestMetrics{
		rows:           rows,
		batches:        batches,
		failures:       failures,
		batchDuration:  batchDuration,
		uploadDuration: uploadDuration,
	}
}

// AddRows adds row counts for a pipeline stage.
func (m *IngestMetrics) AddRows(kind, stage string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.rows.WithLabelValues(kind, stage).Add(float64(count))
}

// ObserveBatch records one batch submission.
func (m *IngestMetrics) ObserveBatch(kind string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.batches.WithLabelValues(kind, outcome).Inc()
	m.batchDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// IncFailure increments the failure counter with classification.
func (m *IngestMetrics) IncFailure(kind string, err error) {
	if m == nil || err == nil {
		return
	}
	m.failures.WithLabelValues(kind, ClassifyIngestFailure(err)).Inc()
}

// ObserveUpload records the latency of a whole file.
func (m *IngestMetrics) ObserveUpload(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.uploadDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ClassifyIngestFailure maps backend errors to a bounded reason label.
func ClassifyIngestFailure(err error) string {
	if err == nil {
		return IngestReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return IngestReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return IngestReasonUniqueViolation
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42P01":
			return IngestReasonUndefinedTable
		case pgErr.Code == "42883":
			return IngestReasonUndefinedFunction
		case pgErr.Code == "42P10":
			return IngestReasonConstraintMismatch
		case pgErr.Code == "23505":
			return IngestReasonUniqueViolation
		case strings.HasPrefix(pgErr.Code, "22"):
			return IngestReasonInvalidValue
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such table"):
		return IngestReasonUndefinedTable
	case strings.Contains(msg, "on conflict"):
		return IngestReasonConstraintMismatch
	case strings.Contains(msg, "unique constraint failed"):
		return IngestReasonUniqueViolation
	}
	return IngestReasonUnknown
}
