package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observeGlobal(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		sql, op, table string
	}{
		{`SELECT * FROM "mese_overview" WHERE report_year = $1`, "SELECT", "mese_overview"},
		{`INSERT INTO "mese_person_node" ("id") VALUES ($1) ON CONFLICT DO UPDATE SET x`, "INSERT", "mese_person_node"},
		{`UPDATE mese_cycle_stats SET stat_month = $1`, "UPDATE", "mese_cycle_stats"},
		{`DELETE FROM "mese_cycle_stats" WHERE stat_month = $1`, "DELETE", "mese_cycle_stats"},
		{`TRUNCATE TABLE mese_ledger`, "TRUNCATE", "mese_ledger"},
		{``, "UNKNOWN", ""},
	}
	for _, tc := range cases {
		op, table := describeSQL(tc.sql)
		assert.Equal(t, tc.op, op, tc.sql)
		assert.Equal(t, tc.table, table, tc.sql)
	}
}

func TestGormLoggerTraceLevels(t *testing.T) {
	logs := observeGlobal(t)
	l := NewGormLogger(GormLoggerConfig{Level: gormlogger.Warn, SlowThreshold: 10 * time.Millisecond})
	fc := func() (string, int64) { return `SELECT * FROM "mese_overview"`, 3 }
	ctx := context.Background()

	l.Trace(ctx, time.Now(), fc, nil)
	assert.Equal(t, 0, logs.Len())

	l.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "mese_overview", entry.ContextMap()["table"])

	l.Trace(ctx, time.Now(), fc, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 1, logs.Len())

	l.Trace(ctx, time.Now(), fc, errors.New("connection reset"))
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
}

func TestGormLoggerSilentAndMessages(t *testing.T) {
	logs := observeGlobal(t)
	l := NewGormLogger(DefaultGormLoggerConfig())

	l.Info(context.Background(), "ignored %d", 1)
	l.Warn(context.Background(), "replica lag %dms", 40)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "replica lag 40ms", logs.All()[0].Message)

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("x"))
	assert.Equal(t, 1, logs.Len())

	sql, vars := l.ParamsFilter(context.Background(), "SELECT $1", "secret")
	assert.Equal(t, "SELECT $1", sql)
	assert.Nil(t, vars)
}
