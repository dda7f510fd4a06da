package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"casino/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func observe(t *testing.T) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(zap.NewNop()) })
	return logs
}

func query() (string, int64) { return "SELECT 1", 1 }

func TestGormLoggerRoutesThroughZap(t *testing.T) {
	logs := observe(t)
	l := newGormLogger(gormlogger.Warn)
	ctx := context.Background()

	l.Trace(ctx, time.Now(), query, errors.New("boom"))
	l.Trace(ctx, time.Now(), query, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now().Add(-time.Second), query, nil)
	l.Trace(ctx, time.Now(), query, nil)
	l.Info(ctx, "ignored %d", 1)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "query failed", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "SELECT 1", entries[0].ContextMap()["sql"])
	assert.Equal(t, "slow query", entries[1].Message)
}

func TestGormLoggerSilent(t *testing.T) {
	logs := observe(t)
	l := newGormLogger(gormlogger.Warn).LogMode(gormlogger.Silent)

	l.Trace(context.Background(), time.Now(), query, errors.New("boom"))
	l.Error(context.Background(), "nope")
	assert.Zero(t, logs.Len())
}
