package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casino/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQuery = 200 * time.Millisecond

// gormLogger sends gorm's SQL logging through the process zap logger.
type gormLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger(level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLogger{level: level, slow: slowQuery}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	out := *l
	out.level = level
	return &out
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		logger.L().Info(fmt.Sprintf(msg, args...), zap.String("component", "gorm"))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		logger.L().Warn(fmt.Sprintf(msg, args...), zap.String("component", "gorm"))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		logger.L().Error(fmt.Sprintf(msg, args...), zap.String("component", "gorm"))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	fields := func() []zap.Field {
		sql, rows := fc()
		return []zap.Field{
			zap.String("component", "gorm"),
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
		}
	}

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		logger.L().Error("query failed", append(fields(), zap.Error(err))...)
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		logger.L().Warn("slow query", fields()...)
	case l.level >= gormlogger.Info:
		logger.L().Debug("query", fields()...)
	}
}
