package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultSlowQuery = 200 * time.Millisecond
	// batched listing upserts produce very long statements
	defaultMaxSQLLen = 2048
)

// GormLogger routes GORM output into zap. Statement logs pick up the request
// id and sync run id from the context so a slow upsert can be traced back to
// the run that issued it.
type GormLogger struct {
	log       *zap.Logger
	level     gormlogger.LogLevel
	slowQuery time.Duration
	maxSQLLen int
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which statements log at warn.
// Zero disables slow query reporting.
func WithSlowThreshold(d time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowQuery = d }
}

// WithMaxSQLLength truncates logged statements; zero logs them whole
func WithMaxSQLLength(n int) GormLoggerOption {
	return func(l *GormLogger) { l.maxSQLLen = n }
}

func NewGormLogger(log *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	l := &GormLogger{
		log:       log.Named("gorm"),
		level:     level,
		slowQuery: defaultSlowQuery,
		maxSQLLen: defaultMaxSQLLen,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.scoped(ctx).Info(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.scoped(ctx).Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.scoped(ctx).Error(fmt.Sprintf(msg, args...))
	}
}

// Trace logs one executed statement. Failures log at error (record not found
// excepted), slow statements at warn, everything else at debug when the
// level is Info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	failed := err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound)
	elapsed := time.Since(begin)
	slow := l.slowQuery > 0 && elapsed > l.slowQuery

	var msg string
	switch {
	case failed && l.level >= gormlogger.Error:
		msg = "SQL Error"
	case slow && l.level >= gormlogger.Warn:
		msg = "SQL Slow"
	case l.level >= gormlogger.Info:
		msg = "SQL Query"
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", l.clip(sql)),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}
	log := l.scoped(ctx)

	switch msg {
	case "SQL Error":
		log.Error(msg, append(fields, zap.Error(err))...)
	case "SQL Slow":
		log.Warn(msg, append(fields, zap.Duration("threshold", l.slowQuery))...)
	default:
		log.Debug(msg, fields...)
	}
}

func (l *GormLogger) scoped(ctx context.Context) *zap.Logger {
	log := l.log
	if id := GetRequestID(ctx); id != "" {
		log = log.With(zap.String("request_id", id))
	}
	if id := GetSyncRunID(ctx); id != "" {
		log = log.With(zap.String("sync_run_id", id))
	}
	return log
}

func (l *GormLogger) clip(sql string) string {
	if l.maxSQLLen <= 0 || len(sql) <= l.maxSQLLen {
		return sql
	}
	return sql[:l.maxSQLLen] + "...(truncated)"
}

// MapGormLogLevel translates the application log level. Debug and info both
// enable statement logging; anything unknown falls back to warn.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
