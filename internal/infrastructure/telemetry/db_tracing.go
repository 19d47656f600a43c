package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL includes bound query variables in spans; development only
	LogFullSQL bool
	// SlowQueryThresh marks spans of slower statements
	SlowQueryThresh time.Duration
	// DBSystem names the database in span attributes
	DBSystem string
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin registers otelgorm plus slow query marking on a GORM DB.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Register installs the tracing callbacks. It is a no-op when disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

// registerCallbacks brackets otelgorm's hooks: the start time is taken
// before the statement and the span is annotated before otelgorm ends it
func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	type registrar interface {
		Register(name string, fn func(*gorm.DB)) error
	}
	cb := db.Callback()
	hooks := []struct {
		r    registrar
		name string
		fn   func(*gorm.DB)
	}{
		{cb.Create().Before("gorm:create"), "before_create", markQueryStart},
		{cb.Query().Before("gorm:query"), "before_query", markQueryStart},
		{cb.Update().Before("gorm:update"), "before_update", markQueryStart},
		{cb.Delete().Before("gorm:delete"), "before_delete", markQueryStart},
		{cb.Row().Before("gorm:row"), "before_row", markQueryStart},
		{cb.Raw().Before("gorm:raw"), "before_raw", markQueryStart},
		{cb.Create().After("gorm:create").Before("otel:after:create"), "after_create", p.annotateSpan},
		{cb.Query().After("gorm:query").Before("otel:after:query"), "after_query", p.annotateSpan},
		{cb.Update().After("gorm:update").Before("otel:after:update"), "after_update", p.annotateSpan},
		{cb.Delete().After("gorm:delete").Before("otel:after:delete"), "after_delete", p.annotateSpan},
		{cb.Row().After("gorm:row").Before("otel:after:row"), "after_row", p.annotateSpan},
		{cb.Raw().After("gorm:raw").Before("otel:after:raw"), "after_raw", p.annotateSpan},
	}
	for _, h := range hooks {
		if err := h.r.Register("realty_timing:"+h.name, h.fn); err != nil {
			return err
		}
	}
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = WithQueryStartTime(db.Statement.Context)
	}
}

// annotateSpan adds table, rows and error details and flags slow statements
func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	// a miss is an answer, not a failure
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}

type contextKey string

const queryStartTimeKey contextKey = "realty_query_start_time"

// WithQueryStartTime returns a context carrying the statement start time.
func WithQueryStartTime(ctx context.Context) context.Context {
	return context.WithValue(ctx, queryStartTimeKey, time.Now())
}
