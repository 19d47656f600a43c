package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func (c Config) logsEnabled() bool {
	return c.Enabled && c.LogsEnabled
}

// LoggerProvider owns the SDK logger provider that zap records are copied
// into. A disabled provider exports nothing and BridgeLogger leaves the
// logger as it is.
type LoggerProvider struct {
	sdk *sdklog.LoggerProvider
	log *zap.Logger
}

// NewLoggerProvider installs a batching OTLP logger provider as the otel
// global
func NewLoggerProvider(ctx context.Context, cfg Config, log *zap.Logger) (*LoggerProvider, error) {
	lp := &LoggerProvider{log: log.Named("logs")}
	if !cfg.logsEnabled() {
		lp.log.Info("Log export disabled")
		return lp, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: log exporter: %w", err)
	}
	res, err := serviceResource(cfg.ServiceName)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, err
	}

	lp.sdk = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp.sdk)

	lp.log.Info("Log export enabled", zap.String("collector", cfg.CollectorEndpoint))
	return lp, nil
}

// Enabled reports whether log records are exported
func (lp *LoggerProvider) Enabled() bool {
	return lp != nil && lp.sdk != nil
}

// Shutdown flushes buffered records and stops the exporter. Calling it
// more than once is safe.
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if !lp.Enabled() {
		return nil
	}
	sdk := lp.sdk
	lp.sdk = nil
	return stopProvider(ctx, lp.log, sdk.Shutdown)
}

// BridgeLogger returns base with every entry it writes also sent to the
// provider, at the same minimum level. request_id, sync_run_id and the
// other zap fields become record attributes.
func BridgeLogger(base *zap.Logger, lp *LoggerProvider, name string) *zap.Logger {
	if !lp.Enabled() {
		return base
	}
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, newOTelCore(lp.sdk, name, base.Level()))
	}))
}

func newOTelCore(provider *sdklog.LoggerProvider, name string, level zapcore.Level) zapcore.Core {
	core := otelzap.NewCore(name, otelzap.WithLoggerProvider(provider))
	filtered, err := zapcore.NewIncreaseLevelCore(core, level)
	if err != nil {
		return core
	}
	return filtered
}
