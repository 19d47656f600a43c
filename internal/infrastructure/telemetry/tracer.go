// Package telemetry wires OpenTelemetry tracing, metrics and zap log export
// for the API server and the sync workers. Every signal goes to one
// OTLP/gRPC collector.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// shutdownTimeout caps how long a provider may spend flushing on exit
const shutdownTimeout = 10 * time.Second

// Config points the exporters at a collector. Metrics and logs are only
// exported when Enabled and their own flag are both set.
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	Insecure          bool
	ServiceName       string
	SamplingRatio     float64
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
}

func (c Config) metricsEnabled() bool {
	return c.Enabled && c.MetricsEnabled
}

func serviceResource(name string) (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(name),
		semconv.ServiceVersion(ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}
	return res, nil
}

// samplerFor honours the caller's sampling decision and applies ratio to
// root spans only
func samplerFor(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// TracerProvider owns the SDK tracer provider installed as the otel global.
// A disabled provider leaves the global no-op tracer in place.
type TracerProvider struct {
	sdk *sdktrace.TracerProvider
	log *zap.Logger
}

// NewTracerProvider installs a batching OTLP tracer provider and the W3C
// trace-context and baggage propagators
func NewTracerProvider(ctx context.Context, cfg Config, log *zap.Logger) (*TracerProvider, error) {
	tp := &TracerProvider{log: log.Named("tracing")}
	if !cfg.Enabled {
		tp.log.Info("Tracing disabled")
		return tp, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	res, err := serviceResource(cfg.ServiceName)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, err
	}

	tp.sdk = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(tp.sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tp.log.Info("Tracing enabled",
		zap.String("collector", cfg.CollectorEndpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
	)
	return tp, nil
}

// Enabled reports whether spans are exported
func (tp *TracerProvider) Enabled() bool {
	return tp.sdk != nil
}

// Shutdown flushes buffered spans and stops the exporter
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.sdk == nil {
		return nil
	}
	return stopProvider(ctx, tp.log, tp.sdk.Shutdown)
}

func stopProvider(ctx context.Context, log *zap.Logger, stop func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		log.Error("Telemetry shutdown failed", zap.Error(err))
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	log.Info("Telemetry flushed")
	return nil
}
