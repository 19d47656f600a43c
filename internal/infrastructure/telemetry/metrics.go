package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const defaultMetricsInterval = time.Minute

// MeterProvider owns the SDK meter provider installed as the otel global.
// When metrics are off Meter hands out the global no-op meter.
type MeterProvider struct {
	sdk *sdkmetric.MeterProvider
	log *zap.Logger
}

// NewMeterProvider installs an OTLP meter provider with a periodic reader
func NewMeterProvider(ctx context.Context, cfg Config, log *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{log: log.Named("metrics")}
	if !cfg.metricsEnabled() {
		mp.log.Info("Metrics disabled")
		return mp, nil
	}

	interval := cfg.MetricsInterval
	if interval <= 0 {
		interval = defaultMetricsInterval
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	res, err := serviceResource(cfg.ServiceName)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, err
	}

	mp.sdk = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.sdk)

	mp.log.Info("Metrics enabled",
		zap.String("collector", cfg.CollectorEndpoint),
		zap.Duration("interval", interval),
	)
	return mp, nil
}

// Enabled reports whether measurements are exported
func (mp *MeterProvider) Enabled() bool {
	return mp.sdk != nil
}

// Meter returns a named meter
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.sdk == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.sdk.Meter(name, opts...)
}

// Shutdown exports pending measurements and stops the reader
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.sdk == nil {
		return nil
	}
	return stopProvider(ctx, mp.log, mp.sdk.Shutdown)
}
