package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

func TestProviders_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		CollectorEndpoint: "localhost:4317",
		ServiceName:       "realty-test",
		SamplingRatio:     1,
		MetricsEnabled:    true,
	}

	tp, err := NewTracerProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, tp.Enabled())
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := NewMeterProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, mp.Enabled(), "metrics need telemetry enabled too")
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{2, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{0, sdktrace.NeverSample().Description()},
		{0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, samplerFor(tt.ratio).Description(), "ratio %v", tt.ratio)
	}
}

func TestInstruments(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	c, err := NewCounter(meter, "listings_total", "Listings seen", "{listing}")
	require.NoError(t, err)
	c.Add(ctx, 4, AttrOutcome.String("created"))
	c.Inc(ctx, AttrOutcome.String("created"))

	h, err := NewHistogram(meter, HistogramOpts{
		Name:       "run_seconds",
		Unit:       "s",
		Boundaries: SyncDurationBuckets,
	})
	require.NoError(t, err)
	h.RecordDuration(ctx, 1500*time.Millisecond, attribute.String("k", "v"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Aggregation{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m.Data
	}

	sum, ok := byName["listings_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(5), sum.DataPoints[0].Value)

	hist, ok := byName["run_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.InDelta(t, 1.5, hist.DataPoints[0].Sum, 1e-9)
	assert.Equal(t, SyncDurationBuckets, hist.DataPoints[0].Bounds)
}

func TestDurationBucketsAreSorted(t *testing.T) {
	for name, buckets := range map[string][]float64{
		"http": HTTPDurationBuckets,
		"sync": SyncDurationBuckets,
	} {
		for i := 1; i < len(buckets); i++ {
			assert.Less(t, buckets[i-1], buckets[i], name)
		}
	}
}
