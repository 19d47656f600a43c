package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/realty/backend/internal/domain/idx"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewSyncMetrics_NilMeter(t *testing.T) {
	_, err := NewSyncMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
	assert.Equal(t, "NewSyncMetrics: meter cannot be nil", err.Error())
}

func TestSyncMetrics_RecordSyncRun(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewSyncMetrics(provider.Meter("test"))
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run, err := idx.NewSyncRun(idx.SyncTypeProperties, idx.TriggerCron, start)
	require.NoError(t, err)
	for _, o := range []idx.RecordOutcome{
		idx.OutcomeCreated, idx.OutcomeCreated, idx.OutcomeUpdated,
		idx.OutcomeUnchanged, idx.OutcomeSkipped,
	} {
		run.Record(o)
	}
	run.PagesFetched = 2
	require.NoError(t, run.Succeed(start.Add(90*time.Second), ""))

	m.RecordSyncRun(context.Background(), run)
	got := collect(t, reader)

	runs, ok := got["realty_sync_runs_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, runs.DataPoints, 1)
	assert.Equal(t, int64(1), runs.DataPoints[0].Value)
	status, _ := runs.DataPoints[0].Attributes.Value(AttrSyncStatus)
	assert.Equal(t, "success", status.AsString())
	trigger, _ := runs.DataPoints[0].Attributes.Value(AttrSyncTrigger)
	assert.Equal(t, "cron", trigger.AsString())

	records, ok := got["realty_sync_records_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	byOutcome := make(map[string]int64)
	for _, dp := range records.DataPoints {
		outcome, _ := dp.Attributes.Value(AttrOutcome)
		byOutcome[outcome.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"created": 2, "updated": 1, "unchanged": 1, "skipped": 1}, byOutcome)

	pages, ok := got["realty_sync_pages_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), pages.DataPoints[0].Value)

	duration, ok := got["realty_sync_run_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.InDelta(t, 90.0, duration.DataPoints[0].Sum, 0.001)
}
