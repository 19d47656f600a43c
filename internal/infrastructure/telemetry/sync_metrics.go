package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/realty/backend/internal/domain/idx"
)

// SyncMetrics counts sync runs and the records they examined.
type SyncMetrics struct {
	runsTotal    *Counter
	recordsTotal *Counter
	pagesTotal   *Counter
	runDuration  *Histogram
}

// NewSyncMetrics creates the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   SyncMetrics
		err error
	)
	if m.runsTotal, err = NewCounter(meter, "realty_sync_runs_total", "Finished sync runs", "{runs}"); err != nil {
		return nil, err
	}
	if m.recordsTotal, err = NewCounter(meter, "realty_sync_records_total", "Provider records examined by outcome", "{records}"); err != nil {
		return nil, err
	}
	if m.pagesTotal, err = NewCounter(meter, "realty_sync_pages_total", "Provider pages fetched", "{pages}"); err != nil {
		return nil, err
	}
	m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "realty_sync_run_duration_seconds",
		Description: "Wall time of finished sync runs",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordSyncRun records a finished run
func (m *SyncMetrics) RecordSyncRun(ctx context.Context, run *idx.SyncRun) {
	syncType := AttrSyncType.String(string(run.SyncType))
	m.runsTotal.Inc(ctx,
		syncType,
		AttrSyncStatus.String(string(run.Status)),
		AttrSyncTrigger.String(string(run.Trigger)),
	)
	m.pagesTotal.Add(ctx, int64(run.PagesFetched), syncType)

	for outcome, n := range map[string]int{
		"created":   run.RecordsCreated,
		"updated":   run.RecordsUpdated,
		"unchanged": run.RecordsUnchanged(),
		"skipped":   run.RecordsSkipped,
		"failed":    run.RecordsFailed,
	} {
		if n > 0 {
			m.recordsTotal.Add(ctx, int64(n), syncType, AttrOutcome.String(outcome))
		}
	}

	if run.CompletedAt != nil {
		m.runDuration.RecordDuration(ctx, run.CompletedAt.Sub(run.StartedAt), syncType, attribute.Bool("success", run.Status == idx.SyncStatusSuccess))
	}
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
