package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/realty/backend/internal/domain/idx"
	"github.com/realty/backend/internal/domain/listing"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type executorFixture struct {
	provider   *staticProvider
	properties *memPropertyRepo
	runs       *memRunRepo
	archive    *recordingArchive
	cache      *countingCache
	metrics    *recordingMetrics
	executor   *SyncExecutor
}

func newExecutorFixture(t *testing.T, provider *staticProvider, mutate func(*SyncExecutorConfig)) *executorFixture {
	t.Helper()
	cfg := DefaultSyncExecutorConfig()
	cfg.PageSize = 10
	cfg.MaxPages = 5
	cfg.DefaultState = "NE"
	if mutate != nil {
		mutate(&cfg)
	}

	f := &executorFixture{
		provider:   provider,
		properties: newMemPropertyRepo(),
		runs:       newMemRunRepo(),
		archive:    &recordingArchive{},
		cache:      &countingCache{},
		metrics:    &recordingMetrics{},
	}
	exec, err := NewSyncExecutor(cfg, provider, f.properties, f.runs, newTestLogger(),
		WithPageArchive(f.archive),
		WithSearchCache(f.cache),
		WithSyncMetrics(f.metrics),
	)
	require.NoError(t, err)
	f.executor = exec
	return f
}

func (f *executorFixture) newRun(t *testing.T, syncType idx.SyncType) *idx.SyncRun {
	t.Helper()
	run, err := idx.NewSyncRun(syncType, idx.TriggerAPI, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.runs.Create(context.Background(), run))
	return run
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestSyncExecutorConfig_Validate(t *testing.T) {
	cfg := DefaultSyncExecutorConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.PageSize = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.MaxPages = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.Thresholds = listing.Thresholds{Featured: cfg.Thresholds.Luxury.Add(cfg.Thresholds.Luxury), Luxury: cfg.Thresholds.Luxury}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

// ---------------------------------------------------------------------------
// Execute Tests
// ---------------------------------------------------------------------------

func TestSyncExecutor_Execute(t *testing.T) {
	t.Run("pages until the provider runs dry", func(t *testing.T) {
		f := newExecutorFixture(t, newStaticProvider(rawListings("A", 10, 250000), rawListings("B", 4, 450000)), nil)
		run := f.newRun(t, idx.SyncTypeProperties)

		require.NoError(t, f.executor.Execute(context.Background(), run))

		stored := f.runs.get(run.ID)
		assert.Equal(t, idx.SyncStatusSuccess, stored.Status)
		assert.NotNil(t, stored.CompletedAt)
		assert.Nil(t, stored.ErrorMessage)
		assert.Equal(t, 2, stored.PagesFetched)
		assert.Equal(t, 14, stored.RecordsProcessed)
		assert.Equal(t, 14, stored.RecordsCreated)
		assert.Equal(t, []int{1, 2}, f.provider.fetched())
		assert.Equal(t, []int{1, 2}, f.archive.pages)
		assert.Equal(t, 2, f.runs.progress)
		assert.Equal(t, 1, f.cache.invalidated)
		require.Len(t, f.metrics.runs, 1)

		luxury, err := f.properties.FindByNaturalKey(context.Background(), "B-000")
		require.NoError(t, err)
		assert.True(t, luxury.Luxury)
		assert.True(t, luxury.Featured)
		plain, err := f.properties.FindByNaturalKey(context.Background(), "A-000")
		require.NoError(t, err)
		assert.False(t, plain.Featured)
	})

	t.Run("second identical run changes nothing", func(t *testing.T) {
		provider := newStaticProvider(rawListings("A", 6, 350000))
		f := newExecutorFixture(t, provider, nil)

		first := f.newRun(t, idx.SyncTypeProperties)
		require.NoError(t, f.executor.Execute(context.Background(), first))
		second := f.newRun(t, idx.SyncTypeProperties)
		require.NoError(t, f.executor.Execute(context.Background(), second))

		stored := f.runs.get(second.ID)
		assert.Equal(t, 6, stored.RecordsProcessed)
		assert.Equal(t, 0, stored.RecordsCreated)
		assert.Equal(t, 0, stored.RecordsUpdated)
		assert.Equal(t, 6, stored.RecordsUnchanged())
		// only the first run changed listings
		assert.Equal(t, 1, f.cache.invalidated)
	})

	t.Run("new thresholds reclassify and invalidate the cache", func(t *testing.T) {
		provider := newStaticProvider(rawListings("A", 3, 350000))
		f := newExecutorFixture(t, provider, nil)
		first := f.newRun(t, idx.SyncTypeProperties)
		require.NoError(t, f.executor.Execute(context.Background(), first))
		require.Equal(t, 1, f.cache.invalidated)

		cfg := DefaultSyncExecutorConfig()
		cfg.PageSize = 10
		th, err := listing.NewThresholds(decimal.NewFromInt(200000), decimal.NewFromInt(300000))
		require.NoError(t, err)
		cfg.Thresholds = th
		lowered, err := NewSyncExecutor(cfg, provider, f.properties, f.runs, newTestLogger(), WithSearchCache(f.cache))
		require.NoError(t, err)

		second := f.newRun(t, idx.SyncTypeProperties)
		require.NoError(t, lowered.Execute(context.Background(), second))

		stored := f.runs.get(second.ID)
		assert.Equal(t, 0, stored.RecordsUpdated)
		assert.Equal(t, 3, stored.RecordsUnchanged())
		assert.Equal(t, 3, stored.RecordsReclassified)
		assert.Equal(t, 2, f.cache.invalidated)

		p, err := f.properties.FindByNaturalKey(context.Background(), "A-000")
		require.NoError(t, err)
		assert.True(t, p.Luxury)
	})

	t.Run("malformed records are skipped", func(t *testing.T) {
		page := rawListings("A", 8, 200000)
		page = append(page, listing.RawExternalProperty{MLSID: "NOADDR", ListPrice: listing.NewFlexDecimal(page[0].ListPrice.Value)})
		page = append(page, listing.RawExternalProperty{MLSID: "BADPRICE", Address: "1 Main St", ListPrice: listing.FlexDecimal{Raw: "call"}})
		f := newExecutorFixture(t, newStaticProvider(page), nil)
		run := f.newRun(t, idx.SyncTypeProperties)

		require.NoError(t, f.executor.Execute(context.Background(), run))

		stored := f.runs.get(run.ID)
		assert.Equal(t, idx.SyncStatusSuccess, stored.Status)
		assert.Equal(t, 10, stored.RecordsProcessed)
		assert.Equal(t, 8, stored.RecordsCreated)
		assert.Equal(t, 2, stored.RecordsSkipped)
		assert.Equal(t, 0, stored.RecordsFailed)
	})

	t.Run("per record storage failure continues", func(t *testing.T) {
		f := newExecutorFixture(t, newStaticProvider(rawListings("A", 5, 200000)), nil)
		f.properties.errs["A-002"] = fmt.Errorf("%w: check constraint", listing.ErrStorage)
		run := f.newRun(t, idx.SyncTypeProperties)

		require.NoError(t, f.executor.Execute(context.Background(), run))

		stored := f.runs.get(run.ID)
		assert.Equal(t, idx.SyncStatusSuccess, stored.Status)
		assert.Equal(t, 5, stored.RecordsProcessed)
		assert.Equal(t, 4, stored.RecordsCreated)
		assert.Equal(t, 1, stored.RecordsFailed)
	})

	t.Run("store unavailable fails the run", func(t *testing.T) {
		f := newExecutorFixture(t, newStaticProvider(rawListings("A", 5, 200000), rawListings("B", 5, 200000)), nil)
		f.properties.errs["A-003"] = fmt.Errorf("%w: connection refused", listing.ErrStoreUnavailable)
		run := f.newRun(t, idx.SyncTypeProperties)

		err := f.executor.Execute(context.Background(), run)
		assert.ErrorIs(t, err, listing.ErrStoreUnavailable)

		stored := f.runs.get(run.ID)
		assert.Equal(t, idx.SyncStatusError, stored.Status)
		require.NotNil(t, stored.ErrorMessage)
		assert.Contains(t, *stored.ErrorMessage, "connection refused")
		// partial progress is kept
		assert.Equal(t, 3, stored.RecordsCreated)
		assert.Equal(t, []int{1}, f.provider.fetched())
		assert.Equal(t, 1, f.cache.invalidated)
	})

	t.Run("provider failure fails the run", func(t *testing.T) {
		provider := newStaticProvider(rawListings("A", 10, 200000), rawListings("B", 10, 200000))
		provider.errs[2] = fmt.Errorf("%w: HTTP 503", idx.ErrProviderUnavailable)
		f := newExecutorFixture(t, provider, nil)
		run := f.newRun(t, idx.SyncTypeProperties)

		err := f.executor.Execute(context.Background(), run)
		assert.ErrorIs(t, err, idx.ErrProviderUnavailable)

		stored := f.runs.get(run.ID)
		assert.Equal(t, idx.SyncStatusError, stored.Status)
		assert.Equal(t, 10, stored.RecordsCreated)
		assert.Equal(t, 1, stored.PagesFetched)
		assert.Contains(t, *stored.ErrorMessage, "HTTP 503")
	})

	t.Run("page cap ends as success with a note", func(t *testing.T) {
		provider := newStaticProvider(rawListings("A", 2, 1), rawListings("B", 2, 1), rawListings("C", 2, 1))
		provider.hasMore = func(int) bool { return true }
		f := newExecutorFixture(t, provider, func(c *SyncExecutorConfig) { c.MaxPages = 2 })
		run := f.newRun(t, idx.SyncTypeProperties)

		require.NoError(t, f.executor.Execute(context.Background(), run))

		stored := f.runs.get(run.ID)
		assert.Equal(t, idx.SyncStatusSuccess, stored.Status)
		assert.Equal(t, 2, stored.PagesFetched)
		assert.Nil(t, stored.ErrorMessage)
		require.NotNil(t, stored.Note)
		assert.Equal(t, "stopped at page cap 2", *stored.Note)
	})

	t.Run("empty page stops even when more is claimed", func(t *testing.T) {
		provider := newStaticProvider(rawListings("A", 3, 1), nil)
		provider.hasMore = func(int) bool { return true }
		f := newExecutorFixture(t, provider, nil)
		run := f.newRun(t, idx.SyncTypeProperties)

		require.NoError(t, f.executor.Execute(context.Background(), run))
		assert.Equal(t, []int{1, 2}, provider.fetched())
		assert.Nil(t, f.runs.get(run.ID).ErrorMessage)
	})

	t.Run("archive failure does not fail the run", func(t *testing.T) {
		f := newExecutorFixture(t, newStaticProvider(rawListings("A", 2, 1)), nil)
		f.archive.err = errors.New("bucket unreachable")
		run := f.newRun(t, idx.SyncTypeProperties)

		require.NoError(t, f.executor.Execute(context.Background(), run))
		assert.Equal(t, idx.SyncStatusSuccess, f.runs.get(run.ID).Status)
	})

	t.Run("cancelled context records an interrupted run", func(t *testing.T) {
		f := newExecutorFixture(t, newStaticProvider(rawListings("A", 2, 1)), nil)
		run := f.newRun(t, idx.SyncTypeProperties)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := f.executor.Execute(ctx, run)
		assert.ErrorIs(t, err, ErrSyncInterrupted)

		stored := f.runs.get(run.ID)
		assert.Equal(t, idx.SyncStatusError, stored.Status)
		assert.Empty(t, f.provider.fetched())
	})
}

func TestSyncExecutor_AgentsSync(t *testing.T) {
	provider := newStaticProvider(rawListings("A", 3, 200000))
	f := newExecutorFixture(t, provider, nil)
	ctx := context.Background()

	first := f.newRun(t, idx.SyncTypeProperties)
	require.NoError(t, f.executor.Execute(ctx, first))

	// the next feed reassigns two listings and mentions one unknown listing
	page := rawListings("A", 3, 200000)
	page[0].ListingAgentKey = "AGT-9"
	page[1].ListingOfficeName = "Prairie Realty"
	page = append(page, rawListing("UNKNOWN", 1))
	provider.pages = [][]listing.RawExternalProperty{page}

	run := f.newRun(t, idx.SyncTypeAgents)
	upsertsBefore := f.properties.upserts
	require.NoError(t, f.executor.Execute(ctx, run))

	stored := f.runs.get(run.ID)
	assert.Equal(t, idx.SyncStatusSuccess, stored.Status)
	assert.Equal(t, 4, stored.RecordsProcessed)
	assert.Equal(t, 0, stored.RecordsCreated)
	assert.Equal(t, 2, stored.RecordsUpdated)
	assert.Equal(t, 2, stored.RecordsUnchanged())
	assert.Equal(t, upsertsBefore, f.properties.upserts)

	_, err := f.properties.FindByNaturalKey(ctx, "UNKNOWN")
	assert.ErrorIs(t, err, listing.ErrPropertyNotFound)
	p, err := f.properties.FindByNaturalKey(ctx, "A-000")
	require.NoError(t, err)
	require.NotNil(t, p.ListingAgentKey)
	assert.Equal(t, "AGT-9", *p.ListingAgentKey)
}

func TestSyncExecutor_UndecodableRecordsCountAsSkipped(t *testing.T) {
	provider := &undecodableProvider{staticProvider: newStaticProvider(rawListings("A", 2, 1))}
	f := newExecutorFixture(t, provider.staticProvider, nil)
	exec, err := NewSyncExecutor(DefaultSyncExecutorConfig(), provider, f.properties, f.runs, zap.NewNop())
	require.NoError(t, err)
	run := f.newRun(t, idx.SyncTypeProperties)

	require.NoError(t, exec.Execute(context.Background(), run))

	stored := f.runs.get(run.ID)
	assert.Equal(t, 5, stored.RecordsProcessed)
	assert.Equal(t, 3, stored.RecordsSkipped)
	assert.Equal(t, 2, stored.RecordsCreated)
}

type undecodableProvider struct {
	*staticProvider
}

func (p *undecodableProvider) FetchPage(ctx context.Context, req idx.PageRequest) (*idx.PageResponse, error) {
	resp, err := p.staticProvider.FetchPage(ctx, req)
	if err == nil && len(resp.Records) > 0 {
		resp.Undecodable = 3
	}
	return resp, err
}

func TestSyncExecutor_Abort(t *testing.T) {
	f := newExecutorFixture(t, newStaticProvider(), nil)
	run := f.newRun(t, idx.SyncTypeFull)

	f.executor.Abort(context.Background(), run, ErrSyncInterrupted)

	stored := f.runs.get(run.ID)
	assert.Equal(t, idx.SyncStatusError, stored.Status)
	assert.Equal(t, ErrSyncInterrupted.Error(), *stored.ErrorMessage)

	// aborting a finished run is a no-op
	f.executor.Abort(context.Background(), run, errors.New("again"))
	assert.Equal(t, ErrSyncInterrupted.Error(), *f.runs.get(run.ID).ErrorMessage)
}
