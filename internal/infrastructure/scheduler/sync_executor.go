package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/realty/backend/internal/domain/idx"
	"github.com/realty/backend/internal/domain/listing"
)

// ---------------------------------------------------------------------------
// SyncExecutor Config
// ---------------------------------------------------------------------------

// SyncExecutorConfig holds the paging and normalization settings of a run
type SyncExecutorConfig struct {
	// PageSize is requested from the provider on every page
	PageSize int
	// MaxPages caps a run; reaching it still ends the run as success
	MaxPages int
	// Thresholds classify featured and luxury listings
	Thresholds   listing.Thresholds
	DefaultState string
	DefaultZip   string
	// FinishTimeout bounds the terminal write after the run context ended
	FinishTimeout time.Duration
}

// DefaultSyncExecutorConfig returns default configuration
func DefaultSyncExecutorConfig() SyncExecutorConfig {
	return SyncExecutorConfig{
		PageSize:      100,
		MaxPages:      50,
		Thresholds:    listing.DefaultThresholds(),
		FinishTimeout: 10 * time.Second,
	}
}

// Validate validates the configuration
func (c *SyncExecutorConfig) Validate() error {
	if c.PageSize <= 0 || c.MaxPages <= 0 {
		return ErrInvalidConfig
	}
	if c.Thresholds.Featured.GreaterThan(c.Thresholds.Luxury) {
		return ErrInvalidConfig
	}
	if c.FinishTimeout <= 0 {
		c.FinishTimeout = 10 * time.Second
	}
	return nil
}

// SyncMetrics records finished runs
type SyncMetrics interface {
	RecordSyncRun(ctx context.Context, run *idx.SyncRun)
}

// ---------------------------------------------------------------------------
// SyncExecutor
// ---------------------------------------------------------------------------

// SyncExecutor pages through the provider and writes every record to the
// property store, keeping the run's audit record current.
type SyncExecutor struct {
	config     SyncExecutorConfig
	provider   idx.PropertyProvider
	properties listing.PropertyRepository
	runs       idx.SyncRunRepository
	logger     *zap.Logger
	now        func() time.Time

	// optional collaborators
	archive idx.PageArchive
	cache   listing.SearchCache
	metrics SyncMetrics
}

// SyncExecutorOption configures a SyncExecutor
type SyncExecutorOption func(*SyncExecutor)

// WithPageArchive archives every fetched page
func WithPageArchive(a idx.PageArchive) SyncExecutorOption {
	return func(e *SyncExecutor) { e.archive = a }
}

// WithSearchCache invalidates cached searches after runs that changed listings
func WithSearchCache(c listing.SearchCache) SyncExecutorOption {
	return func(e *SyncExecutor) { e.cache = c }
}

// WithSyncMetrics records run metrics
func WithSyncMetrics(m SyncMetrics) SyncExecutorOption {
	return func(e *SyncExecutor) { e.metrics = m }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) SyncExecutorOption {
	return func(e *SyncExecutor) { e.now = now }
}

// NewSyncExecutor creates a new sync executor
func NewSyncExecutor(
	config SyncExecutorConfig,
	provider idx.PropertyProvider,
	properties listing.PropertyRepository,
	runs idx.SyncRunRepository,
	logger *zap.Logger,
	opts ...SyncExecutorOption,
) (*SyncExecutor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &SyncExecutor{
		config:     config,
		provider:   provider,
		properties: properties,
		runs:       runs,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs a sync to completion and stores its terminal state. The
// returned error is the cause recorded on a failed run.
func (e *SyncExecutor) Execute(ctx context.Context, run *idx.SyncRun) error {
	log := e.logger.With(
		zap.String("sync_run_id", run.ID.String()),
		zap.String("sync_type", string(run.SyncType)),
		zap.String("provider", e.provider.Name()),
	)
	log.Info("Starting sync run", zap.String("trigger", string(run.Trigger)))

	// one normalizer per run so every record sees the same thresholds
	normalizer := listing.NewNormalizer(listing.NormalizerConfig{
		Thresholds:   e.config.Thresholds,
		DefaultState: e.config.DefaultState,
		DefaultZip:   e.config.DefaultZip,
		Now:          e.now,
	})

	note, runErr := e.pages(ctx, run, normalizer, log)
	if runErr == nil {
		_ = run.Succeed(e.now(), note)
	} else {
		if ctx.Err() != nil && !errors.Is(runErr, ErrSyncInterrupted) {
			runErr = fmt.Errorf("%w: %v", ErrSyncInterrupted, runErr)
		}
		_ = run.Fail(e.now(), runErr)
	}

	e.finish(ctx, run, log)
	return runErr
}

// Abort fails a run that never started executing
func (e *SyncExecutor) Abort(ctx context.Context, run *idx.SyncRun, cause error) {
	log := e.logger.With(zap.String("sync_run_id", run.ID.String()))
	if err := run.Fail(e.now(), cause); err != nil {
		return
	}
	e.finish(ctx, run, log)
}

// pages walks the provider until it runs dry or the page cap is reached
func (e *SyncExecutor) pages(ctx context.Context, run *idx.SyncRun, normalizer *listing.Normalizer, log *zap.Logger) (string, error) {
	for page := 1; page <= e.config.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrSyncInterrupted, err)
		}

		resp, err := e.provider.FetchPage(ctx, idx.PageRequest{Page: page, PageSize: e.config.PageSize})
		if err != nil {
			log.Error("Provider page fetch failed", zap.Int("page", page), zap.Error(err))
			return "", err
		}
		run.PagesFetched++
		e.archivePage(ctx, run, page, resp.Body, log)

		for i := 0; i < resp.Undecodable; i++ {
			run.Record(idx.OutcomeSkipped)
		}
		for i := range resp.Records {
			outcome, err := e.processRecord(ctx, run.SyncType, normalizer, resp.Records[i], log)
			if err != nil {
				// connectivity loss fails the run; the record itself was not counted
				return "", err
			}
			run.Record(outcome)
		}

		if err := e.runs.UpdateProgress(ctx, run); err != nil {
			log.Warn("Failed to store sync progress", zap.Int("page", page), zap.Error(err))
		}
		log.Debug("Processed provider page",
			zap.Int("page", page),
			zap.Int("records", len(resp.Records)),
			zap.Int("undecodable", resp.Undecodable),
			zap.Int("processed_total", run.RecordsProcessed),
		)

		if !resp.HasMore || len(resp.Records)+resp.Undecodable == 0 {
			return "", nil
		}
		if page == e.config.MaxPages {
			log.Warn("Sync stopped at page cap", zap.Int("max_pages", e.config.MaxPages))
			return fmt.Sprintf("stopped at page cap %d", e.config.MaxPages), nil
		}
	}
	return "", nil
}

// processRecord handles one provider record. Only ErrStoreUnavailable is
// returned; every other problem becomes an outcome.
func (e *SyncExecutor) processRecord(
	ctx context.Context,
	syncType idx.SyncType,
	normalizer *listing.Normalizer,
	raw listing.RawExternalProperty,
	log *zap.Logger,
) (idx.RecordOutcome, error) {
	if !syncType.CreatesListings() {
		return e.refreshProvenance(ctx, raw, log)
	}

	p, err := normalizer.Normalize(raw)
	if err != nil {
		log.Debug("Skipping malformed listing", zap.String("provider_id", raw.ProviderID()), zap.Error(err))
		return idx.OutcomeSkipped, nil
	}

	result, err := e.properties.Upsert(ctx, p)
	switch {
	case errors.Is(err, listing.ErrStoreUnavailable):
		return idx.OutcomeFailed, err
	case errors.Is(err, listing.ErrMalformedListing):
		return idx.OutcomeSkipped, nil
	case err != nil:
		log.Warn("Failed to store listing", zap.String("natural_key", p.NaturalKey()), zap.Error(err))
		return idx.OutcomeFailed, nil
	}

	switch result {
	case listing.UpsertCreated:
		return idx.OutcomeCreated, nil
	case listing.UpsertUpdated:
		return idx.OutcomeUpdated, nil
	case listing.UpsertReclassified:
		return idx.OutcomeReclassified, nil
	default:
		return idx.OutcomeUnchanged, nil
	}
}

// refreshProvenance updates agent and office fields of a stored listing
func (e *SyncExecutor) refreshProvenance(ctx context.Context, raw listing.RawExternalProperty, log *zap.Logger) (idx.RecordOutcome, error) {
	key := raw.ProviderID()
	if key == "" {
		return idx.OutcomeSkipped, nil
	}

	changed, err := e.properties.UpdateProvenance(ctx, key, optional(raw.ListingAgentKey.String()), optional(strings.TrimSpace(raw.ListingOfficeName)))
	switch {
	case errors.Is(err, listing.ErrStoreUnavailable):
		return idx.OutcomeFailed, err
	case err != nil:
		log.Warn("Failed to refresh listing provenance", zap.String("natural_key", key), zap.Error(err))
		return idx.OutcomeFailed, nil
	case changed:
		return idx.OutcomeUpdated, nil
	default:
		return idx.OutcomeUnchanged, nil
	}
}

func (e *SyncExecutor) archivePage(ctx context.Context, run *idx.SyncRun, page int, body []byte, log *zap.Logger) {
	if e.archive == nil || len(body) == 0 {
		return
	}
	if err := e.archive.ArchivePage(ctx, run.ID, page, body); err != nil {
		log.Warn("Failed to archive provider page", zap.Int("page", page), zap.Error(err))
	}
}

// finish stores the terminal state even when the run context is done
func (e *SyncExecutor) finish(ctx context.Context, run *idx.SyncRun, log *zap.Logger) {
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.FinishTimeout)
	defer cancel()

	if err := e.runs.Finish(finishCtx, run); err != nil {
		log.Error("Failed to store sync result", zap.Error(err))
	}

	if run.Changed() && e.cache != nil {
		if err := e.cache.Invalidate(finishCtx); err != nil {
			log.Warn("Failed to invalidate search cache", zap.Error(err))
		}
	}
	if e.metrics != nil {
		e.metrics.RecordSyncRun(finishCtx, run)
	}

	fields := []zap.Field{
		zap.String("status", string(run.Status)),
		zap.Int("pages", run.PagesFetched),
		zap.Int("processed", run.RecordsProcessed),
		zap.Int("created", run.RecordsCreated),
		zap.Int("updated", run.RecordsUpdated),
		zap.Int("unchanged", run.RecordsUnchanged()),
		zap.Int("reclassified", run.RecordsReclassified),
		zap.Int("skipped", run.RecordsSkipped),
		zap.Int("failed", run.RecordsFailed),
		zap.Duration("duration", run.Duration(e.now())),
	}
	if run.Status == idx.SyncStatusError {
		log.Error("Sync run failed", append(fields, zap.Stringp("error", run.ErrorMessage))...)
		return
	}
	log.Info("Sync run completed", append(fields, zap.Stringp("note", run.Note))...)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
