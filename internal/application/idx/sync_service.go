// Package idx starts provider syncs and reports their progress.
package idx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realty/backend/internal/domain/idx"
	"github.com/realty/backend/internal/infrastructure/telemetry"
)

// RunQueue hands accepted runs to the worker pool without blocking
type RunQueue interface {
	Submit(run *idx.SyncRun) error
}

// RunAborter closes a run that will never execute
type RunAborter interface {
	Abort(ctx context.Context, run *idx.SyncRun, cause error)
}

// SyncServiceConfig tunes status reporting and stale-run reaping
type SyncServiceConfig struct {
	// StaleAfter is how long an in-progress run may go before the reaper
	// marks it abandoned
	StaleAfter time.Duration
	// RecentRunLimit bounds recentSyncs in the status report
	RecentRunLimit int
	// ConnectionCheckTTL reuses a provider probe for this long
	ConnectionCheckTTL time.Duration
	// ConnectionCheckTimeout bounds a single probe
	ConnectionCheckTimeout time.Duration
}

// DefaultSyncServiceConfig returns the defaults
func DefaultSyncServiceConfig() SyncServiceConfig {
	return SyncServiceConfig{
		StaleAfter:             2 * time.Hour,
		RecentRunLimit:         10,
		ConnectionCheckTTL:     30 * time.Second,
		ConnectionCheckTimeout: 5 * time.Second,
	}
}

// StaleRunMessage is recorded on runs closed by the reaper
const StaleRunMessage = "abandoned: no progress before the stale deadline, the worker likely stopped"

// SyncService handles sync lifecycle operations
type SyncService struct {
	runs     idx.SyncRunRepository
	provider idx.PropertyProvider
	queue    RunQueue
	aborter  RunAborter
	config   SyncServiceConfig
	logger   *zap.Logger
	now      func() time.Time

	probeMu   sync.Mutex
	lastProbe *idx.ConnectionStatus
}

// NewSyncService creates a new SyncService
func NewSyncService(
	runs idx.SyncRunRepository,
	provider idx.PropertyProvider,
	queue RunQueue,
	aborter RunAborter,
	config SyncServiceConfig,
	logger *zap.Logger,
) *SyncService {
	defaults := DefaultSyncServiceConfig()
	if config.StaleAfter <= 0 {
		config.StaleAfter = defaults.StaleAfter
	}
	if config.RecentRunLimit <= 0 {
		config.RecentRunLimit = defaults.RecentRunLimit
	}
	if config.ConnectionCheckTimeout <= 0 {
		config.ConnectionCheckTimeout = defaults.ConnectionCheckTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		runs:     runs,
		provider: provider,
		queue:    queue,
		aborter:  aborter,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// StartSync records a new in-progress run and queues it. It returns as
// soon as the run is accepted; the worker pool drives it to a terminal state.
func (s *SyncService) StartSync(ctx context.Context, syncType idx.SyncType, trigger idx.Trigger) (*idx.SyncRun, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "idx_sync", "start",
		telemetry.WithAttribute(telemetry.SpanAttrSyncType, string(syncType)),
	)
	defer span.End()

	run, err := s.startSync(ctx, syncType, trigger)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrSyncRunID, run.ID.String())
	telemetry.SetOK(span)
	return run, nil
}

// StartSyncFromRequest starts an API triggered run from a request body
func (s *SyncService) StartSyncFromRequest(ctx context.Context, req StartSyncRequest) (*StartSyncResponse, error) {
	syncType, err := idx.ParseSyncType(req.Type)
	if err != nil {
		return nil, err
	}
	run, err := s.StartSync(ctx, syncType, idx.TriggerAPI)
	if err != nil {
		return nil, err
	}
	return &StartSyncResponse{
		SyncRunID: run.ID,
		SyncType:  run.SyncType,
		Status:    run.Status,
		StartedAt: run.StartedAt,
	}, nil
}

func (s *SyncService) startSync(ctx context.Context, syncType idx.SyncType, trigger idx.Trigger) (*idx.SyncRun, error) {
	if !syncType.IsValid() {
		return nil, idx.ErrInvalidSyncType
	}

	// fast path; the unique index in Create is what actually holds the slot
	active, err := s.runs.FindActive(ctx, syncType)
	if err != nil {
		return nil, fmt.Errorf("check active %s sync: %w", syncType, err)
	}
	if active != nil {
		return nil, idx.ErrSyncAlreadyRunning
	}

	run, err := idx.NewSyncRun(syncType, trigger, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.runs.Create(ctx, run); err != nil {
		if errors.Is(err, idx.ErrSyncAlreadyRunning) {
			return nil, idx.ErrSyncAlreadyRunning
		}
		return nil, fmt.Errorf("create sync run: %w", err)
	}

	if err := s.queue.Submit(run); err != nil {
		// free the slot, otherwise the type stays locked until reaped
		s.aborter.Abort(ctx, run, fmt.Errorf("sync was not queued: %w", err))
		s.logger.Warn("sync run rejected by the worker pool",
			zap.String("sync_run_id", run.ID.String()),
			zap.String("sync_type", string(syncType)),
			zap.Error(err),
		)
		return nil, idx.ErrSyncNotAccepted
	}

	s.logger.Info("sync run accepted",
		zap.String("sync_run_id", run.ID.String()),
		zap.String("sync_type", string(syncType)),
		zap.String("trigger", string(trigger)),
	)
	return run, nil
}

// GetRun returns a single run
func (s *SyncService) GetRun(ctx context.Context, id string) (*SyncRunResponse, error) {
	runID, err := parseRunID(id)
	if err != nil {
		return nil, err
	}
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	r := ToSyncRunResponse(run, s.now())
	return &r, nil
}

// GetStatus reports the latest run, recent history, any run in progress,
// and provider reachability
func (s *SyncService) GetStatus(ctx context.Context) (*StatusResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "idx_sync", "status")
	defer span.End()

	now := s.now()

	latest, err := s.runs.FindLatest(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load latest sync run: %w", err)
	}
	recent, err := s.runs.FindRecent(ctx, s.config.RecentRunLimit)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load recent sync runs: %w", err)
	}

	resp := &StatusResponse{
		RecentSyncs:      make([]SyncRunResponse, 0, len(recent)),
		ConnectionStatus: toConnectionStatusResponse(s.connectionStatus(ctx)),
	}
	for _, run := range recent {
		resp.RecentSyncs = append(resp.RecentSyncs, ToSyncRunResponse(run, now))
	}
	resp.LastSync = toSyncRunResponsePtr(latest, now)

	active, err := s.activeRun(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp.ActiveSync = toSyncRunResponsePtr(active, now)

	telemetry.SetOK(span)
	return resp, nil
}

// activeRun is the most recently started in-progress run of any type
func (s *SyncService) activeRun(ctx context.Context) (*idx.SyncRun, error) {
	var newest *idx.SyncRun
	for _, t := range []idx.SyncType{idx.SyncTypeProperties, idx.SyncTypeAgents, idx.SyncTypeFull} {
		run, err := s.runs.FindActive(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("load active %s sync: %w", t, err)
		}
		if run != nil && (newest == nil || run.StartedAt.After(newest.StartedAt)) {
			newest = run
		}
	}
	return newest, nil
}

// connectionStatus probes the provider at most once per ConnectionCheckTTL
func (s *SyncService) connectionStatus(ctx context.Context) idx.ConnectionStatus {
	s.probeMu.Lock()
	defer s.probeMu.Unlock()

	if s.lastProbe != nil && s.config.ConnectionCheckTTL > 0 &&
		s.now().Sub(s.lastProbe.LastCheckedAt) < s.config.ConnectionCheckTTL {
		return *s.lastProbe
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.config.ConnectionCheckTimeout)
	defer cancel()
	status := s.provider.CheckConnection(probeCtx)
	if status.LastCheckedAt.IsZero() {
		status.LastCheckedAt = s.now().UTC()
	}
	s.lastProbe = &status
	return status
}

// ReapStale fails runs stuck in progress past StaleAfter and returns how
// many were closed
func (s *SyncService) ReapStale(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.StaleAfter)
	n, err := s.runs.MarkStale(ctx, cutoff, StaleRunMessage)
	if err != nil {
		return 0, fmt.Errorf("reap stale sync runs: %w", err)
	}
	if n > 0 {
		s.logger.Warn("closed abandoned sync runs",
			zap.Int64("count", n),
			zap.Time("started_before", cutoff),
		)
	}
	return n, nil
}
