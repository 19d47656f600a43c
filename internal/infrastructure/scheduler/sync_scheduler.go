package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realty/backend/internal/domain/idx"
)

// RunExecutor executes submitted sync runs
type RunExecutor interface {
	// Execute runs a sync and stores its terminal state
	Execute(ctx context.Context, run *idx.SyncRun) error
	// Abort fails a run that will never execute
	Abort(ctx context.Context, run *idx.SyncRun, cause error)
}

// ---------------------------------------------------------------------------
// SyncSchedulerConfig
// ---------------------------------------------------------------------------

// SyncSchedulerConfig holds configuration for the sync worker pool
type SyncSchedulerConfig struct {
	// Workers is the number of runs executed concurrently
	Workers int
	// QueueSize is the number of runs waiting for a worker
	QueueSize int
	// JobTimeout is the maximum time a run can take
	JobTimeout time.Duration
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Workers:    2,
		QueueSize:  16,
		JobTimeout: 30 * time.Minute,
	}
}

// Validate validates the configuration
func (c *SyncSchedulerConfig) Validate() error {
	if c.Workers <= 0 || c.QueueSize < 0 || c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// SyncScheduler runs sync jobs on a fixed worker pool so the caller that
// started a run returns right away
type SyncScheduler struct {
	config   SyncSchedulerConfig
	executor RunExecutor
	logger   *zap.Logger

	jobs      chan *idx.SyncRun
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, executor RunExecutor, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		config:   config,
		executor: executor,
		logger:   logger,
	}, nil
}

// Start starts the worker pool
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true
	s.jobs = make(chan *idx.SyncRun, s.config.QueueSize)

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Int("queue_size", s.config.QueueSize),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs, waits for the workers and fails every run
// still queued
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	jobs := s.jobs
	close(jobs)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}

	// workers quit on cancel, so runs never picked up are still queued
	for run := range jobs {
		s.executor.Abort(ctx, run, fmt.Errorf("%w: server shutting down before the run started", ErrSyncInterrupted))
	}

	s.logger.Info("Sync scheduler stopped gracefully")
	return nil
}

// Submit queues a run for execution. It never blocks.
func (s *SyncScheduler) Submit(run *idx.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- run:
		s.logger.Debug("Sync job submitted",
			zap.String("sync_run_id", run.ID.String()),
			zap.String("sync_type", string(run.SyncType)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// IsRunning reports whether the pool accepts jobs
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		// prefer cancellation over picking up more work
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case run, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, run, workerID)
		}
	}
}

func (s *SyncScheduler) processJob(ctx context.Context, run *idx.SyncRun, workerID int) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Sync job panicked",
				zap.Int("worker_id", workerID),
				zap.String("sync_run_id", run.ID.String()),
				zap.Any("panic", r),
			)
			s.executor.Abort(ctx, run, fmt.Errorf("sync panicked: %v", r))
		}
	}()

	if err := s.executor.Execute(jobCtx, run); err != nil {
		s.logger.Debug("Sync job ended with error",
			zap.Int("worker_id", workerID),
			zap.String("sync_run_id", run.ID.String()),
			zap.Error(err),
		)
	}
}
