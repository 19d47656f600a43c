package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/realty/backend/internal/domain/idx"
)

// SyncStarter starts sync runs and closes abandoned ones
type SyncStarter interface {
	StartSync(ctx context.Context, syncType idx.SyncType, trigger idx.Trigger) (*idx.SyncRun, error)
	ReapStale(ctx context.Context) (int64, error)
}

// SyncCronTriggerConfig holds configuration for the scheduled sync
type SyncCronTriggerConfig struct {
	// Schedule is a standard five-field cron expression or a descriptor
	// such as "@every 6h"
	Schedule string
	// SyncType is started on every tick
	SyncType idx.SyncType
	// TickTimeout bounds the work done inside one tick
	TickTimeout time.Duration
}

// DefaultSyncCronTriggerConfig returns default configuration
func DefaultSyncCronTriggerConfig() SyncCronTriggerConfig {
	return SyncCronTriggerConfig{
		Schedule:    "0 */6 * * *",
		SyncType:    idx.SyncTypeProperties,
		TickTimeout: 30 * time.Second,
	}
}

// SyncCronTrigger starts a sync on a cron schedule
type SyncCronTrigger struct {
	config  SyncCronTriggerConfig
	starter SyncStarter
	logger  *zap.Logger

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

// NewSyncCronTrigger creates a new sync cron trigger. The schedule is
// parsed up front so a bad expression fails startup.
func NewSyncCronTrigger(config SyncCronTriggerConfig, starter SyncStarter, logger *zap.Logger) (*SyncCronTrigger, error) {
	if !config.SyncType.IsValid() {
		return nil, idx.ErrInvalidSyncType
	}
	if config.TickTimeout <= 0 {
		config.TickTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &SyncCronTrigger{
		config:  config,
		starter: starter,
		logger:  logger,
		cron:    cron.New(cron.WithLocation(time.UTC)),
	}
	if _, err := c.cron.AddFunc(config.Schedule, c.tick); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidCronSchedule, config.Schedule, err)
	}
	return c, nil
}

// Start starts the cron trigger
func (c *SyncCronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		return nil
	}
	c.isRunning = true
	c.cron.Start()

	c.logger.Info("Sync cron trigger started",
		zap.String("schedule", c.config.Schedule),
		zap.String("sync_type", string(c.config.SyncType)),
	)
	return nil
}

// Stop stops scheduling and waits for a tick in flight
func (c *SyncCronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	stopped := c.cron.Stop()
	select {
	case <-stopped.Done():
		c.logger.Info("Sync cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled tick
func (c *SyncCronTrigger) Next() time.Time {
	entries := c.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// tick closes abandoned runs first so a crashed run cannot block the new one
func (c *SyncCronTrigger) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.TickTimeout)
	defer cancel()

	if n, err := c.starter.ReapStale(ctx); err != nil {
		c.logger.Warn("Failed to close stale sync runs", zap.Error(err))
	} else if n > 0 {
		c.logger.Warn("Closed stale sync runs", zap.Int64("count", n))
	}

	run, err := c.starter.StartSync(ctx, c.config.SyncType, idx.TriggerCron)
	switch {
	case errors.Is(err, idx.ErrSyncAlreadyRunning):
		c.logger.Info("Scheduled sync skipped, a run is already in progress",
			zap.String("sync_type", string(c.config.SyncType)),
		)
	case err != nil:
		c.logger.Error("Failed to start scheduled sync", zap.Error(err))
	default:
		c.logger.Info("Scheduled sync started", zap.String("sync_run_id", run.ID.String()))
	}
}
