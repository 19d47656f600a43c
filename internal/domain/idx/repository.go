package idx

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SyncRunRepository persists sync audit records. The stored rows are the
// only record of whether a sync is running, so the guard holds across
// processes.
type SyncRunRepository interface {
	// Create inserts an in-progress run, or returns ErrSyncAlreadyRunning
	// when another run of the same type is in progress
	Create(ctx context.Context, run *SyncRun) error

	// UpdateProgress stores the counters of a run still in progress
	UpdateProgress(ctx context.Context, run *SyncRun) error

	// Finish writes the terminal state once; a run already terminal
	// yields ErrSyncRunAlreadyFinished
	Finish(ctx context.Context, run *SyncRun) error

	// FindByID finds a run by ID
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)

	// FindLatest returns the most recently started run, or nil
	FindLatest(ctx context.Context) (*SyncRun, error)

	// FindRecent returns up to limit runs, newest first
	FindRecent(ctx context.Context, limit int) ([]*SyncRun, error)

	// FindActive returns the in-progress run of a type, or nil
	FindActive(ctx context.Context, syncType SyncType) (*SyncRun, error)

	// MarkStale fails in-progress runs started before the cutoff and
	// returns how many were closed
	MarkStale(ctx context.Context, startedBefore time.Time, message string) (int64, error)
}
