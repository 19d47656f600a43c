package idx

import (
	"errors"

	"github.com/realty/backend/internal/domain/shared"
)

var (
	// ErrProviderUnavailable is a transient network or 5xx failure that
	// survived the retry budget
	ErrProviderUnavailable = errors.New("idx: provider unavailable")

	// ErrProviderAuth is a 4xx response; retrying cannot help
	ErrProviderAuth = errors.New("idx: provider rejected the request")

	// ErrSyncAlreadyRunning rejects a run while one of the same type is in progress
	ErrSyncAlreadyRunning = shared.NewDomainError("SYNC_ALREADY_RUNNING", "A sync of this type is already running")

	// ErrSyncRunNotFound is returned when a run lookup misses
	ErrSyncRunNotFound = shared.NewDomainError("SYNC_RUN_NOT_FOUND", "Sync run not found")

	// ErrSyncRunAlreadyFinished is returned on a second terminal transition
	ErrSyncRunAlreadyFinished = shared.NewDomainError("SYNC_RUN_FINISHED", "Sync run already reached a terminal state")

	// ErrSyncNotAccepted is returned when the worker pool cannot take a run
	ErrSyncNotAccepted = shared.NewDomainError("SYNC_NOT_ACCEPTED", "Sync could not be queued, try again later")

	// ErrInvalidSyncType rejects unknown sync types
	ErrInvalidSyncType = shared.NewDomainError("INVALID_SYNC_TYPE", "Sync type must be one of properties, agents, full")
)
