package idx

import (
	"github.com/google/uuid"

	"github.com/realty/backend/internal/domain/shared"
)

// ErrInvalidRunID rejects a malformed sync run id
var ErrInvalidRunID = shared.NewDomainError("INVALID_SYNC_RUN_ID", "Sync run id must be a UUID")

func parseRunID(id string) (uuid.UUID, error) {
	runID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrInvalidRunID
	}
	return runID, nil
}
