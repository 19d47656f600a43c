package idx

import (
	"context"

	"github.com/google/uuid"
)

// PageArchive keeps the raw provider pages of a run for replay
type PageArchive interface {
	ArchivePage(ctx context.Context, runID uuid.UUID, page int, body []byte) error
}
