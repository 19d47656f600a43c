package listing

import (
	"context"

	"github.com/google/uuid"
	"github.com/realty/backend/internal/domain/shared"
)

// UpsertResult is the outcome of writing one property
type UpsertResult string

const (
	UpsertCreated   UpsertResult = "created"
	UpsertUpdated   UpsertResult = "updated"
	UpsertUnchanged UpsertResult = "unchanged"

	// UpsertReclassified keeps the stored content but rewrites its featured
	// and luxury flags, e.g. after the thresholds changed
	UpsertReclassified UpsertResult = "reclassified"
)

// Created reports whether a new row was inserted
func (r UpsertResult) Created() bool {
	return r == UpsertCreated
}

// Changed reports whether the stored row now reads differently
func (r UpsertResult) Changed() bool {
	return r == UpsertCreated || r == UpsertUpdated || r == UpsertReclassified
}

// PropertyRepository is the property store. Upsert is atomic per natural
// key and safe to call concurrently.
type PropertyRepository interface {
	// Upsert inserts an unseen listing, updates one whose incoming record is
	// newer (by modification timestamp, or content when none is sent), and
	// otherwise only refreshes the sync time and, when the stored price is the
	// incoming one, the featured and luxury flags.
	Upsert(ctx context.Context, p *Property) (UpsertResult, error)

	// UpdateProvenance refreshes agent/office fields of an existing listing.
	// It reports false when the listing is unknown or already current.
	UpdateProvenance(ctx context.Context, naturalKey string, agentKey, officeName *string) (bool, error)

	FindByID(ctx context.Context, id uuid.UUID) (*Property, error)
	FindByNaturalKey(ctx context.Context, key string) (*Property, error)
	Query(ctx context.Context, filter SearchFilter, page shared.Pagination) (*shared.Paginated[Property], error)
	Count(ctx context.Context) (int64, error)

	// Ping checks store connectivity
	Ping(ctx context.Context) error
}
