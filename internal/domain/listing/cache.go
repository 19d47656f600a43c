package listing

import (
	"context"

	"github.com/realty/backend/internal/domain/shared"
)

// SearchCache holds search result pages. Entries are keyed by the caller
// and become unreachable together on Invalidate.
type SearchCache interface {
	// Get returns a cached page; a miss or a broken cache both report false
	Get(ctx context.Context, key string) (*shared.Paginated[Property], bool)

	// Set stores a page; failures are the cache's concern
	Set(ctx context.Context, key string, page *shared.Paginated[Property])

	// Invalidate drops every cached page
	Invalidate(ctx context.Context) error
}
