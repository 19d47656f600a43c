package idx

import (
	"context"
	"time"

	"github.com/realty/backend/internal/domain/listing"
)

// PageRequest asks for one page; Page starts at 1
type PageRequest struct {
	Page     int
	PageSize int
}

// PageResponse is one decoded provider page
type PageResponse struct {
	Records []listing.RawExternalProperty
	// Undecodable counts records whose JSON did not fit the record shape
	Undecodable int
	// HasMore is the provider's continuation signal
	HasMore bool
	// Total is the provider's total count, or -1 when not reported
	Total int
	// Body is the undecoded payload, kept for archiving
	Body []byte
}

// ConnectionStatus is the result of a provider reachability probe
type ConnectionStatus struct {
	Provider      string
	Reachable     bool
	LastCheckedAt time.Time
	Latency       time.Duration
	Message       string
}

// PropertyProvider is the external listing feed
type PropertyProvider interface {
	// Name identifies the provider in status output
	Name() string

	// FetchPage returns ErrProviderAuth for 4xx and ErrProviderUnavailable
	// once transient failures exhaust retries
	FetchPage(ctx context.Context, req PageRequest) (*PageResponse, error)

	// CheckConnection probes the provider without failing
	CheckConnection(ctx context.Context) ConnectionStatus
}
