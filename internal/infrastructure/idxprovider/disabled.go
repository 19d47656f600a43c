package idxprovider

import (
	"context"
	"fmt"
	"time"

	"github.com/realty/backend/internal/domain/idx"
)

// DisabledProvider stands in when no provider base URL is configured.
// Search keeps working; every sync fails with a configuration error.
type DisabledProvider struct {
	name string
}

// NewDisabledProvider creates a DisabledProvider
func NewDisabledProvider(name string) *DisabledProvider {
	if name == "" {
		name = "idx"
	}
	return &DisabledProvider{name: name}
}

// Name identifies the provider
func (p *DisabledProvider) Name() string {
	return p.name
}

// FetchPage always fails without retry
func (p *DisabledProvider) FetchPage(ctx context.Context, req idx.PageRequest) (*idx.PageResponse, error) {
	return nil, fmt.Errorf("%w: provider %q has no base URL configured", idx.ErrProviderAuth, p.name)
}

// CheckConnection reports the provider as unreachable
func (p *DisabledProvider) CheckConnection(ctx context.Context) idx.ConnectionStatus {
	return idx.ConnectionStatus{
		Provider:      p.name,
		LastCheckedAt: time.Now().UTC(),
		Message:       "not configured",
	}
}

var _ idx.PropertyProvider = (*DisabledProvider)(nil)
