package listing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/realty/backend/internal/domain/shared"
)

var (
	// ErrMalformedListing is returned when a provider record fails required-field validation
	ErrMalformedListing = errors.New("listing: malformed provider record")

	// ErrPropertyNotFound is returned when a property lookup misses
	ErrPropertyNotFound = shared.NewDomainError("PROPERTY_NOT_FOUND", "Property not found")

	// ErrStorage marks a failure persisting a single property
	ErrStorage = errors.New("listing: storage operation failed")

	// ErrStoreUnavailable marks a connectivity-level failure of the property store
	ErrStoreUnavailable = errors.New("listing: property store unavailable")

	// ErrInvalidFilter is returned for search filters that cannot be satisfied
	ErrInvalidFilter = shared.NewDomainError("INVALID_FILTER", "Invalid search filter")
)

// MalformedListingError describes why a provider record was rejected
type MalformedListingError struct {
	ProviderID string
	Problems   []string
}

// Error implements the error interface
func (e *MalformedListingError) Error() string {
	id := e.ProviderID
	if id == "" {
		id = "<unknown>"
	}
	return fmt.Sprintf("listing %s malformed: %s", id, strings.Join(e.Problems, "; "))
}

// Is reports ErrMalformedListing
func (e *MalformedListingError) Is(target error) bool {
	return target == ErrMalformedListing
}
