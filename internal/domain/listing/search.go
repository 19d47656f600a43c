package listing

import (
	"github.com/shopspring/decimal"
)

// SortOrder is a whitelisted result ordering
type SortOrder string

const (
	// SortRecentlySynced orders most recently synced first; the default
	SortRecentlySynced SortOrder = "recent"
	SortPriceAsc       SortOrder = "price_asc"
	SortPriceDesc      SortOrder = "price_desc"
	SortNewest         SortOrder = "newest"
	SortBedsDesc       SortOrder = "beds_desc"
)

// IsValid checks if the sort order is known
func (s SortOrder) IsValid() bool {
	switch s {
	case SortRecentlySynced, SortPriceAsc, SortPriceDesc, SortNewest, SortBedsDesc:
		return true
	}
	return false
}

// SearchFilter is the user-facing property filter. Nil fields are
// unconstrained and all set fields combine with AND.
type SearchFilter struct {
	// Query is a case-insensitive substring over title, description,
	// address, city and neighborhood.
	Query *string

	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal

	// Beds and Baths are minimums
	Beds  *int
	Baths *decimal.Decimal

	// Exact matches, compared case-insensitively
	PropertyType       *string
	City               *string
	Neighborhood       *string
	SchoolDistrict     *string
	ArchitecturalStyle *string

	// Luxury and Featured only restrict when true
	Luxury   *bool
	Featured *bool

	Sort SortOrder
}

// Validate rejects filters no row could satisfy because of bad bounds
func (f SearchFilter) Validate() error {
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return ErrInvalidFilter
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return ErrInvalidFilter
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return ErrInvalidFilter
	}
	if f.Beds != nil && *f.Beds < 0 {
		return ErrInvalidFilter
	}
	if f.Baths != nil && f.Baths.IsNegative() {
		return ErrInvalidFilter
	}
	if f.Sort != "" && !f.Sort.IsValid() {
		return ErrInvalidFilter
	}
	return nil
}

// RestrictLuxury reports whether the luxury flag constrains results
func (f SearchFilter) RestrictLuxury() bool {
	return f.Luxury != nil && *f.Luxury
}

// RestrictFeatured reports whether the featured flag constrains results
func (f SearchFilter) RestrictFeatured() bool {
	return f.Featured != nil && *f.Featured
}
