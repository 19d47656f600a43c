// Package listing holds the canonical property listing model, the provider
// record it is normalized from, and the search filter used to query it.
//
// A Property is keyed by its provider identity (mlsId, falling back to
// listingKey). Featured and luxury flags are derived from the price through
// a Thresholds value at normalization time and are never set directly.
package listing
