package listing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Thresholds is the single featured/luxury price pair applied to every
// record of a sync run.
type Thresholds struct {
	Featured decimal.Decimal
	Luxury   decimal.Decimal
}

// DefaultThresholds returns the $300K featured and $400K luxury pair
func DefaultThresholds() Thresholds {
	return Thresholds{
		Featured: decimal.NewFromInt(300000),
		Luxury:   decimal.NewFromInt(400000),
	}
}

// NewThresholds validates and builds a threshold pair
func NewThresholds(featured, luxury decimal.Decimal) (Thresholds, error) {
	if featured.IsNegative() || luxury.IsNegative() {
		return Thresholds{}, fmt.Errorf("listing: thresholds cannot be negative")
	}
	if featured.GreaterThan(luxury) {
		return Thresholds{}, fmt.Errorf("listing: featured threshold %s exceeds luxury threshold %s", featured, luxury)
	}
	return Thresholds{Featured: featured, Luxury: luxury}, nil
}

// Classify returns the derived flags for a price
func (t Thresholds) Classify(price decimal.Decimal) (featured, luxury bool) {
	return price.GreaterThanOrEqual(t.Featured), price.GreaterThanOrEqual(t.Luxury)
}
