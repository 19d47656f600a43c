package listing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/realty/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// NormalizerConfig controls fallbacks and derived flags
type NormalizerConfig struct {
	Thresholds   Thresholds
	DefaultState string
	DefaultZip   string
	// Now is the clock for idxSyncedAt; defaults to time.Now
	Now func() time.Time
}

// Normalizer maps provider records onto the canonical Property. One
// Normalizer is built per sync run so every record sees the same thresholds.
type Normalizer struct {
	thresholds   Thresholds
	defaultState string
	defaultZip   string
	now          func() time.Time
}

// NewNormalizer creates a Normalizer
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Normalizer{
		thresholds:   cfg.Thresholds,
		defaultState: NormalizeState(cfg.DefaultState),
		defaultZip:   NormalizeZip(cfg.DefaultZip),
		now:          now,
	}
}

// Thresholds returns the pair this Normalizer applies
func (n *Normalizer) Thresholds() Thresholds {
	return n.thresholds
}

// timestampLayouts are the modification timestamp formats seen in feeds
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts one provider record. A record without a provider id,
// an address or a numeric list price fails with a *MalformedListingError.
func (n *Normalizer) Normalize(raw RawExternalProperty) (*Property, error) {
	providerID := raw.ProviderID()
	var problems []string

	if providerID == "" {
		problems = append(problems, "missing mlsId/listingKey")
	}
	if strings.TrimSpace(raw.Address) == "" {
		problems = append(problems, "missing address")
	}
	switch {
	case !raw.ListPrice.Present():
		problems = append(problems, "missing listPrice")
	case !raw.ListPrice.Valid:
		problems = append(problems, fmt.Sprintf("listPrice %q is not numeric", raw.ListPrice.Raw))
	case raw.ListPrice.Value.IsNegative():
		problems = append(problems, "listPrice is negative")
	}

	beds, err := wholeNumber("beds", raw.Beds)
	if err != nil {
		problems = append(problems, err.Error())
	}
	sqft, err := wholeNumber("sqft", raw.Sqft)
	if err != nil {
		problems = append(problems, err.Error())
	}
	baths := decimal.Zero
	if raw.Baths.Valid {
		if raw.Baths.Value.IsNegative() {
			problems = append(problems, "baths is negative")
		}
		baths = raw.Baths.Value
	}

	if len(problems) > 0 {
		return nil, &MalformedListingError{ProviderID: providerID, Problems: problems}
	}

	now := n.now().UTC()
	p := &Property{
		BaseEntity:         shared.NewBaseEntity(now),
		MLSID:              raw.MLSID.String(),
		ListingKey:         raw.ListingKey.String(),
		Description:        strings.TrimSpace(raw.Description),
		PropertyType:       strings.TrimSpace(raw.PropertyType),
		ArchitecturalStyle: strings.TrimSpace(raw.Style),
		SecondaryStyle:     optionalString(raw.SecondaryStyle),
		StyleFeatures:      cleanStrings(raw.StyleFeatures, false),
		Price:              raw.ListPrice.Value,
		OriginalListPrice:  optionalDecimal(raw.OriginalListPrice),
		StyleConfidence:    optionalDecimal(raw.StyleConfidence),
		Status:             strings.ToLower(strings.TrimSpace(raw.Status)),
		MLSStatus:          strings.TrimSpace(raw.MLSStatus),
		Beds:               beds,
		Baths:              baths,
		Sqft:               sqft,
		YearBuilt:          optionalInt(raw.YearBuilt),
		VirtualTourURL:     optionalString(raw.VirtualTourURL),
		Neighborhood:       optionalString(raw.Subdivision),
		SchoolDistrict:     optionalString(raw.School),
		ListingAgentKey:    optionalString(raw.ListingAgentKey.String()),
		ListingOfficeName:  optionalString(raw.ListingOfficeName),
		DaysOnMarket:       optionalInt(raw.DaysOnMarket),
		IsIDXListing:       true,
		IDXSyncedAt:        now,
	}
	if p.Status == "" && p.MLSStatus != "" {
		p.Status = strings.ToLower(p.MLSStatus)
	}

	n.applyAddress(p, raw)
	p.Images = normalizeImages(raw)
	p.PhotoCount = len(p.Images)
	if c := optionalInt(raw.PhotoCount); c != nil && *c > p.PhotoCount {
		p.PhotoCount = *c
	}
	if raw.Latitude.Valid && raw.Longitude.Valid {
		p.Coordinates = &Coordinates{Latitude: raw.Latitude.Value, Longitude: raw.Longitude.Value}
	}
	p.ModificationTimestamp = parseTimestamp(raw.ModificationTimestamp.String())

	p.Title = strings.TrimSpace(raw.Title)
	if p.Title == "" {
		p.Title = defaultTitle(p)
	}

	p.ApplyThresholds(n.thresholds)
	p.ContentHash = p.Fingerprint()
	return p, nil
}

// applyAddress splits the address line; explicit raw city/state/zip win
// over parsed values, and configured defaults fill what is still missing.
func (n *Normalizer) applyAddress(p *Property, raw RawExternalProperty) {
	parsed := ParseAddress(raw.Address)

	p.Address = parsed.Street
	if p.Address == "" {
		p.Address = collapseSpaces(raw.Address)
	}

	p.City = NormalizeCity(raw.City)
	if p.City == "" {
		p.City = NormalizeCity(parsed.City)
	}

	p.State = NormalizeState(raw.State)
	if p.State == "" {
		p.State = parsed.State
	}
	if p.State == "" {
		p.State = n.defaultState
	}

	p.ZipCode = NormalizeZip(raw.ZipCode.String())
	if p.ZipCode == "" {
		p.ZipCode = parsed.Zip
	}
	if p.ZipCode == "" {
		p.ZipCode = n.defaultZip
	}
}

// normalizeImages keeps provider order, drops blanks and repeats
func normalizeImages(raw RawExternalProperty) []string {
	candidates := []string(raw.Images)
	if len(candidates) == 0 && strings.TrimSpace(raw.ImageURL) != "" {
		candidates = []string{raw.ImageURL}
	}
	return cleanStrings(candidates, true)
}

func cleanStrings(in []string, dedupe bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || (dedupe && seen[s]) {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func defaultTitle(p *Property) string {
	var b strings.Builder
	if p.Beds > 0 {
		b.WriteString(strconv.Itoa(p.Beds))
		b.WriteString(" Bed ")
	}
	if p.PropertyType != "" {
		b.WriteString(p.PropertyType)
	} else {
		b.WriteString("Home")
	}
	if p.City != "" {
		b.WriteString(" in ")
		b.WriteString(p.City)
	}
	return b.String()
}

func wholeNumber(field string, d FlexDecimal) (int, error) {
	if !d.Present() {
		return 0, nil
	}
	if !d.Valid {
		return 0, fmt.Errorf("%s %q is not numeric", field, d.Raw)
	}
	if d.Value.IsNegative() {
		return 0, fmt.Errorf("%s is negative", field)
	}
	return int(d.Value.IntPart()), nil
}

func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC().Truncate(time.Second)
			return &t
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return nil
	}
	// 13 or more digits is an epoch in milliseconds
	var t time.Time
	if len(strings.TrimLeft(s, "+0")) >= 13 {
		t = time.UnixMilli(n).UTC().Truncate(time.Second)
	} else {
		t = time.Unix(n, 0).UTC()
	}
	return &t
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalDecimal(d FlexDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Value
	return &v
}

func optionalInt(d FlexDecimal) *int {
	if !d.Valid || d.Value.IsNegative() {
		return nil
	}
	v := int(d.Value.IntPart())
	return &v
}
