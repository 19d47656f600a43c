package listing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/realty/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Coordinates is an optional lat/lng pair
type Coordinates struct {
	Latitude  decimal.Decimal `json:"lat"`
	Longitude decimal.Decimal `json:"lng"`
}

// Property is the canonical listing record
type Property struct {
	shared.BaseEntity

	MLSID      string
	ListingKey string

	Title              string
	Description        string
	Address            string
	City               string
	State              string
	ZipCode            string
	Neighborhood       *string
	SchoolDistrict     *string
	PropertyType       string
	ArchitecturalStyle string
	SecondaryStyle     *string
	StyleConfidence    *decimal.Decimal
	StyleFeatures      []string

	Price             decimal.Decimal
	OriginalListPrice *decimal.Decimal
	Status            string
	MLSStatus         string

	Beds      int
	Baths     decimal.Decimal
	Sqft      int
	YearBuilt *int

	Images         []string
	PhotoCount     int
	VirtualTourURL *string

	Coordinates *Coordinates

	Featured bool
	Luxury   bool

	IsIDXListing          bool
	IDXSyncedAt           time.Time
	ListingAgentKey       *string
	ListingOfficeName     *string
	DaysOnMarket          *int
	ModificationTimestamp *time.Time

	// ContentHash fingerprints the provider-sourced content for change
	// detection when the provider sends no modification timestamp.
	ContentHash string
}

// NaturalKey is the de-duplication key: mlsId, or listingKey when mlsId is empty
func (p *Property) NaturalKey() string {
	return NaturalKey(p.MLSID, p.ListingKey)
}

// NaturalKey picks the de-duplication key from a provider id pair
func NaturalKey(mlsID, listingKey string) string {
	if k := strings.TrimSpace(mlsID); k != "" {
		return k
	}
	return strings.TrimSpace(listingKey)
}

// PrimaryImage returns the card thumbnail, or "" when there are no images
func (p *Property) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ApplyThresholds recomputes the derived flags from the current price
func (p *Property) ApplyThresholds(t Thresholds) {
	p.Featured, p.Luxury = t.Classify(p.Price)
}

// Validate checks the stored-record invariants
func (p *Property) Validate() error {
	var problems []string
	if p.NaturalKey() == "" {
		problems = append(problems, "missing provider id")
	}
	if p.Price.IsNegative() {
		problems = append(problems, "price is negative")
	}
	if p.Beds < 0 {
		problems = append(problems, "beds is negative")
	}
	if p.Sqft < 0 {
		problems = append(problems, "sqft is negative")
	}
	if p.Baths.IsNegative() {
		problems = append(problems, "baths is negative")
	}
	for _, img := range p.Images {
		if strings.TrimSpace(img) == "" {
			problems = append(problems, "images contains an empty url")
			break
		}
	}
	if len(problems) > 0 {
		return &MalformedListingError{ProviderID: p.NaturalKey(), Problems: problems}
	}
	return nil
}

// Fingerprint hashes the provider-sourced fields. Internal ids, sync time
// and derived flags are excluded so an unchanged record hashes the same
// across runs.
func (p *Property) Fingerprint() string {
	content := struct {
		MLSID, ListingKey, Title, Description, Address, City, State, ZipCode string
		Neighborhood, SchoolDistrict, SecondaryStyle, VirtualTourURL         *string
		ListingAgentKey, ListingOfficeName                                  *string
		PropertyType, ArchitecturalStyle, Status, MLSStatus                 string
		StyleFeatures, Images                                               []string
		Price, Baths                                                        string
		OriginalListPrice, StyleConfidence                                  *string
		Beds, Sqft, PhotoCount                                              int
		YearBuilt, DaysOnMarket                                             *int
		Coordinates                                                         *[2]string
	}{
		MLSID: p.MLSID, ListingKey: p.ListingKey, Title: p.Title, Description: p.Description,
		Address: p.Address, City: p.City, State: p.State, ZipCode: p.ZipCode,
		Neighborhood: p.Neighborhood, SchoolDistrict: p.SchoolDistrict,
		SecondaryStyle: p.SecondaryStyle, VirtualTourURL: p.VirtualTourURL,
		ListingAgentKey: p.ListingAgentKey, ListingOfficeName: p.ListingOfficeName,
		PropertyType: p.PropertyType, ArchitecturalStyle: p.ArchitecturalStyle,
		Status: p.Status, MLSStatus: p.MLSStatus,
		StyleFeatures: p.StyleFeatures, Images: p.Images,
		Price: p.Price.String(), Baths: p.Baths.String(),
		OriginalListPrice: decimalString(p.OriginalListPrice),
		StyleConfidence:   decimalString(p.StyleConfidence),
		Beds:              p.Beds, Sqft: p.Sqft, PhotoCount: p.PhotoCount,
		YearBuilt: p.YearBuilt, DaysOnMarket: p.DaysOnMarket,
	}
	if p.Coordinates != nil {
		content.Coordinates = &[2]string{p.Coordinates.Latitude.String(), p.Coordinates.Longitude.String()}
	}

	// Marshal of this struct cannot fail: it holds only strings, ints and slices.
	data, _ := json.Marshal(content)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
