package listing

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// RawExternalProperty is one provider record as received. Every field is
// optional and numeric fields tolerate strings, so a single odd record
// never fails decoding of the whole page.
type RawExternalProperty struct {
	MLSID      FlexString `json:"mlsId"`
	ListingKey FlexString `json:"listingKey"`

	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Address      string     `json:"address"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	ZipCode      FlexString `json:"zipCode"`
	Subdivision  string     `json:"subdivision"`
	School       string     `json:"schoolDistrict"`
	PropertyType string     `json:"propertyType"`
	Style        string     `json:"style"`

	SecondaryStyle  string      `json:"secondaryStyle"`
	StyleConfidence FlexDecimal `json:"styleConfidence"`
	StyleFeatures   FlexStrings `json:"styleFeatures"`

	ListPrice         FlexDecimal `json:"listPrice"`
	OriginalListPrice FlexDecimal `json:"originalListPrice"`
	Status            string      `json:"status"`
	MLSStatus         string      `json:"mlsStatus"`

	Beds      FlexDecimal `json:"beds"`
	Baths     FlexDecimal `json:"baths"`
	Sqft      FlexDecimal `json:"sqft"`
	YearBuilt FlexDecimal `json:"yearBuilt"`

	ImageURL       string      `json:"imageUrl"`
	Images         FlexStrings `json:"images"`
	PhotoCount     FlexDecimal `json:"photoCount"`
	VirtualTourURL string      `json:"virtualTourUrl"`

	Latitude  FlexDecimal `json:"latitude"`
	Longitude FlexDecimal `json:"longitude"`

	ListingAgentKey       FlexString  `json:"listingAgentKey"`
	ListingOfficeName     string      `json:"listingOfficeName"`
	DaysOnMarket          FlexDecimal `json:"daysOnMarket"`
	ModificationTimestamp FlexString  `json:"modificationTimestamp"`
}

// ProviderID returns the record's natural key, possibly empty
func (r *RawExternalProperty) ProviderID() string {
	return NaturalKey(r.MLSID.String(), r.ListingKey.String())
}

// FlexString decodes a JSON string or number into a trimmed string
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = FlexString(strings.TrimSpace(str))
		return nil
	}
	// numbers and booleans keep their literal text
	*s = FlexString(string(b))
	return nil
}

// String returns the plain string value
func (s FlexString) String() string {
	return string(s)
}

// FlexDecimal decodes a JSON number or a numeric string such as "$450,000".
// Raw keeps the original text so an unparseable value can be reported.
type FlexDecimal struct {
	Value decimal.Decimal
	Valid bool
	Raw   string
}

// UnmarshalJSON implements json.Unmarshaler and never fails on bad content
func (d *FlexDecimal) UnmarshalJSON(b []byte) error {
	*d = FlexDecimal{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	text := string(b)
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		text = str
	}
	d.Raw = strings.TrimSpace(text)
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(d.Raw)
	if cleaned == "" {
		return nil
	}
	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	d.Value = v
	d.Valid = true
	return nil
}

// Present reports whether the field carried any non-empty value
func (d FlexDecimal) Present() bool {
	return d.Raw != ""
}

// NewFlexDecimal builds a valid FlexDecimal, mostly for tests and fixtures
func NewFlexDecimal(v decimal.Decimal) FlexDecimal {
	return FlexDecimal{Value: v, Valid: true, Raw: v.String()}
}

// MarshalJSON emits the number or null
func (d FlexDecimal) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		if d.Raw != "" {
			return json.Marshal(d.Raw)
		}
		return []byte("null"), nil
	}
	return []byte(d.Value.String()), nil
}

// FlexStrings decodes either a JSON array of strings or a single string
type FlexStrings []string

// UnmarshalJSON implements json.Unmarshaler
func (s *FlexStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = nil
		return nil
	}
	if b[0] == '"' {
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*s = FlexStrings{one}
		return nil
	}
	var items []any
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(FlexStrings, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			// some feeds send [{"url": "..."}]
			if u, ok := v["url"].(string); ok {
				out = append(out, u)
			}
		}
	}
	*s = out
	return nil
}
