package listing

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var reZip = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

var stateCodes = map[string]string{
	"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR", "CALIFORNIA": "CA",
	"COLORADO": "CO", "CONNECTICUT": "CT", "DELAWARE": "DE", "DISTRICT OF COLUMBIA": "DC",
	"FLORIDA": "FL", "GEORGIA": "GA", "HAWAII": "HI", "IDAHO": "ID", "ILLINOIS": "IL",
	"INDIANA": "IN", "IOWA": "IA", "KANSAS": "KS", "KENTUCKY": "KY", "LOUISIANA": "LA",
	"MAINE": "ME", "MARYLAND": "MD", "MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN",
	"MISSISSIPPI": "MS", "MISSOURI": "MO", "MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV",
	"NEW HAMPSHIRE": "NH", "NEW JERSEY": "NJ", "NEW MEXICO": "NM", "NEW YORK": "NY",
	"NORTH CAROLINA": "NC", "NORTH DAKOTA": "ND", "OHIO": "OH", "OKLAHOMA": "OK", "OREGON": "OR",
	"PENNSYLVANIA": "PA", "RHODE ISLAND": "RI", "SOUTH CAROLINA": "SC", "SOUTH DAKOTA": "SD",
	"TENNESSEE": "TN", "TEXAS": "TX", "UTAH": "UT", "VERMONT": "VT", "VIRGINIA": "VA",
	"WASHINGTON": "WA", "WEST VIRGINIA": "WV", "WISCONSIN": "WI", "WYOMING": "WY",
}

var validStateCodes = func() map[string]bool {
	m := make(map[string]bool, len(stateCodes))
	for _, code := range stateCodes {
		m[code] = true
	}
	return m
}()

// ParsedAddress is an address line split into its parts. Empty fields
// could not be parsed.
type ParsedAddress struct {
	Street string
	City   string
	State  string
	Zip    string
}

// ParseAddress splits "123 Main St, Omaha, NE 68104" style lines. It never
// fails: whatever cannot be recognized stays in Street or is left empty.
func ParseAddress(line string) ParsedAddress {
	var segments []string
	for _, seg := range strings.Split(line, ",") {
		if seg = collapseSpaces(seg); seg != "" {
			segments = append(segments, seg)
		}
	}

	switch len(segments) {
	case 0:
		return ParsedAddress{}
	case 1:
		return ParsedAddress{Street: segments[0]}
	}

	last := segments[len(segments)-1]
	state, zip, rest := parseStateZip(last)

	var out ParsedAddress
	out.State, out.Zip = state, zip

	switch {
	case rest == "" && len(segments) >= 3:
		// "street, city, ST 12345"
		out.City = segments[len(segments)-2]
		out.Street = strings.Join(segments[:len(segments)-2], ", ")
	case rest == "":
		// "street, ST 12345"
		out.Street = segments[0]
	case state == "" && zip == "" && len(segments) >= 3:
		// trailing segment is not a state/zip; treat it as noise after the city
		out.City = segments[len(segments)-2]
		out.Street = strings.Join(segments[:len(segments)-2], ", ")
	default:
		// "street, city ST 12345" or "street, city"
		out.City = rest
		out.Street = strings.Join(segments[:len(segments)-1], ", ")
	}
	return out
}

// parseStateZip peels a ZIP and a state off the end of a segment
func parseStateZip(seg string) (state, zip, rest string) {
	tokens := strings.Fields(seg)

	if n := len(tokens); n > 0 && reZip.MatchString(tokens[n-1]) {
		zip = trimZip(tokens[n-1])
		tokens = tokens[:n-1]
	}

	if n := len(tokens); n > 0 {
		if code := strings.ToUpper(tokens[n-1]); len(code) == 2 && validStateCodes[code] {
			state = code
			tokens = tokens[:n-1]
		} else {
			// longest trailing run of words naming a state, e.g. "New York"
			for i := 0; i < n; i++ {
				if code, ok := stateCodes[strings.ToUpper(strings.Join(tokens[i:], " "))]; ok {
					state = code
					tokens = tokens[:i]
					break
				}
			}
		}
	}

	return state, zip, strings.Join(tokens, " ")
}

// NormalizeState maps full names and lowercase codes to a USPS code, or ""
func NormalizeState(s string) string {
	s = strings.ToUpper(collapseSpaces(s))
	if validStateCodes[s] {
		return s
	}
	return stateCodes[s]
}

// NormalizeZip trims ZIP+4 to five digits, or returns "" when not a ZIP
func NormalizeZip(z string) string {
	z = strings.TrimSpace(z)
	if !reZip.MatchString(z) {
		return ""
	}
	return trimZip(z)
}

// NormalizeCity collapses whitespace and title-cases "OMAHA" to "Omaha"
func NormalizeCity(c string) string {
	c = collapseSpaces(c)
	if c == "" {
		return ""
	}
	// a Caser is stateful, so each call gets its own
	return cases.Title(language.English).String(strings.ToLower(c))
}

func trimZip(z string) string {
	if len(z) > 5 {
		return z[:5]
	}
	return z
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
