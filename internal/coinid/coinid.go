// Package coinid is the single parser and validator for the normalized
// coin identifier format COUNTRY-TYPE-YEAR-MINT[-SUFFIX]. Every script
// that builds or decomposes an identifier goes through this package so
// the grammar cannot drift between tools.
package coinid

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedIdentifier is returned by Parse when the input does not
// match the identifier grammar. It is never auto-corrected.
var ErrMalformedIdentifier = errors.New("malformed coin identifier")

// YearUnspecified is the placeholder year for bullion products struck
// without a fixed date.
const YearUnspecified = "XXXX"

// MintUnspecified marks an unknown or unrecorded minting facility.
const MintUnspecified = "X"

// ID is a decomposed coin identifier.
//
// COUNTRY: 2-3 uppercase letters. TYPE: 2-4 uppercase alphanumerics,
// a stable series code. YEAR: 4 digits or "XXXX". MINT: 1+ uppercase
// letters, "X" when unspecified. SUFFIX: optional free-form alphanumeric
// variety qualifier. Only dash count and segment non-emptiness are
// enforced on the suffix; its length is not constrained.
type ID struct {
	Country string
	Type    string
	Year    string
	Mint    string
	Suffix  string
}

// Parse decomposes s into its segments, or fails with
// ErrMalformedIdentifier wrapped with the offending detail.
func Parse(s string) (ID, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 && len(parts) != 5 {
		return ID{}, fmt.Errorf("%w: %q has %d segments, want 4 or 5", ErrMalformedIdentifier, s, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return ID{}, fmt.Errorf("%w: %q has empty segment at position %d", ErrMalformedIdentifier, s, i)
		}
	}

	id := ID{
		Country: parts[0],
		Type:    parts[1],
		Year:    parts[2],
		Mint:    parts[3],
	}
	if len(parts) == 5 {
		id.Suffix = parts[4]
	}

	if !isUpperAlpha(id.Country) || len(id.Country) < 2 || len(id.Country) > 3 {
		return ID{}, fmt.Errorf("%w: %q country segment %q must be 2-3 uppercase letters", ErrMalformedIdentifier, s, id.Country)
	}
	if !isUpperAlnum(id.Type) || len(id.Type) < 2 || len(id.Type) > 4 {
		return ID{}, fmt.Errorf("%w: %q type segment %q must be 2-4 uppercase alphanumerics", ErrMalformedIdentifier, s, id.Type)
	}
	if id.Year != YearUnspecified && !isYear(id.Year) {
		return ID{}, fmt.Errorf("%w: %q year segment %q must be 4 digits or %s", ErrMalformedIdentifier, s, id.Year, YearUnspecified)
	}
	if !isUpperAlpha(id.Mint) {
		return ID{}, fmt.Errorf("%w: %q mint segment %q must be uppercase letters", ErrMalformedIdentifier, s, id.Mint)
	}
	if id.Suffix != "" && !isUpperAlnum(id.Suffix) {
		return ID{}, fmt.Errorf("%w: %q suffix segment %q must be uppercase alphanumerics", ErrMalformedIdentifier, s, id.Suffix)
	}

	return id, nil
}

// Validate is the pure grammar predicate used both at write time and
// during batch audits.
func Validate(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// String re-assembles the canonical dash-delimited form.
func (id ID) String() string {
	base := id.Country + "-" + id.Type + "-" + id.Year + "-" + id.Mint
	if id.Suffix == "" {
		return base
	}
	return base + "-" + id.Suffix
}

// BaseID returns the identifier with any suffix stripped.
func (id ID) BaseID() string {
	stripped := id
	stripped.Suffix = ""
	return stripped.String()
}

// IsBullion reports whether the identifier carries the unspecified-year
// placeholder used for random-year bullion products.
func (id ID) IsBullion() bool {
	return id.Year == YearUnspecified
}

func isUpperAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func isUpperAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
