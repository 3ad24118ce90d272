package isrc

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxDesignation is the largest sequence number a registrant can issue
// within one allocation block.
const MaxDesignation = 99999

// ErrMalformed reports input that does not match either ISRC form.
var ErrMalformed = errors.New("malformed isrc")

var (
	compactPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}[0-9]{2}[0-9]{5}$`)
	isoPattern     = regexp.MustCompile(`^[A-Z]{2}-[A-Z0-9]{3}-[0-9]{2}-[0-9]{5}$`)

	countryPattern    = regexp.MustCompile(`^[A-Z]{2}$`)
	registrantPattern = regexp.MustCompile(`^[A-Z0-9]{3}$`)
	yearPattern       = regexp.MustCompile(`^[0-9]{2}$`)
)

// Code is a structurally valid ISRC split into its four parts.
type Code struct {
	Country     string
	Registrant  string
	Year        string
	Designation int
}

// Parse reads an ISRC in compact (CCXXXYYNNNNN) or ISO (CC-XXX-YY-NNNNN)
// form. Input is trimmed and uppercased first; interior whitespace is not
// tolerated.
func Parse(raw string) (Code, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case compactPattern.MatchString(cleaned):
	case isoPattern.MatchString(cleaned):
		cleaned = strings.ReplaceAll(cleaned, "-", "")
	default:
		return Code{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
	designation, err := strconv.Atoi(cleaned[7:12])
	if err != nil {
		return Code{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
	return Code{
		Country:     cleaned[0:2],
		Registrant:  cleaned[2:5],
		Year:        cleaned[5:7],
		Designation: designation,
	}, nil
}

// Compose builds a Code from validated parts. Country and registrant are
// uppercased; the designation must fit the five-digit block.
func Compose(country, registrant, year string, designation int) (Code, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	registrant = strings.ToUpper(strings.TrimSpace(registrant))
	year = strings.TrimSpace(year)
	if !countryPattern.MatchString(country) {
		return Code{}, fmt.Errorf("%w: country %q", ErrMalformed, country)
	}
	if !registrantPattern.MatchString(registrant) {
		return Code{}, fmt.Errorf("%w: registrant %q", ErrMalformed, registrant)
	}
	if !yearPattern.MatchString(year) {
		return Code{}, fmt.Errorf("%w: year %q", ErrMalformed, year)
	}
	if designation < 0 || designation > MaxDesignation {
		return Code{}, fmt.Errorf("%w: designation %d outside 0-%d", ErrMalformed, designation, MaxDesignation)
	}
	return Code{Country: country, Registrant: registrant, Year: year, Designation: designation}, nil
}

// Compact renders the 12-character form, e.g. NLABC2500042.
func (c Code) Compact() string {
	return fmt.Sprintf("%s%s%s%05d", c.Country, c.Registrant, c.Year, c.Designation)
}

// ISO renders the hyphenated form, e.g. NL-ABC-25-00042.
func (c Code) ISO() string {
	return fmt.Sprintf("%s-%s-%s-%05d", c.Country, c.Registrant, c.Year, c.Designation)
}

// String renders the ISO form.
func (c Code) String() string {
	return c.ISO()
}

// IsZero reports whether the code is the empty value.
func (c Code) IsZero() bool {
	return c == Code{}
}

// YearCode returns the two-digit year text for t, used when issuance has no
// explicit year override.
func YearCode(t time.Time) string {
	return fmt.Sprintf("%02d", t.Year()%100)
}

// ValidYearCode reports whether s is a usable two-digit year override.
func ValidYearCode(s string) bool {
	return yearPattern.MatchString(s)
}

// ValidCountry reports whether s is a two-letter country prefix.
func ValidCountry(s string) bool {
	return countryPattern.MatchString(s)
}

// ValidRegistrant reports whether s is a three-character registrant code.
func ValidRegistrant(s string) bool {
	return registrantPattern.MatchString(s)
}
