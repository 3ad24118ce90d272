package isrc

import "regexp"

var (
	iswcPattern = regexp.MustCompile(`^(?:T[0-9]{9}[0-9X]|T-[0-9]{3}\.[0-9]{3}\.[0-9]{3}-[0-9X])$`)
	upcPattern  = regexp.MustCompile(`^[0-9]{12,13}$`)
)

// ValidISWC reports whether s is a syntactically valid ISWC in either the
// compact (T123456789C) or formatted (T-123.456.789-C) form. The empty
// string is not valid; absence is the caller's concern.
func ValidISWC(s string) bool {
	return iswcPattern.MatchString(s)
}

// ValidUPC reports whether s is a 12-digit UPC or 13-digit EAN.
func ValidUPC(s string) bool {
	return upcPattern.MatchString(s)
}
