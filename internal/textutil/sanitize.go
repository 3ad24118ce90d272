package textutil

import (
	"strings"
	"unicode"
)

// SanitizeFileName strips characters that are unsafe in filenames across
// common filesystems. Path and drive separators become hyphens so the
// shape of the name survives; shell and quoting metacharacters are dropped
// outright.
func SanitizeFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	return strings.TrimSpace(mapped)
}

// SanitizeToken lowercases value into a token usable as a filename stem.
// ASCII letters and digits pass through, hyphen and underscore are kept,
// every other rune collapses to an underscore. An input with nothing
// usable yields "unknown".
func SanitizeToken(value string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return unicode.ToLower(r)
		case r == '-', r == '_':
			return r
		}
		return '_'
	}, strings.TrimSpace(value))
	token = strings.Trim(token, "-_")
	if token == "" {
		return "unknown"
	}
	return token
}
