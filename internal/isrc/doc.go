// Package isrc provides the ISRC value type and the syntax rules for the
// related industry identifiers the catalog stores (ISWC, UPC/EAN).
//
// An ISRC is held as its four structural parts (country, registrant, year,
// designation) rather than as a raw string so callers can reason about the
// sequence number independently of the year text. Parse accepts both the
// compact form CCXXXYYNNNNN and the hyphenated ISO form CC-XXX-YY-NNNNN;
// Compact and ISO render back deterministically.
//
// Designations run 0 through 99999. The package performs syntax validation
// only; registry-backed correctness of a registrant prefix is out of scope.
package isrc
