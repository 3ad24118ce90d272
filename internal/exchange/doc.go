// Package exchange moves catalogs in and out of the store as
// self-describing XML documents. An export carries the profile's field
// schema alongside its records so a later import can rebuild validation
// context from the document alone. Imports run as a state machine: a
// non-mutating dry run produces a row-by-row report, and a commit
// re-validates against the live store before inserting every clean row
// in one transaction. Blob attachments travel by reference, never by
// value.
package exchange
