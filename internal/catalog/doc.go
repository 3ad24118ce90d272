// Package catalog implements the persistent core of the engine: profiles
// with their monotonic ISRC sequence cursors, the record store with custom
// field values, the code allocator, and per-profile settings, all backed by
// one SQLite database per installation root.
//
// Allocation is serialized at the storage layer: issuing a code advances
// the profile's cursor with a single atomic UPDATE inside a transaction, so
// concurrent issuers can never observe the same sequence number and callers
// for different profiles never contend beyond SQLite's write isolation. The
// cursor only moves forward; adopting a hand-entered code raises it when
// needed so future auto-issuance stays collision-free.
//
// Every mutating operation validates through the fieldset package first and
// leaves the store unchanged on failure. Mutations append to the audit log
// when one is attached.
package catalog
