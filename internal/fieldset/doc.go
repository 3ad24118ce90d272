// Package fieldset defines the user-editable custom-field schema and the
// row validator that gates every catalog write.
//
// A profile's schema is an ordered list of FieldDef values. Incoming field
// data arrives as RawField values (text, or a blob reference) keyed by field
// name; ValidateRecord resolves each against the schema and returns the
// normalized typed values together with every field error found for the
// row. Errors are collected, not fail-fast, so import diagnostics can show
// all problems in a row at once.
//
// Blob-typed fields never carry payload bytes through this package. They
// are validated as BlobRef capabilities (path, size, hash, mime) produced
// by the blob store.
package fieldset
