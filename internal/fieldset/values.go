package fieldset

import (
	"path/filepath"
	"strings"
)

// MaxBlobBytes caps any single attachment at 256 MiB.
const MaxBlobBytes = 256 * 1024 * 1024

var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".webp": {},
	".gif": {}, ".bmp": {}, ".tif": {}, ".tiff": {},
}

var audioExtensions = map[string]struct{}{
	".wav": {}, ".aif": {}, ".aiff": {}, ".mp3": {}, ".flac": {},
	".m4a": {}, ".aac": {}, ".ogg": {}, ".opus": {},
}

// AllowedExtension reports whether the file extension of path is acceptable
// for the given blob field type.
func AllowedExtension(t FieldType, path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch t {
	case TypeBlobImage:
		_, ok := imageExtensions[ext]
		return ok
	case TypeBlobAudio:
		_, ok := audioExtensions[ext]
		return ok
	default:
		return false
	}
}

// BlobRef is the capability a blob-typed value carries instead of payload
// bytes: where the object lives, how big it is, and its content hash.
type BlobRef struct {
	Path      string
	SizeBytes int64
	SHA256    string
	MimeType  string
}

// IsZero reports whether the reference is empty.
func (r BlobRef) IsZero() bool {
	return r == BlobRef{}
}

// Value is the tagged variant a validated custom field carries. Exactly the
// member matching Type is meaningful.
type Value struct {
	Type FieldType
	Text string
	Bool bool
	Blob BlobRef
}

// TextValue builds a text-typed value.
func TextValue(s string) Value {
	return Value{Type: TypeText, Text: s}
}

// BoolValue builds a checkbox-typed value.
func BoolValue(b bool) Value {
	return Value{Type: TypeCheckbox, Bool: b}
}

// DateValue builds a date-typed value; the text must already be validated.
func DateValue(s string) Value {
	return Value{Type: TypeDate, Text: s}
}

// ChoiceValue builds a dropdown-typed value.
func ChoiceValue(s string) Value {
	return Value{Type: TypeDropdown, Text: s}
}

// BlobValue builds an attachment value of the given blob type.
func BlobValue(t FieldType, ref BlobRef) Value {
	return Value{Type: t, Blob: ref}
}

// Display renders the value for tables and export text.
func (v Value) Display() string {
	switch v.Type {
	case TypeCheckbox:
		if v.Bool {
			return "true"
		}
		return "false"
	case TypeBlobImage, TypeBlobAudio:
		return v.Blob.Path
	default:
		return v.Text
	}
}

// RawField is one incoming field of a row before validation: a name plus
// either text or a blob reference.
type RawField struct {
	Name string
	Text string
	Blob BlobRef
}
