package fieldset

import (
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies a single field failure within a row.
type ErrorKind string

const (
	ErrUnknownField ErrorKind = "unknown_field"
	ErrTypeMismatch ErrorKind = "type_mismatch"
	ErrMissingField ErrorKind = "missing_field"
	ErrBlobTooLarge ErrorKind = "blob_too_large"
)

// FieldError describes one invalid field of a row. Validation returns every
// FieldError found, never just the first.
type FieldError struct {
	Field    string
	Kind     ErrorKind
	Expected string
	Got      string
}

// Error renders the failure for logs and import diagnostics.
func (e FieldError) Error() string {
	switch e.Kind {
	case ErrUnknownField:
		return fmt.Sprintf("unknown field %q", e.Field)
	case ErrMissingField:
		return fmt.Sprintf("missing required field %q", e.Field)
	case ErrBlobTooLarge:
		return fmt.Sprintf("field %q: blob %s exceeds %d bytes", e.Field, e.Got, MaxBlobBytes)
	default:
		return fmt.Sprintf("field %q: expected %s, got %q", e.Field, e.Expected, e.Got)
	}
}

// dateLayout is the only accepted date form.
const dateLayout = "2006-01-02"

// ValidDate reports whether s is a real calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// ParseCheckbox normalizes checkbox text. Accepted spellings are
// true/false, yes/no, and 1/0, case-insensitively.
func ParseCheckbox(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	default:
		return false, false
	}
}

// ValidateRecord resolves every raw field against defs and returns the
// normalized values keyed by field definition id, plus all field errors
// found. A row is insertable only when the error list is empty. Fields the
// schema does not define are reported, not dropped; required fields absent
// from the row are reported as missing.
func ValidateRecord(defs []FieldDef, fields []RawField) (map[int64]Value, []FieldError) {
	values := make(map[int64]Value, len(fields))
	var errs []FieldError
	seen := make(map[int64]struct{}, len(fields))

	for _, raw := range fields {
		def, ok := FindDef(defs, raw.Name)
		if !ok {
			errs = append(errs, FieldError{Field: raw.Name, Kind: ErrUnknownField})
			continue
		}
		seen[def.ID] = struct{}{}
		value, fieldErr := validateOne(def, raw)
		if fieldErr != nil {
			errs = append(errs, *fieldErr)
			continue
		}
		values[def.ID] = value
	}

	for _, def := range defs {
		if !def.Active || !def.Required {
			continue
		}
		if _, ok := seen[def.ID]; !ok {
			errs = append(errs, FieldError{Field: def.Name, Kind: ErrMissingField})
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return values, nil
}

func validateOne(def FieldDef, raw RawField) (Value, *FieldError) {
	switch def.Type {
	case TypeText:
		return TextValue(raw.Text), nil
	case TypeCheckbox:
		b, ok := ParseCheckbox(raw.Text)
		if !ok {
			return Value{}, &FieldError{Field: def.Name, Kind: ErrTypeMismatch, Expected: "checkbox (true/false)", Got: raw.Text}
		}
		return BoolValue(b), nil
	case TypeDate:
		text := strings.TrimSpace(raw.Text)
		if !ValidDate(text) {
			return Value{}, &FieldError{Field: def.Name, Kind: ErrTypeMismatch, Expected: "date (YYYY-MM-DD)", Got: raw.Text}
		}
		return DateValue(text), nil
	case TypeDropdown:
		if !def.HasOption(raw.Text) {
			return Value{}, &FieldError{
				Field:    def.Name,
				Kind:     ErrTypeMismatch,
				Expected: "one of " + strings.Join(def.Options, ", "),
				Got:      raw.Text,
			}
		}
		return ChoiceValue(raw.Text), nil
	case TypeBlobImage, TypeBlobAudio:
		return validateBlob(def, raw)
	default:
		return Value{}, &FieldError{Field: def.Name, Kind: ErrTypeMismatch, Expected: string(def.Type), Got: raw.Text}
	}
}

func validateBlob(def FieldDef, raw RawField) (Value, *FieldError) {
	if raw.Blob.IsZero() {
		return Value{}, &FieldError{Field: def.Name, Kind: ErrTypeMismatch, Expected: string(def.Type) + " reference", Got: raw.Text}
	}
	if raw.Blob.SizeBytes > MaxBlobBytes {
		return Value{}, &FieldError{Field: def.Name, Kind: ErrBlobTooLarge, Got: fmt.Sprintf("%d bytes", raw.Blob.SizeBytes)}
	}
	if !AllowedExtension(def.Type, raw.Blob.Path) {
		expected := "image file"
		if def.Type == TypeBlobAudio {
			expected = "audio file"
		}
		return Value{}, &FieldError{Field: def.Name, Kind: ErrTypeMismatch, Expected: expected, Got: raw.Blob.Path}
	}
	return BlobValue(def.Type, raw.Blob), nil
}
