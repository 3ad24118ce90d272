package catalog

import (
	"errors"
	"fmt"
	"strings"

	"deadwax/internal/fieldset"
)

// Sentinel errors for the catalog error taxonomy. Callers classify with
// errors.Is; messages add operation context around these markers.
var (
	ErrDuplicateProfile   = errors.New("duplicate profile")
	ErrProfileLimit       = errors.New("profile limit exceeded")
	ErrSchemaInUse        = errors.New("schema in use")
	ErrSequenceExhausted  = errors.New("sequence exhausted")
	ErrDuplicateISRC      = errors.New("duplicate isrc")
	ErrBlobTooLarge       = errors.New("blob too large")
	ErrStructuralMismatch = errors.New("structural schema mismatch")
	ErrStorageIO          = errors.New("storage i/o failure")
	ErrRestoreIntegrity   = errors.New("restore integrity failure")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
)

// Wrap builds an error message that includes component context while
// tagging it with the provided marker for later classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStorageIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "catalog failure"
	}
	return strings.Join(parts, ": ")
}

// RowError carries every field error found while validating one record. It
// classifies as ErrValidation, or as ErrBlobTooLarge when an oversize blob
// is among the failures.
type RowError struct {
	Fields []fieldset.FieldError
}

// Error renders all field failures on one line.
func (e *RowError) Error() string {
	if len(e.Fields) == 0 {
		return "record validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		msgs[i] = fe.Error()
	}
	return "record validation failed: " + strings.Join(msgs, "; ")
}

// Is lets errors.Is match the taxonomy markers.
func (e *RowError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	if target == ErrBlobTooLarge {
		for _, fe := range e.Fields {
			if fe.Kind == fieldset.ErrBlobTooLarge {
				return true
			}
		}
	}
	return false
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
