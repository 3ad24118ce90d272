package logging

import (
	"log/slog"
	"time"
)

// Standardized structured logging keys.
const (
	// FieldComponent names the subsystem emitting the record.
	FieldComponent = "component"
	// FieldProfile carries the display name of the profile in scope.
	FieldProfile = "profile"
	// FieldProfileID carries the numeric profile identifier.
	FieldProfileID = "profile_id"
	// FieldRecordID carries a catalog record identifier.
	FieldRecordID = "record_id"
	// FieldISRC carries a rendered ISRC code.
	FieldISRC = "isrc"
	// FieldOperation names the core operation in flight.
	FieldOperation = "operation"
	// FieldRow carries a 1-based import row index.
	FieldRow = "row"
	// FieldPath carries a filesystem path.
	FieldPath = "path"
	// FieldAction carries an audit action tag.
	FieldAction = "action"
	// FieldOutcome carries an audit outcome tag.
	FieldOutcome = "outcome"
	// FieldEventType tags notable events for log consumers.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next diagnostic step for a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type Attr = slog.Attr

func Bool(key string, v bool) Attr { return slog.Bool(key, v) }

func Duration(key string, v time.Duration) Attr { return slog.Duration(key, v) }

func Int(key string, v int) Attr { return slog.Int(key, v) }

func Int64(key string, v int64) Attr { return slog.Int64(key, v) }

func String(key, v string) Attr { return slog.String(key, v) }

func Error(err error) Attr {
	if err != nil {
		return slog.Any("error", err)
	}
	return slog.String("error", "<nil>")
}

// attrArgs converts typed attrs to the variadic form slog methods accept.
func attrArgs(attrs []Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

func hasKey(attrs []Attr, key string) bool {
	for i := range attrs {
		if attrs[i].Key == key {
			return true
		}
	}
	return false
}

// withFallback appends key=value unless the caller already set key.
func withFallback(attrs []Attr, key, value string) []Attr {
	if hasKey(attrs, key) {
		return attrs
	}
	return append(attrs, String(key, value))
}

// WarnWithContext logs a warning that always carries event_type,
// error_hint, and impact fields, so a warning states its cause, the next
// diagnostic step, and the user-facing consequence.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withFallback(attrs, FieldEventType, eventType)
	attrs = withFallback(attrs, FieldErrorHint, "check logs for details")
	attrs = withFallback(attrs, FieldImpact, "operation completed with warnings")
	logger.Warn(msg, attrArgs(attrs)...)
}

// ErrorWithContext logs an error that always carries event_type and
// error_hint fields.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withFallback(attrs, FieldEventType, eventType)
	attrs = withFallback(attrs, FieldErrorHint, "check logs for details")
	logger.Error(msg, attrArgs(attrs)...)
}
