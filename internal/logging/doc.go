// Package logging centralizes slog logger construction and the structured
// field vocabulary used across the catalog engine.
//
// New builds a logger from Options (level, console or json format, output
// paths). Component loggers carry a standardized component attribute, and
// WithContext enriches a logger with the profile and operation recorded in
// a context.
//
// The Field* constants are the canonical attribute keys. Code should prefer
// them over ad-hoc strings so log consumers can rely on stable names.
package logging
