// Package config loads, normalizes, and validates deadwax configuration
// data.
//
// A single TOML file drives everything: where the library root lives, how
// logs are formatted and rotated, and how many backups to retain. Loading
// fills in defaults for anything the file omits, expands ~ in path values,
// and derives the on-disk layout under the library root (catalog database,
// blob store, backups, exports, logs).
//
// Callers go through Load rather than reading the file themselves so that
// every path comes back absolute and every knob has been checked.
package config
