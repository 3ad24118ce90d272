// Package preflight provides readiness checks for the filesystem paths an
// installation depends on.
//
// The CLI "deadwax status" command runs these before reporting database
// health, so permission and disk-space problems surface ahead of the first
// failed write. Each check reports independently; none of them mutate
// anything.
package preflight
