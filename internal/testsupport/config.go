package testsupport

import (
	"path/filepath"
	"testing"

	"deadwax/internal/config"
)

// NewConfig produces a config rooted in a unique temp directory per test,
// with every library path nested under it.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.BlobDir = filepath.Join(base, "library", "blobs")
	cfg.Paths.BackupDir = filepath.Join(base, "library", "backups")
	cfg.Paths.ExportDir = filepath.Join(base, "library", "exports")
	cfg.Paths.LogDir = filepath.Join(base, "library", "logs")
	return &cfg
}
