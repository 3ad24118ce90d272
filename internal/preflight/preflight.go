package preflight

import (
	"deadwax/internal/config"
	"deadwax/internal/fieldset"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minLibraryFree is the least free space the library volume should have
// before snapshots and imports start failing mid-write.
const minLibraryFree = 64 << 20

// RunAll executes every filesystem check for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir),
		CheckDirectoryAccess("Blob directory", cfg.Paths.BlobDir),
		CheckDirectoryAccess("Backup directory", cfg.Paths.BackupDir),
		CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Library free space", cfg.Paths.LibraryDir, minLibraryFree),
		// Attaching a single full-size file must not fill the volume.
		CheckFreeSpace("Blob free space", cfg.Paths.BlobDir, fieldset.MaxBlobBytes),
		CheckDatabaseFile(cfg.DatabasePath()),
	}
}
