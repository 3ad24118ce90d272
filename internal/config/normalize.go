package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBackups()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	library := strings.TrimSpace(c.Paths.LibraryDir)
	if library == "" {
		library = defaultLibraryDir
	}
	library, err := expandPath(library)
	if err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	c.Paths.LibraryDir = library

	// Child directories default to subdirectories of the library root.
	children := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.blob_dir", &c.Paths.BlobDir, "blobs"},
		{"paths.backup_dir", &c.Paths.BackupDir, "backups"},
		{"paths.export_dir", &c.Paths.ExportDir, "exports"},
		{"paths.log_dir", &c.Paths.LogDir, "logs"},
	}
	for _, child := range children {
		if strings.TrimSpace(*child.value) == "" {
			*child.value = filepath.Join(library, child.fallback)
			continue
		}
		if *child.value, err = expandPath(*child.value); err != nil {
			return fmt.Errorf("%s: %w", child.name, err)
		}
	}
	return nil
}

func (c *Config) normalizeBackups() {
	if c.Backups.RetentionCount < 0 {
		c.Backups.RetentionCount = defaultBackupRetention
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = loweredOr(c.Logging.Format, defaultLogFormat)
	c.Logging.Level = loweredOr(c.Logging.Level, defaultLogLevel)
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = defaultLogRetention
	}
}

// loweredOr trims and lowercases value, substituting fallback when the
// result is empty.
func loweredOr(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}
