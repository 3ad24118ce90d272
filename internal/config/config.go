package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// DatabaseFileName is the catalog database file inside the library root.
const DatabaseFileName = "catalog.db"

// LockFileName is the installation-root lock file shared by store open and
// restore.
const LockFileName = "deadwax.lock"

// AuditLogFileName is the append-only audit log inside the log directory.
const AuditLogFileName = "audit.log"

// Paths contains the installation-root directory layout. Empty child
// directories default to subdirectories of the library root.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	BlobDir    string `toml:"blob_dir"`
	BackupDir  string `toml:"backup_dir"`
	ExportDir  string `toml:"export_dir"`
	LogDir     string `toml:"log_dir"`
}

// Backups contains snapshot retention settings.
type Backups struct {
	// RetentionCount bounds how many snapshots prune keeps. Zero disables
	// pruning.
	RetentionCount int `toml:"retention_count"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for deadwax.
//
// Configuration sections:
//   - Paths: installation root and derived directories
//   - Backups: snapshot retention
//   - Logging: log format, level, and retention
type Config struct {
	Paths   Paths   `toml:"paths"`
	Backups Backups `toml:"backups"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/deadwax/config.toml")
}

// Load reads the configuration file and reports which path was used and
// whether it existed. A missing file is not an error: defaults apply, and
// every path field comes back expanded and normalized either way.
func Load(path string) (*Config, string, bool, error) {
	resolvedPath, exists, err := locateConfig(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		raw, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config %s: %w", resolvedPath, err)
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// locateConfig decides which config file a run should use: an explicit
// path wins whether or not it exists yet, otherwise the first of the user
// config dir and a deadwax.toml beside the working directory that holds a
// regular file. The boolean reports existence.
func locateConfig(explicit string) (string, bool, error) {
	if explicit != "" {
		expanded, err := expandPath(explicit)
		if err != nil {
			return "", false, err
		}
		switch _, statErr := os.Stat(expanded); {
		case statErr == nil:
			return expanded, true, nil
		case errors.Is(statErr, fs.ErrNotExist):
			return expanded, false, nil
		default:
			return "", false, fmt.Errorf("stat config: %w", statErr)
		}
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	localPath, err := filepath.Abs("deadwax.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, localPath} {
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

// DatabasePath returns the catalog database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.LibraryDir, DatabaseFileName)
}

// LockPath returns the installation-root lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LibraryDir, LockFileName)
}

// AuditLogPath returns the append-only audit log location.
func (c *Config) AuditLogPath() string {
	return filepath.Join(c.Paths.LogDir, AuditLogFileName)
}

// EnsureDirectories creates the installation-root directory tree.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.LibraryDir,
		c.Paths.BlobDir,
		c.Paths.BackupDir,
		c.Paths.ExportDir,
		c.Paths.LogDir,
	} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// expandPath turns a user-facing path into a cleaned absolute one,
// resolving a leading tilde against the home directory.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if strings.HasPrefix(value, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		rest := value[1:]
		switch {
		case rest == "":
			value = home
		case rest[0] == '/' || rest[0] == '\\':
			value = filepath.Join(home, rest[1:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(value))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}

// ExpandPath applies the same path expansion rules Load uses, for callers
// that accept paths on the command line.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// CreateSample writes the embedded sample configuration to path, creating
// parent directories as needed.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config %s: %w", path, err)
	}
	return nil
}
