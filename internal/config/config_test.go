package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deadwax/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	cfg, resolved, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("Load reported a missing file as existing")
	}
	if resolved != missing {
		t.Fatalf("resolved path = %q, want %q", resolved, missing)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("defaults not applied: %+v", cfg.Logging)
	}
	if cfg.Backups.RetentionCount != 10 {
		t.Fatalf("backup retention default = %d, want 10", cfg.Backups.RetentionCount)
	}
}

func TestLoadDerivesChildDirectories(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.toml")
	content := "[paths]\nlibrary_dir = \"" + filepath.Join(root, "lib") + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("Load did not find the written config")
	}
	lib := filepath.Join(root, "lib")
	want := map[string]string{
		cfg.Paths.BlobDir:   filepath.Join(lib, "blobs"),
		cfg.Paths.BackupDir: filepath.Join(lib, "backups"),
		cfg.Paths.ExportDir: filepath.Join(lib, "exports"),
		cfg.Paths.LogDir:    filepath.Join(lib, "logs"),
	}
	for got, expected := range want {
		if got != expected {
			t.Fatalf("derived dir = %q, want %q", got, expected)
		}
	}
	if cfg.DatabasePath() != filepath.Join(lib, "catalog.db") {
		t.Fatalf("DatabasePath = %q", cfg.DatabasePath())
	}
	if cfg.LockPath() != filepath.Join(lib, "deadwax.lock") {
		t.Fatalf("LockPath = %q", cfg.LockPath())
	}
	if cfg.AuditLogPath() != filepath.Join(lib, "logs", "audit.log") {
		t.Fatalf("AuditLogPath = %q", cfg.AuditLogPath())
	}
}

func TestLoadRejectsBadLogging(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"format", "[logging]\nformat = \"xml\"\n"},
		{"level", "[logging]\nlevel = \"verbose\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatal("Load accepted invalid logging settings")
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(content), "[logging]") {
		t.Fatalf("sample config missing sections: %q", content)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("Load(sample) = (exists=%v, err=%v)", exists, err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(root, "lib")
	cfg.Paths.BlobDir = filepath.Join(root, "lib", "blobs")
	cfg.Paths.BackupDir = filepath.Join(root, "lib", "backups")
	cfg.Paths.ExportDir = filepath.Join(root, "lib", "exports")
	cfg.Paths.LogDir = filepath.Join(root, "lib", "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LibraryDir, cfg.Paths.BlobDir, cfg.Paths.BackupDir, cfg.Paths.ExportDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("directory %q missing after EnsureDirectories: %v", dir, err)
		}
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	got, err := config.ExpandPath("~/music")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if got != filepath.Join(home, "music") {
		t.Fatalf("ExpandPath = %q, want %q", got, filepath.Join(home, "music"))
	}
}
