package preflight_test

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"deadwax/internal/preflight"
	"deadwax/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if res := preflight.CheckDirectoryAccess("Dir", dir); !res.Passed {
		t.Fatalf("existing dir failed: %+v", res)
	}
	if res := preflight.CheckDirectoryAccess("Dir", filepath.Join(dir, "missing")); res.Passed {
		t.Fatalf("missing dir passed: %+v", res)
	}
	if !strings.Contains(preflight.CheckDirectoryAccess("Dir", filepath.Join(dir, "missing")).Detail, "does not exist") {
		t.Fatal("missing dir detail lacks reason")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if res := preflight.CheckFreeSpace("Space", dir, 1); !res.Passed {
		t.Fatalf("1-byte minimum failed: %+v", res)
	}
	if res := preflight.CheckFreeSpace("Space", dir, math.MaxUint64); res.Passed {
		t.Fatalf("impossible minimum passed: %+v", res)
	}
}

func TestRunAllCoversConfiguredPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := preflight.RunAll(cfg)
	if len(results) == 0 {
		t.Fatal("no results")
	}
	for _, res := range results {
		if !res.Passed {
			t.Fatalf("check %s failed on a fresh install: %s", res.Name, res.Detail)
		}
	}
	if preflight.RunAll(nil) != nil {
		t.Fatal("nil config should produce no results")
	}
}
