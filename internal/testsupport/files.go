package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a fixture of exactly size bytes at path. A size <= 0
// still produces a one-byte file so the path exists and is non-empty.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size < 1 {
		size = 1
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	WriteFileString(t, path, string(data))
}

// WriteFileString writes a small text fixture, creating parent directories.
func WriteFileString(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
