package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deadwax/internal/logging"
)

func TestNewJSONWritesStructuredRecords(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "app.log")
	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("code issued", logging.String(logging.FieldISRC, "NL-ABC-25-00042"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, want := range []string{`"level":"info"`, `"msg":"code issued"`, `"isrc":"NL-ABC-25-00042"`, `"ts":`} {
		if !strings.Contains(text, want) {
			t.Fatalf("log output missing %s: %q", want, text)
		}
	}
}

func TestConsoleHoistsComponentAndProfile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	base, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger := logging.NewComponentLogger(base, "catalog")
	ctx := logging.WithProfile(context.Background(), "LabelX")
	logging.WithContext(ctx, logger).Info("record inserted", logging.Int64(logging.FieldRecordID, 7))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(string(content))
	if !strings.Contains(line, "catalog: [LabelX] record inserted") {
		t.Fatalf("component/profile prefix missing: %q", line)
	}
	if !strings.Contains(line, "record_id=7") {
		t.Fatalf("attribute missing: %q", line)
	}
	if strings.Contains(line, "component=") || strings.Contains(line, "profile=") {
		t.Fatalf("hoisted attrs still rendered as pairs: %q", line)
	}
}

func TestConsoleOmitsSourceAtInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "info.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("plain message")
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("info log should not carry source location: %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("New accepted unsupported format")
	}
}

func TestOperationContextRoundTrip(t *testing.T) {
	ctx := logging.WithOperation(logging.WithProfile(context.Background(), "LabelX"), "import")
	if profile, ok := logging.ProfileFromContext(ctx); !ok || profile != "LabelX" {
		t.Fatalf("ProfileFromContext = (%q, %v)", profile, ok)
	}
	if op, ok := logging.OperationFromContext(ctx); !ok || op != "import" {
		t.Fatalf("OperationFromContext = (%q, %v)", op, ok)
	}
	if fields := logging.ContextFields(ctx); len(fields) != 2 {
		t.Fatalf("ContextFields returned %d attrs, want 2", len(fields))
	}
}

func TestCleanupOldLogsHonorsExclusions(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "deadwax-2020.log")
	audit := filepath.Join(dir, "audit.log")
	fresh := filepath.Join(dir, "deadwax.log")
	for _, path := range []string{stale, audit, fresh} {
		if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	old := time.Now().AddDate(0, 0, -120)
	for _, path := range []string{stale, audit} {
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("age %s: %v", path, err)
		}
	}

	logging.CleanupOldLogs(logging.NewNop(), 30, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "*.log",
		Exclude: []string{audit},
	})

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale log survived retention")
	}
	if _, err := os.Stat(audit); err != nil {
		t.Fatalf("excluded audit log was removed: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh log was removed: %v", err)
	}
}
