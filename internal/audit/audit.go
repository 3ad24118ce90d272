// Package audit appends catalog mutations to the append-only audit log.
//
// Entries are JSON lines carrying a UTC timestamp, the action tag, the
// profile in scope, and an ok/error outcome, plus operation-specific
// attributes. The engine only ever appends to this log; reading it back is
// the auditing collaborator's job. The file must therefore never be
// truncated, rotated, or pruned by anything in this repository.
package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"deadwax/internal/logging"
)

// Action tags one auditable mutation class.
type Action string

const (
	ActionProfileCreate Action = "profile.create"
	ActionProfileDelete Action = "profile.delete"
	ActionProfileSwitch Action = "profile.switch"
	ActionProfileLayout Action = "profile.layout"
	ActionSettings      Action = "profile.settings"
	ActionSchemaAdd     Action = "schema.add"
	ActionSchemaRename  Action = "schema.rename"
	ActionSchemaModify  Action = "schema.modify"
	ActionSchemaRemove  Action = "schema.remove"
	ActionSchemaReorder Action = "schema.reorder"
	ActionIssue         Action = "isrc.issue"
	ActionAdopt         Action = "isrc.adopt"
	ActionRecordInsert  Action = "record.insert"
	ActionRecordUpdate  Action = "record.update"
	ActionRecordDelete  Action = "record.delete"
	ActionImport        Action = "catalog.import"
	ActionExport        Action = "catalog.export"
	ActionBackup        Action = "backup.create"
	ActionRestore       Action = "backup.restore"
	ActionVerify        Action = "backup.verify"
	ActionPrune         Action = "backup.prune"
)

// Outcome values for audit entries. Aborted marks a mutation refused
// whole, as distinct from one that failed partway.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeAborted = "aborted"
)

// Log is an append-only audit sink. Safe for concurrent use.
type Log struct {
	mu     sync.Mutex
	logger *slog.Logger
	closer io.Closer
	path   string
}

// Open creates or opens the audit log at path in append mode.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure audit directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	log := NewWithWriter(file)
	log.closer = file
	log.path = path
	return log, nil
}

// NewWithWriter builds a Log over an arbitrary writer. Used by tests and by
// Discard.
func NewWithWriter(w io.Writer) *Log {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339Nano))
				}
			case slog.LevelKey:
				return slog.Attr{}
			case slog.MessageKey:
				attr.Key = "action"
			}
			return attr
		},
	})
	return &Log{logger: slog.New(handler)}
}

// Discard returns a Log that drops every entry. Useful where auditing is
// explicitly not wired, such as focused unit tests.
func Discard() *Log {
	return NewWithWriter(io.Discard)
}

// Path returns the on-disk location, empty for writer-backed logs.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes one entry. A nil Log is a no-op so callers do not need to
// guard optional wiring.
func (l *Log) Append(ctx context.Context, action Action, profile, outcome string, attrs ...logging.Attr) {
	if l == nil {
		return
	}
	fields := make([]slog.Attr, 0, len(attrs)+2)
	fields = append(fields,
		slog.String(logging.FieldProfile, profile),
		slog.String(logging.FieldOutcome, outcome),
	)
	fields = append(fields, attrs...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.LogAttrs(ctx, slog.LevelInfo, string(action), fields...)
}

// Close releases the underlying file, if any.
func (l *Log) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
