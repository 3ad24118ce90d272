// Package backup manages catalog snapshots and the verified restore
// protocol. Snapshots are taken online with VACUUM INTO; restore swaps a
// staged, integrity-checked copy over the live database under an exclusive
// installation lock.
package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"deadwax/internal/audit"
	"deadwax/internal/catalog"
	"deadwax/internal/config"
	"deadwax/internal/fileutil"
	"deadwax/internal/logging"
	"deadwax/internal/textutil"
)

const (
	snapshotExt     = ".db"
	sidecarExt      = ".json"
	stagingSuffix   = ".staging"
	preRestoreScope = "pre-restore"
	nameTimeLayout  = "20060102-150405"
)

// Backup describes one snapshot file and its recorded digest.
type Backup struct {
	ID        string    `json:"-"`
	FilePath  string    `json:"-"`
	Scope     string    `json:"scope"`
	CreatedAt time.Time `json:"createdAt"`
	SizeBytes int64     `json:"sizeBytes"`
	SHA256    string    `json:"sha256"`
}

// PreRestore reports whether this is an implicit safety copy taken at the
// start of a restore.
func (b Backup) PreRestore() bool {
	return b.Scope == preRestoreScope
}

// SidecarPath is where the backup's digest record lives.
func (b Backup) SidecarPath() string {
	return b.FilePath + sidecarExt
}

// Manager runs snapshot, verify, list, prune, and restore against one
// installation.
type Manager struct {
	cfg       *config.Config
	logger    *slog.Logger
	audit     *audit.Log
	startedAt time.Time
}

// New returns a manager for the installation cfg describes. logger and
// auditLog may be nil.
func New(cfg *config.Config, logger *slog.Logger, auditLog *audit.Log) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "backup"),
		audit:     auditLog,
		startedAt: time.Now().UTC(),
	}
}

// Snapshot writes an online snapshot of the open store to a timestamped
// file under the backup directory, integrity-checks it, and records its
// digest. Readers and writers continue uninterrupted.
func (m *Manager) Snapshot(ctx context.Context, store *catalog.Store, scope string) (*Backup, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "catalog"
	}
	if err := os.MkdirAll(m.cfg.Paths.BackupDir, 0o755); err != nil {
		return nil, catalog.Wrap(catalog.ErrStorageIO, "backup", "snapshot", "create backup directory", err)
	}

	created := time.Now().UTC()
	path, err := m.freshPath(textutil.SanitizeToken(scope), created)
	if err != nil {
		return nil, err
	}
	if err := store.SnapshotTo(ctx, path); err != nil {
		return nil, err
	}
	if err := integrityCheckFile(ctx, path); err != nil {
		_ = os.Remove(path)
		return nil, catalog.Wrap(catalog.ErrStorageIO, "backup", "snapshot",
			"snapshot failed integrity check", err)
	}

	entry, err := m.seal(path, scope, created)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	m.audit.Append(ctx, audit.ActionBackup, scope, audit.OutcomeOK,
		logging.String(logging.FieldPath, entry.FilePath),
		logging.Int64("size_bytes", entry.SizeBytes))
	m.logger.Info("snapshot written",
		logging.String(logging.FieldPath, entry.FilePath),
		logging.Int64("size_bytes", entry.SizeBytes),
		logging.Duration("elapsed", time.Since(created)))
	return entry, nil
}

// Verify re-hashes a backup file and compares it against the recorded
// digest.
func (m *Manager) Verify(ctx context.Context, id string) (*Backup, error) {
	entry, err := m.find(id)
	if err != nil {
		return nil, err
	}
	if entry.SHA256 == "" {
		return entry, catalog.Wrap(catalog.ErrNotFound, "backup", "verify",
			fmt.Sprintf("%s has no recorded digest", entry.ID), nil)
	}
	sum, size, err := fileutil.HashFile(entry.FilePath)
	if err != nil {
		return entry, catalog.Wrap(catalog.ErrStorageIO, "backup", "verify", "", err)
	}
	if sum != entry.SHA256 || size != entry.SizeBytes {
		m.audit.Append(ctx, audit.ActionVerify, entry.Scope, audit.OutcomeError,
			logging.String(logging.FieldPath, entry.FilePath))
		return entry, catalog.Wrap(catalog.ErrRestoreIntegrity, "backup", "verify",
			fmt.Sprintf("%s does not match its recorded digest", entry.ID), nil)
	}
	m.audit.Append(ctx, audit.ActionVerify, entry.Scope, audit.OutcomeOK,
		logging.String(logging.FieldPath, entry.FilePath))
	return entry, nil
}

// List enumerates backups newest first.
func (m *Manager) List(ctx context.Context) ([]Backup, error) {
	dirEntries, err := os.ReadDir(m.cfg.Paths.BackupDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, catalog.Wrap(catalog.ErrStorageIO, "backup", "list", "", err)
	}

	var backups []Backup
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		entry, err := m.load(filepath.Join(m.cfg.Paths.BackupDir, name))
		if err != nil {
			return nil, err
		}
		backups = append(backups, *entry)
	}
	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.After(backups[j].CreatedAt)
		}
		return backups[i].ID > backups[j].ID
	})
	return backups, nil
}

// Prune removes the oldest backups beyond keep. Safety copies taken by a
// restore in this session are never pruned; keep <= 0 disables pruning.
func (m *Manager) Prune(ctx context.Context, keep int) ([]Backup, error) {
	if keep <= 0 {
		return nil, nil
	}
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]Backup, 0, len(all))
	for _, b := range all {
		if b.PreRestore() && !b.CreatedAt.Before(m.startedAt) {
			continue
		}
		candidates = append(candidates, b)
	}
	if len(candidates) <= keep {
		return nil, nil
	}

	var removed []Backup
	var failures []error
	for _, b := range candidates[keep:] {
		if err := os.Remove(b.FilePath); err != nil {
			failures = append(failures, err)
			continue
		}
		if err := os.Remove(b.SidecarPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			failures = append(failures, err)
		}
		removed = append(removed, b)
	}
	if len(removed) > 0 {
		m.audit.Append(ctx, audit.ActionPrune, "catalog", audit.OutcomeOK,
			logging.Int("removed", len(removed)),
			logging.Int("kept", keep))
		m.logger.Info("backups pruned",
			logging.Int("removed", len(removed)),
			logging.Int("kept", keep))
	}
	if len(failures) > 0 {
		return removed, catalog.Wrap(catalog.ErrStorageIO, "backup", "prune", "", errors.Join(failures...))
	}
	return removed, nil
}

// find resolves a backup by ID (file name) or path and loads its digest
// record.
func (m *Manager) find(id string) (*Backup, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, catalog.Wrap(catalog.ErrValidation, "backup", "lookup", "empty backup name", nil)
	}
	path := id
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.cfg.Paths.BackupDir, filepath.Base(id))
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, catalog.Wrap(catalog.ErrNotFound, "backup", "lookup",
				fmt.Sprintf("backup %s does not exist", id), nil)
		}
		return nil, catalog.Wrap(catalog.ErrStorageIO, "backup", "lookup", "", err)
	}
	return m.load(path)
}

// load builds a Backup from a snapshot file, preferring the sidecar digest
// record and falling back to file metadata when the sidecar is gone.
func (m *Manager) load(path string) (*Backup, error) {
	entry := &Backup{ID: filepath.Base(path), FilePath: path}
	data, err := os.ReadFile(path + sidecarExt)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, entry); err != nil {
			return nil, catalog.Wrap(catalog.ErrStorageIO, "backup", "lookup",
				fmt.Sprintf("corrupt digest record for %s", entry.ID), err)
		}
	case errors.Is(err, fs.ErrNotExist):
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil, catalog.Wrap(catalog.ErrStorageIO, "backup", "lookup", "", statErr)
		}
		entry.Scope = "unknown"
		entry.CreatedAt = info.ModTime().UTC()
		entry.SizeBytes = info.Size()
	default:
		return nil, catalog.Wrap(catalog.ErrStorageIO, "backup", "lookup", "", err)
	}
	return entry, nil
}

// seal hashes a finished snapshot and writes its sidecar digest record.
func (m *Manager) seal(path, scope string, created time.Time) (*Backup, error) {
	sum, size, err := fileutil.HashFile(path)
	if err != nil {
		return nil, catalog.Wrap(catalog.ErrStorageIO, "backup", "snapshot", "hash snapshot", err)
	}
	entry := &Backup{
		ID:        filepath.Base(path),
		FilePath:  path,
		Scope:     scope,
		CreatedAt: created,
		SizeBytes: size,
		SHA256:    sum,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, catalog.Wrap(catalog.ErrStorageIO, "backup", "snapshot", "encode digest record", err)
	}
	if err := os.WriteFile(entry.SidecarPath(), append(data, '\n'), 0o644); err != nil {
		return nil, catalog.Wrap(catalog.ErrStorageIO, "backup", "snapshot", "write digest record", err)
	}
	return entry, nil
}

// freshPath picks an unused timestamped file name in the backup directory.
func (m *Manager) freshPath(token string, created time.Time) (string, error) {
	base := fmt.Sprintf("%s-%s", token, created.Format(nameTimeLayout))
	for n := 0; ; n++ {
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s-%d", base, n+1)
		}
		path := filepath.Join(m.cfg.Paths.BackupDir, name+snapshotExt)
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", catalog.Wrap(catalog.ErrStorageIO, "backup", "snapshot", "", err)
		}
	}
}

// integrityCheckFile opens a database copy on its own and runs PRAGMA
// integrity_check against it.
func integrityCheckFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	var verdict string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&verdict); err != nil {
		return err
	}
	if !strings.EqualFold(verdict, "ok") {
		return fmt.Errorf("integrity check reported %q", verdict)
	}
	return nil
}
