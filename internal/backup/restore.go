package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"deadwax/internal/audit"
	"deadwax/internal/catalog"
	"deadwax/internal/config"
	"deadwax/internal/fileutil"
	"deadwax/internal/logging"
)

// Restore replaces the live database with a verified copy of the named
// backup. The catalog must be closed; Restore takes the installation lock
// exclusively and fails if any process still holds the store open. A
// pre-restore snapshot is taken first, and the previous catalog is
// reinstated from it if the swapped-in file fails its integrity check.
func (m *Manager) Restore(ctx context.Context, id string) error {
	entry, err := m.find(id)
	if err != nil {
		return err
	}

	lock := flock.New(m.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return catalog.Wrap(catalog.ErrStorageIO, "backup", "restore", "acquire installation lock", err)
	}
	if !locked {
		return catalog.Wrap(catalog.ErrStorageIO, "backup", "restore",
			"catalog is in use; close other deadwax processes first", nil)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	live := m.cfg.DatabasePath()
	staging := live + stagingSuffix
	// A leftover staging file means an earlier restore never reached its
	// rename; the live database is intact.
	_ = os.Remove(staging)

	var safety *Backup
	if _, statErr := os.Stat(live); statErr == nil {
		safety, err = m.snapshotClosed(ctx, live)
		if err != nil {
			return catalog.Wrap(catalog.ErrStorageIO, "backup", "restore", "pre-restore snapshot", err)
		}
	}

	sum, size, err := fileutil.CopyFileVerified(entry.FilePath, staging)
	if err != nil {
		return catalog.Wrap(catalog.ErrStorageIO, "backup", "restore", "stage backup copy", err)
	}
	if entry.SHA256 != "" && (sum != entry.SHA256 || size != entry.SizeBytes) {
		_ = os.Remove(staging)
		m.auditRestore(ctx, entry, safety, audit.OutcomeError)
		return catalog.Wrap(catalog.ErrRestoreIntegrity, "backup", "restore",
			fmt.Sprintf("%s does not match its recorded digest", entry.ID), nil)
	}
	if err := integrityCheckFile(ctx, staging); err != nil {
		_ = os.Remove(staging)
		m.auditRestore(ctx, entry, safety, audit.OutcomeError)
		return catalog.Wrap(catalog.ErrRestoreIntegrity, "backup", "restore",
			"staged copy failed integrity check", err)
	}

	// The previous database's WAL must never pair with the restored file.
	removeJournal(live)
	if err := os.Rename(staging, live); err != nil {
		swapErr := catalog.Wrap(catalog.ErrStorageIO, "backup", "restore", "swap staged copy in", err)
		if rbErr := m.reinstate(safety, live); rbErr != nil {
			m.auditRestore(ctx, entry, safety, audit.OutcomeError)
			m.reportFallbackFailure(safety, rbErr)
			return catalog.Wrap(catalog.ErrRestoreIntegrity, "backup", "restore",
				"swap failed and the previous catalog could not be reinstated",
				errors.Join(swapErr, rbErr))
		}
		m.auditRestore(ctx, entry, safety, audit.OutcomeError)
		return swapErr
	}

	if err := integrityCheckFile(ctx, live); err != nil {
		if rbErr := m.reinstate(safety, live); rbErr != nil {
			m.auditRestore(ctx, entry, safety, audit.OutcomeError)
			m.reportFallbackFailure(safety, rbErr)
			return catalog.Wrap(catalog.ErrRestoreIntegrity, "backup", "restore",
				"restored file failed integrity check and the previous catalog could not be reinstated",
				errors.Join(err, rbErr))
		}
		m.auditRestore(ctx, entry, safety, audit.OutcomeError)
		return catalog.Wrap(catalog.ErrRestoreIntegrity, "backup", "restore",
			"restored file failed integrity check; previous catalog reinstated", err)
	}

	m.auditRestore(ctx, entry, safety, audit.OutcomeOK)
	m.logger.Info("catalog restored",
		logging.String("backup", entry.ID),
		logging.String(logging.FieldPath, live))
	return nil
}

// snapshotClosed snapshots a database nobody has open. The manager holds
// the installation lock exclusively, so it opens the file directly. When
// the live file is too damaged for VACUUM INTO, its raw bytes are copied
// instead so nothing is lost before the swap.
func (m *Manager) snapshotClosed(ctx context.Context, live string) (*Backup, error) {
	if err := os.MkdirAll(m.cfg.Paths.BackupDir, 0o755); err != nil {
		return nil, err
	}
	created := time.Now().UTC()
	path, err := m.freshPath(preRestoreScope, created)
	if err != nil {
		return nil, err
	}

	if err := vacuumInto(ctx, live, path); err != nil {
		_ = os.Remove(path)
		logging.WarnWithContext(m.logger, "pre-restore snapshot fell back to a raw copy", "snapshot_fallback",
			logging.String(logging.FieldPath, live),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the previous database could not be vacuumed; it is likely damaged"),
			logging.String(logging.FieldImpact, "the safety copy preserves the damaged bytes as-is"))
		if _, _, copyErr := fileutil.CopyFileVerified(live, path); copyErr != nil {
			return nil, copyErr
		}
	}
	return m.seal(path, preRestoreScope, created)
}

func vacuumInto(ctx context.Context, src, dst string) error {
	db, err := sql.Open("sqlite", src)
	if err != nil {
		return err
	}
	escaped := strings.ReplaceAll(dst, "'", "''")
	_, execErr := db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", escaped))
	closeErr := db.Close()
	if execErr != nil {
		return execErr
	}
	return closeErr
}

// reinstate puts the pre-restore snapshot back as the live database.
func (m *Manager) reinstate(safety *Backup, live string) error {
	if safety == nil {
		// Nothing existed before the restore began.
		removeJournal(live)
		err := os.Remove(live)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	staging := live + stagingSuffix
	if _, _, err := fileutil.CopyFileVerified(safety.FilePath, staging); err != nil {
		return err
	}
	removeJournal(live)
	return os.Rename(staging, live)
}

// reportFallbackFailure logs a reinstate failure; at this point the live
// path holds neither the old nor the new catalog for certain.
func (m *Manager) reportFallbackFailure(safety *Backup, err error) {
	hint := "restore again from `deadwax backup list`"
	if safety != nil {
		hint = fmt.Sprintf("copy %s over the live database by hand", safety.FilePath)
	}
	logging.ErrorWithContext(m.logger, "pre-restore fallback failed", "restore_fallback_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "the catalog may be unavailable until a backup is reinstated"))
}

func (m *Manager) auditRestore(ctx context.Context, entry, safety *Backup, outcome string) {
	attrs := []logging.Attr{logging.String("backup", entry.ID)}
	if safety != nil {
		attrs = append(attrs, logging.String("pre_restore", safety.ID))
	}
	m.audit.Append(ctx, audit.ActionRestore, entry.Scope, outcome, attrs...)
}

// removeJournal deletes stale WAL and shared-memory files next to a
// database path.
func removeJournal(dbPath string) {
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")
}

// DiscardStaging removes a staging file left behind by an interrupted
// restore. The rename never happened, so the live database is intact.
// Returns whether anything was discarded.
func DiscardStaging(cfg *config.Config, logger *slog.Logger) (bool, error) {
	staging := cfg.DatabasePath() + stagingSuffix
	if _, err := os.Stat(staging); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := os.Remove(staging); err != nil {
		return false, err
	}
	if logger != nil {
		logging.WarnWithContext(logger, "discarded interrupted restore staging file", "restore_interrupted",
			logging.String(logging.FieldPath, staging),
			logging.String(logging.FieldErrorHint, "run backup verify before trusting older snapshots"),
			logging.String(logging.FieldImpact, "the live catalog was never replaced"))
	}
	return true, nil
}
