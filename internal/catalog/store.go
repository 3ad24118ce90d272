package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"deadwax/internal/audit"
	"deadwax/internal/config"
	"deadwax/internal/logging"
)

// Store manages catalog persistence backed by SQLite. One Store serves the
// whole installation root; profiles are rows, not separate databases.
type Store struct {
	db     *sql.DB
	path   string
	lock   *flock.Flock
	audit  *audit.Log
	logger *slog.Logger
}

// Open initializes or connects to the catalog database, takes a shared
// installation-root lock, and applies migrations. Restore takes the same
// lock exclusively, so Open fails while a restore is swapping files.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, Wrap(ErrStorageIO, "store", "open", "ensure directories", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryRLock()
	if err != nil {
		return nil, Wrap(ErrStorageIO, "store", "open", "acquire shared lock", err)
	}
	if !locked {
		return nil, Wrap(ErrStorageIO, "store", "open", "catalog is locked by a restore in progress", nil)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, Wrap(ErrStorageIO, "store", "open", "open sqlite db", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, Wrap(ErrStorageIO, "store", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lock: lock, logger: logging.NewNop()}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection and releases the shared lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var dbErr error
	if s.db != nil {
		dbErr = s.db.Close()
		s.db = nil
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && dbErr == nil {
			dbErr = err
		}
		s.lock = nil
	}
	return dbErr
}

// AttachAudit wires the append-only audit log. Mutations are audited only
// while a log is attached.
func (s *Store) AttachAudit(log *audit.Log) {
	s.audit = log
}

// AttachLogger replaces the store's no-op logger.
func (s *Store) AttachLogger(logger *slog.Logger) {
	if logger == nil {
		s.logger = logging.NewNop()
		return
	}
	s.logger = logging.NewComponentLogger(logger, "catalog")
}

// SnapshotTo writes a complete, consistent copy of the database to path
// using VACUUM INTO. Readers and writers may continue while the snapshot
// runs.
func (s *Store) SnapshotTo(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return Wrap(ErrValidation, "store", "snapshot", "empty destination path", nil)
	}
	if _, err := os.Stat(path); err == nil {
		return Wrap(ErrStorageIO, "store", "snapshot", fmt.Sprintf("destination %s already exists", path), nil)
	}
	escaped := strings.ReplaceAll(path, "'", "''")
	if err := s.execWithoutResultRetry(ctx, fmt.Sprintf("VACUUM INTO '%s'", escaped)); err != nil {
		return Wrap(ErrStorageIO, "store", "snapshot", "vacuum into", err)
	}
	return nil
}

// integrityCheck runs PRAGMA integrity_check and returns its verdict.
func (s *Store) integrityCheck(ctx context.Context) (bool, string, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "PRAGMA integrity_check")
	var verdict string
	if err := row.Scan(&verdict); err != nil {
		return false, "", Wrap(ErrStorageIO, "store", "integrity check", "", err)
	}
	return strings.EqualFold(verdict, "ok"), verdict, nil
}

// CheckHealth returns diagnostic information about the catalog database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{Path: s.path}

	if s.path == "" {
		return health, errors.New("catalog database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat catalog database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("catalog database path %q is a directory", s.path)
	}
	health.DatabaseExists = true
	health.SizeBytes = info.Size()

	if s.db == nil {
		return health, errors.New("catalog database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping catalog database: %w", err)
	}
	health.DatabaseReadable = true

	row := s.db.QueryRowContext(connCtx, "SELECT COALESCE(MAX(version), '') FROM schema_migrations")
	if err := row.Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM profiles")
	if err := row.Scan(&health.Profiles); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count profiles: %w", err)
	}

	row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM records")
	if err := row.Scan(&health.Records); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count records: %w", err)
	}

	ok, verdict, err := s.integrityCheck(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.IntegrityOK = ok
	if !ok {
		health.Error = verdict
	}

	return health, nil
}

// appendAudit writes an audit entry when a log is attached.
func (s *Store) appendAudit(ctx context.Context, action audit.Action, profile, outcome string, attrs ...logging.Attr) {
	s.audit.Append(ensureContext(ctx), action, profile, outcome, attrs...)
}
