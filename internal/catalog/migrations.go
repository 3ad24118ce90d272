package catalog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// applyMigrations brings the schema up to date. Each migration runs once;
// applied versions are recorded in schema_migrations.
func (s *Store) applyMigrations(ctx context.Context) error {
	ctx = ensureContext(ctx)

	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
)`); err != nil {
		return Wrap(ErrStorageIO, "store", "migrate", "create schema_migrations", err)
	}

	applied := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return Wrap(ErrStorageIO, "store", "migrate", "read applied versions", err)
	}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return Wrap(ErrStorageIO, "store", "migrate", "scan applied version", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Wrap(ErrStorageIO, "store", "migrate", "iterate applied versions", err)
	}
	rows.Close()

	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return Wrap(ErrStorageIO, "store", "migrate", "read embedded migrations", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		if applied[version] {
			continue
		}

		script, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return Wrap(ErrStorageIO, "store", "migrate", fmt.Sprintf("read migration %s", name), err)
		}

		err = s.withTx(ctx, func(tx *sql.Tx) error {
			if _, execErr := tx.ExecContext(ctx, string(script)); execErr != nil {
				return execErr
			}
			_, execErr := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				version, timestamp(time.Now()))
			return execErr
		})
		if err != nil {
			return Wrap(ErrStorageIO, "store", "migrate", fmt.Sprintf("apply migration %s", name), err)
		}
	}

	return nil
}
