package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"deadwax/internal/audit"
	"deadwax/internal/fieldset"
	"deadwax/internal/isrc"
	"deadwax/internal/logging"
)

const maxDisplayNameLen = 64

const profileColumns = `id, display_name, country_code, registrant_code,
	last_issued_sequence, active, column_layout, created_at, updated_at`

// CreateProfile registers a registrant profile. The first profile in the
// catalog becomes active automatically.
func (s *Store) CreateProfile(ctx context.Context, meta ProfileMeta) (*Profile, error) {
	name := strings.TrimSpace(meta.DisplayName)
	country := strings.ToUpper(strings.TrimSpace(meta.CountryCode))
	registrant := strings.ToUpper(strings.TrimSpace(meta.RegistrantCode))

	if name == "" {
		return nil, Wrap(ErrValidation, "profiles", "create", "display name is required", nil)
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		return nil, Wrap(ErrValidation, "profiles", "create",
			fmt.Sprintf("display name exceeds %d characters", maxDisplayNameLen), nil)
	}
	if !isrc.ValidCountry(country) {
		return nil, Wrap(ErrValidation, "profiles", "create",
			fmt.Sprintf("country code %q must be two letters", meta.CountryCode), nil)
	}
	if !isrc.ValidRegistrant(registrant) {
		return nil, Wrap(ErrValidation, "profiles", "create",
			fmt.Sprintf("registrant code %q must be three letters or digits", meta.RegistrantCode), nil)
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles").Scan(&count); err != nil {
			return err
		}
		if count >= MaxProfiles {
			return Wrap(ErrProfileLimit, "profiles", "create",
				fmt.Sprintf("catalog already holds %d profiles", count), nil)
		}

		now := timestamp(nowUTC())
		result, err := tx.ExecContext(ctx, `
INSERT INTO profiles (display_name, country_code, registrant_code, last_issued_sequence, active, created_at, updated_at)
VALUES (?, ?, ?, 0, ?, ?, ?)`,
			name, country, registrant, boolToInt(count == 0), now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return Wrap(ErrDuplicateProfile, "profiles", "create",
					fmt.Sprintf("profile %q or prefix %s-%s already exists", name, country, registrant), err)
			}
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		if errors.Is(err, ErrProfileLimit) || errors.Is(err, ErrDuplicateProfile) {
			return nil, err
		}
		return nil, Wrap(ErrStorageIO, "profiles", "create", "", err)
	}

	profile, err := s.ProfileByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.appendAudit(ctx, audit.ActionProfileCreate, profile.DisplayName, audit.OutcomeOK,
		logging.Int64(logging.FieldProfileID, profile.ID))
	s.logger.Info("profile created",
		logging.String(logging.FieldProfile, profile.DisplayName),
		logging.Int64(logging.FieldProfileID, profile.ID))
	return profile, nil
}

// Profiles lists every profile ordered by display name.
func (s *Store) Profiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+profileColumns+" FROM profiles ORDER BY display_name")
	if err != nil {
		return nil, Wrap(ErrStorageIO, "profiles", "list", "", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, Wrap(ErrStorageIO, "profiles", "list", "scan row", err)
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, Wrap(ErrStorageIO, "profiles", "list", "iterate rows", err)
	}
	return profiles, nil
}

// ProfileByID fetches one profile.
func (s *Store) ProfileByID(ctx context.Context, id int64) (*Profile, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+profileColumns+" FROM profiles WHERE id = ?", id)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "profiles", "get", fmt.Sprintf("profile id %d", id), nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageIO, "profiles", "get", "", err)
	}
	return profile, nil
}

// ProfileByName fetches one profile by display name, case-insensitively.
func (s *Store) ProfileByName(ctx context.Context, name string) (*Profile, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+profileColumns+" FROM profiles WHERE display_name = ?", strings.TrimSpace(name))
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "profiles", "get", fmt.Sprintf("profile %q", name), nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageIO, "profiles", "get", "", err)
	}
	return profile, nil
}

// ActiveProfile returns the profile mutations apply to by default.
func (s *Store) ActiveProfile(ctx context.Context) (*Profile, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+profileColumns+" FROM profiles WHERE active = 1")
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "profiles", "active", "no active profile; create or switch to one", nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageIO, "profiles", "active", "", err)
	}
	return profile, nil
}

// SwitchProfile makes the named profile active and deactivates the rest.
func (s *Store) SwitchProfile(ctx context.Context, name string) (*Profile, error) {
	profile, err := s.ProfileByName(ctx, name)
	if err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE profiles SET active = 0 WHERE active = 1"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE profiles SET active = 1, updated_at = ? WHERE id = ?",
			timestamp(nowUTC()), profile.ID)
		return err
	})
	if err != nil {
		return nil, Wrap(ErrStorageIO, "profiles", "switch", "", err)
	}

	profile.Active = true
	s.appendAudit(ctx, audit.ActionProfileSwitch, profile.DisplayName, audit.OutcomeOK)
	s.logger.Info("active profile switched", logging.String(logging.FieldProfile, profile.DisplayName))
	return profile, nil
}

// DeleteProfile removes a profile and everything it owns. The returned
// blob references point at files the caller should remove from the blob
// store; the database rows are already gone.
func (s *Store) DeleteProfile(ctx context.Context, name string) ([]fieldset.BlobRef, error) {
	profile, err := s.ProfileByName(ctx, name)
	if err != nil {
		return nil, err
	}

	var blobs []fieldset.BlobRef
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		refs, err := blobRefsTx(ctx, tx, `
SELECT fv.blob_path, COALESCE(fv.blob_size, 0), COALESCE(fv.blob_sha256, ''), COALESCE(fv.mime_type, '')
FROM field_values fv
JOIN records r ON r.id = fv.record_id
WHERE r.profile_id = ? AND fv.blob_path IS NOT NULL`, profile.ID)
		if err != nil {
			return err
		}
		blobs = refs

		_, err = tx.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", profile.ID)
		return err
	})
	if err != nil {
		return nil, Wrap(ErrStorageIO, "profiles", "delete", "", err)
	}

	s.appendAudit(ctx, audit.ActionProfileDelete, profile.DisplayName, audit.OutcomeOK,
		logging.Int("orphaned_blobs", len(blobs)))
	s.logger.Info("profile deleted",
		logging.String(logging.FieldProfile, profile.DisplayName),
		logging.Int("orphaned_blobs", len(blobs)))
	return blobs, nil
}

// UpdateColumnLayout stores the table column order shown for the profile.
// Column names are validated against standard columns and active custom
// fields.
func (s *Store) UpdateColumnLayout(ctx context.Context, profileID int64, columns []string) error {
	cleaned := make([]string, 0, len(columns))
	seen := make(map[string]bool)
	defs, err := s.Fields(ctx, profileID)
	if err != nil {
		return err
	}
	for _, col := range columns {
		trimmed := strings.TrimSpace(col)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		if _, ok := StandardColumn(trimmed); !ok {
			if _, found := fieldset.FindDef(defs, trimmed); !found {
				return Wrap(ErrValidation, "profiles", "layout",
					fmt.Sprintf("unknown column %q", trimmed), nil)
			}
		}
		seen[key] = true
		cleaned = append(cleaned, trimmed)
	}

	layout := strings.Join(cleaned, ",")
	result, err := s.execWithRetry(ctx,
		"UPDATE profiles SET column_layout = ?, updated_at = ? WHERE id = ?",
		nullableString(layout), timestamp(nowUTC()), profileID)
	if err != nil {
		return Wrap(ErrStorageIO, "profiles", "layout", "", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return Wrap(ErrNotFound, "profiles", "layout", fmt.Sprintf("profile id %d", profileID), nil)
	}

	s.appendAudit(ctx, audit.ActionProfileLayout, fmt.Sprint(profileID), audit.OutcomeOK)
	return nil
}

// SetSetting upserts one profile preference.
func (s *Store) SetSetting(ctx context.Context, profileID int64, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return Wrap(ErrValidation, "profiles", "settings", "setting key is required", nil)
	}
	err := s.execWithoutResultRetry(ctx, `
INSERT INTO profile_settings (profile_id, key, value) VALUES (?, ?, ?)
ON CONFLICT(profile_id, key) DO UPDATE SET value = excluded.value`,
		profileID, key, value)
	if err != nil {
		return Wrap(ErrStorageIO, "profiles", "settings", "", err)
	}
	s.appendAudit(ctx, audit.ActionSettings, fmt.Sprint(profileID), audit.OutcomeOK,
		logging.String("key", key))
	return nil
}

// Setting reads one profile preference.
func (s *Store) Setting(ctx context.Context, profileID int64, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT value FROM profile_settings WHERE profile_id = ? AND key = ?",
		profileID, strings.TrimSpace(key))
	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, Wrap(ErrStorageIO, "profiles", "settings", "", err)
	}
	return value, true, nil
}

// Settings reads all preferences for a profile.
func (s *Store) Settings(ctx context.Context, profileID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT key, value FROM profile_settings WHERE profile_id = ? ORDER BY key", profileID)
	if err != nil {
		return nil, Wrap(ErrStorageIO, "profiles", "settings", "", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, Wrap(ErrStorageIO, "profiles", "settings", "scan row", err)
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, Wrap(ErrStorageIO, "profiles", "settings", "iterate rows", err)
	}
	return settings, nil
}

// Layout splits the stored column layout. Empty means the default layout.
func (p *Profile) Layout() []string {
	if p == nil || strings.TrimSpace(p.ColumnLayout) == "" {
		return nil
	}
	parts := strings.Split(p.ColumnLayout, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		profile   Profile
		active    int
		layout    sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&profile.ID, &profile.DisplayName, &profile.CountryCode, &profile.RegistrantCode,
		&profile.LastIssuedSequence, &active, &layout, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	profile.Active = active != 0
	profile.ColumnLayout = layout.String
	profile.CreatedAt = parseTimeString(createdAt)
	profile.UpdatedAt = parseTimeString(updatedAt)
	return &profile, nil
}
