package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"deadwax/internal/audit"
	"deadwax/internal/fieldset"
	"deadwax/internal/logging"
)

const fieldDefColumns = "id, name, field_type, options, required, sort_order, active"

// Fields lists the profile's active custom field definitions in display
// order.
func (s *Store) Fields(ctx context.Context, profileID int64) ([]fieldset.FieldDef, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+fieldDefColumns+" FROM field_defs WHERE profile_id = ? AND active = 1 ORDER BY sort_order, id",
		profileID)
	if err != nil {
		return nil, Wrap(ErrStorageIO, "schema", "list", "", err)
	}
	defer rows.Close()

	var defs []fieldset.FieldDef
	for rows.Next() {
		def, err := scanFieldDef(rows)
		if err != nil {
			return nil, Wrap(ErrStorageIO, "schema", "list", "scan row", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, Wrap(ErrStorageIO, "schema", "list", "iterate rows", err)
	}
	return defs, nil
}

// AddField defines a custom field on the profile. Re-adding a previously
// removed field of the same type reactivates the old definition so prior
// values stay reachable.
func (s *Store) AddField(ctx context.Context, profileID int64, def fieldset.FieldDef) (*fieldset.FieldDef, error) {
	name := strings.TrimSpace(def.Name)
	if err := validateFieldName(name); err != nil {
		return nil, err
	}
	if _, err := fieldset.TypeFromString(string(def.Type)); err != nil {
		return nil, Wrap(ErrValidation, "schema", "add", "", err)
	}
	options, err := normalizeOptions(def.Type, def.Options)
	if err != nil {
		return nil, err
	}

	var saved *fieldset.FieldDef
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := profileExists(ctx, tx, profileID); err != nil {
			return err
		}

		existing, err := fieldByNameTx(ctx, tx, profileID, name)
		if err != nil {
			return err
		}
		now := timestamp(nowUTC())
		if existing != nil {
			if existing.Active {
				return Wrap(ErrValidation, "schema", "add",
					fmt.Sprintf("field %q already exists", name), nil)
			}
			if existing.Type != def.Type {
				existing = nil
			}
		}

		var nextOrder int
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(sort_order), -1) + 1 FROM field_defs WHERE profile_id = ?",
			profileID).Scan(&nextOrder); err != nil {
			return err
		}

		encoded, err := encodeOptions(options)
		if err != nil {
			return err
		}

		if existing != nil {
			if _, err := tx.ExecContext(ctx, `
UPDATE field_defs SET active = 1, options = ?, required = ?, sort_order = ?, updated_at = ?
WHERE id = ?`,
				encoded, boolToInt(def.Required), nextOrder, now, existing.ID); err != nil {
				return err
			}
			saved = &fieldset.FieldDef{
				ID: existing.ID, Name: existing.Name, Type: existing.Type,
				Options: options, Required: def.Required, SortOrder: nextOrder, Active: true,
			}
			return nil
		}

		result, err := tx.ExecContext(ctx, `
INSERT INTO field_defs (profile_id, name, field_type, options, required, sort_order, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			profileID, name, string(def.Type), encoded, boolToInt(def.Required), nextOrder, now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return Wrap(ErrValidation, "schema", "add",
					fmt.Sprintf("field %q already exists", name), err)
			}
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		saved = &fieldset.FieldDef{
			ID: id, Name: name, Type: def.Type,
			Options: options, Required: def.Required, SortOrder: nextOrder, Active: true,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, Wrap(ErrStorageIO, "schema", "add", "", err)
	}

	s.appendAudit(ctx, audit.ActionSchemaAdd, fmt.Sprint(profileID), audit.OutcomeOK,
		logging.String("field", saved.Name),
		logging.String("type", string(saved.Type)))
	s.logger.Info("field added",
		logging.Int64(logging.FieldProfileID, profileID),
		logging.String("field", saved.Name))
	return saved, nil
}

// RenameField changes a field's display name. Stored values stay attached
// through the definition id.
func (s *Store) RenameField(ctx context.Context, profileID int64, oldName, newName string) (*fieldset.FieldDef, error) {
	newName = strings.TrimSpace(newName)
	if err := validateFieldName(newName); err != nil {
		return nil, err
	}

	var renamed *fieldset.FieldDef
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		def, err := activeFieldTx(ctx, tx, profileID, oldName)
		if err != nil {
			return err
		}
		if !strings.EqualFold(def.Name, newName) {
			other, err := fieldByNameTx(ctx, tx, profileID, newName)
			if err != nil {
				return err
			}
			if other != nil && other.Active {
				return Wrap(ErrValidation, "schema", "rename",
					fmt.Sprintf("field %q already exists", newName), nil)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE field_defs SET name = ?, updated_at = ? WHERE id = ?",
			newName, timestamp(nowUTC()), def.ID); err != nil {
			if isUniqueViolation(err) {
				return Wrap(ErrValidation, "schema", "rename",
					fmt.Sprintf("field %q already exists", newName), err)
			}
			return err
		}
		def.Name = newName
		renamed = def
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, Wrap(ErrStorageIO, "schema", "rename", "", err)
	}

	s.appendAudit(ctx, audit.ActionSchemaRename, fmt.Sprint(profileID), audit.OutcomeOK,
		logging.String("from", oldName), logging.String("to", renamed.Name))
	return renamed, nil
}

// SetFieldOptions replaces a dropdown field's permitted values. Stored
// values that fall outside the new set stay as they are; only new writes
// are checked against it.
func (s *Store) SetFieldOptions(ctx context.Context, profileID int64, name string, options []string) (*fieldset.FieldDef, error) {
	var updated *fieldset.FieldDef
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		def, err := activeFieldTx(ctx, tx, profileID, name)
		if err != nil {
			return err
		}
		if def.Type != fieldset.TypeDropdown {
			return Wrap(ErrValidation, "schema", "options",
				fmt.Sprintf("field %q is %s, not %s", def.Name, def.Type, fieldset.TypeDropdown), nil)
		}
		cleaned, err := normalizeOptions(fieldset.TypeDropdown, options)
		if err != nil {
			return err
		}
		encoded, err := encodeOptions(cleaned)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE field_defs SET options = ?, updated_at = ? WHERE id = ?",
			encoded, timestamp(nowUTC()), def.ID); err != nil {
			return err
		}
		def.Options = cleaned
		updated = def
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, Wrap(ErrStorageIO, "schema", "options", "", err)
	}

	s.appendAudit(ctx, audit.ActionSchemaModify, fmt.Sprint(profileID), audit.OutcomeOK,
		logging.String("field", updated.Name))
	return updated, nil
}

// SetFieldRequired toggles whether records must carry a value for the
// field. Existing records are not revalidated.
func (s *Store) SetFieldRequired(ctx context.Context, profileID int64, name string, required bool) (*fieldset.FieldDef, error) {
	var updated *fieldset.FieldDef
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		def, err := activeFieldTx(ctx, tx, profileID, name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE field_defs SET required = ?, updated_at = ? WHERE id = ?",
			boolToInt(required), timestamp(nowUTC()), def.ID); err != nil {
			return err
		}
		def.Required = required
		updated = def
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, Wrap(ErrStorageIO, "schema", "required", "", err)
	}

	s.appendAudit(ctx, audit.ActionSchemaModify, fmt.Sprint(profileID), audit.OutcomeOK,
		logging.String("field", updated.Name), logging.Bool("required", required))
	return updated, nil
}

// RemoveField retires a field definition. Definitions holding values
// refuse removal unless force is set, in which case the values are
// deleted and any orphaned blob files are returned for cleanup. The
// definition row is kept inactive so a later re-add can revive it.
func (s *Store) RemoveField(ctx context.Context, profileID int64, name string, force bool) ([]fieldset.BlobRef, error) {
	var blobs []fieldset.BlobRef
	var removed string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		blobs = nil
		def, err := activeFieldTx(ctx, tx, profileID, name)
		if err != nil {
			return err
		}

		var valueCount int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM field_values WHERE field_id = ?", def.ID).Scan(&valueCount); err != nil {
			return err
		}
		if valueCount > 0 && !force {
			return Wrap(ErrSchemaInUse, "schema", "remove",
				fmt.Sprintf("field %q holds values on %d records; use force to delete them", def.Name, valueCount), nil)
		}

		if valueCount > 0 {
			refs, err := blobRefsTx(ctx, tx, `
SELECT blob_path, COALESCE(blob_size, 0), COALESCE(blob_sha256, ''), COALESCE(mime_type, '')
FROM field_values WHERE field_id = ? AND blob_path IS NOT NULL`, def.ID)
			if err != nil {
				return err
			}
			blobs = refs

			if _, err := tx.ExecContext(ctx, "DELETE FROM field_values WHERE field_id = ?", def.ID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE field_defs SET active = 0, updated_at = ? WHERE id = ?",
			timestamp(nowUTC()), def.ID); err != nil {
			return err
		}
		removed = def.Name
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSchemaInUse) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, Wrap(ErrStorageIO, "schema", "remove", "", err)
	}

	s.appendAudit(ctx, audit.ActionSchemaRemove, fmt.Sprint(profileID), audit.OutcomeOK,
		logging.String("field", removed),
		logging.Bool("force", force),
		logging.Int("orphaned_blobs", len(blobs)))
	s.logger.Info("field removed",
		logging.Int64(logging.FieldProfileID, profileID),
		logging.String("field", removed))
	return blobs, nil
}

// ReorderFields assigns display order from the given name sequence, which
// must name every active field exactly once.
func (s *Store) ReorderFields(ctx context.Context, profileID int64, names []string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT id, name FROM field_defs WHERE profile_id = ? AND active = 1", profileID)
		if err != nil {
			return err
		}
		idsByName := make(map[string]int64)
		for rows.Next() {
			var id int64
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return err
			}
			idsByName[strings.ToLower(name)] = id
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(names) != len(idsByName) {
			return Wrap(ErrValidation, "schema", "reorder",
				fmt.Sprintf("expected %d field names, got %d", len(idsByName), len(names)), nil)
		}

		seen := make(map[string]bool, len(names))
		now := timestamp(nowUTC())
		for position, name := range names {
			key := strings.ToLower(strings.TrimSpace(name))
			id, ok := idsByName[key]
			if !ok {
				return Wrap(ErrValidation, "schema", "reorder",
					fmt.Sprintf("unknown field %q", name), nil)
			}
			if seen[key] {
				return Wrap(ErrValidation, "schema", "reorder",
					fmt.Sprintf("field %q listed twice", name), nil)
			}
			seen[key] = true
			if _, err := tx.ExecContext(ctx,
				"UPDATE field_defs SET sort_order = ?, updated_at = ? WHERE id = ?",
				position, now, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return err
		}
		return Wrap(ErrStorageIO, "schema", "reorder", "", err)
	}

	s.appendAudit(ctx, audit.ActionSchemaReorder, fmt.Sprint(profileID), audit.OutcomeOK)
	return nil
}

func validateFieldName(name string) error {
	if !fieldset.ValidFieldName(name) {
		return Wrap(ErrValidation, "schema", "validate",
			fmt.Sprintf("invalid field name %q", name), nil)
	}
	if ReservedFieldName(name) {
		return Wrap(ErrValidation, "schema", "validate",
			fmt.Sprintf("%q is a standard column name", name), nil)
	}
	return nil
}

// normalizeOptions trims and deduplicates dropdown options. Non-dropdown
// types must not carry options.
func normalizeOptions(fieldType fieldset.FieldType, options []string) ([]string, error) {
	cleaned := make([]string, 0, len(options))
	seen := make(map[string]bool)
	for _, option := range options {
		trimmed := strings.TrimSpace(option)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, trimmed)
	}

	if fieldType == fieldset.TypeDropdown {
		if len(cleaned) == 0 {
			return nil, Wrap(ErrValidation, "schema", "validate",
				"dropdown fields need at least one option", nil)
		}
		return cleaned, nil
	}
	if len(cleaned) > 0 {
		return nil, Wrap(ErrValidation, "schema", "validate",
			fmt.Sprintf("%s fields do not take options", fieldType), nil)
	}
	return nil, nil
}

func profileExists(ctx context.Context, tx *sql.Tx, profileID int64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM profiles WHERE id = ?", profileID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, Wrap(ErrNotFound, "schema", "validate", fmt.Sprintf("profile id %d", profileID), nil)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func fieldByNameTx(ctx context.Context, tx *sql.Tx, profileID int64, name string) (*fieldset.FieldDef, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+fieldDefColumns+" FROM field_defs WHERE profile_id = ? AND name = ? ORDER BY active DESC, id DESC LIMIT 1",
		profileID, strings.TrimSpace(name))
	def, err := scanFieldDef(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

func activeFieldTx(ctx context.Context, tx *sql.Tx, profileID int64, name string) (*fieldset.FieldDef, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+fieldDefColumns+" FROM field_defs WHERE profile_id = ? AND name = ? AND active = 1",
		profileID, strings.TrimSpace(name))
	def, err := scanFieldDef(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "schema", "get", fmt.Sprintf("field %q", name), nil)
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

func scanFieldDef(row rowScanner) (fieldset.FieldDef, error) {
	var (
		def      fieldset.FieldDef
		rawType  string
		options  sql.NullString
		required int
		active   int
	)
	err := row.Scan(&def.ID, &def.Name, &rawType, &options, &required, &def.SortOrder, &active)
	if err != nil {
		return fieldset.FieldDef{}, err
	}
	def.Type = fieldset.FieldType(rawType)
	def.Required = required != 0
	def.Active = active != 0
	def.Options, err = decodeOptions(options)
	if err != nil {
		return fieldset.FieldDef{}, err
	}
	return def, nil
}
