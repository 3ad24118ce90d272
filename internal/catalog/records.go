package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"deadwax/internal/audit"
	"deadwax/internal/fieldset"
	"deadwax/internal/isrc"
	"deadwax/internal/logging"
)

const recordColumns = `id, profile_id, COALESCE(isrc, ''), title, artist, additional_artists,
	album, release_date, length_seconds, iswc, upc, genre, created_at, updated_at`

// InsertRecord validates and persists one record with its custom field
// values in a single transaction. A manually supplied code with the
// profile's own prefix advances the sequence cursor so later issuance
// cannot collide with it.
func (s *Store) InsertRecord(ctx context.Context, profileID int64, draft Record, fields []fieldset.RawField) (*Record, error) {
	profile, err := s.ProfileByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	defs, err := s.Fields(ctx, profileID)
	if err != nil {
		return nil, err
	}

	values, fieldErrs := fieldset.ValidateRecord(defs, fields)
	stdErrs := ValidateStandard(&draft)
	if len(fieldErrs) > 0 || len(stdErrs) > 0 {
		return nil, &RowError{Fields: append(stdErrs, fieldErrs...)}
	}

	draft.ProfileID = profileID
	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if draft.ISRC != "" {
			if err := checkDuplicateISRC(ctx, tx, profileID, draft.ISRC, 0); err != nil {
				return err
			}
		}

		now := timestamp(nowUTC())
		result, err := tx.ExecContext(ctx, `
INSERT INTO records (profile_id, isrc, title, artist, additional_artists, album, release_date,
	length_seconds, iswc, upc, genre, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			profileID, nullableString(draft.ISRC), draft.Title, draft.Artist, draft.AdditionalArtists,
			draft.Album, draft.ReleaseDate, draft.LengthSeconds, draft.ISWC, draft.UPC, draft.Genre,
			now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return Wrap(ErrDuplicateISRC, "records", "insert",
					fmt.Sprintf("code %s already cataloged", draft.ISRC), err)
			}
			return err
		}
		id, err = result.LastInsertId()
		if err != nil {
			return err
		}
		if err := insertValuesTx(ctx, tx, id, values); err != nil {
			return err
		}
		return advanceCursorTx(ctx, tx, profile, draft.Code())
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateISRC) {
			return nil, err
		}
		return nil, Wrap(ErrStorageIO, "records", "insert", "", err)
	}

	record, err := s.Record(ctx, profileID, id)
	if err != nil {
		return nil, err
	}
	s.appendAudit(ctx, audit.ActionRecordInsert, profile.DisplayName, audit.OutcomeOK,
		logging.Int64(logging.FieldRecordID, record.ID),
		logging.String(logging.FieldISRC, record.ISRC))
	s.logger.Info("record inserted",
		logging.String(logging.FieldProfile, profile.DisplayName),
		logging.Int64(logging.FieldRecordID, record.ID))
	return record, nil
}

// UpdateRecord replaces a record's standard fields and custom values in a
// single transaction. Blob files referenced before but not after the
// update are returned for cleanup.
func (s *Store) UpdateRecord(ctx context.Context, profileID, recordID int64, draft Record, fields []fieldset.RawField) (*Record, []fieldset.BlobRef, error) {
	profile, err := s.ProfileByID(ctx, profileID)
	if err != nil {
		return nil, nil, err
	}
	defs, err := s.Fields(ctx, profileID)
	if err != nil {
		return nil, nil, err
	}

	values, fieldErrs := fieldset.ValidateRecord(defs, fields)
	stdErrs := ValidateStandard(&draft)
	if len(fieldErrs) > 0 || len(stdErrs) > 0 {
		return nil, nil, &RowError{Fields: append(stdErrs, fieldErrs...)}
	}

	kept := make(map[string]bool)
	for _, value := range values {
		if value.Blob.Path != "" {
			kept[value.Blob.Path] = true
		}
	}

	var orphans []fieldset.BlobRef
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		orphans = nil
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM records WHERE id = ? AND profile_id = ?", recordID, profileID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return Wrap(ErrNotFound, "records", "update", fmt.Sprintf("record id %d", recordID), nil)
		}
		if err != nil {
			return err
		}

		if draft.ISRC != "" {
			if err := checkDuplicateISRC(ctx, tx, profileID, draft.ISRC, recordID); err != nil {
				return err
			}
		}

		previous, err := blobRefsTx(ctx, tx,
			"SELECT blob_path, COALESCE(blob_size, 0), COALESCE(blob_sha256, ''), COALESCE(mime_type, '') FROM field_values WHERE record_id = ? AND blob_path IS NOT NULL",
			recordID)
		if err != nil {
			return err
		}
		for _, ref := range previous {
			if !kept[ref.Path] {
				orphans = append(orphans, ref)
			}
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE records SET isrc = ?, title = ?, artist = ?, additional_artists = ?, album = ?,
	release_date = ?, length_seconds = ?, iswc = ?, upc = ?, genre = ?, updated_at = ?
WHERE id = ?`,
			nullableString(draft.ISRC), draft.Title, draft.Artist, draft.AdditionalArtists,
			draft.Album, draft.ReleaseDate, draft.LengthSeconds, draft.ISWC, draft.UPC, draft.Genre,
			timestamp(nowUTC()), recordID); err != nil {
			if isUniqueViolation(err) {
				return Wrap(ErrDuplicateISRC, "records", "update",
					fmt.Sprintf("code %s already cataloged", draft.ISRC), err)
			}
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM field_values WHERE record_id = ?", recordID); err != nil {
			return err
		}
		if err := insertValuesTx(ctx, tx, recordID, values); err != nil {
			return err
		}
		return advanceCursorTx(ctx, tx, profile, draft.Code())
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateISRC) {
			return nil, nil, err
		}
		return nil, nil, Wrap(ErrStorageIO, "records", "update", "", err)
	}

	record, err := s.Record(ctx, profileID, recordID)
	if err != nil {
		return nil, nil, err
	}
	s.appendAudit(ctx, audit.ActionRecordUpdate, profile.DisplayName, audit.OutcomeOK,
		logging.Int64(logging.FieldRecordID, record.ID),
		logging.String(logging.FieldISRC, record.ISRC))
	return record, orphans, nil
}

// DeleteRecord removes a record and its values. The returned blob
// references point at files the caller should remove.
func (s *Store) DeleteRecord(ctx context.Context, profileID, recordID int64) ([]fieldset.BlobRef, error) {
	profile, err := s.ProfileByID(ctx, profileID)
	if err != nil {
		return nil, err
	}

	var blobs []fieldset.BlobRef
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		blobs = nil
		refs, err := blobRefsTx(ctx, tx, `
SELECT fv.blob_path, COALESCE(fv.blob_size, 0), COALESCE(fv.blob_sha256, ''), COALESCE(fv.mime_type, '')
FROM field_values fv
JOIN records r ON r.id = fv.record_id
WHERE r.id = ? AND r.profile_id = ? AND fv.blob_path IS NOT NULL`, recordID, profileID)
		if err != nil {
			return err
		}
		blobs = refs

		result, err := tx.ExecContext(ctx,
			"DELETE FROM records WHERE id = ? AND profile_id = ?", recordID, profileID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return Wrap(ErrNotFound, "records", "delete", fmt.Sprintf("record id %d", recordID), nil)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, Wrap(ErrStorageIO, "records", "delete", "", err)
	}

	s.appendAudit(ctx, audit.ActionRecordDelete, profile.DisplayName, audit.OutcomeOK,
		logging.Int64(logging.FieldRecordID, recordID))
	s.logger.Info("record deleted",
		logging.String(logging.FieldProfile, profile.DisplayName),
		logging.Int64(logging.FieldRecordID, recordID))
	return blobs, nil
}

// Record loads one record with its custom field values.
func (s *Store) Record(ctx context.Context, profileID, recordID int64) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+recordColumns+" FROM records WHERE id = ? AND profile_id = ?", recordID, profileID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "records", "get", fmt.Sprintf("record id %d", recordID), nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageIO, "records", "get", "", err)
	}
	if err := s.loadValues(ctx, []*Record{record}); err != nil {
		return nil, err
	}
	return record, nil
}

// RecordByISRC finds the record holding the given code in either form.
func (s *Store) RecordByISRC(ctx context.Context, profileID int64, raw string) (*Record, error) {
	code, err := isrc.Parse(raw)
	if err != nil {
		return nil, Wrap(ErrValidation, "records", "get", "", err)
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+recordColumns+" FROM records WHERE profile_id = ? AND isrc = ?", profileID, code.Compact())
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "records", "get", fmt.Sprintf("code %s", code.ISO()), nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageIO, "records", "get", "", err)
	}
	if err := s.loadValues(ctx, []*Record{record}); err != nil {
		return nil, err
	}
	return record, nil
}

// Records lists the profile's records in insertion order, optionally
// narrowed by a filter. A filter with no field matches against the
// searchable standard columns and every custom text value.
func (s *Store) Records(ctx context.Context, profileID int64, filter Filter) ([]Record, error) {
	query := "SELECT " + recordColumns + " FROM records WHERE profile_id = ?"
	args := []any{profileID}

	if !filter.IsZero() {
		clause, clauseArgs, err := s.filterClause(ctx, profileID, filter)
		if err != nil {
			return nil, err
		}
		query += " AND " + clause
		args = append(args, clauseArgs...)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, Wrap(ErrStorageIO, "records", "list", "", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, Wrap(ErrStorageIO, "records", "list", "scan row", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, Wrap(ErrStorageIO, "records", "list", "iterate rows", err)
	}

	if err := s.loadValues(ctx, records); err != nil {
		return nil, err
	}
	out := make([]Record, len(records))
	for i, record := range records {
		out[i] = *record
	}
	return out, nil
}

// CountRecords reports how many records the profile holds.
func (s *Store) CountRecords(ctx context.Context, profileID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(*) FROM records WHERE profile_id = ?", profileID).Scan(&count)
	if err != nil {
		return 0, Wrap(ErrStorageIO, "records", "count", "", err)
	}
	return count, nil
}

// ExistingISRCs returns the compact codes already cataloged for the
// profile, keyed for constant-time duplicate checks.
func (s *Store) ExistingISRCs(ctx context.Context, profileID int64) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT isrc FROM records WHERE profile_id = ? AND isrc IS NOT NULL", profileID)
	if err != nil {
		return nil, Wrap(ErrStorageIO, "records", "codes", "", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, Wrap(ErrStorageIO, "records", "codes", "scan row", err)
		}
		existing[code] = true
	}
	if err := rows.Err(); err != nil {
		return nil, Wrap(ErrStorageIO, "records", "codes", "iterate rows", err)
	}
	return existing, nil
}

// BatchRecord is one pre-validated row bound for InsertBatch.
type BatchRecord struct {
	Record Record
	Values map[int64]fieldset.Value
}

// InsertBatch persists every row in one transaction; any failure inserts
// nothing. Rows must already be validated. The sequence cursor advances
// past the highest own-prefix designation in the batch.
func (s *Store) InsertBatch(ctx context.Context, profileID int64, batch []BatchRecord) error {
	if len(batch) == 0 {
		return nil
	}
	profile, err := s.ProfileByID(ctx, profileID)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		now := timestamp(nowUTC())
		maxOwn := isrc.Code{}
		for _, item := range batch {
			rec := item.Record
			if rec.ISRC != "" {
				if err := checkDuplicateISRC(ctx, tx, profileID, rec.ISRC, 0); err != nil {
					return err
				}
			}
			result, err := tx.ExecContext(ctx, `
INSERT INTO records (profile_id, isrc, title, artist, additional_artists, album, release_date,
	length_seconds, iswc, upc, genre, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				profileID, nullableString(rec.ISRC), rec.Title, rec.Artist, rec.AdditionalArtists,
				rec.Album, rec.ReleaseDate, rec.LengthSeconds, rec.ISWC, rec.UPC, rec.Genre,
				now, now)
			if err != nil {
				if isUniqueViolation(err) {
					return Wrap(ErrDuplicateISRC, "records", "batch insert",
						fmt.Sprintf("code %s already cataloged", rec.ISRC), err)
				}
				return err
			}
			id, err := result.LastInsertId()
			if err != nil {
				return err
			}
			if err := insertValuesTx(ctx, tx, id, item.Values); err != nil {
				return err
			}
			code := rec.Code()
			if code.Country == profile.CountryCode && code.Registrant == profile.RegistrantCode &&
				code.Designation > maxOwn.Designation {
				maxOwn = code
			}
		}
		return advanceCursorTx(ctx, tx, profile, maxOwn)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateISRC) {
			return err
		}
		return Wrap(ErrStorageIO, "records", "batch insert", "", err)
	}
	s.logger.Info("batch inserted",
		logging.String(logging.FieldProfile, profile.DisplayName),
		logging.Int("rows", len(batch)))
	return nil
}

// ValidateStandard normalizes the built-in columns and collects their
// format violations. The ISRC is rewritten to compact form when valid.
func ValidateStandard(rec *Record) []fieldset.FieldError {
	rec.Title = strings.TrimSpace(rec.Title)
	rec.Artist = strings.TrimSpace(rec.Artist)
	rec.AdditionalArtists = strings.TrimSpace(rec.AdditionalArtists)
	rec.Album = strings.TrimSpace(rec.Album)
	rec.ReleaseDate = strings.TrimSpace(rec.ReleaseDate)
	rec.ISWC = strings.ToUpper(strings.TrimSpace(rec.ISWC))
	rec.UPC = strings.TrimSpace(rec.UPC)
	rec.Genre = strings.TrimSpace(rec.Genre)

	var errs []fieldset.FieldError
	if rec.Title == "" {
		errs = append(errs, fieldset.FieldError{Field: "title", Kind: fieldset.ErrMissingField})
	}
	if rec.ISRC != "" {
		code, err := isrc.Parse(rec.ISRC)
		if err != nil {
			errs = append(errs, fieldset.FieldError{
				Field: "isrc", Kind: fieldset.ErrTypeMismatch,
				Expected: "CC-XXX-YY-NNNNN", Got: rec.ISRC,
			})
		} else {
			rec.ISRC = code.Compact()
		}
	}
	if rec.ReleaseDate != "" && !fieldset.ValidDate(rec.ReleaseDate) {
		errs = append(errs, fieldset.FieldError{
			Field: "release date", Kind: fieldset.ErrTypeMismatch,
			Expected: "YYYY-MM-DD", Got: rec.ReleaseDate,
		})
	}
	if rec.LengthSeconds < 0 {
		errs = append(errs, fieldset.FieldError{
			Field: "length", Kind: fieldset.ErrTypeMismatch,
			Expected: "non-negative seconds", Got: fmt.Sprint(rec.LengthSeconds),
		})
	}
	if rec.ISWC != "" && !isrc.ValidISWC(rec.ISWC) {
		errs = append(errs, fieldset.FieldError{
			Field: "iswc", Kind: fieldset.ErrTypeMismatch,
			Expected: "T-NNN.NNN.NNN-C", Got: rec.ISWC,
		})
	}
	if rec.UPC != "" && !isrc.ValidUPC(rec.UPC) {
		errs = append(errs, fieldset.FieldError{
			Field: "upc", Kind: fieldset.ErrTypeMismatch,
			Expected: "12 or 13 digits", Got: rec.UPC,
		})
	}
	return errs
}

func checkDuplicateISRC(ctx context.Context, tx *sql.Tx, profileID int64, compact string, excludeID int64) error {
	var existing int64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM records WHERE profile_id = ? AND isrc = ?", profileID, compact).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing == excludeID {
		return nil
	}
	return Wrap(ErrDuplicateISRC, "records", "validate",
		fmt.Sprintf("code %s already cataloged on record %d", compact, existing), nil)
}

// advanceCursorTx moves the sequence cursor past an own-prefix manual
// code. The guard keeps the cursor monotonic under concurrent writers.
func advanceCursorTx(ctx context.Context, tx *sql.Tx, profile *Profile, code isrc.Code) error {
	if code.IsZero() || code.Country != profile.CountryCode || code.Registrant != profile.RegistrantCode {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE profiles SET last_issued_sequence = ?, updated_at = ? WHERE id = ? AND last_issued_sequence < ?",
		code.Designation, timestamp(nowUTC()), profile.ID, code.Designation)
	return err
}

func insertValuesTx(ctx context.Context, tx *sql.Tx, recordID int64, values map[int64]fieldset.Value) error {
	for fieldID, value := range values {
		var (
			textValue any
			boolValue any
			blobPath  any
			blobSize  any
			blobHash  any
			mimeType  any
		)
		switch value.Type {
		case fieldset.TypeCheckbox:
			boolValue = boolToInt(value.Bool)
		case fieldset.TypeBlobImage, fieldset.TypeBlobAudio:
			blobPath = value.Blob.Path
			blobSize = value.Blob.SizeBytes
			blobHash = nullableString(value.Blob.SHA256)
			mimeType = nullableString(value.Blob.MimeType)
		default:
			textValue = value.Text
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO field_values (record_id, field_id, text_value, bool_value, blob_path, blob_size, blob_sha256, mime_type)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			recordID, fieldID, textValue, boolValue, blobPath, blobSize, blobHash, mimeType); err != nil {
			return err
		}
	}
	return nil
}

// loadValues fills Fields for every given record in one query.
func (s *Store) loadValues(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]any, len(records))
	byID := make(map[int64]*Record, len(records))
	for i, record := range records {
		ids[i] = record.ID
		byID[record.ID] = record
		record.Fields = make(map[int64]fieldset.Value)
	}

	query := fmt.Sprintf(`
SELECT fv.record_id, fv.field_id, fd.field_type,
	COALESCE(fv.text_value, ''), COALESCE(fv.bool_value, 0),
	COALESCE(fv.blob_path, ''), COALESCE(fv.blob_size, 0),
	COALESCE(fv.blob_sha256, ''), COALESCE(fv.mime_type, '')
FROM field_values fv
JOIN field_defs fd ON fd.id = fv.field_id
WHERE fv.record_id IN (%s)`, makePlaceholders(len(ids)))

	rows, err := s.db.QueryContext(ensureContext(ctx), query, ids...)
	if err != nil {
		return Wrap(ErrStorageIO, "records", "load values", "", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			recordID int64
			fieldID  int64
			rawType  string
			text     string
			boolInt  int
			ref      fieldset.BlobRef
		)
		if err := rows.Scan(&recordID, &fieldID, &rawType, &text, &boolInt,
			&ref.Path, &ref.SizeBytes, &ref.SHA256, &ref.MimeType); err != nil {
			return Wrap(ErrStorageIO, "records", "load values", "scan row", err)
		}
		fieldType := fieldset.FieldType(rawType)
		value := fieldset.Value{Type: fieldType}
		switch fieldType {
		case fieldset.TypeCheckbox:
			value.Bool = boolInt != 0
		case fieldset.TypeBlobImage, fieldset.TypeBlobAudio:
			value.Blob = ref
		default:
			value.Text = text
		}
		if record, ok := byID[recordID]; ok {
			record.Fields[fieldID] = value
		}
	}
	if err := rows.Err(); err != nil {
		return Wrap(ErrStorageIO, "records", "load values", "iterate rows", err)
	}
	return nil
}

// filterClause builds the WHERE fragment for a record filter.
func (s *Store) filterClause(ctx context.Context, profileID int64, filter Filter) (string, []any, error) {
	pattern := "%" + strings.TrimSpace(filter.Query) + "%"
	field := strings.TrimSpace(filter.Field)

	if field == "" {
		var parts []string
		var args []any
		for _, col := range searchableColumns {
			parts = append(parts, col+" LIKE ?")
			args = append(args, pattern)
		}
		parts = append(parts, "EXISTS (SELECT 1 FROM field_values fv WHERE fv.record_id = records.id AND fv.text_value LIKE ?)")
		args = append(args, pattern)
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	}

	if col, ok := StandardColumn(field); ok {
		return col + " LIKE ?", []any{pattern}, nil
	}

	defs, err := s.Fields(ctx, profileID)
	if err != nil {
		return "", nil, err
	}
	def, ok := fieldset.FindDef(defs, field)
	if !ok {
		return "", nil, Wrap(ErrValidation, "records", "filter",
			fmt.Sprintf("unknown filter field %q", field), nil)
	}

	if def.Type == fieldset.TypeCheckbox {
		want, ok := fieldset.ParseCheckbox(filter.Query)
		if !ok {
			return "", nil, Wrap(ErrValidation, "records", "filter",
				fmt.Sprintf("checkbox filter needs true or false, got %q", filter.Query), nil)
		}
		return "EXISTS (SELECT 1 FROM field_values fv WHERE fv.record_id = records.id AND fv.field_id = ? AND fv.bool_value = ?)",
			[]any{def.ID, boolToInt(want)}, nil
	}
	return "EXISTS (SELECT 1 FROM field_values fv WHERE fv.record_id = records.id AND fv.field_id = ? AND fv.text_value LIKE ?)",
		[]any{def.ID, pattern}, nil
}

func blobRefsTx(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]fieldset.BlobRef, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []fieldset.BlobRef
	for rows.Next() {
		var ref fieldset.BlobRef
		if err := rows.Scan(&ref.Path, &ref.SizeBytes, &ref.SHA256, &ref.MimeType); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record    Record
		createdAt string
		updatedAt string
	)
	err := row.Scan(&record.ID, &record.ProfileID, &record.ISRC, &record.Title, &record.Artist,
		&record.AdditionalArtists, &record.Album, &record.ReleaseDate, &record.LengthSeconds,
		&record.ISWC, &record.UPC, &record.Genre, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	record.CreatedAt = parseTimeString(createdAt)
	record.UpdatedAt = parseTimeString(updatedAt)
	return &record, nil
}
