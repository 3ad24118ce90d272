package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"deadwax/internal/audit"
	"deadwax/internal/isrc"
	"deadwax/internal/logging"
)

// Issue allocates the profile's next designation and returns the
// resulting code. The cursor only moves forward; a rolled-back allocation
// leaves it untouched. yearOverride replaces the current year code when
// set and never rewinds the cursor, so codes issued under an override
// still cannot collide with earlier ones.
func (s *Store) Issue(ctx context.Context, profileID int64, yearOverride string) (isrc.Code, error) {
	profile, err := s.ProfileByID(ctx, profileID)
	if err != nil {
		return isrc.Code{}, err
	}

	year := isrc.YearCode(time.Now())
	if yearOverride != "" {
		if !isrc.ValidYearCode(yearOverride) {
			return isrc.Code{}, Wrap(ErrValidation, "allocator", "issue",
				fmt.Sprintf("year override %q must be two digits", yearOverride), nil)
		}
		year = yearOverride
	}

	var sequence int
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE profiles SET last_issued_sequence = last_issued_sequence + 1, updated_at = ? WHERE id = ?",
			timestamp(nowUTC()), profileID); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx,
			"SELECT last_issued_sequence FROM profiles WHERE id = ?", profileID).Scan(&sequence); err != nil {
			return err
		}
		if sequence > isrc.MaxDesignation {
			return Wrap(ErrSequenceExhausted, "allocator", "issue",
				fmt.Sprintf("profile %q has issued all %d designations", profile.DisplayName, isrc.MaxDesignation), nil)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSequenceExhausted) {
			return isrc.Code{}, err
		}
		return isrc.Code{}, Wrap(ErrStorageIO, "allocator", "issue", "", err)
	}

	code, err := isrc.Compose(profile.CountryCode, profile.RegistrantCode, year, sequence)
	if err != nil {
		return isrc.Code{}, Wrap(ErrValidation, "allocator", "issue", "compose code", err)
	}

	s.appendAudit(ctx, audit.ActionIssue, profile.DisplayName, audit.OutcomeOK,
		logging.String(logging.FieldISRC, code.Compact()))
	s.logger.Info("code issued",
		logging.String(logging.FieldProfile, profile.DisplayName),
		logging.String(logging.FieldISRC, code.Compact()))
	return code, nil
}

// Adopt registers an externally assigned code with the allocator. When
// the code carries the profile's own country and registrant prefix and
// its designation sits past the cursor, the cursor jumps forward so later
// issues cannot collide with it. Foreign-prefix codes parse and return
// without moving the cursor. The second result reports whether the
// cursor advanced.
func (s *Store) Adopt(ctx context.Context, profileID int64, raw string) (isrc.Code, bool, error) {
	code, err := isrc.Parse(raw)
	if err != nil {
		return isrc.Code{}, false, Wrap(ErrValidation, "allocator", "adopt", "", err)
	}

	profile, err := s.ProfileByID(ctx, profileID)
	if err != nil {
		return isrc.Code{}, false, err
	}

	advanced := false
	if code.Country == profile.CountryCode && code.Registrant == profile.RegistrantCode {
		result, err := s.execWithRetry(ctx,
			"UPDATE profiles SET last_issued_sequence = ?, updated_at = ? WHERE id = ? AND last_issued_sequence < ?",
			code.Designation, timestamp(nowUTC()), profileID, code.Designation)
		if err != nil {
			return isrc.Code{}, false, Wrap(ErrStorageIO, "allocator", "adopt", "", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return isrc.Code{}, false, Wrap(ErrStorageIO, "allocator", "adopt", "", err)
		}
		advanced = affected > 0
	}

	s.appendAudit(ctx, audit.ActionAdopt, profile.DisplayName, audit.OutcomeOK,
		logging.String(logging.FieldISRC, code.Compact()),
		logging.Bool("cursor_advanced", advanced))
	s.logger.Info("code adopted",
		logging.String(logging.FieldProfile, profile.DisplayName),
		logging.String(logging.FieldISRC, code.Compact()),
		logging.Bool("cursor_advanced", advanced))
	return code, advanced, nil
}
