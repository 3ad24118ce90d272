package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"deadwax/internal/catalog"
	"deadwax/internal/fieldset"
)

// defaultListColumns is the record listing layout for profiles that never
// set one.
var defaultListColumns = []string{"isrc", "title", "artist", "album", "length"}

var headerCaser = cases.Title(language.Und)

// canonicalHeaders maps standard column names to their table headers where
// title casing would get the acronyms wrong.
var canonicalHeaders = map[string]string{
	"isrc":               "ISRC",
	"iswc":               "ISWC",
	"upc":                "UPC",
	"length_seconds":     "Length",
	"release_date":       "Release Date",
	"additional_artists": "Additional Artists",
}

func columnHeader(column string) string {
	if canonical, ok := catalog.StandardColumn(column); ok {
		if header, found := canonicalHeaders[canonical]; found {
			return header
		}
		return headerCaser.String(canonical)
	}
	return headerCaser.String(column)
}

// recordCell renders one column of a record for table output.
func recordCell(rec catalog.Record, defs []fieldset.FieldDef, column string) string {
	if canonical, ok := catalog.StandardColumn(column); ok {
		switch canonical {
		case "isrc":
			if rec.ISRC == "" {
				return ""
			}
			return rec.Code().ISO()
		case "title":
			return rec.Title
		case "artist":
			return rec.Artist
		case "additional_artists":
			return rec.AdditionalArtists
		case "album":
			return rec.Album
		case "release_date":
			return rec.ReleaseDate
		case "length_seconds":
			return catalog.FormatTrackLength(rec.LengthSeconds)
		case "iswc":
			return rec.ISWC
		case "upc":
			return rec.UPC
		case "genre":
			return rec.Genre
		}
	}
	def, ok := fieldset.FindDef(defs, column)
	if !ok {
		return ""
	}
	value, ok := rec.Fields[def.ID]
	if !ok {
		return ""
	}
	if def.Type.IsBlob() {
		return value.Blob.Path
	}
	return value.Display()
}

// resolveRecord finds a record by numeric ID or by ISRC in either form.
func resolveRecord(cmd *cobra.Command, store *catalog.Store, profileID int64, ref string) (*catalog.Record, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("record id or ISRC is required")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return store.Record(cmd.Context(), profileID, id)
	}
	return store.RecordByISRC(cmd.Context(), profileID, ref)
}

// splitAssignment parses one "Field=value" pair.
func splitAssignment(raw string) (string, string, error) {
	name, value, found := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !found || name == "" {
		return "", "", fmt.Errorf("invalid assignment %q, want Field=value", raw)
	}
	return name, strings.TrimSpace(value), nil
}

// assignmentsToRawFields converts --set pairs into validation inputs.
func assignmentsToRawFields(assignments []string) ([]fieldset.RawField, error) {
	fields := make([]fieldset.RawField, 0, len(assignments))
	for _, raw := range assignments {
		name, value, err := splitAssignment(raw)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fieldset.RawField{Name: name, Text: value})
	}
	return fields, nil
}

// mergeRawFields rebuilds the full custom-value set for an update: existing
// values first, then overrides by name, minus unset names.
func mergeRawFields(defs []fieldset.FieldDef, rec *catalog.Record, overrides []fieldset.RawField, unset []string) []fieldset.RawField {
	drop := make(map[string]bool, len(unset))
	for _, name := range unset {
		drop[strings.ToLower(strings.TrimSpace(name))] = true
	}
	replaced := make(map[string]bool, len(overrides))
	for _, f := range overrides {
		replaced[strings.ToLower(f.Name)] = true
	}

	var merged []fieldset.RawField
	for _, def := range defs {
		key := strings.ToLower(def.Name)
		if drop[key] || replaced[key] {
			continue
		}
		value, ok := rec.Fields[def.ID]
		if !ok {
			continue
		}
		raw := fieldset.RawField{Name: def.Name}
		if def.Type.IsBlob() {
			raw.Blob = value.Blob
		} else {
			raw.Text = value.Display()
		}
		merged = append(merged, raw)
	}
	for _, f := range overrides {
		if drop[strings.ToLower(f.Name)] {
			continue
		}
		merged = append(merged, f)
	}
	return merged
}

// renderRowError prints every field problem of a rejected record.
func renderRowError(cmd *cobra.Command, err error) bool {
	var rowErr *catalog.RowError
	if !errors.As(err, &rowErr) {
		return false
	}
	out := cmd.ErrOrStderr()
	fmt.Fprintln(out, "record rejected:")
	for _, fe := range rowErr.Fields {
		fmt.Fprintf(out, "  - %s\n", fe.Error())
	}
	return true
}

func shortHash(sum string) string {
	if len(sum) <= 12 {
		return sum
	}
	return sum[:12]
}
