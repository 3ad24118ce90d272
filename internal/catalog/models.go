package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"deadwax/internal/fieldset"
	"deadwax/internal/isrc"
)

// MaxProfiles bounds how many live profiles one installation can hold.
const MaxProfiles = 99

// Profile is one isolated catalog context with its own registrant prefix
// and sequence cursor.
type Profile struct {
	ID                 int64
	DisplayName        string
	CountryCode        string
	RegistrantCode     string
	LastIssuedSequence int
	ColumnLayout       string
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ProfileMeta carries the caller-supplied parts of a new profile.
type ProfileMeta struct {
	DisplayName    string
	CountryCode    string
	RegistrantCode string
}

// Record is one catalog entry owned by exactly one profile. ISRC is empty
// until a code is assigned; when set it holds the compact 12-character
// form.
type Record struct {
	ID                int64
	ProfileID         int64
	ISRC              string
	Title             string
	Artist            string
	AdditionalArtists string
	Album             string
	ReleaseDate       string
	LengthSeconds     int
	ISWC              string
	UPC               string
	Genre             string
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Fields maps field definition ids to validated values. Populated on
	// reads; set by the store on writes.
	Fields map[int64]fieldset.Value
}

// Code parses the record's stored ISRC. The zero Code is returned for
// records without one.
func (r *Record) Code() isrc.Code {
	if r == nil || r.ISRC == "" {
		return isrc.Code{}
	}
	code, err := isrc.Parse(r.ISRC)
	if err != nil {
		return isrc.Code{}
	}
	return code
}

// Filter narrows a record listing. An empty Field searches across the
// searchable standard columns; otherwise Field names a standard column or
// a custom field. An empty Query matches everything.
type Filter struct {
	Field string
	Query string
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Field) == "" && strings.TrimSpace(f.Query) == ""
}

// standardColumns maps user-facing standard field names to record columns
// usable in filters and import payloads.
var standardColumns = map[string]string{
	"isrc":               "isrc",
	"title":              "title",
	"artist":             "artist",
	"additional artists": "additional_artists",
	"additional_artists": "additional_artists",
	"album":              "album",
	"release date":       "release_date",
	"release_date":       "release_date",
	"length":             "length_seconds",
	"iswc":               "iswc",
	"upc":                "upc",
	"genre":              "genre",
}

// searchableColumns are scanned when a filter names no specific field.
var searchableColumns = []string{"isrc", "title", "artist", "additional_artists", "album", "genre"}

// StandardColumn resolves a user-facing name to a record column.
func StandardColumn(name string) (string, bool) {
	col, ok := standardColumns[strings.ToLower(strings.TrimSpace(name))]
	return col, ok
}

// ReservedFieldName reports whether name collides with a standard column
// and therefore cannot name a custom field.
func ReservedFieldName(name string) bool {
	_, ok := StandardColumn(name)
	return ok
}

// ParseTrackLength reads a track length as seconds, m:ss, or h:mm:ss.
func ParseTrackLength(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	parts := strings.Split(trimmed, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid track length %q", raw)
	}
	total := 0
	for i, part := range parts {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || value < 0 {
			return 0, fmt.Errorf("invalid track length %q", raw)
		}
		if i > 0 && value > 59 {
			return 0, fmt.Errorf("invalid track length %q", raw)
		}
		total = total*60 + value
	}
	return total, nil
}

// FormatTrackLength renders seconds as m:ss, or h:mm:ss past an hour. Zero
// renders empty.
func FormatTrackLength(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	if seconds >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// DatabaseHealth reports diagnostic information about the catalog database.
type DatabaseHealth struct {
	Path             string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	IntegrityOK      bool
	SizeBytes        int64
	Profiles         int
	Records          int
	Error            string
}
