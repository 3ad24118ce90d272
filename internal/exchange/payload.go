package exchange

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"deadwax/internal/catalog"
	"deadwax/internal/fieldset"
)

// payloadVersion is the only document version this build reads or writes.
const payloadVersion = 1

// Document is the root of the exchange payload.
type Document struct {
	XMLName    xml.Name    `xml:"catalog"`
	Version    int         `xml:"version,attr"`
	Profile    string      `xml:"profile,attr"`
	Country    string      `xml:"country,attr"`
	Registrant string      `xml:"registrant,attr"`
	Schema     SchemaEntry `xml:"schema"`
	Records    RecordsList `xml:"records"`
}

// SchemaEntry carries the ordered field definitions of the profile.
type SchemaEntry struct {
	Fields []FieldDefEntry `xml:"field"`
}

// FieldDefEntry is one custom field definition in the schema section.
type FieldDefEntry struct {
	Name     string   `xml:"name,attr"`
	Type     string   `xml:"type,attr"`
	Required bool     `xml:"required,attr,omitempty"`
	Options  []string `xml:"option,omitempty"`
}

// RecordsList wraps the record entries.
type RecordsList struct {
	Records []RecordEntry `xml:"record"`
}

// RecordEntry is one track. Standard columns are named elements; custom
// values are field elements keyed by name. Length is text so hand-edited
// documents may use m:ss alongside plain seconds.
type RecordEntry struct {
	ISRC              string            `xml:"isrc,attr,omitempty"`
	Title             string            `xml:"title,omitempty"`
	Artist            string            `xml:"artist,omitempty"`
	AdditionalArtists string            `xml:"additional-artists,omitempty"`
	Album             string            `xml:"album,omitempty"`
	ReleaseDate       string            `xml:"release-date,omitempty"`
	Length            string            `xml:"length,omitempty"`
	ISWC              string            `xml:"iswc,omitempty"`
	UPC               string            `xml:"upc,omitempty"`
	Genre             string            `xml:"genre,omitempty"`
	Fields            []FieldValueEntry `xml:"field"`
}

// FieldValueEntry is one custom value. Scalar values live in the element
// text; blob references carry path, size, and hash attributes instead.
type FieldValueEntry struct {
	Name   string `xml:"name,attr"`
	Path   string `xml:"path,attr,omitempty"`
	Size   int64  `xml:"size,attr,omitempty"`
	SHA256 string `xml:"sha256,attr,omitempty"`
	Mime   string `xml:"mime,attr,omitempty"`
	Value  string `xml:",chardata"`
}

// IsBlob reports whether the entry is a blob reference.
func (e FieldValueEntry) IsBlob() bool {
	return e.Path != ""
}

// BuildDocument renders a profile's schema and records into a payload.
// Field order follows the schema's sort order and records keep insertion
// order, so two exports of an unchanged catalog are byte-identical.
func BuildDocument(profile *catalog.Profile, defs []fieldset.FieldDef, records []catalog.Record) *Document {
	doc := &Document{
		Version:    payloadVersion,
		Profile:    profile.DisplayName,
		Country:    profile.CountryCode,
		Registrant: profile.RegistrantCode,
	}

	for _, def := range defs {
		doc.Schema.Fields = append(doc.Schema.Fields, FieldDefEntry{
			Name:     def.Name,
			Type:     string(def.Type),
			Required: def.Required,
			Options:  append([]string(nil), def.Options...),
		})
	}

	for _, record := range records {
		entry := RecordEntry{
			Title:             record.Title,
			Artist:            record.Artist,
			AdditionalArtists: record.AdditionalArtists,
			Album:             record.Album,
			ReleaseDate:       record.ReleaseDate,
			ISWC:              record.ISWC,
			UPC:               record.UPC,
			Genre:             record.Genre,
		}
		if record.ISRC != "" {
			entry.ISRC = record.Code().ISO()
		}
		if record.LengthSeconds > 0 {
			entry.Length = strconv.Itoa(record.LengthSeconds)
		}
		for _, def := range defs {
			value, ok := record.Fields[def.ID]
			if !ok {
				continue
			}
			fv := FieldValueEntry{Name: def.Name}
			switch value.Type {
			case fieldset.TypeBlobImage, fieldset.TypeBlobAudio:
				fv.Path = value.Blob.Path
				fv.Size = value.Blob.SizeBytes
				fv.SHA256 = value.Blob.SHA256
				fv.Mime = value.Blob.MimeType
			default:
				fv.Value = value.Display()
			}
			entry.Fields = append(entry.Fields, fv)
		}
		doc.Records.Records = append(doc.Records.Records, entry)
	}

	return doc
}

// Encode renders the document as indented XML with a standard header.
func (d *Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finish payload: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ParseDocument reads and structurally checks a payload.
func ParseDocument(payload []byte) (*Document, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}
	var doc Document
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	if doc.Version != payloadVersion {
		return nil, fmt.Errorf("unsupported payload version %d, want %d", doc.Version, payloadVersion)
	}
	return &doc, nil
}

// standardDraft converts a record entry into a catalog draft. Length text
// accepts plain seconds or clock forms; on a bad length the rest of the
// draft is still returned so every row error surfaces together.
func standardDraft(entry RecordEntry) (catalog.Record, error) {
	seconds, err := catalog.ParseTrackLength(entry.Length)
	return catalog.Record{
		ISRC:              strings.TrimSpace(entry.ISRC),
		Title:             entry.Title,
		Artist:            entry.Artist,
		AdditionalArtists: entry.AdditionalArtists,
		Album:             entry.Album,
		ReleaseDate:       entry.ReleaseDate,
		LengthSeconds:     seconds,
		ISWC:              entry.ISWC,
		UPC:               entry.UPC,
		Genre:             entry.Genre,
	}, err
}

// rawFields converts a record entry's custom values for validation,
// skipping names listed in exclude (those are reported as structural
// mismatches, not row errors).
func rawFields(entry RecordEntry, exclude map[string]bool) []fieldset.RawField {
	out := make([]fieldset.RawField, 0, len(entry.Fields))
	for _, fv := range entry.Fields {
		if exclude[strings.ToLower(fv.Name)] {
			continue
		}
		raw := fieldset.RawField{Name: fv.Name}
		if fv.IsBlob() {
			raw.Blob = fieldset.BlobRef{
				Path:      fv.Path,
				SizeBytes: fv.Size,
				SHA256:    fv.SHA256,
				MimeType:  fv.Mime,
			}
		} else {
			raw.Text = strings.TrimSpace(fv.Value)
		}
		out = append(out, raw)
	}
	return out
}
