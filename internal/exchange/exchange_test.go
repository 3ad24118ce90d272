package exchange_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"deadwax/internal/catalog"
	"deadwax/internal/exchange"
	"deadwax/internal/fieldset"
	"deadwax/internal/testsupport"
)

func coverRef(name string) fieldset.BlobRef {
	return fieldset.BlobRef{
		Path:      "ab/" + name,
		SizeBytes: 512,
		SHA256:    strings.Repeat("a", 64),
		MimeType:  "image/png",
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()

	source := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	src := testsupport.MustCreateProfile(t, source, "Crate", "NL", "ABC")
	testsupport.MustAddField(t, source, src.ID, "Mood", fieldset.TypeText)
	testsupport.MustAddField(t, source, src.ID, "Explicit", fieldset.TypeCheckbox)
	testsupport.MustAddField(t, source, src.ID, "Cover", fieldset.TypeBlobImage)

	testsupport.MustInsertRecord(t, source, src.ID, catalog.Record{
		ISRC: "NL-ABC-25-00007", Title: "Verdigris", Artist: "Saltmarsh",
		ReleaseDate: "2025-02-14", LengthSeconds: 203, Genre: "Ambient",
	},
		fieldset.RawField{Name: "Mood", Text: "brooding"},
		fieldset.RawField{Name: "Explicit", Text: "false"},
		fieldset.RawField{Name: "Cover", Blob: coverRef("verdigris.png")},
	)
	testsupport.MustInsertRecord(t, source, src.ID, catalog.Record{
		Title: "Tidewrack", Artist: "Saltmarsh",
	})

	payload, err := exchange.New(source, nil, nil).Export(ctx, src.ID)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.Contains(payload, []byte(`isrc="NL-ABC-25-00007"`)) {
		t.Fatalf("payload lacks ISO-rendered code:\n%s", payload)
	}

	target := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	dst := testsupport.MustCreateProfile(t, target, "Crate", "NL", "ABC")
	testsupport.MustAddField(t, target, dst.ID, "Mood", fieldset.TypeText)
	testsupport.MustAddField(t, target, dst.ID, "Explicit", fieldset.TypeCheckbox)
	testsupport.MustAddField(t, target, dst.ID, "Cover", fieldset.TypeBlobImage)

	pipe := exchange.New(target, nil, nil)
	report, err := pipe.DryRun(ctx, dst.ID, payload)
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if !report.Clean() || report.ValidRows != 2 {
		t.Fatalf("unexpected dry-run report: %+v", report)
	}
	report, err = pipe.Commit(ctx, dst.ID, payload)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if report.Committed != 2 {
		t.Fatalf("Committed = %d, want 2", report.Committed)
	}
	if got := pipe.State(); got != exchange.StateCommitted {
		t.Fatalf("state = %s, want %s", got, exchange.StateCommitted)
	}

	rec, err := target.RecordByISRC(ctx, dst.ID, "NL-ABC-25-00007")
	if err != nil {
		t.Fatalf("RecordByISRC after import: %v", err)
	}
	if rec.Title != "Verdigris" || rec.LengthSeconds != 203 {
		t.Fatalf("imported record mangled: %+v", rec)
	}

	again, err := exchange.New(target, nil, nil).Export(ctx, dst.ID)
	if err != nil {
		t.Fatalf("re-export: %v", err)
	}
	if !bytes.Equal(payload, again) {
		t.Fatalf("round trip not lossless:\n--- source ---\n%s\n--- target ---\n%s", payload, again)
	}
}

func TestDryRunLeavesCatalogUntouched(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	profile := testsupport.MustCreateProfile(t, store, "Crate", "NL", "ABC")
	testsupport.MustAddField(t, store, profile.ID, "Mood", fieldset.TypeText)
	testsupport.MustInsertRecord(t, store, profile.ID, catalog.Record{Title: "Existing"})

	doc := &exchange.Document{
		Version: 1, Profile: "Crate", Country: "NL", Registrant: "ABC",
		Schema: exchange.SchemaEntry{Fields: []exchange.FieldDefEntry{
			{Name: "Mood", Type: "text"},
		}},
		Records: exchange.RecordsList{Records: []exchange.RecordEntry{
			{ISRC: "NL-ABC-25-00021", Title: "Incoming", Fields: []exchange.FieldValueEntry{
				{Name: "Mood", Value: "wistful"},
			}},
			{Title: "Also Incoming"},
		}},
	}
	payload, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	pipe := exchange.New(store, nil, nil)
	for pass := 0; pass < 2; pass++ {
		report, err := pipe.DryRun(ctx, profile.ID, payload)
		if err != nil {
			t.Fatalf("DryRun pass %d: %v", pass, err)
		}
		if report.ValidRows != 2 || report.Committed != 0 {
			t.Fatalf("pass %d report: %+v", pass, report)
		}
	}
	if got := pipe.State(); got != exchange.StateDryRun {
		t.Fatalf("state = %s, want %s", got, exchange.StateDryRun)
	}

	count, err := store.CountRecords(ctx, profile.ID)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 1 {
		t.Fatalf("dry run mutated the catalog: %d records", count)
	}
	fresh, err := store.ProfileByID(ctx, profile.ID)
	if err != nil {
		t.Fatalf("ProfileByID: %v", err)
	}
	if fresh.LastIssuedSequence != 0 {
		t.Fatalf("dry run moved the cursor to %d", fresh.LastIssuedSequence)
	}
}

func TestCommitRequiresDryRun(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	profile := testsupport.MustCreateProfile(t, store, "Crate", "NL", "ABC")

	pipe := exchange.New(store, nil, nil)
	doc := &exchange.Document{Version: 1, Records: exchange.RecordsList{
		Records: []exchange.RecordEntry{{Title: "Orphan"}},
	}}
	payload, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := pipe.Commit(ctx, profile.ID, payload); err == nil {
		t.Fatal("Commit succeeded without a dry run")
	}
	if got := pipe.State(); got != exchange.StateIdle {
		t.Fatalf("state = %s, want %s", got, exchange.StateIdle)
	}
}

func TestStructuralMismatchAbortsCommit(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	profile := testsupport.MustCreateProfile(t, store, "Crate", "NL", "ABC")

	doc := &exchange.Document{
		Version: 1, Profile: "Crate", Country: "NL", Registrant: "ABC",
		Schema: exchange.SchemaEntry{Fields: []exchange.FieldDefEntry{
			{Name: "Mood", Type: "text"},
		}},
		Records: exchange.RecordsList{Records: []exchange.RecordEntry{
			{Title: "One", Fields: []exchange.FieldValueEntry{
				{Name: "Mood", Value: "stark"},
				{Name: "Mastered", Value: "2024-01-05"},
				{Name: "Art", Path: "cd/art.flac", Size: 9000, SHA256: strings.Repeat("b", 64), Mime: "audio/flac"},
			}},
			{Title: "Two", Fields: []exchange.FieldValueEntry{
				{Name: "Mastered", Value: "2024-03-09"},
			}},
		}},
	}
	payload, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	pipe := exchange.New(store, nil, nil)
	report, err := pipe.DryRun(ctx, profile.ID, payload)
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if !report.Structural() {
		t.Fatalf("missing columns not detected: %+v", report)
	}
	want := map[string]fieldset.FieldType{
		"Mood":     fieldset.TypeText,
		"Mastered": fieldset.TypeDate,
		"Art":      fieldset.TypeBlobAudio,
	}
	if len(report.MissingColumns) != len(want) {
		t.Fatalf("MissingColumns = %+v, want %d entries", report.MissingColumns, len(want))
	}
	for _, col := range report.MissingColumns {
		if want[col.Name] != col.InferredType {
			t.Fatalf("column %s inferred as %s, want %s", col.Name, col.InferredType, want[col.Name])
		}
	}
	// Rows themselves stay clean: unknown columns are a schema problem,
	// not a per-row one.
	if report.ValidRows != 2 || len(report.Issues) != 0 {
		t.Fatalf("structural mismatch leaked into rows: %+v", report)
	}

	if _, err := pipe.Commit(ctx, profile.ID, payload); !errors.Is(err, catalog.ErrStructuralMismatch) {
		t.Fatalf("Commit error = %v, want ErrStructuralMismatch", err)
	}
	if got := pipe.State(); got != exchange.StateAborted {
		t.Fatalf("state = %s, want %s", got, exchange.StateAborted)
	}
	count, err := store.CountRecords(ctx, profile.ID)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 0 {
		t.Fatalf("aborted commit inserted %d records", count)
	}

	if _, err := pipe.DryRun(ctx, profile.ID, payload); err == nil {
		t.Fatal("aborted pipeline accepted a dry run without reset")
	}
	pipe.Reset()
	if got := pipe.State(); got != exchange.StateIdle {
		t.Fatalf("state after reset = %s, want %s", got, exchange.StateIdle)
	}
	if _, err := pipe.DryRun(ctx, profile.ID, payload); err != nil {
		t.Fatalf("DryRun after reset: %v", err)
	}
}

func TestCommitSkipsInvalidRows(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	profile := testsupport.MustCreateProfile(t, store, "Crate", "NL", "ABC")
	testsupport.MustAddField(t, store, profile.ID, "Explicit", fieldset.TypeCheckbox)

	var entries []exchange.RecordEntry
	for i := 1; i <= 10; i++ {
		value := "false"
		if i == 7 {
			value = "maybe"
		}
		entries = append(entries, exchange.RecordEntry{
			Title: fmt.Sprintf("Track %d", i),
			Fields: []exchange.FieldValueEntry{
				{Name: "Explicit", Value: value},
			},
		})
	}
	doc := &exchange.Document{Version: 1, Records: exchange.RecordsList{Records: entries}}
	payload, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	pipe := exchange.New(store, nil, nil)
	report, err := pipe.DryRun(ctx, profile.ID, payload)
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if report.TotalRows != 10 || report.ValidRows != 9 || report.InvalidRows != 1 {
		t.Fatalf("report = %+v, want 10/9/1", report)
	}
	if len(report.Issues) != 1 {
		t.Fatalf("Issues = %+v, want one", report.Issues)
	}
	issue := report.Issues[0]
	if issue.Row != 7 || issue.Outcome != exchange.RowInvalid {
		t.Fatalf("issue = %+v, want row 7 invalid", issue)
	}
	if len(issue.Errors) != 1 || issue.Errors[0].Kind != fieldset.ErrTypeMismatch {
		t.Fatalf("issue errors = %+v", issue.Errors)
	}

	report, err = pipe.Commit(ctx, profile.ID, payload)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if report.Committed != 9 {
		t.Fatalf("Committed = %d, want 9", report.Committed)
	}
	count, err := store.CountRecords(ctx, profile.ID)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 9 {
		t.Fatalf("store holds %d records, want 9", count)
	}
}

func TestCommitSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	profile := testsupport.MustCreateProfile(t, store, "Crate", "NL", "ABC")
	testsupport.MustInsertRecord(t, store, profile.ID, catalog.Record{
		ISRC: "NL-ABC-25-00005", Title: "Already Here",
	})

	doc := &exchange.Document{Version: 1, Records: exchange.RecordsList{
		Records: []exchange.RecordEntry{
			{ISRC: "NL-ABC-25-00005", Title: "Clashes With Store"},
			{ISRC: "NL-ABC-25-00009", Title: "First Of Pair"},
			{ISRC: "nl-abc-25-00009", Title: "Second Of Pair"},
			{Title: "No Code"},
		},
	}}
	payload, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	pipe := exchange.New(store, nil, nil)
	report, err := pipe.DryRun(ctx, profile.ID, payload)
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if report.ValidRows != 2 || report.DuplicateRows != 2 || report.InvalidRows != 0 {
		t.Fatalf("report = %+v, want 2 valid / 2 duplicate", report)
	}
	for _, issue := range report.Issues {
		if issue.Outcome != exchange.RowDuplicate {
			t.Fatalf("issue = %+v, want duplicate", issue)
		}
	}

	report, err = pipe.Commit(ctx, profile.ID, payload)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if report.Committed != 2 {
		t.Fatalf("Committed = %d, want 2", report.Committed)
	}
	count, err := store.CountRecords(ctx, profile.ID)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 3 {
		t.Fatalf("store holds %d records, want 3", count)
	}

	// The batch's highest own-prefix designation moves the cursor.
	code, err := store.Issue(ctx, profile.ID, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if code.Designation != 10 {
		t.Fatalf("next designation = %d, want 10", code.Designation)
	}
}

func TestHandEditedPayload(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	profile := testsupport.MustCreateProfile(t, store, "Crate", "NL", "ABC")

	payload := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<catalog version="1" profile="Crate" country="NL" registrant="ABC">
  <schema></schema>
  <records>
    <record>
      <title>Clock Form</title>
      <length>3:41</length>
    </record>
    <record>
      <title>Overflowing</title>
      <length>9:99</length>
    </record>
  </records>
</catalog>
`)

	pipe := exchange.New(store, nil, nil)
	report, err := pipe.DryRun(ctx, profile.ID, payload)
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if report.ValidRows != 1 || report.InvalidRows != 1 {
		t.Fatalf("report = %+v, want one of each", report)
	}
	if issue := report.Issues[0]; issue.Row != 2 || issue.Errors[0].Field != "length" {
		t.Fatalf("issue = %+v, want length error on row 2", issue)
	}

	if _, err := pipe.Commit(ctx, profile.ID, payload); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	records, err := store.Records(ctx, profile.ID, catalog.Filter{})
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 || records[0].LengthSeconds != 221 {
		t.Fatalf("imported rows = %+v, want one with 221 seconds", records)
	}
}

func TestParseDocumentRejectsBadPayloads(t *testing.T) {
	if _, err := exchange.ParseDocument(nil); err == nil {
		t.Fatal("empty payload accepted")
	}
	if _, err := exchange.ParseDocument([]byte("not xml at all <<<")); err == nil {
		t.Fatal("malformed payload accepted")
	}
	future := []byte(`<?xml version="1.0"?><catalog version="9"></catalog>`)
	if _, err := exchange.ParseDocument(future); err == nil {
		t.Fatal("unsupported version accepted")
	}
}
