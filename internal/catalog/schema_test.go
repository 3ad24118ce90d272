package catalog_test

import (
	"context"
	"errors"
	"testing"

	"deadwax/internal/catalog"
	"deadwax/internal/fieldset"
	"deadwax/internal/testsupport"
)

func TestAddFieldValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")

	if _, err := store.AddField(ctx, profile.ID, fieldset.FieldDef{Name: "title", Type: fieldset.TypeText}); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for reserved name, got %v", err)
	}
	if _, err := store.AddField(ctx, profile.ID, fieldset.FieldDef{Name: "Mood", Type: "color"}); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown type, got %v", err)
	}
	if _, err := store.AddField(ctx, profile.ID, fieldset.FieldDef{Name: "Vibe", Type: fieldset.TypeDropdown}); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for dropdown without options, got %v", err)
	}
	if _, err := store.AddField(ctx, profile.ID, fieldset.FieldDef{
		Name: "Notes", Type: fieldset.TypeText, Options: []string{"a"},
	}); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for options on text field, got %v", err)
	}

	def := testsupport.MustAddField(t, store, profile.ID, "Mood", fieldset.TypeDropdown, "happy", "sad", "happy")
	if len(def.Options) != 2 {
		t.Fatalf("expected deduplicated options, got %v", def.Options)
	}

	if _, err := store.AddField(ctx, profile.ID, fieldset.FieldDef{
		Name: "mood", Type: fieldset.TypeText,
	}); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for duplicate name, got %v", err)
	}
}

func TestRenameFieldKeepsValues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")
	def := testsupport.MustAddField(t, store, profile.ID, "Mood", fieldset.TypeText)

	record := testsupport.MustInsertRecord(t, store, profile.ID,
		catalog.Record{Title: "Song"},
		fieldset.RawField{Name: "Mood", Text: "brooding"})

	renamed, err := store.RenameField(ctx, profile.ID, "Mood", "Atmosphere")
	if err != nil {
		t.Fatalf("RenameField failed: %v", err)
	}
	if renamed.ID != def.ID {
		t.Fatalf("expected definition id %d to survive rename, got %d", def.ID, renamed.ID)
	}

	reloaded, err := store.Record(ctx, profile.ID, record.ID)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	value, ok := reloaded.Fields[def.ID]
	if !ok || value.Text != "brooding" {
		t.Fatalf("expected value to survive rename, got %+v", reloaded.Fields)
	}

	testsupport.MustAddField(t, store, profile.ID, "Mood2", fieldset.TypeText)
	if _, err := store.RenameField(ctx, profile.ID, "Atmosphere", "mood2"); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation renaming onto existing field, got %v", err)
	}
}

func TestRemoveFieldGuardsValues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")
	def := testsupport.MustAddField(t, store, profile.ID, "Cover", fieldset.TypeBlobImage)

	ref := fieldset.BlobRef{Path: "ab/cover.png", SizeBytes: 128, SHA256: "deadbeef", MimeType: "image/png"}
	record := testsupport.MustInsertRecord(t, store, profile.ID,
		catalog.Record{Title: "Song"},
		fieldset.RawField{Name: "Cover", Blob: ref})

	if _, err := store.RemoveField(ctx, profile.ID, "Cover", false); !errors.Is(err, catalog.ErrSchemaInUse) {
		t.Fatalf("expected ErrSchemaInUse, got %v", err)
	}

	blobs, err := store.RemoveField(ctx, profile.ID, "Cover", true)
	if err != nil {
		t.Fatalf("forced RemoveField failed: %v", err)
	}
	if len(blobs) != 1 || blobs[0].Path != ref.Path {
		t.Fatalf("expected orphaned blob %q, got %+v", ref.Path, blobs)
	}

	reloaded, err := store.Record(ctx, profile.ID, record.ID)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if len(reloaded.Fields) != 0 {
		t.Fatalf("expected no values after forced removal, got %+v", reloaded.Fields)
	}

	// Re-adding the same name and type revives the old definition.
	revived := testsupport.MustAddField(t, store, profile.ID, "Cover", fieldset.TypeBlobImage)
	if revived.ID != def.ID {
		t.Fatalf("expected revived definition id %d, got %d", def.ID, revived.ID)
	}
}

func TestRemoveFieldWithoutValues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")
	testsupport.MustAddField(t, store, profile.ID, "Mood", fieldset.TypeText)

	blobs, err := store.RemoveField(ctx, profile.ID, "Mood", false)
	if err != nil {
		t.Fatalf("RemoveField failed: %v", err)
	}
	if len(blobs) != 0 {
		t.Fatalf("expected no orphaned blobs, got %+v", blobs)
	}

	defs, err := store.Fields(ctx, profile.ID)
	if err != nil {
		t.Fatalf("Fields failed: %v", err)
	}
	if len(defs) != 0 {
		t.Fatalf("expected no active fields, got %+v", defs)
	}
}

func TestReorderFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")
	testsupport.MustAddField(t, store, profile.ID, "One", fieldset.TypeText)
	testsupport.MustAddField(t, store, profile.ID, "Two", fieldset.TypeText)
	testsupport.MustAddField(t, store, profile.ID, "Three", fieldset.TypeText)

	if err := store.ReorderFields(ctx, profile.ID, []string{"three", "One", "TWO"}); err != nil {
		t.Fatalf("ReorderFields failed: %v", err)
	}

	defs, err := store.Fields(ctx, profile.ID)
	if err != nil {
		t.Fatalf("Fields failed: %v", err)
	}
	got := []string{defs[0].Name, defs[1].Name, defs[2].Name}
	want := []string{"Three", "One", "Two"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	if err := store.ReorderFields(ctx, profile.ID, []string{"One"}); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for short list, got %v", err)
	}
	if err := store.ReorderFields(ctx, profile.ID, []string{"One", "Two", "Nope"}); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown name, got %v", err)
	}
}

func TestSetFieldOptionsAndRequired(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")
	testsupport.MustAddField(t, store, profile.ID, "Vibe", fieldset.TypeDropdown, "warm")
	testsupport.MustAddField(t, store, profile.ID, "Mood", fieldset.TypeText)

	updated, err := store.SetFieldOptions(ctx, profile.ID, "Vibe", []string{"warm", "cold"})
	if err != nil {
		t.Fatalf("SetFieldOptions failed: %v", err)
	}
	if len(updated.Options) != 2 {
		t.Fatalf("expected two options, got %v", updated.Options)
	}

	if _, err := store.SetFieldOptions(ctx, profile.ID, "Mood", []string{"x"}); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for non-dropdown, got %v", err)
	}

	required, err := store.SetFieldRequired(ctx, profile.ID, "Mood", true)
	if err != nil {
		t.Fatalf("SetFieldRequired failed: %v", err)
	}
	if !required.Required {
		t.Fatal("expected field to be required")
	}

	_, err = store.InsertRecord(ctx, profile.ID, catalog.Record{Title: "Song"}, nil)
	var rowErr *catalog.RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("expected RowError for missing required field, got %v", err)
	}
	if len(rowErr.Fields) != 1 || rowErr.Fields[0].Kind != fieldset.ErrMissingField {
		t.Fatalf("unexpected field errors %+v", rowErr.Fields)
	}
}
