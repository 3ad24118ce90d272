package testsupport

import (
	"context"
	"testing"

	"deadwax/internal/audit"
	"deadwax/internal/catalog"
	"deadwax/internal/config"
	"deadwax/internal/fieldset"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
// Mutations run through a discarding audit log so the append path is
// exercised; tests that assert on entries attach their own writer.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	store.AttachAudit(audit.Discard())
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustCreateProfile creates a registrant profile for tests.
func MustCreateProfile(t testing.TB, store *catalog.Store, name, country, registrant string) *catalog.Profile {
	t.Helper()

	profile, err := store.CreateProfile(context.Background(), catalog.ProfileMeta{
		DisplayName:    name,
		CountryCode:    country,
		RegistrantCode: registrant,
	})
	if err != nil {
		t.Fatalf("store.CreateProfile: %v", err)
	}
	return profile
}

// MustAddField defines a custom field for tests.
func MustAddField(t testing.TB, store *catalog.Store, profileID int64, name string, fieldType fieldset.FieldType, options ...string) fieldset.FieldDef {
	t.Helper()

	def, err := store.AddField(context.Background(), profileID, fieldset.FieldDef{
		Name:    name,
		Type:    fieldType,
		Options: options,
	})
	if err != nil {
		t.Fatalf("store.AddField: %v", err)
	}
	return *def
}

// MustInsertRecord persists a record with optional custom fields for tests.
func MustInsertRecord(t testing.TB, store *catalog.Store, profileID int64, draft catalog.Record, fields ...fieldset.RawField) *catalog.Record {
	t.Helper()

	record, err := store.InsertRecord(context.Background(), profileID, draft, fields)
	if err != nil {
		t.Fatalf("store.InsertRecord: %v", err)
	}
	return record
}
