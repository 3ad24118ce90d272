package catalog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"deadwax/internal/audit"
	"deadwax/internal/catalog"
	"deadwax/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")
	if profile.ID == 0 {
		t.Fatal("expected profile ID to be assigned")
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("expected healthy database, got %+v", health)
	}
	if health.SchemaVersion == "" {
		t.Fatal("expected schema version to be recorded")
	}
	if !health.IntegrityOK {
		t.Fatalf("integrity check failed: %s", health.Error)
	}
	if health.Profiles != 1 {
		t.Fatalf("expected 1 profile, got %d", health.Profiles)
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	store := testsupport.MustOpenStore(t, cfg)
	created := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")
	if _, err := store.Issue(ctx, created.ID, ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	profile, err := reopened.ProfileByName(ctx, "LabelX")
	if err != nil {
		t.Fatalf("ProfileByName failed: %v", err)
	}
	if profile.LastIssuedSequence != 1 {
		t.Fatalf("expected cursor 1 after reopen, got %d", profile.LastIssuedSequence)
	}
	if !profile.Active {
		t.Fatal("expected first profile to stay active")
	}
}

func TestProfileLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")
	if !first.Active {
		t.Fatal("expected first profile to be active")
	}

	second := testsupport.MustCreateProfile(t, store, "LabelY", "US", "XY1")
	if second.Active {
		t.Fatal("expected second profile to be inactive")
	}

	if _, err := store.CreateProfile(ctx, catalog.ProfileMeta{
		DisplayName: "labelx", CountryCode: "DE", RegistrantCode: "ZZZ",
	}); !errors.Is(err, catalog.ErrDuplicateProfile) {
		t.Fatalf("expected ErrDuplicateProfile for reused name, got %v", err)
	}
	if _, err := store.CreateProfile(ctx, catalog.ProfileMeta{
		DisplayName: "LabelZ", CountryCode: "nl", RegistrantCode: "abc",
	}); !errors.Is(err, catalog.ErrDuplicateProfile) {
		t.Fatalf("expected ErrDuplicateProfile for reused prefix, got %v", err)
	}

	switched, err := store.SwitchProfile(ctx, "LabelY")
	if err != nil {
		t.Fatalf("SwitchProfile failed: %v", err)
	}
	if !switched.Active {
		t.Fatal("expected switched profile to be active")
	}
	active, err := store.ActiveProfile(ctx)
	if err != nil {
		t.Fatalf("ActiveProfile failed: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("expected active profile %d, got %d", second.ID, active.ID)
	}

	if _, err := store.DeleteProfile(ctx, "LabelY"); err != nil {
		t.Fatalf("DeleteProfile failed: %v", err)
	}
	if _, err := store.ActiveProfile(ctx); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after deleting active profile, got %v", err)
	}

	profiles, err := store.Profiles(ctx)
	if err != nil {
		t.Fatalf("Profiles failed: %v", err)
	}
	if len(profiles) != 1 || profiles[0].DisplayName != "LabelX" {
		t.Fatalf("unexpected profiles after delete: %+v", profiles)
	}
}

func TestProfileValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cases := []catalog.ProfileMeta{
		{DisplayName: "", CountryCode: "NL", RegistrantCode: "ABC"},
		{DisplayName: "Label", CountryCode: "N", RegistrantCode: "ABC"},
		{DisplayName: "Label", CountryCode: "NLD", RegistrantCode: "ABC"},
		{DisplayName: "Label", CountryCode: "NL", RegistrantCode: "AB"},
		{DisplayName: "Label", CountryCode: "NL", RegistrantCode: "AB-C"},
	}
	for _, meta := range cases {
		if _, err := store.CreateProfile(ctx, meta); !errors.Is(err, catalog.ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", meta, err)
		}
	}
}

func TestColumnLayout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")
	testsupport.MustAddField(t, store, profile.ID, "Mood", "text")

	if err := store.UpdateColumnLayout(ctx, profile.ID, []string{"isrc", "title", "Mood"}); err != nil {
		t.Fatalf("UpdateColumnLayout failed: %v", err)
	}
	reloaded, err := store.ProfileByID(ctx, profile.ID)
	if err != nil {
		t.Fatalf("ProfileByID failed: %v", err)
	}
	layout := reloaded.Layout()
	if len(layout) != 3 || layout[2] != "Mood" {
		t.Fatalf("unexpected layout %v", layout)
	}

	err = store.UpdateColumnLayout(ctx, profile.ID, []string{"no_such_column"})
	if !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown column, got %v", err)
	}
}

func TestProfileSettings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")

	if err := store.SetSetting(ctx, profile.ID, "page_size", "25"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := store.SetSetting(ctx, profile.ID, "page_size", "50"); err != nil {
		t.Fatalf("SetSetting overwrite failed: %v", err)
	}

	value, ok, err := store.Setting(ctx, profile.ID, "page_size")
	if err != nil {
		t.Fatalf("Setting failed: %v", err)
	}
	if !ok || value != "50" {
		t.Fatalf("expected page_size=50, got %q ok=%v", value, ok)
	}

	_, ok, err = store.Setting(ctx, profile.ID, "missing")
	if err != nil {
		t.Fatalf("Setting failed: %v", err)
	}
	if ok {
		t.Fatal("expected missing setting to report absent")
	}

	all, err := store.Settings(ctx, profile.ID)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if len(all) != 1 || all["page_size"] != "50" {
		t.Fatalf("unexpected settings map %v", all)
	}
}

func TestMutationsAppendAuditEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var buf bytes.Buffer
	store.AttachAudit(audit.NewWithWriter(&buf))

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")
	if _, err := store.Issue(ctx, profile.ID, ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 audit lines, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("audit line is not JSON: %v", err)
	}
	if entry["action"] != string(audit.ActionProfileCreate) {
		t.Fatalf("expected action %q, got %v", audit.ActionProfileCreate, entry["action"])
	}
	if entry["profile"] != "LabelX" {
		t.Fatalf("expected profile LabelX, got %v", entry["profile"])
	}

	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("audit line is not JSON: %v", err)
	}
	if entry["action"] != string(audit.ActionIssue) {
		t.Fatalf("expected action %q, got %v", audit.ActionIssue, entry["action"])
	}
}

func TestSnapshotToRefusesOverwrite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	target := filepath.Join(cfg.Paths.BackupDir, "snap.db")
	if err := store.SnapshotTo(ctx, target); err != nil {
		t.Fatalf("SnapshotTo failed: %v", err)
	}
	if err := store.SnapshotTo(ctx, target); err == nil {
		t.Fatal("expected error snapshotting onto existing file")
	}
}
