package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"deadwax/internal/catalog"
	"deadwax/internal/isrc"
	"deadwax/internal/testsupport"
)

func TestIssueSequenceContinuesAcrossYearOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")

	if _, advanced, err := store.Adopt(ctx, profile.ID, "NL-ABC-25-00041"); err != nil || !advanced {
		t.Fatalf("Adopt failed: advanced=%v err=%v", advanced, err)
	}

	code, err := store.Issue(ctx, profile.ID, "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if code.Designation != 42 {
		t.Fatalf("expected designation 42, got %d", code.Designation)
	}
	if want := isrc.YearCode(time.Now()); code.Year != want {
		t.Fatalf("expected year %s, got %s", want, code.Year)
	}

	migrated, err := store.Issue(ctx, profile.ID, "19")
	if err != nil {
		t.Fatalf("Issue with override failed: %v", err)
	}
	if migrated.ISO() != "NL-ABC-19-00043" {
		t.Fatalf("expected NL-ABC-19-00043, got %s", migrated.ISO())
	}

	reloaded, err := store.ProfileByID(ctx, profile.ID)
	if err != nil {
		t.Fatalf("ProfileByID failed: %v", err)
	}
	if reloaded.LastIssuedSequence != 43 {
		t.Fatalf("expected cursor 43, got %d", reloaded.LastIssuedSequence)
	}
}

func TestIssueRejectsBadYearOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")

	if _, err := store.Issue(ctx, profile.ID, "3"); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	reloaded, err := store.ProfileByID(ctx, profile.ID)
	if err != nil {
		t.Fatalf("ProfileByID failed: %v", err)
	}
	if reloaded.LastIssuedSequence != 0 {
		t.Fatalf("expected cursor untouched at 0, got %d", reloaded.LastIssuedSequence)
	}
}

func TestIssueExhaustionLeavesCursorIntact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")

	if _, advanced, err := store.Adopt(ctx, profile.ID, "NLABC2599999"); err != nil || !advanced {
		t.Fatalf("Adopt failed: advanced=%v err=%v", advanced, err)
	}

	if _, err := store.Issue(ctx, profile.ID, ""); !errors.Is(err, catalog.ErrSequenceExhausted) {
		t.Fatalf("expected ErrSequenceExhausted, got %v", err)
	}

	reloaded, err := store.ProfileByID(ctx, profile.ID)
	if err != nil {
		t.Fatalf("ProfileByID failed: %v", err)
	}
	if reloaded.LastIssuedSequence != isrc.MaxDesignation {
		t.Fatalf("expected cursor to stay at %d, got %d", isrc.MaxDesignation, reloaded.LastIssuedSequence)
	}
}

func TestAdoptCursorRules(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")

	if _, advanced, err := store.Adopt(ctx, profile.ID, "NLABC2500100"); err != nil || !advanced {
		t.Fatalf("Adopt past cursor: advanced=%v err=%v", advanced, err)
	}

	// Lower designation must not rewind.
	if _, advanced, err := store.Adopt(ctx, profile.ID, "NLABC2500005"); err != nil || advanced {
		t.Fatalf("Adopt below cursor: advanced=%v err=%v", advanced, err)
	}

	// Foreign prefix parses but never moves the cursor.
	code, advanced, err := store.Adopt(ctx, profile.ID, "US-XY1-24-99998")
	if err != nil {
		t.Fatalf("Adopt foreign prefix failed: %v", err)
	}
	if advanced {
		t.Fatal("foreign-prefix adopt must not advance the cursor")
	}
	if code.Compact() != "USXY12499998" {
		t.Fatalf("unexpected parsed code %s", code.Compact())
	}

	reloaded, err := store.ProfileByID(ctx, profile.ID)
	if err != nil {
		t.Fatalf("ProfileByID failed: %v", err)
	}
	if reloaded.LastIssuedSequence != 100 {
		t.Fatalf("expected cursor 100, got %d", reloaded.LastIssuedSequence)
	}

	if _, _, err := store.Adopt(ctx, profile.ID, "not-a-code"); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for malformed code, got %v", err)
	}
}

func TestIssuedCodesNeverCollide(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	profile := testsupport.MustCreateProfile(t, store, "LabelX", "NL", "ABC")

	seen := make(map[string]bool)
	last := 0
	overrides := []string{"", "19", "", "07", ""}
	for i := 0; i < 25; i++ {
		code, err := store.Issue(ctx, profile.ID, overrides[i%len(overrides)])
		if err != nil {
			t.Fatalf("Issue %d failed: %v", i, err)
		}
		if code.Designation <= last {
			t.Fatalf("designation %d not strictly increasing after %d", code.Designation, last)
		}
		last = code.Designation
		if seen[code.Compact()] {
			t.Fatalf("duplicate code issued: %s", code.ISO())
		}
		seen[code.Compact()] = true
	}
}
