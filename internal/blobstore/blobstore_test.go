package blobstore_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deadwax/internal/blobstore"
	"deadwax/internal/fieldset"
	"deadwax/internal/testsupport"
)

func newStore(t *testing.T) *blobstore.Store {
	t.Helper()
	store, err := blobstore.New(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	return store
}

func TestIngestRoundTrip(t *testing.T) {
	store := newStore(t)
	src := filepath.Join(t.TempDir(), "cover.png")
	testsupport.WriteFileString(t, src, "not really a png but close enough")

	ref, err := store.Ingest(context.Background(), src, fieldset.TypeBlobImage)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if ref.SizeBytes != int64(len("not really a png but close enough")) {
		t.Fatalf("unexpected size %d", ref.SizeBytes)
	}
	if ref.SHA256 == "" {
		t.Fatal("expected hash to be recorded")
	}
	if !strings.HasSuffix(ref.Path, ".png") {
		t.Fatalf("expected extension preserved, got %q", ref.Path)
	}
	if !strings.Contains(ref.MimeType, "image/png") {
		t.Fatalf("unexpected mime type %q", ref.MimeType)
	}

	reader, err := store.Open(ref)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(data) != "not really a png but close enough" {
		t.Fatalf("blob content mismatch: %q", data)
	}

	if err := store.Verify(ref); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

func TestIngestGuards(t *testing.T) {
	store := newStore(t)
	src := filepath.Join(t.TempDir(), "big.wav")
	testsupport.WriteFile(t, src, 4096)

	if _, err := store.Ingest(context.Background(), src, fieldset.TypeBlobImage); err == nil {
		t.Fatal("expected extension rejection for wav as image")
	}

	ref, err := store.Ingest(context.Background(), src, fieldset.TypeBlobAudio)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	ref.SizeBytes++
	if err := store.Verify(ref); err == nil {
		t.Fatal("expected Verify to flag size mismatch")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := newStore(t)
	src := filepath.Join(t.TempDir(), "track.mp3")
	testsupport.WriteFile(t, src, 128)

	ref, err := store.Ingest(context.Background(), src, fieldset.TypeBlobAudio)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	removed, err := store.Remove(ref)
	if err != nil || !removed {
		t.Fatalf("Remove: removed=%v err=%v", removed, err)
	}
	removed, err = store.Remove(ref)
	if err != nil || removed {
		t.Fatalf("second Remove: removed=%v err=%v", removed, err)
	}

	if _, err := store.Open(ref); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTraversalPathsRejected(t *testing.T) {
	store := newStore(t)
	for _, bad := range []string{"../outside.png", "/abs/path.png", "."} {
		if _, err := store.Open(fieldset.BlobRef{Path: bad}); err == nil {
			t.Fatalf("expected rejection for %q", bad)
		}
	}
}

func TestCleanupReportsCount(t *testing.T) {
	store := newStore(t)
	dir := t.TempDir()

	var refs []fieldset.BlobRef
	for _, name := range []string{"a.png", "b.png"} {
		src := filepath.Join(dir, name)
		testsupport.WriteFile(t, src, 64)
		ref, err := store.Ingest(context.Background(), src, fieldset.TypeBlobImage)
		if err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
		refs = append(refs, ref)
	}
	refs = append(refs, fieldset.BlobRef{Path: "zz/gone.png"})

	removed, err := store.Cleanup(refs)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removals, got %d", removed)
	}
}

func TestExportTo(t *testing.T) {
	store := newStore(t)
	src := filepath.Join(t.TempDir(), "art.jpg")
	testsupport.WriteFileString(t, src, "jpeg bytes")

	ref, err := store.Ingest(context.Background(), src, fieldset.TypeBlobImage)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "out", "art.jpg")
	if err := store.ExportTo(ref, dst); err != nil {
		t.Fatalf("ExportTo failed: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read exported file: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Fatalf("exported content mismatch: %q", data)
	}
}
