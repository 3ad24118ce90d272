// Package blobstore manages attachment files under the installation
// root's blob directory. Files are stored content-addressed-adjacent:
// a random name with a two-character fanout directory, the original
// extension preserved. The catalog rows referencing a blob are the
// authority for its size, hash, and MIME type; the store holds bytes
// only.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"deadwax/internal/fieldset"
	"deadwax/internal/fileutil"
)

// ErrTooLarge marks source files over the ingest size cap. The check runs
// before any bytes are copied.
var ErrTooLarge = errors.New("blob exceeds size limit")

// ErrNotFound marks references whose file is missing from the store.
var ErrNotFound = errors.New("blob not found")

// Store is a filesystem blob directory.
type Store struct {
	root string
}

// New returns a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("blob directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Ingest copies src into the store and returns a reference suitable for a
// field value. The size cap and extension rules for fieldType are enforced
// before acceptance; an oversize or mistyped file copies nothing.
func (s *Store) Ingest(ctx context.Context, src string, fieldType fieldset.FieldType) (fieldset.BlobRef, error) {
	info, err := os.Stat(src)
	if err != nil {
		return fieldset.BlobRef{}, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return fieldset.BlobRef{}, fmt.Errorf("source %s is a directory", src)
	}
	if info.Size() > fieldset.MaxBlobBytes {
		return fieldset.BlobRef{}, fmt.Errorf("%w: %s is %d bytes, limit %d",
			ErrTooLarge, src, info.Size(), fieldset.MaxBlobBytes)
	}
	if !fieldset.AllowedExtension(fieldType, src) {
		return fieldset.BlobRef{}, fmt.Errorf("%s does not look like a %s file", src, fieldType)
	}
	if err := ctx.Err(); err != nil {
		return fieldset.BlobRef{}, err
	}

	ext := strings.ToLower(filepath.Ext(src))
	name := uuid.New().String()
	rel := filepath.ToSlash(filepath.Join(name[:2], name+ext))
	dataPath := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return fieldset.BlobRef{}, fmt.Errorf("create fanout directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fieldset.BlobRef{}, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".ingest-*")
	if err != nil {
		return fieldset.BlobRef{}, fmt.Errorf("create staging file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), in)
	if err != nil {
		_ = tmp.Close()
		return fieldset.BlobRef{}, fmt.Errorf("copy blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fieldset.BlobRef{}, fmt.Errorf("sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fieldset.BlobRef{}, fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return fieldset.BlobRef{}, fmt.Errorf("finalize blob: %w", err)
	}

	return fieldset.BlobRef{
		Path:      rel,
		SizeBytes: size,
		SHA256:    hex.EncodeToString(hasher.Sum(nil)),
		MimeType:  mimeTypeFor(ext),
	}, nil
}

// resolve maps a stored reference path to its absolute location, rejecting
// traversal outside the root.
func (s *Store) resolve(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == "." || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid blob path %q", rel)
	}
	return filepath.Join(s.root, cleaned), nil
}

// Open returns a reader over the referenced blob.
func (s *Store) Open(ref fieldset.BlobRef) (io.ReadCloser, error) {
	path, err := s.resolve(ref.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.Path)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ExportTo copies the referenced blob to dst, creating parent directories.
func (s *Store) ExportTo(ref fieldset.BlobRef, dst string) error {
	src, err := s.resolve(ref.Path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, ref.Path)
	}
	if dir := filepath.Dir(dst); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := fileutil.CopyFile(src, dst); err != nil {
		return fmt.Errorf("copy blob: %w", err)
	}
	return nil
}

// Verify recomputes the referenced blob's hash and size against the
// reference.
func (s *Store) Verify(ref fieldset.BlobRef) error {
	f, err := s.Open(ref)
	if err != nil {
		return err
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return fmt.Errorf("read blob: %w", err)
	}
	if size != ref.SizeBytes {
		return fmt.Errorf("blob %s: size %d, expected %d", ref.Path, size, ref.SizeBytes)
	}
	if sum := hex.EncodeToString(hasher.Sum(nil)); ref.SHA256 != "" && sum != ref.SHA256 {
		return fmt.Errorf("blob %s: hash mismatch", ref.Path)
	}
	return nil
}

// Remove deletes the referenced blob. A missing file reports false with no
// error, so cleanup after record deletion is idempotent.
func (s *Store) Remove(ref fieldset.BlobRef) (bool, error) {
	path, err := s.resolve(ref.Path)
	if err != nil {
		return false, err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// Drop the fanout directory when it empties; ignore failures.
	_ = os.Remove(filepath.Dir(path))
	return true, nil
}

// Cleanup removes every referenced blob best-effort and reports how many
// files were deleted alongside the joined failures.
func (s *Store) Cleanup(refs []fieldset.BlobRef) (int, error) {
	removed := 0
	var errs []error
	for _, ref := range refs {
		ok, err := s.Remove(ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

func mimeTypeFor(ext string) string {
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	switch ext {
	case ".flac":
		return "audio/flac"
	case ".m4a":
		return "audio/mp4"
	case ".opus":
		return "audio/opus"
	case ".aif", ".aiff":
		return "audio/aiff"
	default:
		return "application/octet-stream"
	}
}
