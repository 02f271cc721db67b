package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	videoBlobDir  = "videos"
	avatarBlobDir = "avatars"
)

// BlobStore owns the raw media bytes under a storage root. Writes go through
// a temp file plus rename so a partially written blob is never visible under
// its final name, and every write records a BLAKE2b-256 checksum of the bytes
// that actually landed on disk.
type BlobStore struct {
	root string
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Path     string
	Size     int64
	Checksum string
}

func NewBlobStore(root string) (*BlobStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("blob store root is required")
	}
	for _, dir := range []string{videoBlobDir, avatarBlobDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create blob dir: %w", err)
		}
	}
	return &BlobStore{root: root}, nil
}

// SaveVideo streams the upload body into the video blob area under the given
// id and returns the relative path, byte count, and checksum.
func (b *BlobStore) SaveVideo(id string, body io.Reader) (BlobInfo, error) {
	return b.save(filepath.Join(videoBlobDir, id), body)
}

// SaveAvatar stores an avatar image keyed by user id plus extension.
func (b *BlobStore) SaveAvatar(name string, body io.Reader) (BlobInfo, error) {
	return b.save(filepath.Join(avatarBlobDir, name), body)
}

func (b *BlobStore) save(rel string, body io.Reader) (BlobInfo, error) {
	full, err := b.resolve(rel)
	if err != nil {
		return BlobInfo{}, err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return BlobInfo{}, fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "blob-*")
	if err != nil {
		return BlobInfo{}, fmt.Errorf("create temp blob: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return BlobInfo{}, fmt.Errorf("init checksum: %w", err)
	}
	size, err := io.Copy(io.MultiWriter(tmp, hasher), body)
	if err != nil {
		return BlobInfo{}, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return BlobInfo{}, fmt.Errorf("flush blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return BlobInfo{}, fmt.Errorf("close temp blob: %w", err)
	}
	if err := os.Rename(tmpPath, full); err != nil {
		return BlobInfo{}, fmt.Errorf("replace blob: %w", err)
	}
	success = true

	return BlobInfo{
		Path:     filepath.ToSlash(rel),
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open returns a reader over a stored blob. The caller closes it.
func (b *BlobStore) Open(rel string) (*os.File, error) {
	full, err := b.resolve(rel)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", rel, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return file, nil
}

// Remove deletes a stored blob. Removing an absent blob succeeds so a delete
// raced by the retention sweep stays idempotent.
func (b *BlobStore) Remove(rel string) error {
	if strings.TrimSpace(rel) == "" {
		return nil
	}
	full, err := b.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// Exists reports whether a blob is present, used by invariants checks in
// tests and the health endpoint.
func (b *BlobStore) Exists(rel string) bool {
	full, err := b.resolve(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

func (b *BlobStore) resolve(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("blob path %q: %w", rel, ErrInvalidArgument)
	}
	return filepath.Join(b.root, cleaned), nil
}
