package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aivanovs/dataroom/internal/common"
)

// DiskStore keeps objects on the local filesystem under a single root
// directory. Filenames are unique by internal file id, so concurrent writes
// for different ids in the same owner directory need no coordination.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &DiskStore{root: root}, nil
}

// Store writes content under the deterministic object key using a temp file
// and an atomic rename, hashing on the fly.
func (s *DiskStore) Store(_ context.Context, ownerID, fileID, extension string, content []byte) (string, string, error) {
	key := ObjectKey(ownerID, fileID, extension)
	fullPath := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", "", fmt.Errorf("create owner directory: %w", err)
	}

	tmpPath := fullPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, hasher), bytes.NewReader(content)); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("write content: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("atomic rename: %w", err)
	}

	return key, hex.EncodeToString(hasher.Sum(nil)), nil
}

// Open returns a reader over the stored bytes. The caller must close it.
func (s *DiskStore) Open(_ context.Context, storageKey string) (io.ReadCloser, error) {
	f, err := os.Open(s.Resolve(storageKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", common.ErrorNotFound, storageKey)
		}
		return nil, fmt.Errorf("open %s: %w", storageKey, err)
	}
	return f, nil
}

// Delete removes the object. A missing object yields common.ErrorNotFound.
func (s *DiskStore) Delete(_ context.Context, storageKey string) error {
	err := os.Remove(s.Resolve(storageKey))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", common.ErrorNotFound, storageKey)
		}
		return fmt.Errorf("delete %s: %w", storageKey, err)
	}
	return nil
}

// Resolve maps a storage key to the absolute path on disk.
func (s *DiskStore) Resolve(storageKey string) string {
	return filepath.Join(s.root, filepath.FromSlash(storageKey))
}

// Root returns the storage root directory.
func (s *DiskStore) Root() string { return s.root }
