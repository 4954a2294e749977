// Package storage persists raw file bytes under deterministic per-owner
// keys and computes integrity checksums. Two backends exist: local disk and
// an S3-compatible object store.
package storage

import (
	"context"
	"io"
	"strings"
)

// ObjectStore is the content store contract. Store writes the bytes and
// returns the storage key plus the hex sha-256 of what was written. Delete
// returns common.ErrorNotFound when the object is already gone; callers
// treat that as non-fatal during soft delete.
type ObjectStore interface {
	Store(ctx context.Context, ownerID, fileID, extension string, content []byte) (storageKey, checksum string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// ObjectKey builds the deterministic storage key for an owner and internal
// file id: users/{ownerID}/{fileID}{ext}.
func ObjectKey(ownerID, fileID, extension string) string {
	return "users/" + ownerID + "/" + fileID + NormalizeExtension(extension)
}

// NormalizeExtension renders an extension as a suffix with exactly one
// leading dot. Case is preserved from metadata; an empty extension yields
// an empty suffix.
func NormalizeExtension(extension string) string {
	if extension == "" {
		return ""
	}
	return "." + strings.TrimLeft(extension, ".")
}
