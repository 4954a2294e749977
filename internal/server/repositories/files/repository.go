package files

import (
	"context"

	"github.com/aivanovs/dataroom/internal/server/models"
)

// Repository is the local file catalog: the authoritative record of imported
// and uploaded files for each owner.
type Repository interface {
	// ListActive returns the owner's non-deleted rows, newest created first.
	ListActive(ctx context.Context, ownerID string) ([]*models.File, error)

	// GetActive returns one non-deleted row scoped to the owner, or
	// common.ErrorNotFound.
	GetActive(ctx context.Context, id, ownerID string) (*models.File, error)

	// FindByDriveID looks a row up by remote file id. With includeDeleted
	// false only active rows match; with true, tombstones match too.
	// Returns common.ErrorNotFound when there is no matching row.
	FindByDriveID(ctx context.Context, driveFileID string, includeDeleted bool) (*models.File, error)

	// Insert creates a row. Collisions on storage_key or on drive_file_id
	// among active rows surface as *common.UniqueConstraintError.
	Insert(ctx context.Context, file *models.File) error

	// SoftDelete marks the owner's row deleted, turning it into a
	// tombstone. Already-deleted or foreign rows yield common.ErrorNotFound.
	SoftDelete(ctx context.Context, id, ownerID string) error

	// HardDelete removes a tombstone permanently so its drive id can be
	// reclaimed by a fresh import.
	HardDelete(ctx context.Context, id string) error
}
