package models

import "time"

// File statuses. A row is created in StatusReady by the import pipeline;
// StatusProcessing/StatusFailed exist for uploads that go through a scan
// step, StatusArchived for retention.
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
	StatusArchived   = "archived"
)

// File is a catalog row describing an imported or uploaded file. Rows are
// value snapshots: after creation only Status and DeletedAt ever change,
// through explicit repository operations.
//
// StorageKey is unique across all rows ever created. DriveFileID is unique
// only among rows with DeletedAt == nil; a soft-deleted row keeps its drive
// id as a tombstone until a re-import reclaims it.
type File struct {
	ID           string
	OwnerID      string
	StorageKey   string
	DriveFileID  string
	OriginalName string
	Extension    string
	MimeType     string
	SizeBytes    int64
	ChecksumSHA  string
	Status       string
	WebViewLink  string
	CreatedAt    time.Time
	DeletedAt    *time.Time
}

// Deleted reports whether the row is a tombstone.
func (f *File) Deleted() bool { return f.DeletedAt != nil }
