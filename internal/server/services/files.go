package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/aivanovs/dataroom/internal/common"
	"github.com/aivanovs/dataroom/internal/logging"
	"github.com/aivanovs/dataroom/internal/server/drive"
	"github.com/aivanovs/dataroom/internal/server/metrics"
	"github.com/aivanovs/dataroom/internal/server/models"
	"github.com/aivanovs/dataroom/internal/server/oauth"
	"github.com/aivanovs/dataroom/internal/server/repositories/repomanager"
	"github.com/aivanovs/dataroom/internal/server/storage"
)

// ErrFileNotReady rejects viewing a file whose status is not ready.
var ErrFileNotReady = errors.New("file is not ready")

// FileService covers the catalog-facing operations: listing, browsing the
// remote Drive, viewing stored content, and soft deletion.
type FileService struct {
	driveAuth

	drive drive.Client
	store storage.ObjectStore
}

func NewFileService(db *sql.DB, repos repomanager.RepositoryManager, driveClient drive.Client,
	refresher *oauth.Refresher, store storage.ObjectStore, m *metrics.Metrics, log logging.Logger) *FileService {
	return &FileService{
		driveAuth: driveAuth{db: db, repos: repos, refresher: refresher, log: log, metrics: m},
		drive:     driveClient,
		store:     store,
	}
}

// ListFiles returns the owner's active catalog rows, newest first. View
// links are re-validated on the way out: anything not matching the
// provider's canonical prefix is regenerated from the remote id.
func (s *FileService) ListFiles(ctx context.Context, ownerID string) ([]*models.File, error) {
	rows, err := s.repos.Files(s.db).ListActive(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	for _, f := range rows {
		if f.DriveFileID != "" {
			f.WebViewLink = drive.ResolveViewLink(f.WebViewLink, f.DriveFileID)
		}
	}
	return rows, nil
}

// BrowseDrive pages through the user's remote listing, dropping folders and
// provider-native documents that cannot be imported byte-for-byte.
func (s *FileService) BrowseDrive(ctx context.Context, ownerID string, pageSize int, pageToken string) (*drive.FileList, error) {
	cred, err := s.freshCredential(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	listing, err := s.drive.List(ctx, cred.AccessToken, drive.ListOptions{
		PageSize:  pageSize,
		PageToken: pageToken,
	})
	if err != nil {
		return nil, fmt.Errorf("list drive files: %w", err)
	}

	filtered := listing.Files[:0]
	for _, f := range listing.Files {
		if f.NativeDocument() {
			continue
		}
		filtered = append(filtered, f)
	}
	listing.Files = filtered
	return listing, nil
}

// OpenContent returns the catalog row and a reader over its stored bytes
// for the view endpoint. The caller must close the reader.
func (s *FileService) OpenContent(ctx context.Context, ownerID, fileID string) (*models.File, io.ReadCloser, error) {
	f, err := s.repos.Files(s.db).GetActive(ctx, fileID, ownerID)
	if err != nil {
		return nil, nil, err
	}
	if f.Status != models.StatusReady {
		return nil, nil, fmt.Errorf("%w: status %s", ErrFileNotReady, f.Status)
	}

	rc, err := s.store.Open(ctx, f.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return f, rc, nil
}

// Delete soft-deletes the owner's row, leaving a tombstone in the catalog.
// The stored bytes are removed best-effort first: if they are already gone
// the removal intent is still recorded.
func (s *FileService) Delete(ctx context.Context, ownerID, fileID string) error {
	f, err := s.repos.Files(s.db).GetActive(ctx, fileID, ownerID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, f.StorageKey); err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Warn(ctx, "failed to delete stored object", "storage_key", f.StorageKey, "error", err)
	}

	return s.repos.Files(s.db).SoftDelete(ctx, fileID, ownerID)
}
