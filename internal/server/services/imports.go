// Package services contains server-side business logic. This file implements
// ImportService, the orchestrator that copies batches of Drive files into
// local content-addressed storage and the catalog.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/google/uuid"

	"github.com/aivanovs/dataroom/internal/common"
	"github.com/aivanovs/dataroom/internal/dbx"
	"github.com/aivanovs/dataroom/internal/logging"
	"github.com/aivanovs/dataroom/internal/server/drive"
	"github.com/aivanovs/dataroom/internal/server/metrics"
	"github.com/aivanovs/dataroom/internal/server/models"
	"github.com/aivanovs/dataroom/internal/server/oauth"
	"github.com/aivanovs/dataroom/internal/server/repositories/repomanager"
	"github.com/aivanovs/dataroom/internal/server/storage"
)

// Skip reasons exposed to clients.
const (
	ReasonAlreadyImported = "already_imported"
	ReasonUnsupportedType = "unsupported_type"
)

// DefaultMaxBatch caps the number of ids in one import request.
const DefaultMaxBatch = 20

// activeDriveIDIndex is the partial unique index over non-deleted remote
// ids; its name identifies commit-time races between concurrent imports.
const activeDriveIDIndex = "files_drive_file_id_active_idx"

// ErrBatchSize rejects an empty or oversized id list before any work runs.
var ErrBatchSize = errors.New("invalid import batch size")

// SkippedItem records a file that was deliberately not imported.
type SkippedItem struct {
	DriveFileID string
	Reason      string
	Name        string
}

// FailedItem records a file whose import was attempted and failed.
type FailedItem struct {
	DriveFileID string
	Error       string
}

// ImportResult is the three-way breakdown of one batch. A batch as a whole
// never fails; only individual ids do.
type ImportResult struct {
	Imported []*models.File
	Skipped  []SkippedItem
	Failed   []FailedItem
}

// ImportService copies remote Drive files into the content store and the
// local catalog with idempotent, partial-failure-tolerant semantics.
type ImportService struct {
	driveAuth

	drive    drive.Client
	store    storage.ObjectStore
	maxBatch int
}

// withTx is a seam for testing the batch commit.
var withTx = dbx.WithTx

// NewImportService constructs the orchestrator.
func NewImportService(db *sql.DB, repos repomanager.RepositoryManager, driveClient drive.Client,
	refresher *oauth.Refresher, store storage.ObjectStore, m *metrics.Metrics, log logging.Logger, maxBatch int) *ImportService {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &ImportService{
		driveAuth: driveAuth{db: db, repos: repos, refresher: refresher, log: log, metrics: m},
		drive:     driveClient,
		store:     store,
		maxBatch:  maxBatch,
	}
}

// ImportBatch processes each remote id independently: a failure on one id
// never aborts its siblings. Successfully downloaded files are staged and
// committed in a single transaction at the end of the batch.
func (s *ImportService) ImportBatch(ctx context.Context, ownerID string, driveFileIDs []string) (*ImportResult, error) {
	if len(driveFileIDs) == 0 || len(driveFileIDs) > s.maxBatch {
		return nil, fmt.Errorf("%w: got %d ids, want 1..%d", ErrBatchSize, len(driveFileIDs), s.maxBatch)
	}

	cred, err := s.freshCredential(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	var staged []*models.File

	catalog := s.repos.Files(s.db)
	for _, driveFileID := range driveFileIDs {
		row, skip, failMsg := s.importOne(ctx, catalog, cred, ownerID, driveFileID)
		switch {
		case row != nil:
			staged = append(staged, row)
		case skip != nil:
			result.Skipped = append(result.Skipped, *skip)
		default:
			result.Failed = append(result.Failed, FailedItem{DriveFileID: driveFileID, Error: failMsg})
		}
	}

	s.commitStaged(ctx, staged, result)

	s.metrics.ImportOutcomes.WithLabelValues(metrics.OutcomeImported).Add(float64(len(result.Imported)))
	s.metrics.ImportOutcomes.WithLabelValues(metrics.OutcomeSkipped).Add(float64(len(result.Skipped)))
	s.metrics.ImportOutcomes.WithLabelValues(metrics.OutcomeFailed).Add(float64(len(result.Failed)))

	return result, nil
}

// importOne runs steps 1-6 for a single id. Exactly one of the returns is
// set: a staged row, a skip record, or a failure message.
func (s *ImportService) importOne(ctx context.Context, catalog filesCatalog, cred *models.DriveCredential,
	ownerID, driveFileID string) (*models.File, *SkippedItem, string) {

	// Already-imported check against live rows.
	existing, err := catalog.FindByDriveID(ctx, driveFileID, false)
	if err == nil {
		return nil, &SkippedItem{DriveFileID: driveFileID, Reason: ReasonAlreadyImported, Name: existing.OriginalName}, ""
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, nil, classifyImportError(err)
	}

	// Reclaim: a tombstone holding this drive id blocks the partial unique
	// index, so remove it permanently before importing afresh.
	if tomb, err := catalog.FindByDriveID(ctx, driveFileID, true); err == nil && tomb.Deleted() {
		if err := catalog.HardDelete(ctx, tomb.ID); err != nil {
			return nil, nil, classifyImportError(err)
		}
		s.log.Info(ctx, "reclaimed tombstone for re-import", "drive_file_id", driveFileID, "old_id", tomb.ID)
	}

	meta, err := s.drive.GetMetadata(ctx, cred.AccessToken, driveFileID)
	if err != nil {
		return nil, nil, classifyImportError(err)
	}

	if meta.Folder() || meta.NativeDocument() {
		return nil, &SkippedItem{DriveFileID: driveFileID, Reason: ReasonUnsupportedType, Name: meta.Name}, ""
	}

	content, err := s.drive.Download(ctx, cred.AccessToken, driveFileID)
	if err != nil {
		return nil, nil, classifyImportError(err)
	}
	if len(content) == 0 {
		// A zero-byte payload is a provider anomaly, not a user choice.
		return nil, nil, "empty_file"
	}

	name := meta.Name
	if name == "" {
		name = "untitled"
	}
	extension := normalizeExtension(name, meta.MimeType)

	fileID := uuid.NewString()
	storageKey, checksum, err := s.store.Store(ctx, ownerID, fileID, extension, content)
	if err != nil {
		return nil, nil, classifyImportError(err)
	}

	// Provider-declared size wins when positive; the local byte count
	// covers absent or lying metadata.
	sizeBytes := meta.Size
	if sizeBytes <= 0 {
		sizeBytes = int64(len(content))
	}

	return &models.File{
		ID:           fileID,
		OwnerID:      ownerID,
		StorageKey:   storageKey,
		DriveFileID:  driveFileID,
		OriginalName: name,
		Extension:    extension,
		MimeType:     meta.MimeType,
		SizeBytes:    sizeBytes,
		ChecksumSHA:  checksum,
		Status:       models.StatusReady,
		WebViewLink:  drive.ResolveViewLink(meta.WebViewLink, driveFileID),
	}, nil, ""
}

// commitStaged inserts all staged rows in one transaction. A commit-time
// uniqueness race on a remote id reclassifies the offending id as an
// already_imported skip and retries with the remainder; any other commit
// error fails every staged row. Objects already written for rows that do
// not commit are deleted best-effort.
func (s *ImportService) commitStaged(ctx context.Context, staged []*models.File, result *ImportResult) {
	remaining := staged
	for len(remaining) > 0 {
		batch := remaining
		err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := s.repos.Files(tx)
			for _, f := range batch {
				if err := repo.Insert(ctx, f); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			result.Imported = append(result.Imported, remaining...)
			return
		}

		if uv, ok := common.IsUniqueViolation(err); ok && uv.Constraint == activeDriveIDIndex {
			if i := offendingIndex(remaining, uv.Detail); i >= 0 {
				loser := remaining[i]
				s.discardObject(ctx, loser)
				result.Skipped = append(result.Skipped, SkippedItem{
					DriveFileID: loser.DriveFileID,
					Reason:      ReasonAlreadyImported,
					Name:        loser.OriginalName,
				})
				remaining = append(remaining[:i], remaining[i+1:]...)
				continue
			}
		}

		msg := classifyImportError(err)
		for _, f := range remaining {
			s.discardObject(ctx, f)
			result.Failed = append(result.Failed, FailedItem{DriveFileID: f.DriveFileID, Error: msg})
		}
		return
	}
}

// discardObject compensates for a catalog row that will never commit by
// removing its stored bytes, so commit failures do not accumulate orphans.
func (s *ImportService) discardObject(ctx context.Context, f *models.File) {
	if err := s.store.Delete(ctx, f.StorageKey); err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Warn(ctx, "failed to remove uncommitted object", "storage_key", f.StorageKey, "error", err)
	}
}

// offendingIndex finds which staged row tripped the unique index, using the
// drive id echoed in the violation detail
// ("Key (drive_file_id)=(abc) already exists."). A single-row batch needs
// no detail. Returns -1 when the offender cannot be identified.
func offendingIndex(staged []*models.File, detail string) int {
	if len(staged) == 1 {
		return 0
	}
	start := strings.Index(detail, ")=(")
	if start < 0 {
		return -1
	}
	rest := detail[start+3:]
	end := strings.Index(rest, ")")
	if end < 0 {
		return -1
	}
	driveFileID := rest[:end]
	for i, f := range staged {
		if f.DriveFileID == driveFileID {
			return i
		}
	}
	return -1
}

// classifyImportError maps provider and infrastructure failures onto the
// small set of user-facing messages; unknown errors pass through as-is.
func classifyImportError(err error) string {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return "file not found in Google Drive"
	case errors.Is(err, common.ErrPermissionDenied):
		return "no access to file in Google Drive"
	case errors.Is(err, common.ErrAuthExpired):
		return "Google Drive authorization error, please sign in again"
	case errors.Is(err, common.ErrQuotaExceeded):
		return "Google Drive storage quota exceeded"
	}

	// Fall back to message sniffing for errors that come from outside the
	// drive client.
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found"):
		return "file not found in Google Drive"
	case strings.Contains(lower, "403") || strings.Contains(lower, "forbidden") || strings.Contains(lower, "permission"):
		return "no access to file in Google Drive"
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized"):
		return "Google Drive authorization error, please sign in again"
	case strings.Contains(lower, "quota") || strings.Contains(lower, "storage limit"):
		return "Google Drive storage quota exceeded"
	}
	return msg
}

// normalizeExtension derives the catalog extension (no dot): the name's
// suffix wins, the mime type is the fallback.
func normalizeExtension(name, mimeType string) string {
	if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
		return strings.ToLower(name[i+1:])
	}
	if mimeType != "" {
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			return strings.TrimPrefix(exts[0], ".")
		}
	}
	return ""
}

// filesCatalog is the subset of the catalog repository the per-id loop
// touches.
type filesCatalog interface {
	FindByDriveID(ctx context.Context, driveFileID string, includeDeleted bool) (*models.File, error)
	HardDelete(ctx context.Context, id string) error
}
