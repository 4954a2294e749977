package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2"

	"github.com/aivanovs/dataroom/internal/common"
	"github.com/aivanovs/dataroom/internal/dbx"
	"github.com/aivanovs/dataroom/internal/logging"
	"github.com/aivanovs/dataroom/internal/server/drive"
	"github.com/aivanovs/dataroom/internal/server/metrics"
	"github.com/aivanovs/dataroom/internal/server/models"
	"github.com/aivanovs/dataroom/internal/server/oauth"
	"github.com/aivanovs/dataroom/internal/server/repositories/credentials"
	"github.com/aivanovs/dataroom/internal/server/repositories/files"
	"github.com/aivanovs/dataroom/internal/server/repositories/users"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// freshCred never triggers the refresher's exchange path.
func freshCred(userID string) *models.DriveCredential {
	exp := time.Now().Add(time.Hour).UTC()
	return &models.DriveCredential{
		UserID:       userID,
		AccessToken:  "token",
		RefreshToken: "refresh",
		ExpiresAt:    &exp,
	}
}

// --- drive client fake ---

type fakeDriveClient struct {
	mu sync.Mutex

	metadata     map[string]*drive.FileMetadata
	metadataErr  map[string]error
	downloads    map[string][]byte
	downloadErr  map[string]error
	listing      *drive.FileList
	listErr      error
	metadataHits map[string]int
}

func newFakeDriveClient() *fakeDriveClient {
	return &fakeDriveClient{
		metadata:     map[string]*drive.FileMetadata{},
		metadataErr:  map[string]error{},
		downloads:    map[string][]byte{},
		downloadErr:  map[string]error{},
		metadataHits: map[string]int{},
	}
}

func (f *fakeDriveClient) List(ctx context.Context, accessToken string, opts drive.ListOptions) (*drive.FileList, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listing, nil
}

func (f *fakeDriveClient) GetMetadata(ctx context.Context, accessToken, fileID string) (*drive.FileMetadata, error) {
	f.mu.Lock()
	f.metadataHits[fileID]++
	f.mu.Unlock()
	if err, ok := f.metadataErr[fileID]; ok {
		return nil, err
	}
	if m, ok := f.metadata[fileID]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", common.ErrorNotFound, fileID)
}

func (f *fakeDriveClient) Download(ctx context.Context, accessToken, fileID string) ([]byte, error) {
	if err, ok := f.downloadErr[fileID]; ok {
		return nil, err
	}
	return f.downloads[fileID], nil
}

func (f *fakeDriveClient) Upload(ctx context.Context, accessToken, name, mimeType, parentFolderID string, content io.Reader) (*drive.FileMetadata, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeDriveClient) CreateFolder(ctx context.Context, accessToken, name, parentFolderID string) (*drive.FileMetadata, error) {
	return nil, fmt.Errorf("not implemented")
}

// --- object store fake ---

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (s *fakeObjectStore) Store(ctx context.Context, ownerID, fileID, extension string, content []byte) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := "users/" + ownerID + "/" + fileID
	if extension != "" {
		key += "." + extension
	}
	s.objects[key] = content
	sum := sha256.Sum256(content)
	return key, hex.EncodeToString(sum[:]), nil
}

func (s *fakeObjectStore) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.objects[storageKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrorNotFound, storageKey)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (s *fakeObjectStore) Delete(ctx context.Context, storageKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, storageKey)
	if _, ok := s.objects[storageKey]; !ok {
		return fmt.Errorf("%w: %s", common.ErrorNotFound, storageKey)
	}
	delete(s.objects, storageKey)
	return nil
}

// --- repository fakes ---

type fakeFilesRepo struct {
	mu sync.Mutex

	active    map[string]*models.File // keyed by drive file id
	deleted   map[string]*models.File // tombstones, keyed by drive file id
	rows      map[string]*models.File // keyed by internal id
	inserted  []*models.File
	insertErr func(f *models.File) error
	hardDels  []string
	softDels  []string
	listErr   error
}

func newFakeFilesRepo() *fakeFilesRepo {
	return &fakeFilesRepo{
		active:  map[string]*models.File{},
		deleted: map[string]*models.File{},
		rows:    map[string]*models.File{},
	}
}

func (r *fakeFilesRepo) ListActive(ctx context.Context, ownerID string) ([]*models.File, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.File
	for _, f := range r.rows {
		if f.OwnerID == ownerID && !f.Deleted() {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFilesRepo) GetActive(ctx context.Context, id, ownerID string) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.rows[id]
	if !ok || f.OwnerID != ownerID || f.Deleted() {
		return nil, common.ErrorNotFound
	}
	return f, nil
}

func (r *fakeFilesRepo) FindByDriveID(ctx context.Context, driveFileID string, includeDeleted bool) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.active[driveFileID]; ok {
		return f, nil
	}
	if includeDeleted {
		if f, ok := r.deleted[driveFileID]; ok {
			return f, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeFilesRepo) Insert(ctx context.Context, f *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		if err := r.insertErr(f); err != nil {
			return err
		}
	}
	r.inserted = append(r.inserted, f)
	r.rows[f.ID] = f
	if f.DriveFileID != "" {
		r.active[f.DriveFileID] = f
	}
	return nil
}

func (r *fakeFilesRepo) SoftDelete(ctx context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.rows[id]
	if !ok || f.OwnerID != ownerID || f.Deleted() {
		return common.ErrorNotFound
	}
	now := time.Now().UTC()
	f.DeletedAt = &now
	r.softDels = append(r.softDels, id)
	delete(r.active, f.DriveFileID)
	r.deleted[f.DriveFileID] = f
	return nil
}

func (r *fakeFilesRepo) HardDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hardDels = append(r.hardDels, id)
	for driveID, f := range r.deleted {
		if f.ID == id {
			delete(r.deleted, driveID)
		}
	}
	delete(r.rows, id)
	return nil
}

type fakeCredsRepo struct {
	cred *models.DriveCredential
	err  error
}

func (r *fakeCredsRepo) Get(ctx context.Context, userID string) (*models.DriveCredential, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.cred, nil
}

func (r *fakeCredsRepo) Upsert(ctx context.Context, cred *models.DriveCredential) error { return nil }

func (r *fakeCredsRepo) UpdateTokens(ctx context.Context, userID, accessToken string, expiresAt *time.Time) error {
	return nil
}

type fakeUsersRepo struct{}

func (r *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return nil, common.ErrorNotFound
}

func (r *fakeUsersRepo) UpsertByEmail(ctx context.Context, email, name string) (*models.User, error) {
	return &models.User{ID: "u1", Email: email, Name: name}, nil
}

type fakeRepoManager struct {
	files *fakeFilesRepo
	creds *fakeCredsRepo
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository { return &fakeUsersRepo{} }

func (m *fakeRepoManager) Credentials(db dbx.DBTX) credentials.Repository { return m.creds }

func (m *fakeRepoManager) Files(db dbx.DBTX) files.Repository { return m.files }

// stubWithTx replaces the transactional seam: the callback runs directly,
// errors propagate unchanged.
func stubWithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return fn(ctx, nil)
}

func newRefresherForTests() *oauth.Refresher {
	return oauth.NewRefresher(&oauth2.Config{}, &fakeCredsRepo{}, discardLogger())
}
