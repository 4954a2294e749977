// Package drive implements a minimal Google Drive v3 REST client used by the
// import pipeline: listing, metadata lookup, raw download, upload, and folder
// creation, authenticated with a bearer access token supplied per call.
package drive

import (
	"context"
	"io"
)

// Folder and native-document mime conventions. Files whose mime type starts
// with NativePrefix have no byte representation and cannot be downloaded.
const (
	FolderMimeType = "application/vnd.google-apps.folder"
	NativePrefix   = "application/vnd.google-apps."
)

// FileMetadata describes one remote file. Size is zero when Drive omits the
// field (folders, native documents, some shortcuts).
type FileMetadata struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size,string"`
	ModifiedTime string `json:"modifiedTime"`
	WebViewLink  string `json:"webViewLink"`
	Owners       []struct {
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	} `json:"owners"`
}

// Folder reports whether the file is a Drive folder.
func (m *FileMetadata) Folder() bool { return m.MimeType == FolderMimeType }

// NativeDocument reports whether the file is a provider-native document
// (Docs, Sheets, ...) that has no downloadable bytes.
func (m *FileMetadata) NativeDocument() bool {
	return len(m.MimeType) >= len(NativePrefix) && m.MimeType[:len(NativePrefix)] == NativePrefix
}

// FileList is one page of a listing.
type FileList struct {
	Files         []FileMetadata `json:"files"`
	NextPageToken string         `json:"nextPageToken"`
}

// ListOptions narrows a List call.
type ListOptions struct {
	PageSize  int
	PageToken string
	// ParentFolderID restricts the listing to direct children of a folder.
	ParentFolderID string
}

// Client is the remote catalog surface the services depend on. The real
// implementation talks to the Drive REST API; tests substitute fakes.
type Client interface {
	List(ctx context.Context, accessToken string, opts ListOptions) (*FileList, error)
	GetMetadata(ctx context.Context, accessToken, fileID string) (*FileMetadata, error)
	Download(ctx context.Context, accessToken, fileID string) ([]byte, error)
	Upload(ctx context.Context, accessToken, name, mimeType, parentFolderID string, content io.Reader) (*FileMetadata, error)
	CreateFolder(ctx context.Context, accessToken, name, parentFolderID string) (*FileMetadata, error)
}
