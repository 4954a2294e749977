package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aivanovs/dataroom/internal/common"
)

const (
	defaultAPIURL    = "https://www.googleapis.com/drive/v3"
	defaultUploadURL = "https://www.googleapis.com/upload/drive/v3"

	metadataFields = "id, name, mimeType, size, modifiedTime, webViewLink, owners"
	listFields     = "nextPageToken, files(id, name, mimeType, size, modifiedTime, webViewLink)"
)

// HTTPClient is the production Client implementation over the Drive v3 REST
// API. Every request carries a bounded timeout via the underlying
// http.Client in addition to the caller's context.
type HTTPClient struct {
	apiURL     string
	uploadURL  string
	httpClient *http.Client
}

// Option tweaks an HTTPClient, mainly for tests.
type Option func(*HTTPClient)

// WithBaseURLs overrides both endpoint roots.
func WithBaseURLs(apiURL, uploadURL string) Option {
	return func(c *HTTPClient) {
		c.apiURL = strings.TrimSuffix(apiURL, "/")
		c.uploadURL = strings.TrimSuffix(uploadURL, "/")
	}
}

// NewHTTPClient creates a Drive REST client with the given request timeout.
// A non-positive timeout falls back to 30 seconds.
func NewHTTPClient(timeout time.Duration, opts ...Option) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &HTTPClient{
		apiURL:     defaultAPIURL,
		uploadURL:  defaultUploadURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) List(ctx context.Context, accessToken string, opts ListOptions) (*FileList, error) {
	q := url.Values{}
	q.Set("fields", listFields)

	query := "trashed=false"
	if opts.ParentFolderID != "" {
		query = fmt.Sprintf("%s and '%s' in parents", query, opts.ParentFolderID)
	}
	q.Set("q", query)

	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.PageToken != "" {
		q.Set("pageToken", opts.PageToken)
	}

	resp, err := c.makeRequest(ctx, http.MethodGet, c.apiURL+"/files?"+q.Encode(), accessToken, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	list := &FileList{}
	if err := json.NewDecoder(resp.Body).Decode(list); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	return list, nil
}

func (c *HTTPClient) GetMetadata(ctx context.Context, accessToken, fileID string) (*FileMetadata, error) {
	u := fmt.Sprintf("%s/files/%s?fields=%s", c.apiURL, url.PathEscape(fileID), url.QueryEscape(metadataFields))

	resp, err := c.makeRequest(ctx, http.MethodGet, u, accessToken, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	meta := &FileMetadata{}
	if err := json.NewDecoder(resp.Body).Decode(meta); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	return meta, nil
}

func (c *HTTPClient) Download(ctx context.Context, accessToken, fileID string) ([]byte, error) {
	u := fmt.Sprintf("%s/files/%s?alt=media", c.apiURL, url.PathEscape(fileID))

	resp, err := c.makeRequest(ctx, http.MethodGet, u, accessToken, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read content failed: %w", err)
	}
	return content, nil
}

// Upload creates a new file via the multipart upload endpoint: a metadata
// part followed by the media part.
func (c *HTTPClient) Upload(ctx context.Context, accessToken, name, mimeType, parentFolderID string, content io.Reader) (*FileMetadata, error) {
	meta := map[string]any{"name": name}
	if mimeType != "" {
		meta["mimeType"] = mimeType
	}
	if parentFolderID != "" {
		meta["parents"] = []string{parentFolderID}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata failed: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return nil, fmt.Errorf("create metadata part failed: %w", err)
	}
	if _, err := part.Write(metaJSON); err != nil {
		return nil, fmt.Errorf("write metadata part failed: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	if mimeType != "" {
		mediaHeader.Set("Content-Type", mimeType)
	}
	part, err = mw.CreatePart(mediaHeader)
	if err != nil {
		return nil, fmt.Errorf("create media part failed: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("write media part failed: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body failed: %w", err)
	}

	u := c.uploadURL + "/files?uploadType=multipart&fields=" + url.QueryEscape(metadataFields)
	contentType := "multipart/related; boundary=" + mw.Boundary()

	resp, err := c.makeRequest(ctx, http.MethodPost, u, accessToken, contentType, &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	created := &FileMetadata{}
	if err := json.NewDecoder(resp.Body).Decode(created); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	return created, nil
}

func (c *HTTPClient) CreateFolder(ctx context.Context, accessToken, name, parentFolderID string) (*FileMetadata, error) {
	meta := map[string]any{"name": name, "mimeType": FolderMimeType}
	if parentFolderID != "" {
		meta["parents"] = []string{parentFolderID}
	}
	body, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata failed: %w", err)
	}

	u := c.apiURL + "/files?fields=" + url.QueryEscape(metadataFields)

	resp, err := c.makeRequest(ctx, http.MethodPost, u, accessToken, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	created := &FileMetadata{}
	if err := json.NewDecoder(resp.Body).Decode(created); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	return created, nil
}

func (c *HTTPClient) makeRequest(ctx context.Context, method, url, accessToken, contentType string, reqBody io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures classify the same way as 5xx.
		return nil, fmt.Errorf("%w: %v", common.ErrTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, parseError(resp)
	}
	return resp, nil
}

// parseError maps a Drive error response onto the shared sentinel taxonomy.
// The JSON error body, when present, is carried in the message.
func parseError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	reason := ""
	var jsonErr struct {
		Error struct {
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &jsonErr); err == nil {
		if len(jsonErr.Error.Errors) > 0 {
			reason = jsonErr.Error.Errors[0].Reason
		}
		if jsonErr.Error.Message != "" {
			body = []byte(jsonErr.Error.Message)
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", common.ErrAuthExpired, body)
	case resp.StatusCode == http.StatusForbidden:
		// 403 doubles as the quota signal; the reason field disambiguates.
		if strings.Contains(reason, "storageQuotaExceeded") || strings.Contains(reason, "QuotaExceeded") {
			return fmt.Errorf("%w: %s", common.ErrQuotaExceeded, body)
		}
		return fmt.Errorf("%w: %s", common.ErrPermissionDenied, body)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", common.ErrorNotFound, body)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", common.ErrTransient, resp.StatusCode, body)
	default:
		return fmt.Errorf("drive API error (status %d): %s", resp.StatusCode, body)
	}
}
