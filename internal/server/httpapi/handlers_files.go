package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aivanovs/dataroom/internal/common"
	"github.com/aivanovs/dataroom/internal/server/models"
	"github.com/aivanovs/dataroom/internal/server/services"
)

type fileBody struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Extension    string    `json:"extension,omitempty"`
	MimeType     string    `json:"mime_type,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	ChecksumSHA  string    `json:"checksum_sha256,omitempty"`
	Status       string    `json:"status"`
	DriveFileID  string    `json:"drive_file_id,omitempty"`
	WebViewLink  string    `json:"web_view_link,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type importRequest struct {
	FileIDs []string `json:"file_ids"`
}

type skippedBody struct {
	FileID string `json:"file_id"`
	Reason string `json:"reason"`
	Name   string `json:"name,omitempty"`
}

type failedBody struct {
	FileID string `json:"file_id"`
	Error  string `json:"error"`
}

type importResponse struct {
	ImportedFiles []fileBody    `json:"imported_files"`
	SkippedFiles  []skippedBody `json:"skipped_files"`
	FailedFiles   []failedBody  `json:"failed_files"`
}

type driveFileBody struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
	WebViewLink string `json:"web_view_link,omitempty"`
}

type driveListResponse struct {
	Files         []driveFileBody `json:"files"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	rows, err := h.files.ListFiles(r.Context(), userID)
	if err != nil {
		h.log.Error(r.Context(), "failed to list files", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	out := make([]fileBody, 0, len(rows))
	for _, f := range rows {
		out = append(out, toFileBody(f))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.imports.ImportBatch(r.Context(), userID, req.FileIDs)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBatchSize):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrDriveNotLinked):
			writeError(w, http.StatusBadRequest, "google drive account is not linked")
		default:
			h.log.Error(r.Context(), "import failed", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "import failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, toImportResponse(result))
}

func (h *Handler) handleBrowseDrive(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	pageSize := 0
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page_size")
			return
		}
		pageSize = n
	}

	listing, err := h.files.BrowseDrive(r.Context(), userID, pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDriveNotLinked):
			writeError(w, http.StatusBadRequest, "google drive account is not linked")
		case errors.Is(err, common.ErrAuthExpired):
			writeError(w, http.StatusUnauthorized, "google drive authorization expired, please sign in again")
		default:
			h.log.Error(r.Context(), "drive listing failed", "user_id", userID, "error", err)
			writeError(w, http.StatusBadGateway, "failed to list google drive files")
		}
		return
	}

	out := driveListResponse{NextPageToken: listing.NextPageToken, Files: make([]driveFileBody, 0, len(listing.Files))}
	for _, f := range listing.Files {
		out.Files = append(out.Files, driveFileBody{
			ID:          f.ID,
			Name:        f.Name,
			MimeType:    f.MimeType,
			SizeBytes:   f.Size,
			WebViewLink: f.WebViewLink,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleViewFile streams the stored bytes inline with the original name and
// mime type.
func (h *Handler) handleViewFile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	fileID := chi.URLParam(r, "fileID")

	f, rc, err := h.files.OpenContent(r.Context(), userID, fileID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			writeError(w, http.StatusNotFound, "file not found")
		case errors.Is(err, services.ErrFileNotReady):
			writeError(w, http.StatusConflict, "file is not ready")
		default:
			h.log.Error(r.Context(), "failed to open file content", "file_id", fileID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to open file")
		}
		return
	}
	defer rc.Close()

	contentType := f.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", f.OriginalName))
	if f.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.SizeBytes, 10))
	}

	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn(r.Context(), "streaming file content interrupted", "file_id", fileID, "error", err)
	}
}

func (h *Handler) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	fileID := chi.URLParam(r, "fileID")

	if err := h.files.Delete(r.Context(), userID, fileID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.log.Error(r.Context(), "failed to delete file", "file_id", fileID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toFileBody(f *models.File) fileBody {
	return fileBody{
		ID:          f.ID,
		Name:        f.OriginalName,
		Extension:   f.Extension,
		MimeType:    f.MimeType,
		SizeBytes:   f.SizeBytes,
		ChecksumSHA: f.ChecksumSHA,
		Status:      f.Status,
		DriveFileID: f.DriveFileID,
		WebViewLink: f.WebViewLink,
		CreatedAt:   f.CreatedAt,
	}
}

func toImportResponse(res *services.ImportResult) importResponse {
	out := importResponse{
		ImportedFiles: make([]fileBody, 0, len(res.Imported)),
		SkippedFiles:  make([]skippedBody, 0, len(res.Skipped)),
		FailedFiles:   make([]failedBody, 0, len(res.Failed)),
	}
	for _, f := range res.Imported {
		out.ImportedFiles = append(out.ImportedFiles, toFileBody(f))
	}
	for _, s := range res.Skipped {
		out.SkippedFiles = append(out.SkippedFiles, skippedBody{FileID: s.DriveFileID, Reason: s.Reason, Name: s.Name})
	}
	for _, f := range res.Failed {
		out.FailedFiles = append(out.FailedFiles, failedBody{FileID: f.DriveFileID, Error: f.Error})
	}
	return out
}
