// Package httpapi exposes the Data Room server over HTTP: Google sign-in,
// Drive browsing, the import endpoint, and the local file catalog.
package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aivanovs/dataroom/internal/logging"
	"github.com/aivanovs/dataroom/internal/server/drive"
	"github.com/aivanovs/dataroom/internal/server/models"
	"github.com/aivanovs/dataroom/internal/server/services"
)

// AuthFlow is the login surface implemented by services.AuthService.
type AuthFlow interface {
	LoginURL() (authURL, state string, err error)
	Complete(ctx context.Context, code string) (string, *models.User, error)
}

// FileCatalog is the catalog surface implemented by services.FileService.
type FileCatalog interface {
	ListFiles(ctx context.Context, ownerID string) ([]*models.File, error)
	BrowseDrive(ctx context.Context, ownerID string, pageSize int, pageToken string) (*drive.FileList, error)
	OpenContent(ctx context.Context, ownerID, fileID string) (*models.File, io.ReadCloser, error)
	Delete(ctx context.Context, ownerID, fileID string) error
}

// Importer is the batch import surface implemented by services.ImportService.
type Importer interface {
	ImportBatch(ctx context.Context, ownerID string, driveFileIDs []string) (*services.ImportResult, error)
}

// Handler wires the services into the route tree.
type Handler struct {
	auth      AuthFlow
	files     FileCatalog
	imports   Importer
	secretKey []byte
	log       logging.Logger
}

func NewHandler(auth AuthFlow, files FileCatalog, imports Importer,
	secretKey []byte, log logging.Logger) *Handler {
	return &Handler{
		auth:      auth,
		files:     files,
		imports:   imports,
		secretKey: secretKey,
		log:       log,
	}
}

// Router builds the chi route tree. The catalog and Drive routes sit behind
// Bearer-token auth; login, health and metrics do not.
func (h *Handler) Router(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/google/login", h.handleGoogleLogin)
		r.Get("/auth/google/callback", h.handleGoogleCallback)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/files", h.handleListFiles)
			r.Post("/files/import", h.handleImport)
			r.Get("/files/{fileID}/view", h.handleViewFile)
			r.Delete("/files/{fileID}", h.handleDeleteFile)

			r.Get("/drive/files", h.handleBrowseDrive)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
