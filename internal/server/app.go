// Package server initializes and runs the main application server.
// It opens the database, runs migrations, selects the storage backend,
// wires the services and HTTP routes, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aivanovs/dataroom/internal/logging"
	"github.com/aivanovs/dataroom/internal/server/config"
	"github.com/aivanovs/dataroom/internal/server/drive"
	"github.com/aivanovs/dataroom/internal/server/httpapi"
	"github.com/aivanovs/dataroom/internal/server/metrics"
	"github.com/aivanovs/dataroom/internal/server/oauth"
	"github.com/aivanovs/dataroom/internal/server/repositories/repomanager"
	"github.com/aivanovs/dataroom/internal/server/services"
	"github.com/aivanovs/dataroom/internal/server/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler http.Handler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	store, err := newObjectStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	oauthCfg := oauth.NewConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, nil)
	flow := oauth.NewFlow(oauthCfg)
	refresher := oauth.NewRefresher(oauthCfg, tokenWriter{db: db, repos: repos}, logger)

	driveClient := drive.NewHTTPClient(cfg.DriveRequestTimeout)

	secretKey := []byte(cfg.SecretKey)
	authService := services.NewAuthService(db, repos, flow, secretKey, cfg.AccessTokenValidityDuration, logger)
	fileService := services.NewFileService(db, repos, driveClient, refresher, store, m, logger)
	importService := services.NewImportService(db, repos, driveClient, refresher, store, m, logger, cfg.ImportMaxBatch)

	handler := httpapi.NewHandler(authService, fileService, importService, secretKey, logger)

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		handler: handler.Router(reg),
	}, nil
}

// tokenWriter adapts the credentials repository to the refresher's
// persistence interface.
type tokenWriter struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func (w tokenWriter) UpdateTokens(ctx context.Context, userID, accessToken string, expiresAt *time.Time) error {
	return w.repos.Credentials(w.db).UpdateTokens(ctx, userID, accessToken, expiresAt)
}

func newObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		return storage.NewS3Store(context.Background(), storage.S3Config{
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	case config.StorageBackendDisk:
		return storage.NewDiskStore(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Run starts the HTTP server and blocks until the context is cancelled, an
// OS signal arrives, or the listener fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.EndpointAddr)

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case <-ctx.Done():
	case <-sigs:
		app.logger.Info(ctx, "Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			app.logger.Error(ctx, err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, err.Error())
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}

	app.logger.Info(ctx, "Server stopped")
}
