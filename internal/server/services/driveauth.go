package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aivanovs/dataroom/internal/common"
	"github.com/aivanovs/dataroom/internal/logging"
	"github.com/aivanovs/dataroom/internal/server/metrics"
	"github.com/aivanovs/dataroom/internal/server/models"
	"github.com/aivanovs/dataroom/internal/server/oauth"
	"github.com/aivanovs/dataroom/internal/server/repositories/repomanager"
)

// ErrDriveNotLinked signals that the user has no stored Drive credential.
var ErrDriveNotLinked = errors.New("google drive account is not linked")

// driveAuth loads a user's Drive credential and runs it through the
// refresher. Refresh failures degrade to the stale token: the dependent
// provider call is still attempted and surfaces its own auth error.
type driveAuth struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	refresher *oauth.Refresher
	log       logging.Logger
	metrics   *metrics.Metrics
}

func (a *driveAuth) freshCredential(ctx context.Context, userID string) (*models.DriveCredential, error) {
	cred, err := a.repos.Credentials(a.db).Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrDriveNotLinked
		}
		return nil, fmt.Errorf("load drive credential: %w", err)
	}

	refreshed, err := a.refresher.EnsureFresh(ctx, cred)
	switch {
	case err != nil:
		a.metrics.TokenRefreshes.WithLabelValues("failed").Inc()
		a.log.Warn(ctx, "continuing with stale drive token", "user_id", userID, "error", err)
	case refreshed != cred:
		a.metrics.TokenRefreshes.WithLabelValues("refreshed").Inc()
	}
	return refreshed, nil
}
