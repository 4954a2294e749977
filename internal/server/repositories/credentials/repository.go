package credentials

import (
	"context"
	"time"

	"github.com/aivanovs/dataroom/internal/server/models"
)

// Repository is the credential store: one row of delegated Drive tokens per
// user.
type Repository interface {
	// Get returns the user's credential or common.ErrorNotFound.
	Get(ctx context.Context, userID string) (*models.DriveCredential, error)

	// Upsert creates or fully replaces the user's credential. Used when the
	// OAuth flow completes.
	Upsert(ctx context.Context, cred *models.DriveCredential) error

	// UpdateTokens overwrites the access token and expiry in place after a
	// successful refresh, leaving the refresh token and scopes untouched.
	UpdateTokens(ctx context.Context, userID, accessToken string, expiresAt *time.Time) error
}
