package oauth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/aivanovs/dataroom/internal/logging"
	"github.com/aivanovs/dataroom/internal/server/models"
)

// StalenessBuffer guards against clock skew and in-flight request latency:
// a token expiring within this window is treated as already stale.
const StalenessBuffer = 60 * time.Second

// TokenWriter persists refreshed tokens. Implemented by the credentials
// repository.
type TokenWriter interface {
	UpdateTokens(ctx context.Context, userID, accessToken string, expiresAt *time.Time) error
}

// Refresher decides whether a credential needs a refresh exchange, performs
// it, and writes the result through. At most one refresh-and-persist runs
// per user at a time; concurrent callers share the in-flight result.
type Refresher struct {
	cfg   *oauth2.Config
	store TokenWriter
	log   logging.Logger
	group singleflight.Group

	// now is a seam for tests.
	now func() time.Time
}

func NewRefresher(cfg *oauth2.Config, store TokenWriter, log logging.Logger) *Refresher {
	return &Refresher{cfg: cfg, store: store, log: log, now: time.Now}
}

// Stale reports whether the credential needs a refresh: expiry absent, or
// within StalenessBuffer of now. The expiry is normalized to UTC on every
// read, never trusted as-is.
func (r *Refresher) Stale(cred *models.DriveCredential) bool {
	exp := NormalizeExpiry(cred.ExpiresAt)
	if exp == nil {
		return true
	}
	return !exp.After(r.now().Add(StalenessBuffer))
}

// EnsureFresh returns a credential whose access token is usable. Fresh
// credentials pass through with zero network calls. Stale ones go through
// the refresh exchange and are persisted.
//
// On failure the original credential is returned alongside the error: the
// caller may still attempt the dependent call with the stale token and
// surface the provider's own auth error, so an unreachable token endpoint
// does not abort unrelated read paths.
func (r *Refresher) EnsureFresh(ctx context.Context, cred *models.DriveCredential) (*models.DriveCredential, error) {
	if !r.Stale(cred) {
		return cred, nil
	}
	if cred.RefreshToken == "" {
		return cred, fmt.Errorf("no refresh token for user %s", cred.UserID)
	}

	v, err, _ := r.group.Do(cred.UserID, func() (any, error) {
		return r.refreshAndPersist(ctx, cred)
	})
	if err != nil {
		r.log.Warn(ctx, "drive token refresh failed", "user_id", cred.UserID, "error", err)
		return cred, err
	}
	return v.(*models.DriveCredential), nil
}

func (r *Refresher) refreshAndPersist(ctx context.Context, cred *models.DriveCredential) (*models.DriveCredential, error) {
	// The seed token carries only the refresh token, forcing the token
	// source to hit the token endpoint instead of second-guessing our
	// staleness decision with its own expiry delta.
	seed := &oauth2.Token{RefreshToken: cred.RefreshToken}

	token, err := r.cfg.TokenSource(ctx, seed).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh exchange: %w", err)
	}

	refreshed := credentialFromToken(cred.UserID, token, cred.Scopes)
	if refreshed.RefreshToken == "" {
		// Google omits the refresh token on plain refreshes; keep ours.
		refreshed.RefreshToken = cred.RefreshToken
	}

	if err := r.store.UpdateTokens(ctx, cred.UserID, refreshed.AccessToken, refreshed.ExpiresAt); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}
	return refreshed, nil
}
