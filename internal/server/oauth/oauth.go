// Package oauth maintains delegated Google Drive credentials: the
// authorization-code flow that creates them and the refresher that keeps
// them fresh.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/aivanovs/dataroom/internal/server/models"
)

// DefaultScopes is the Drive access requested when linking an account.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/drive.file",
}

// NewConfig builds the oauth2 configuration for the Google endpoint.
func NewConfig(clientID, clientSecret, redirectURL string, scopes []string) *oauth2.Config {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// Flow drives the authorization-code exchange for linking a Drive account.
type Flow struct {
	cfg *oauth2.Config
}

func NewFlow(cfg *oauth2.Config) *Flow {
	return &Flow{cfg: cfg}
}

// AuthURL returns the consent URL and the random state parameter baked into
// it. Offline access is requested so Google issues a refresh token; the
// consent prompt is forced because Google omits the refresh token on
// subsequent silent approvals.
func (f *Flow) AuthURL() (authURL, state string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}
	state = base64.URLEncoding.EncodeToString(raw)

	authURL = f.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
	)
	return authURL, state, nil
}

// Exchange trades an authorization code for a credential with a normalized
// UTC expiry.
func (f *Flow) Exchange(ctx context.Context, userID, code string) (*models.DriveCredential, error) {
	token, err := f.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}
	return credentialFromToken(userID, token, f.cfg.Scopes), nil
}

// NormalizeExpiry converts a timestamp to an absolute UTC instant. A nil or
// zero timestamp stays absent (nil) so freshness checks treat it as stale
// rather than inventing an expiry from wall-clock assumptions.
func NormalizeExpiry(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func credentialFromToken(userID string, token *oauth2.Token, scopes []string) *models.DriveCredential {
	cred := &models.DriveCredential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scopes:       scopes,
	}
	if !token.Expiry.IsZero() {
		cred.ExpiresAt = NormalizeExpiry(&token.Expiry)
	}
	return cred
}
