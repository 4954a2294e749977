package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aivanovs/dataroom/internal/logging"
	"github.com/aivanovs/dataroom/internal/server/auth"
	"github.com/aivanovs/dataroom/internal/server/models"
	"github.com/aivanovs/dataroom/internal/server/oauth"
	"github.com/aivanovs/dataroom/internal/server/repositories/repomanager"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// AuthService completes the Google OAuth flow: it exchanges the
// authorization code, resolves the user's identity, stores the Drive
// credential, and mints an app session token.
type AuthService struct {
	db            *sql.DB
	repos         repomanager.RepositoryManager
	flow          *oauth.Flow
	secretKey     []byte
	tokenValidity time.Duration
	userInfoURL   string
	httpClient    *http.Client
	log           logging.Logger
}

func NewAuthService(db *sql.DB, repos repomanager.RepositoryManager, flow *oauth.Flow,
	secretKey []byte, tokenValidity time.Duration, log logging.Logger) *AuthService {
	return &AuthService{
		db:            db,
		repos:         repos,
		flow:          flow,
		secretKey:     secretKey,
		tokenValidity: tokenValidity,
		userInfoURL:   defaultUserInfoURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		log:           log,
	}
}

// LoginURL returns the Google consent URL and the state parameter the
// callback must echo.
func (s *AuthService) LoginURL() (string, string, error) {
	return s.flow.AuthURL()
}

// Complete finishes the flow for an authorization code: the resulting
// credential is persisted and an app JWT for the (possibly new) user is
// returned.
func (s *AuthService) Complete(ctx context.Context, code string) (string, *models.User, error) {
	cred, err := s.flow.Exchange(ctx, "", code)
	if err != nil {
		return "", nil, err
	}

	info, err := s.fetchUserInfo(ctx, cred.AccessToken)
	if err != nil {
		return "", nil, err
	}

	user, err := s.repos.Users(s.db).UpsertByEmail(ctx, info.Email, info.Name)
	if err != nil {
		return "", nil, fmt.Errorf("upsert user: %w", err)
	}

	cred.UserID = user.ID
	if err := s.repos.Credentials(s.db).Upsert(ctx, cred); err != nil {
		return "", nil, fmt.Errorf("store drive credential: %w", err)
	}

	token, err := auth.GenerateToken(user.ID, s.secretKey, s.tokenValidity)
	if err != nil {
		return "", nil, fmt.Errorf("mint session token: %w", err)
	}
	return token, user, nil
}

type userInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *AuthService) fetchUserInfo(ctx context.Context, accessToken string) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	info := &userInfo{}
	if err := json.NewDecoder(resp.Body).Decode(info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("userinfo response missing email")
	}
	return info, nil
}
