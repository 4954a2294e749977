package httpapi

import (
	"net/http"
	"time"

	"github.com/aivanovs/dataroom/internal/server/models"
)

const stateCookieName = "oauth_state"

type loginResponse struct {
	AuthURL string `json:"auth_url"`
}

type sessionResponse struct {
	AccessToken string   `json:"access_token"`
	User        userBody `json:"user"`
}

type userBody struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// handleGoogleLogin returns the consent URL and pins the state parameter in
// a short-lived cookie so the callback can verify it.
func (h *Handler) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	url, state, err := h.auth.LoginURL()
	if err != nil {
		h.log.Error(r.Context(), "failed to build consent url", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start login")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/auth/google",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, loginResponse{AuthURL: url})
}

// handleGoogleCallback finishes the OAuth flow and returns a session token.
func (h *Handler) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, "missing state or code")
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value != state {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	token, user, err := h.auth.Complete(r.Context(), code)
	if err != nil {
		h.log.Error(r.Context(), "google login failed", "error", err)
		writeError(w, http.StatusBadGateway, "google login failed")
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:    stateCookieName,
		Value:   "",
		Path:    "/api/auth/google",
		Expires: time.Unix(0, 0),
	})

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: token,
		User:        toUserBody(user),
	})
}

func toUserBody(u *models.User) userBody {
	return userBody{ID: u.ID, Email: u.Email, Name: u.Name}
}
