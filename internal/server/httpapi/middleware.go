package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/aivanovs/dataroom/internal/common"
	"github.com/aivanovs/dataroom/internal/server/auth"
)

type contextKey string

const contextKeyUserID contextKey = "user_id"

// requireAuth validates the Bearer session token and stores the user id in
// the request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := auth.GetUserIDFromToken(parts[1], h.secretKey)
		if err != nil {
			if err == common.ErrTokenExpired {
				writeError(w, http.StatusUnauthorized, "token expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userIDFromContext returns the authenticated user id, or "" when the
// middleware did not run.
func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyUserID).(string)
	return id
}
