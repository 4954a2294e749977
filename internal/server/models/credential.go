package models

import "time"

// DriveCredential holds the delegated Google Drive tokens for one user.
// ExpiresAt is always an absolute UTC instant; every read from storage or
// from the provider passes through oauth.NormalizeExpiry so no naive
// timestamp ever reaches a freshness check.
//
// A credential is created when the user links their Drive account, mutated
// in place whenever a refresh succeeds, and never deleted while the user
// exists.
type DriveCredential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Scopes       []string
	UpdatedAt    time.Time
}
