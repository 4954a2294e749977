// Package credentials provides the PostgreSQL-backed credential store for
// delegated Drive tokens.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aivanovs/dataroom/internal/common"
	"github.com/aivanovs/dataroom/internal/dbx"
	"github.com/aivanovs/dataroom/internal/server/models"
	"github.com/aivanovs/dataroom/internal/server/oauth"
)

// PostgresRepository implements the credential store over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get reads the credential row. The expiry passes through the UTC
// normalization boundary so callers never see a naive timestamp.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.DriveCredential, error) {
	query := `SELECT user_id, access_token, refresh_token, expires_at, scopes, updated_at
		FROM drive_credentials
		WHERE user_id = $1`

	cred := &models.DriveCredential{}
	var refreshToken sql.NullString
	var expiresAt sql.NullTime
	var scopes sql.NullString

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cred.UserID, &cred.AccessToken, &refreshToken, &expiresAt, &scopes, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	cred.RefreshToken = refreshToken.String
	if expiresAt.Valid {
		cred.ExpiresAt = oauth.NormalizeExpiry(&expiresAt.Time)
	}
	if scopes.Valid && scopes.String != "" {
		cred.Scopes = strings.Split(scopes.String, " ")
	}
	return cred, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, cred *models.DriveCredential) error {
	query := `INSERT INTO drive_credentials (user_id, access_token, refresh_token, expires_at, scopes, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id)
		DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), drive_credentials.refresh_token),
			expires_at = EXCLUDED.expires_at,
			scopes = EXCLUDED.scopes,
			updated_at = now()`

	_, err := r.db.ExecContext(ctx, query,
		cred.UserID, cred.AccessToken, cred.RefreshToken,
		expiryArg(cred.ExpiresAt), strings.Join(cred.Scopes, " "))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateTokens(ctx context.Context, userID, accessToken string, expiresAt *time.Time) error {
	query := `UPDATE drive_credentials
		SET access_token = $1, expires_at = $2, updated_at = now()
		WHERE user_id = $3`

	res, err := r.db.ExecContext(ctx, query, accessToken, expiryArg(expiresAt), userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func expiryArg(t *time.Time) sql.NullTime {
	normalized := oauth.NormalizeExpiry(t)
	if normalized == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *normalized, Valid: true}
}
