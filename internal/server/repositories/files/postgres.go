// Package files provides the PostgreSQL-backed local file catalog.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aivanovs/dataroom/internal/common"
	"github.com/aivanovs/dataroom/internal/dbx"
	"github.com/aivanovs/dataroom/internal/server/models"
)

const pgUniqueViolation = "23505"

// PostgresRepository implements the catalog over a dbx.DBTX (*sql.DB or
// *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fileColumns = `id, owner_id, storage_key, drive_file_id, original_name, extension, mime_type, size_bytes, checksum_sha256, status, web_view_link, created_at, deleted_at`

func scanFile(row interface{ Scan(...any) error }) (*models.File, error) {
	f := &models.File{}
	var driveID, extension, mimeType, checksum, viewLink sql.NullString
	var deletedAt sql.NullTime
	err := row.Scan(&f.ID, &f.OwnerID, &f.StorageKey, &driveID, &f.OriginalName,
		&extension, &mimeType, &f.SizeBytes, &checksum, &f.Status, &viewLink,
		&f.CreatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	f.DriveFileID = driveID.String
	f.Extension = extension.String
	f.MimeType = mimeType.String
	f.ChecksumSHA = checksum.String
	f.WebViewLink = viewLink.String
	if deletedAt.Valid {
		t := deletedAt.Time.UTC()
		f.DeletedAt = &t
	}
	return f, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context, ownerID string) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) GetActive(ctx context.Context, id, ownerID string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) FindByDriveID(ctx context.Context, driveFileID string, includeDeleted bool) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE drive_file_id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	f, err := scanFile(r.db.QueryRowContext(ctx, query, driveFileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, file *models.File) error {
	query := `INSERT INTO files
		(id, owner_id, storage_key, drive_file_id, original_name, extension, mime_type, size_bytes, checksum_sha256, status, web_view_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		file.ID, file.OwnerID, file.StorageKey, nullable(file.DriveFileID),
		file.OriginalName, nullable(file.Extension), nullable(file.MimeType),
		file.SizeBytes, nullable(file.ChecksumSHA), file.Status, nullable(file.WebViewLink))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return &common.UniqueConstraintError{Constraint: pgErr.ConstraintName, Detail: pgErr.Detail}
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id, ownerID string) error {
	query := `UPDATE files SET deleted_at = $1
		WHERE id = $2 AND owner_id = $3 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id, ownerID)
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

func (r *PostgresRepository) HardDelete(ctx context.Context, id string) error {
	query := `DELETE FROM files WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
