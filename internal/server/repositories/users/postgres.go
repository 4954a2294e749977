// Package users provides the PostgreSQL-backed principal store.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aivanovs/dataroom/internal/common"
	"github.com/aivanovs/dataroom/internal/dbx"
	"github.com/aivanovs/dataroom/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, email, name, created_at FROM users WHERE id = $1`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) UpsertByEmail(ctx context.Context, email, name string) (*models.User, error) {
	query := `INSERT INTO users (email, name)
		VALUES ($1, $2)
		ON CONFLICT (email)
		DO UPDATE SET name = EXCLUDED.name
		RETURNING id, email, name, created_at`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, email, name).Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
