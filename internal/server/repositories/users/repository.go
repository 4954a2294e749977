package users

import (
	"context"

	"github.com/aivanovs/dataroom/internal/server/models"
)

type Repository interface {
	// GetByID returns the user or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// UpsertByEmail creates the user on first OAuth login and returns the
	// stored row either way.
	UpsertByEmail(ctx context.Context, email, name string) (*models.User, error)
}
