package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivanovs/dataroom/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestGetByID(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		created := time.Now().UTC()

		rows := sqlmock.NewRows([]string{"id", "email", "name", "created_at"}).
			AddRow("u1", "a@example.com", "Alice", created)
		mock.ExpectQuery(`(?s)^SELECT id, email, name, created_at FROM users WHERE id = \$1$`).
			WithArgs("u1").WillReturnRows(rows)

		user, err := repo.GetByID(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, "a@example.com", user.Email)
		assert.Equal(t, "Alice", user.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)

		mock.ExpectQuery(`^SELECT id, email, name, created_at FROM users`).
			WithArgs("missing").WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "created_at"}))

		_, err := repo.GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestUpsertByEmail(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		created := time.Now().UTC()

		rows := sqlmock.NewRows([]string{"id", "email", "name", "created_at"}).
			AddRow("u1", "a@example.com", "Alice Renamed", created)
		mock.ExpectQuery(`(?s)^INSERT INTO users \(email, name\).*ON CONFLICT \(email\).*RETURNING id, email, name, created_at$`).
			WithArgs("a@example.com", "Alice Renamed").WillReturnRows(rows)

		user, err := repo.UpsertByEmail(context.Background(), "a@example.com", "Alice Renamed")
		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, "Alice Renamed", user.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)

		mock.ExpectQuery(`^INSERT INTO users`).
			WithArgs("a@example.com", "Alice").WillReturnError(errors.New("connection reset"))

		_, err := repo.UpsertByEmail(context.Background(), "a@example.com", "Alice")
		assert.ErrorContains(t, err, "db error")
	})
}
