package repomanager

import (
	"context"
	"database/sql"

	"github.com/aivanovs/dataroom/internal/dbx"
	"github.com/aivanovs/dataroom/internal/server/repositories/credentials"
	"github.com/aivanovs/dataroom/internal/server/repositories/files"
	"github.com/aivanovs/dataroom/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, so
// services can run the same repository code against *sql.DB or inside a
// transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Credentials(db dbx.DBTX) credentials.Repository
	Files(db dbx.DBTX) files.Repository
}
