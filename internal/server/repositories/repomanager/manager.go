// Package repomanager hands out repositories bound to a *sql.DB or *sql.Tx,
// so services can run several repositories inside one transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dpavlenko/stayhub/internal/dbx"
	"github.com/dpavlenko/stayhub/internal/server/repositories/listings"
	"github.com/dpavlenko/stayhub/internal/server/repositories/refreshtokens"
	"github.com/dpavlenko/stayhub/internal/server/repositories/users"
)

// RepositoryManager is the factory for all server-side repositories.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Listings(db dbx.DBTX) listings.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
