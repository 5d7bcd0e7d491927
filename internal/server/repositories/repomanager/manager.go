package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pollkeeper/internal/dbx"
	"github.com/dmitrijs2005/pollkeeper/internal/server/repositories/polls"
	"github.com/dmitrijs2005/pollkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/pollkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/pollkeeper/internal/server/repositories/votes"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Polls(db dbx.DBTX) polls.Repository
	Votes(db dbx.DBTX) votes.Repository
}
