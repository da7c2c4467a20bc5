package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/saasgate/internal/dbx"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/handoffcodes"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/tenants"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same constructors inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Tenants(db dbx.DBTX) tenants.Repository
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	HandoffCodes(db dbx.DBTX) handoffcodes.Repository
}
