package services

import (
	"database/sql"

	"github.com/dmitrijs2005/saasgate/internal/dbx"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/handoffcodes"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/tenants"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/users"
)

// Storage is the persistence handle shared by services: a default DBTX, a
// transaction runner and the repository factory.
type Storage struct {
	DB    dbx.DBTX
	Tx    dbx.TxRunner
	Repos repomanager.RepositoryManager
}

func NewSQLStorage(db *sql.DB, repos repomanager.RepositoryManager) Storage {
	return Storage{DB: db, Tx: dbx.SQLRunner{DB: db}, Repos: repos}
}

// NewMemoryStorage pairs in-memory repositories with dbx.DirectRunner.
func NewMemoryStorage(repos repomanager.RepositoryManager) Storage {
	return Storage{Tx: dbx.DirectRunner{}, Repos: repos}
}

func (s Storage) Tenants() tenants.Repository {
	return s.Repos.Tenants(s.DB)
}

func (s Storage) Users() users.Repository {
	return s.Repos.Users(s.DB)
}

func (s Storage) RefreshTokens() refreshtokens.Repository {
	return s.Repos.RefreshTokens(s.DB)
}

func (s Storage) HandoffCodes() handoffcodes.Repository {
	return s.Repos.HandoffCodes(s.DB)
}
