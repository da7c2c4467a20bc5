package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/saasgate/internal/dbx"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/handoffcodes"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/tenants"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/users"
)

// InMemoryRepositoryManager serves every repository from one memstore.Store.
// The DBTX argument is ignored; pair it with dbx.DirectRunner.
type InMemoryRepositoryManager struct {
	store *memstore.Store
}

func NewInMemoryRepositoryManager(store *memstore.Store) *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{store: store}
}

func (m *InMemoryRepositoryManager) Store() *memstore.Store {
	return m.store
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Tenants(dbx.DBTX) tenants.Repository {
	return m.store.Tenants()
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return m.store.Users()
}

func (m *InMemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.store.RefreshTokens()
}

func (m *InMemoryRepositoryManager) HandoffCodes(dbx.DBTX) handoffcodes.Repository {
	return m.store.HandoffCodes()
}
