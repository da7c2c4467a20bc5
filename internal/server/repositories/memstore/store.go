// Package memstore keeps every repository in process memory. It backs the
// "memory" storage mode used for local development and for service tests.
package memstore

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

// Store holds all records behind one mutex, so each repository call is
// atomic the way a single SQL statement is.
type Store struct {
	mu    sync.Mutex
	clock clock.Clock

	tenants  map[string]models.Tenant
	configs  map[string]models.TenantConfig
	features map[string]models.TenantFeatures
	domains  map[string]models.TenantDomain
	users    map[string]models.User
	refresh  map[string]models.RefreshToken
	handoffs map[string]models.HandoffCode
}

func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{
		clock:    clk,
		tenants:  map[string]models.Tenant{},
		configs:  map[string]models.TenantConfig{},
		features: map[string]models.TenantFeatures{},
		domains:  map[string]models.TenantDomain{},
		users:    map[string]models.User{},
		refresh:  map[string]models.RefreshToken{},
		handoffs: map[string]models.HandoffCode{},
	}
}

func (s *Store) Tenants() *Tenants             { return &Tenants{s: s} }
func (s *Store) Users() *Users                 { return &Users{s: s} }
func (s *Store) RefreshTokens() *RefreshTokens { return &RefreshTokens{s: s} }
func (s *Store) HandoffCodes() *HandoffCodes   { return &HandoffCodes{s: s} }

// AddTenant seeds a tenant with optional config and features and claims the
// given domains, the first one as primary. A missing ID is generated.
func (s *Store) AddTenant(t models.Tenant, cfg *models.TenantConfig, features *models.TenantFeatures, domains ...string) models.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.TenantActive
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.clock.Now()
	}
	s.tenants[t.ID] = t
	if cfg != nil {
		s.configs[t.ID] = *cfg
	}
	if features != nil {
		s.features[t.ID] = *features
	}
	for i, d := range domains {
		s.domains[d] = models.TenantDomain{Domain: d, TenantID: t.ID, IsPrimary: i == 0, CreatedAt: s.clock.Now()}
	}
	return t
}

// AddUser seeds a user as is, bypassing uniqueness checks.
func (s *Store) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.clock.Now()
	}
	s.users[u.ID] = u
	return u
}
