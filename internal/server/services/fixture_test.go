package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/auth"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/saasgate/internal/server/tenancy"
)

const testPassword = "correct horse"

var (
	testHashOnce sync.Once
	testHash     string
)

// passwordHash is a low-cost hash of testPassword so logins stay fast.
func passwordHash(t *testing.T) *string {
	t.Helper()
	testHashOnce.Do(func() {
		b, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		testHash = string(b)
	})
	h := testHash
	return &h
}

type countingRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func (r *countingRecorder) AuthEvent(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = map[string]int{}
	}
	r.events[name]++
}

func (r *countingRecorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[name]
}

type sentMail struct {
	kind   string
	userID string
	token  string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendVerification(_ context.Context, to *models.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{"verify", to.ID, token})
	return nil
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, to *models.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{"reset", to.ID, token})
	return nil
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type fixture struct {
	clock   *clock.Mock
	mem     *memstore.Store
	store   Storage
	cache   *tenancy.MemoryCache
	rec     *countingRecorder
	mailer  *recordingMailer
	tokens  *TokenService
	auth    *AuthService
	imp     *ImpersonationController
	admin   *TenantAdmin
	handoff *HandoffService

	acme, globex models.Tenant
	customer     models.User
	admin1       models.User
	owner        models.User
	otherOwner   models.User
	foreign      models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	mem := memstore.New(mock)
	store := NewMemoryStorage(repomanager.NewInMemoryRepositoryManager(mem))
	log := logging.NewNop()
	rec := &countingRecorder{}
	audit := NewAudit(log, rec)

	signer, err := auth.NewSigner("test-secret", 15*time.Minute, mock)
	if err != nil {
		t.Fatalf("NewSigner error: %v", err)
	}

	f := &fixture{clock: mock, mem: mem, store: store, rec: rec, mailer: &recordingMailer{}}
	f.cache = tenancy.NewMemoryCache(mock)
	f.tokens = NewTokenService(store, signer, DefaultRefreshTokenTTL, mock, log, audit)
	f.auth = NewAuthService(store, f.tokens, f.mailer, mock, log, audit)
	f.imp = NewImpersonationController(store, f.tokens, log, audit)
	f.admin = NewTenantAdmin(store, f.cache, nil, mock, log, audit)
	f.handoff = NewHandoffService(store, f.tokens, mock, log, audit)
	t.Cleanup(func() {
		f.tokens.Wait()
		f.auth.Wait()
	})

	f.acme = mem.AddTenant(models.Tenant{Slug: "acme", Name: "Acme"}, nil, nil, "acme.example.com", "shop.acme.test")
	f.globex = mem.AddTenant(models.Tenant{Slug: "globex", Name: "Globex"}, nil, nil, "globex.example.com")

	verified := mock.Now()
	acmeID, globexID := f.acme.ID, f.globex.ID
	f.customer = mem.AddUser(models.User{
		TenantID: &acmeID, Email: "jane@acme.test", Name: "Jane", PasswordHash: passwordHash(t),
		Role: models.RoleCustomer, IsActive: true, EmailVerifiedAt: &verified,
	})
	f.admin1 = mem.AddUser(models.User{
		TenantID: &acmeID, Email: "admin@acme.test", PasswordHash: passwordHash(t),
		Role: models.RoleAdmin, IsActive: true,
	})
	f.foreign = mem.AddUser(models.User{
		TenantID: &globexID, Email: "bob@globex.test", PasswordHash: passwordHash(t),
		Role: models.RoleCustomer, IsActive: true, EmailVerifiedAt: &verified,
	})
	f.owner = mem.AddUser(models.User{
		Email: "owner@saasgate.test", PasswordHash: passwordHash(t), Role: models.RoleOwner, IsActive: true,
	})
	f.otherOwner = mem.AddUser(models.User{
		Email: "owner2@saasgate.test", PasswordHash: passwordHash(t), Role: models.RoleOwner, IsActive: true,
	})
	return f
}

func (f *fixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.store.Users().FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID(%s) error: %v", id, err)
	}
	return u
}

func (f *fixture) refreshToken(t *testing.T, token string) *models.RefreshToken {
	t.Helper()
	rt, err := f.store.RefreshTokens().Find(context.Background(), token)
	if err != nil {
		t.Fatalf("Find refresh token error: %v", err)
	}
	return rt
}
