package memstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/handoffcodes"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/tenants"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/users"
)

var (
	_ tenants.Repository       = (*Tenants)(nil)
	_ users.Repository         = (*Users)(nil)
	_ refreshtokens.Repository = (*RefreshTokens)(nil)
	_ handoffcodes.Repository  = (*HandoffCodes)(nil)
)

func TestTenants_SnapshotDefaultsAndDomains(t *testing.T) {
	ctx := context.Background()
	s := New(clock.NewMock())
	tn := s.AddTenant(models.Tenant{Slug: "acme", Name: "Acme"}, nil, nil, "acme.com", "shop.acme.com")

	snap, err := s.Tenants().FindByDomain(ctx, "shop.acme.com")
	require.NoError(t, err)
	assert.Equal(t, tn.ID, snap.ID)
	assert.Nil(t, snap.Config)
	assert.Equal(t, models.DefaultTenantFeatures(), snap.Features)

	domains, err := s.Tenants().ListDomains(ctx, tn.ID)
	require.NoError(t, err)
	require.Len(t, domains, 2)
	assert.Equal(t, "acme.com", domains[0].Domain)
	assert.True(t, domains[0].IsPrimary)

	require.NoError(t, s.Tenants().AddDomain(ctx, tn.ID, "new.acme.com", true))
	domains, _ = s.Tenants().ListDomains(ctx, tn.ID)
	assert.Equal(t, "new.acme.com", domains[0].Domain)
	assert.False(t, domains[1].IsPrimary)

	assert.ErrorIs(t, s.Tenants().AddDomain(ctx, tn.ID, "acme.com", false), common.ErrDomainTaken)

	owner, err := s.Tenants().RemoveDomain(ctx, "acme.com")
	require.NoError(t, err)
	assert.Equal(t, tn.ID, owner)
	_, err = s.Tenants().FindByDomain(ctx, "acme.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestTenants_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	tn := s.AddTenant(models.Tenant{Slug: "a"}, nil, nil)

	require.NoError(t, s.Tenants().UpdateStatus(ctx, tn.ID, models.TenantSuspended, time.Now()))
	snap, err := s.Tenants().FindByID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TenantSuspended, snap.Status)

	assert.ErrorIs(t, s.Tenants().UpdateStatus(ctx, "missing", models.TenantActive, time.Now()), common.ErrorNotFound)
}

func TestUsers_EmailUniquePerTenant(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	a, b := "tenant-a", "tenant-b"

	_, err := s.Users().Create(ctx, &models.User{TenantID: &a, Email: "x@y.z", Role: models.RoleCustomer})
	require.NoError(t, err)
	_, err = s.Users().Create(ctx, &models.User{TenantID: &b, Email: "x@y.z", Role: models.RoleCustomer})
	require.NoError(t, err)
	_, err = s.Users().Create(ctx, &models.User{TenantID: &a, Email: "x@y.z", Role: models.RoleCustomer})
	assert.ErrorIs(t, err, common.ErrEmailTaken)

	u, err := s.Users().FindByEmail(ctx, b, "x@y.z")
	require.NoError(t, err)
	assert.Equal(t, b, u.TenantIDOrEmpty())

	_, err = s.Users().FindOwnerByEmail(ctx, "x@y.z")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUsers_UpdatePasswordClearsReset(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	u := s.AddUser(models.User{Email: "a@b.c", Role: models.RoleCustomer, IsActive: true})

	require.NoError(t, s.Users().SetResetToken(ctx, u.ID, "rt", time.Now().Add(time.Hour)))
	found, err := s.Users().FindByResetToken(ctx, "rt")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	require.NoError(t, s.Users().UpdatePassword(ctx, u.ID, "hash"))
	_, err = s.Users().FindByResetToken(ctx, "rt")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.ErrorIs(t, s.Users().SetActive(ctx, "nope", false), common.ErrorNotFound)
}

func TestRefreshTokens_ConcurrentRevokeHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	repo := s.RefreshTokens()
	require.NoError(t, repo.Create(ctx, "u1", "tok", time.Now().Add(time.Hour)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Revoke(ctx, "tok", time.Now())
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRefreshTokens_RevokeAllAndPurge(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	s := New(mock)
	repo := s.RefreshTokens()

	require.NoError(t, repo.Create(ctx, "u1", "a", mock.Now().Add(time.Hour)))
	require.NoError(t, repo.Create(ctx, "u1", "b", mock.Now().Add(-time.Hour)))
	require.NoError(t, repo.Create(ctx, "u2", "c", mock.Now().Add(time.Hour)))

	n, err := repo.RevokeAllForUser(ctx, "u1", mock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	tok, err := repo.Find(ctx, "c")
	require.NoError(t, err)
	assert.False(t, tok.Revoked())

	n, err = repo.DeleteExpired(ctx, mock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestHandoffCodes_MarkUsedOnce(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	s := New(mock)
	repo := s.HandoffCodes()

	require.NoError(t, repo.Create(ctx, &models.HandoffCode{Code: "c", UserID: "u", TenantID: "t", ExpiresAt: mock.Now().Add(time.Minute)}))

	ok, err := repo.MarkUsed(ctx, "c", mock.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkUsed(ctx, "c", mock.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Create(ctx, &models.HandoffCode{Code: "late", ExpiresAt: mock.Now().Add(time.Minute)}))
	ok, _ = repo.MarkUsed(ctx, "late", mock.Now().Add(time.Minute))
	assert.False(t, ok)
}
