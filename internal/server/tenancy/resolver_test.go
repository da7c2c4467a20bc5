package tenancy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/memstore"
)

// countingDir wraps a Directory and counts lookups.
type countingDir struct {
	Directory
	byDomain atomic.Int32
	byID     atomic.Int32
}

func (d *countingDir) FindByDomain(ctx context.Context, domain string) (*models.TenantSnapshot, error) {
	d.byDomain.Add(1)
	return d.Directory.FindByDomain(ctx, domain)
}

func (d *countingDir) FindByID(ctx context.Context, id string) (*models.TenantSnapshot, error) {
	d.byID.Add(1)
	return d.Directory.FindByID(ctx, id)
}

type failingDir struct{}

func (failingDir) FindByDomain(context.Context, string) (*models.TenantSnapshot, error) {
	return nil, errors.New("connection refused")
}

func (failingDir) FindByID(context.Context, string) (*models.TenantSnapshot, error) {
	return nil, errors.New("connection refused")
}

type recordingObserver struct {
	mu       sync.Mutex
	hits     int
	misses   int
	outcomes map[string]int
}

func (o *recordingObserver) CacheLookup(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func (o *recordingObserver) Resolved(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

type fixture struct {
	store    *memstore.Store
	dir      *countingDir
	cache    *MemoryCache
	resolver *Resolver
	clock    *clock.Mock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mock := clock.NewMock()
	store := memstore.New(mock)
	dir := &countingDir{Directory: store.Tenants()}
	cache := NewMemoryCache(mock)
	return &fixture{
		store:    store,
		dir:      dir,
		cache:    cache,
		resolver: NewResolver(dir, cache, logging.NewNop(), opts...),
		clock:    mock,
	}
}

func TestResolve_NormalizesHost(t *testing.T) {
	f := newFixture(t)
	t1 := f.store.AddTenant(models.Tenant{Slug: "t1", Status: models.TenantActive}, nil, nil, "shop.example.com")

	snap, err := f.resolver.Resolve(context.Background(), Signals{Path: "/api/products", Host: "SHOP.EXAMPLE.COM:8443"})
	require.NoError(t, err)
	assert.Equal(t, t1.ID, snap.ID)
}

func TestResolve_ForwardedHostWins(t *testing.T) {
	f := newFixture(t)
	t1 := f.store.AddTenant(models.Tenant{Slug: "t1"}, nil, nil, "tenant.com")
	f.store.AddTenant(models.Tenant{Slug: "proxy"}, nil, nil, "proxy.internal")

	snap, err := f.resolver.Resolve(context.Background(), Signals{Path: "/", ForwardedHost: "www.tenant.com", Host: "proxy.internal"})
	require.NoError(t, err)
	assert.Equal(t, t1.ID, snap.ID)
}

func TestResolve_Rejections(t *testing.T) {
	f := newFixture(t)
	f.store.AddTenant(models.Tenant{Slug: "s", Status: models.TenantSuspended}, nil, nil, "suspended.com")
	f.store.AddTenant(models.Tenant{Slug: "d", Status: models.TenantDraft}, nil, nil, "draft.com")
	f.store.AddTenant(models.Tenant{Slug: "a", Status: models.TenantArchived}, nil, nil, "archived.com")
	f.store.AddTenant(models.Tenant{Slug: "x", Status: models.TenantSeeding}, nil, nil, "seeding.com")

	tests := []struct {
		host string
		want error
	}{
		{"suspended.com", common.ErrTenantSuspended},
		{"draft.com", common.ErrTenantUnavailable},
		{"archived.com", common.ErrTenantUnavailable},
		{"seeding.com", common.ErrTenantUnavailable},
		{"unknown.com", common.ErrTenantNotFound},
		{"", common.ErrMalformedHost},
		{":443", common.ErrMalformedHost},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			snap, err := f.resolver.Resolve(context.Background(), Signals{Path: "/", Host: tt.host})
			assert.Nil(t, snap)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, f.cache.Len(), "inactive and unknown tenants are not cached")
}

func TestResolve_SkipListNeedsNoTenant(t *testing.T) {
	f := newFixture(t)

	for _, p := range []string{"/api/owner/impersonate", "/health", "/api/auth/owner-login", "/api/auth/google/callback", "/metrics"} {
		snap, err := f.resolver.Resolve(context.Background(), Signals{Path: p})
		assert.NoError(t, err, p)
		assert.Nil(t, snap, p)
	}
	assert.Zero(t, f.dir.byDomain.Load())

	_, err := f.resolver.Resolve(context.Background(), Signals{Path: "/api/auth/google"})
	assert.ErrorIs(t, err, common.ErrMalformedHost, "google sign-in start is tenant scoped")
}

func TestResolve_CachesActiveTenant(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t, WithObserver(obs))
	f.store.AddTenant(models.Tenant{Slug: "t1"}, nil, nil, "t1.com")

	for i := 0; i < 3; i++ {
		_, err := f.resolver.Resolve(context.Background(), Signals{Path: "/", Host: "t1.com"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.dir.byDomain.Load())
	assert.Equal(t, 2, obs.hits)
	assert.Equal(t, 1, obs.misses)
	assert.Equal(t, 3, obs.outcomes[OutcomeResolved])

	f.clock.Add(DefaultCacheTTL)
	_, err := f.resolver.Resolve(context.Background(), Signals{Path: "/", Host: "t1.com"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.dir.byDomain.Load(), "expired entry is reloaded")
}

func TestResolve_SuspendThenResolveWithinTTL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	t1 := f.store.AddTenant(models.Tenant{Slug: "t1"}, nil, nil, "t1.com")

	_, err := f.resolver.Resolve(ctx, Signals{Path: "/", Host: "t1.com"})
	require.NoError(t, err)

	require.NoError(t, f.store.Tenants().UpdateStatus(ctx, t1.ID, models.TenantSuspended, f.clock.Now()))
	require.NoError(t, f.cache.Invalidate(ctx, IDKey(t1.ID), "t1.com"))

	f.clock.Add(DefaultCacheTTL / 2)
	_, err = f.resolver.Resolve(ctx, Signals{Path: "/", Host: "t1.com"})
	assert.ErrorIs(t, err, common.ErrTenantSuspended)
}

func TestResolve_CachedInactiveIsRejectedAndDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.cache.Put(ctx, "t1.com", &models.TenantSnapshot{ID: "t1", Status: models.TenantSuspended}, DefaultCacheTTL))

	_, err := f.resolver.Resolve(ctx, Signals{Path: "/", Host: "t1.com"})
	assert.ErrorIs(t, err, common.ErrTenantSuspended)
	assert.Equal(t, 0, f.cache.Len())
	assert.Zero(t, f.dir.byDomain.Load())
}

func TestResolve_StorageFailureIsNotNotFound(t *testing.T) {
	obs := &recordingObserver{}
	cache := NewMemoryCache(clock.NewMock())
	r := NewResolver(failingDir{}, cache, logging.NewNop(), WithObserver(obs))

	snap, err := r.Resolve(context.Background(), Signals{Path: "/", Host: "t1.com"})
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.NotErrorIs(t, err, common.ErrTenantNotFound)
	assert.Equal(t, 1, obs.outcomes[OutcomeError])
	assert.Equal(t, 0, cache.Len())

	// A storage failure behind the id hint must not fall through to the host.
	_, err = r.Resolve(context.Background(), Signals{Path: "/", TenantIDHint: uuid.NewString(), Host: "t1.com"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrTenantNotFound)
}

func TestResolve_TenantIDHint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	t1 := f.store.AddTenant(models.Tenant{Slug: "t1"}, nil, nil, "t1.com")
	t2 := f.store.AddTenant(models.Tenant{Slug: "t2"}, nil, nil, "t2.com")

	snap, err := f.resolver.Resolve(ctx, Signals{Path: "/", TenantIDHint: t2.ID, Host: "t1.com"})
	require.NoError(t, err)
	assert.Equal(t, t2.ID, snap.ID, "id hint takes precedence over host")

	_, ok := f.cache.Get(ctx, IDKey(t2.ID))
	assert.True(t, ok)

	snap, err = f.resolver.Resolve(ctx, Signals{Path: "/", TenantIDHint: uuid.NewString(), Host: "t1.com"})
	require.NoError(t, err)
	assert.Equal(t, t1.ID, snap.ID, "unknown id falls back to host")

	before := f.dir.byID.Load()
	snap, err = f.resolver.Resolve(ctx, Signals{Path: "/", TenantIDHint: "not-a-uuid", Host: "t1.com"})
	require.NoError(t, err)
	assert.Equal(t, t1.ID, snap.ID)
	assert.Equal(t, before, f.dir.byID.Load(), "malformed id is not looked up")
}

func TestResolve_TenantIDHintInactiveRejects(t *testing.T) {
	f := newFixture(t)
	s := f.store.AddTenant(models.Tenant{Slug: "s", Status: models.TenantSuspended}, nil, nil, "s.com")
	f.store.AddTenant(models.Tenant{Slug: "ok"}, nil, nil, "ok.com")

	_, err := f.resolver.Resolve(context.Background(), Signals{Path: "/", TenantIDHint: s.ID, Host: "ok.com"})
	assert.ErrorIs(t, err, common.ErrTenantSuspended)
}

func TestResolve_DefaultFeaturesWhenRowMissing(t *testing.T) {
	f := newFixture(t)
	f.store.AddTenant(models.Tenant{Slug: "plain"}, nil, nil, "plain.com")
	custom := models.TenantFeatures{Bookings: true}
	f.store.AddTenant(models.Tenant{Slug: "custom"}, nil, &custom, "custom.com")

	snap, err := f.resolver.Resolve(context.Background(), Signals{Path: "/", Host: "plain.com"})
	require.NoError(t, err)
	assert.Equal(t, models.TenantFeatures{
		Catalog:   true,
		Pricing:   true,
		Bookings:  false,
		Ecommerce: false,
		Support:   false,
		Invoicing: false,
		CMS:       true,
		Marketing: false,
		Reviews:   false,
		Analytics: true,
		AI:        false,
	}, snap.Features)

	snap, err = f.resolver.Resolve(context.Background(), Signals{Path: "/", Host: "custom.com"})
	require.NoError(t, err)
	assert.Equal(t, custom, snap.Features)
}

func TestResolve_ConcurrentTenantsStayIsolated(t *testing.T) {
	f := newFixture(t)
	a := f.store.AddTenant(models.Tenant{Slug: "a"}, nil, nil, "a.com")
	b := f.store.AddTenant(models.Tenant{Slug: "b"}, nil, nil, "b.com")
	want := map[string]string{"a.com": a.ID, "b.com": b.ID}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		host := "a.com"
		if i%2 == 1 {
			host = "b.com"
		}
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			ctx := context.Background()
			snap, err := f.resolver.Resolve(ctx, Signals{Path: "/", Host: host})
			if err != nil {
				t.Errorf("%s: %v", host, err)
				return
			}
			ctx = WithTenant(ctx, snap)
			if got := TenantID(ctx); got != want[host] {
				t.Errorf("%s resolved to %s, want %s", host, got, want[host])
			}
		}(host)
	}
	wg.Wait()
}

// gatedDir parks the first FindByDomain after it has read the row, until
// release is closed.
type gatedDir struct {
	Directory
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (d *gatedDir) FindByDomain(ctx context.Context, domain string) (*models.TenantSnapshot, error) {
	snap, err := d.Directory.FindByDomain(ctx, domain)
	d.once.Do(func() {
		close(d.loaded)
		<-d.release
	})
	return snap, err
}

func TestResolve_FillRacingSuspendIsNotCached(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	store := memstore.New(mock)
	cache := NewMemoryCache(mock)
	dir := &gatedDir{Directory: store.Tenants(), loaded: make(chan struct{}), release: make(chan struct{})}
	r := NewResolver(dir, cache, logging.NewNop())
	t1 := store.AddTenant(models.Tenant{Slug: "t1", Status: models.TenantActive}, nil, nil, "t1.com")

	errc := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, Signals{Path: "/", Host: "t1.com"})
		errc <- err
	}()

	<-dir.loaded
	require.NoError(t, store.Tenants().UpdateStatus(ctx, t1.ID, models.TenantSuspended, mock.Now()))
	require.NoError(t, cache.Invalidate(ctx, IDKey(t1.ID), "t1.com"))
	require.NoError(t, cache.InvalidateTenant(ctx, t1.ID))
	close(dir.release)

	assert.ErrorIs(t, <-errc, common.ErrTenantSuspended, "the fenced fill reloads")
	assert.Equal(t, 0, cache.Len())

	_, err := r.Resolve(ctx, Signals{Path: "/", Host: "t1.com"})
	assert.ErrorIs(t, err, common.ErrTenantSuspended)
}
