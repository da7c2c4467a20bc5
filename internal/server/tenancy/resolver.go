package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

// DefaultSkips are platform-level path prefixes that never need a tenant.
var DefaultSkips = []string{
	"/api/owner",
	"/owner",
	"/api/auth/owner-login",
	"/auth/owner-login",
	"/api/auth/google/callback",
	"/auth/google/callback",
	"/api/webhooks",
	"/webhooks",
	"/health",
	"/metrics",
}

// Resolution outcomes reported to the Observer.
const (
	OutcomeSkipped     = "skipped"
	OutcomeResolved    = "resolved"
	OutcomeMalformed   = "malformed_host"
	OutcomeNotFound    = "not_found"
	OutcomeSuspended   = "suspended"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Directory is the read side of the tenant repository the resolver needs.
type Directory interface {
	FindByDomain(ctx context.Context, domain string) (*models.TenantSnapshot, error)
	FindByID(ctx context.Context, tenantID string) (*models.TenantSnapshot, error)
}

type Observer interface {
	CacheLookup(hit bool)
	Resolved(outcome string)
}

type nopObserver struct{}

func (nopObserver) CacheLookup(bool) {}
func (nopObserver) Resolved(string)  {}

// Signals carries the request attributes resolution looks at, independent
// of transport.
type Signals struct {
	Path          string
	TenantIDHint  string
	ForwardedHost string
	Host          string
}

type Resolver struct {
	dir      Directory
	cache    Cache
	ttl      time.Duration
	skips    []string
	log      logging.Logger
	observer Observer
	group    singleflight.Group
}

type Option func(*Resolver)

func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

func WithSkips(prefixes ...string) Option {
	return func(r *Resolver) { r.skips = prefixes }
}

func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

func NewResolver(dir Directory, cache Cache, log logging.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		dir:      dir,
		cache:    cache,
		ttl:      DefaultCacheTTL,
		skips:    DefaultSkips,
		log:      log.With("module", "tenancy"),
		observer: nopObserver{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Skipped reports whether path is exempt from tenant resolution.
func (r *Resolver) Skipped(path string) bool {
	for _, p := range r.skips {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Resolve returns the ACTIVE tenant the request belongs to, or nil, nil for
// skip-listed paths. Rejections are common.ErrMalformedHost,
// common.ErrTenantNotFound, common.ErrTenantSuspended and
// common.ErrTenantUnavailable; anything else is a storage failure.
func (r *Resolver) Resolve(ctx context.Context, sig Signals) (*models.TenantSnapshot, error) {
	if r.Skipped(sig.Path) {
		r.observer.Resolved(OutcomeSkipped)
		return nil, nil
	}

	snap, err := r.resolve(ctx, sig)
	r.observer.Resolved(outcomeOf(err))
	return snap, err
}

func (r *Resolver) resolve(ctx context.Context, sig Signals) (*models.TenantSnapshot, error) {
	if hint := strings.TrimSpace(sig.TenantIDHint); hint != "" {
		snap, err := r.resolveByID(ctx, hint)
		if !errors.Is(err, common.ErrTenantNotFound) {
			return snap, err
		}
		r.log.Warn(ctx, "tenant id hint not found, falling back to host", "tenant_id", hint)
	}

	host := sig.ForwardedHost
	if strings.TrimSpace(host) == "" {
		host = sig.Host
	}
	domain, err := NormalizeDomain(host)
	if err != nil {
		return nil, err
	}

	return r.lookup(ctx, domain, func(ctx context.Context) (*models.TenantSnapshot, error) {
		return r.dir.FindByDomain(ctx, domain)
	})
}

func (r *Resolver) resolveByID(ctx context.Context, id string) (*models.TenantSnapshot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrTenantNotFound
	}
	return r.lookup(ctx, IDKey(id), func(ctx context.Context) (*models.TenantSnapshot, error) {
		return r.dir.FindByID(ctx, id)
	})
}

// lookup serves key from the cache, re-checking status on every hit, or
// loads it once per key no matter how many requests miss concurrently. Only
// ACTIVE snapshots are cached.
func (r *Resolver) lookup(ctx context.Context, key string, load func(context.Context) (*models.TenantSnapshot, error)) (*models.TenantSnapshot, error) {
	if snap, ok := r.cache.Get(ctx, key); ok {
		r.observer.CacheLookup(true)
		if !snap.Active() {
			if err := r.cache.Invalidate(ctx, key); err != nil {
				r.log.Warn(ctx, "stale tenant cache entry not dropped", "key", key, "error", err)
			}
			return nil, statusError(snap.Status)
		}
		return snap, nil
	}
	r.observer.CacheLookup(false)

	v, err, _ := r.group.Do(key, func() (any, error) {
		// Detached so one caller going away does not fail the others sharing this load.
		lctx := context.WithoutCancel(ctx)
		snap, fenced, err := r.fill(lctx, key, load)
		if err == nil && fenced {
			// A tenant write landed during the load; callers that joined
			// after it must not see the older snapshot.
			snap, _, err = r.fill(lctx, key, load)
		}
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.ErrTenantNotFound
			}
			r.log.Error(ctx, "tenant lookup failed", "key", key, "error", err)
			return nil, fmt.Errorf("tenant lookup: %w", err)
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}

	snap := v.(*models.TenantSnapshot)
	if !snap.Active() {
		return nil, statusError(snap.Status)
	}
	return snap, nil
}

// fill loads key and caches an ACTIVE result unless the key was
// invalidated after the load began; fenced reports that case.
func (r *Resolver) fill(ctx context.Context, key string, load func(context.Context) (*models.TenantSnapshot, error)) (snap *models.TenantSnapshot, fenced bool, err error) {
	gen, genErr := r.cache.Generation(ctx, key)
	if genErr != nil {
		r.log.Warn(ctx, "tenant cache generation unavailable", "key", key, "error", genErr)
	}

	snap, err = load(ctx)
	if err != nil {
		return nil, false, err
	}
	if !snap.Active() || genErr != nil {
		return snap, false, nil
	}

	stored, err := r.cache.PutIfGeneration(ctx, key, gen, snap, r.ttl)
	if err != nil {
		r.log.Warn(ctx, "tenant cache write failed", "key", key, "error", err)
		return snap, false, nil
	}
	if !stored {
		r.log.Debug(ctx, "tenant cache fill fenced by invalidation", "key", key)
	}
	return snap, !stored, nil
}

func statusError(s models.TenantStatus) error {
	if s == models.TenantSuspended {
		return common.ErrTenantSuspended
	}
	return common.ErrTenantUnavailable
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeResolved
	case errors.Is(err, common.ErrMalformedHost):
		return OutcomeMalformed
	case errors.Is(err, common.ErrTenantNotFound):
		return OutcomeNotFound
	case errors.Is(err, common.ErrTenantSuspended):
		return OutcomeSuspended
	case errors.Is(err, common.ErrTenantUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}
