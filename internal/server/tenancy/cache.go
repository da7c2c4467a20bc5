// Package tenancy maps inbound requests to tenants: host normalization, the
// time-boxed resolution cache, the resolver and the request-context
// accessors every tenant-scoped handler reads from.
package tenancy

import (
	"context"
	"time"

	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

const DefaultCacheTTL = 5 * time.Minute

// Generation fences a cache fill against invalidations that happen while
// the snapshot is being loaded. Key moves when the key itself is
// invalidated, All on InvalidateTenant and InvalidateAll.
type Generation struct {
	Key uint64
	All uint64
}

// Cache holds resolved snapshots keyed by normalized domain or IDKey. It is
// shared by every in-flight request. Invalidation errors must reach the
// caller: tenant writes depend on them.
type Cache interface {
	Get(ctx context.Context, key string) (*models.TenantSnapshot, bool)
	Put(ctx context.Context, key string, snap *models.TenantSnapshot, ttl time.Duration) error
	// Generation is read before loading a snapshot for key.
	Generation(ctx context.Context, key string) (Generation, error)
	// PutIfGeneration stores snap only while key is still at gen and reports
	// whether it did.
	PutIfGeneration(ctx context.Context, key string, gen Generation, snap *models.TenantSnapshot, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
	// InvalidateTenant drops every entry whose snapshot belongs to tenantID,
	// whatever key it was stored under.
	InvalidateTenant(ctx context.Context, tenantID string) error
	InvalidateAll(ctx context.Context) error
}

// IDKey is the cache key for a lookup by tenant id.
func IDKey(tenantID string) string {
	return "id:" + tenantID
}
