// Package tenants is the tenant directory: read access to tenants, their
// domains, configs and feature flags, plus the narrow writes used by tenant
// management. It performs no caching and applies no status policy.
package tenants

import (
	"context"
	"time"

	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

// Repository is the persisted tenant directory. Lookups return
// common.ErrorNotFound for missing records; any other error means the
// storage is unavailable.
type Repository interface {
	// FindByDomain resolves an already-normalized domain. A tenant without a
	// feature row is reported with models.DefaultTenantFeatures.
	FindByDomain(ctx context.Context, domain string) (*models.TenantSnapshot, error)
	FindByID(ctx context.Context, tenantID string) (*models.TenantSnapshot, error)
	// FindDomainOwner returns the id of the tenant that owns domain.
	FindDomainOwner(ctx context.Context, domain string) (string, error)

	ListDomains(ctx context.Context, tenantID string) ([]models.TenantDomain, error)
	UpdateStatus(ctx context.Context, tenantID string, status models.TenantStatus, at time.Time) error
	// AddDomain claims domain for tenantID. A domain owned by any tenant yields common.ErrDomainTaken.
	AddDomain(ctx context.Context, tenantID, domain string, primary bool) error
	// RemoveDomain deletes domain and returns the tenant that owned it.
	RemoveDomain(ctx context.Context, domain string) (string, error)
	UpsertFeatures(ctx context.Context, tenantID string, features models.TenantFeatures) error
}
