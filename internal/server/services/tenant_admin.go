package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/dbx"
	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
	"github.com/dmitrijs2005/saasgate/internal/server/tenancy"
)

// AssetSigner turns a stored object key into a short-lived download URL.
type AssetSigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

// PublicTenantConfig is what a storefront needs to render a tenant.
type PublicTenantConfig struct {
	TenantID      string                `json:"tenantId"`
	Slug          string                `json:"slug"`
	Name          string                `json:"name"`
	Config        *models.TenantConfig  `json:"config,omitempty"`
	Features      models.TenantFeatures `json:"features"`
	PrimaryDomain string                `json:"primaryDomain,omitempty"`
}

// TenantAdmin performs tenant writes. Every write invalidates the tenant's
// resolution cache entries before it returns; an invalidation error is
// returned to the caller even though the write itself has been applied.
type TenantAdmin struct {
	store  Storage
	cache  tenancy.Cache
	assets AssetSigner
	clock  clock.Clock
	log    logging.Logger
	audit  *Audit
}

func NewTenantAdmin(store Storage, cache tenancy.Cache, assets AssetSigner, clk clock.Clock, log logging.Logger, audit *Audit) *TenantAdmin {
	if clk == nil {
		clk = clock.New()
	}
	return &TenantAdmin{
		store:  store,
		cache:  cache,
		assets: assets,
		clock:  clk,
		log:    log.With("module", "tenant_admin"),
		audit:  audit,
	}
}

func (a *TenantAdmin) UpdateStatus(ctx context.Context, tenantID string, status models.TenantStatus) error {
	if !status.Valid() {
		return common.ErrInvalidStatus
	}
	if err := a.requireTenant(ctx, tenantID); err != nil {
		return err
	}
	if err := a.store.Tenants().UpdateStatus(ctx, tenantID, status, a.clock.Now()); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if err := a.invalidate(ctx, tenantID); err != nil {
		return err
	}
	a.audit.Event(ctx, EventTenantStatus, "tenant_id", tenantID, "status", string(status))
	return nil
}

// AddDomain claims a host for tenantID. The host is normalized the same way
// resolution normalizes request hosts.
func (a *TenantAdmin) AddDomain(ctx context.Context, tenantID, host string, primary bool) (string, error) {
	domain, err := tenancy.NormalizeDomain(host)
	if err != nil {
		return "", err
	}
	if err := a.requireTenant(ctx, tenantID); err != nil {
		return "", err
	}

	_, err = a.store.Tenants().FindDomainOwner(ctx, domain)
	switch {
	case err == nil:
		return "", common.ErrDomainTaken
	case !errors.Is(err, common.ErrorNotFound):
		return "", fmt.Errorf("check domain owner: %w", err)
	}

	// Demoting the old primary and inserting the new domain commit together,
	// so a lost insert race keeps the current primary.
	err = a.store.Tx.RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return a.store.Repos.Tenants(tx).AddDomain(ctx, tenantID, domain, primary)
	})
	if err != nil {
		if errors.Is(err, common.ErrDomainTaken) {
			return "", err
		}
		return "", fmt.Errorf("add domain: %w", err)
	}
	if err := a.invalidate(ctx, tenantID, domain); err != nil {
		return "", err
	}
	a.audit.Event(ctx, EventTenantDomains, "tenant_id", tenantID, "added", domain)
	return domain, nil
}

func (a *TenantAdmin) RemoveDomain(ctx context.Context, host string) error {
	domain, err := tenancy.NormalizeDomain(host)
	if err != nil {
		return err
	}
	tenantID, err := a.store.Tenants().RemoveDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("remove domain: %w", err)
	}
	if err := a.invalidate(ctx, tenantID, domain); err != nil {
		return err
	}
	a.audit.Event(ctx, EventTenantDomains, "tenant_id", tenantID, "removed", domain)
	return nil
}

func (a *TenantAdmin) UpdateFeatures(ctx context.Context, tenantID string, features models.TenantFeatures) error {
	if err := a.requireTenant(ctx, tenantID); err != nil {
		return err
	}
	if err := a.store.Tenants().UpsertFeatures(ctx, tenantID, features); err != nil {
		return fmt.Errorf("update features: %w", err)
	}
	if err := a.invalidate(ctx, tenantID); err != nil {
		return err
	}
	a.audit.Event(ctx, EventTenantFeatures, "tenant_id", tenantID)
	return nil
}

func (a *TenantAdmin) requireTenant(ctx context.Context, tenantID string) error {
	if _, err := a.store.Tenants().FindByID(ctx, tenantID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrTenantNotFound
		}
		return fmt.Errorf("load tenant: %w", err)
	}
	return nil
}

// invalidate drops the id key, every current domain of the tenant and
// extra, then anything else indexed under the tenant.
func (a *TenantAdmin) invalidate(ctx context.Context, tenantID string, extra ...string) error {
	domains, err := a.store.Tenants().ListDomains(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("list domains: %w", err)
	}
	keys := append([]string{tenancy.IDKey(tenantID)}, extra...)
	for _, d := range domains {
		keys = append(keys, d.Domain)
	}
	if err := a.cache.Invalidate(ctx, keys...); err != nil {
		a.log.Error(ctx, "tenant cache invalidation failed", "tenant_id", tenantID, "error", err)
		return fmt.Errorf("invalidate tenant cache: %w", err)
	}
	if err := a.cache.InvalidateTenant(ctx, tenantID); err != nil {
		a.log.Error(ctx, "tenant cache invalidation failed", "tenant_id", tenantID, "error", err)
		return fmt.Errorf("invalidate tenant cache: %w", err)
	}
	return nil
}

// PublicConfig renders the resolved tenant for storefront clients. A logo
// stored as an object key is replaced by a presigned URL.
func (a *TenantAdmin) PublicConfig(ctx context.Context, snap *models.TenantSnapshot) (*PublicTenantConfig, error) {
	out := &PublicTenantConfig{
		TenantID: snap.ID,
		Slug:     snap.Slug,
		Name:     snap.Name,
		Features: snap.Features,
	}
	if snap.Config != nil {
		cfg := *snap.Config
		if cfg.LogoURL != "" && a.assets != nil && !isAbsoluteURL(cfg.LogoURL) {
			url, err := a.assets.PresignGet(ctx, cfg.LogoURL)
			if err != nil {
				a.log.Warn(ctx, "logo presign failed", "tenant_id", snap.ID, "error", err)
				cfg.LogoURL = ""
			} else {
				cfg.LogoURL = url
			}
		}
		out.Config = &cfg
	}

	domains, err := a.store.Tenants().ListDomains(ctx, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	for _, d := range domains {
		if d.IsPrimary {
			out.PrimaryDomain = d.Domain
			break
		}
	}
	return out, nil
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
