package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

type Tenants struct {
	s *Store
}

func (r *Tenants) FindByDomain(ctx context.Context, domain string) (*models.TenantSnapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.domains[domain]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.s.snapshot(d.TenantID)
}

func (r *Tenants) FindByID(ctx context.Context, tenantID string) (*models.TenantSnapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.snapshot(tenantID)
}

func (r *Tenants) FindDomainOwner(ctx context.Context, domain string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.domains[domain]
	if !ok {
		return "", common.ErrorNotFound
	}
	return d.TenantID, nil
}

func (r *Tenants) ListDomains(ctx context.Context, tenantID string) ([]models.TenantDomain, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.TenantDomain
	for _, d := range r.s.domains {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].Domain < out[j].Domain
	})
	return out, nil
}

func (r *Tenants) UpdateStatus(ctx context.Context, tenantID string, status models.TenantStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tenants[tenantID]
	if !ok {
		return common.ErrorNotFound
	}
	t.Status = status
	t.SuspendedAt = nil
	switch status {
	case models.TenantSuspended:
		t.SuspendedAt = &at
	case models.TenantArchived:
		t.ArchivedAt = &at
	}
	r.s.tenants[tenantID] = t
	return nil
}

func (r *Tenants) AddDomain(ctx context.Context, tenantID, domain string, primary bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tenants[tenantID]; !ok {
		return common.ErrorNotFound
	}
	if _, ok := r.s.domains[domain]; ok {
		return common.ErrDomainTaken
	}
	if primary {
		for k, d := range r.s.domains {
			if d.TenantID == tenantID && d.IsPrimary {
				d.IsPrimary = false
				r.s.domains[k] = d
			}
		}
	}
	r.s.domains[domain] = models.TenantDomain{Domain: domain, TenantID: tenantID, IsPrimary: primary, CreatedAt: r.s.clock.Now()}
	return nil
}

func (r *Tenants) RemoveDomain(ctx context.Context, domain string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.domains[domain]
	if !ok {
		return "", common.ErrorNotFound
	}
	delete(r.s.domains, domain)
	return d.TenantID, nil
}

func (r *Tenants) UpsertFeatures(ctx context.Context, tenantID string, features models.TenantFeatures) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tenants[tenantID]; !ok {
		return common.ErrorNotFound
	}
	r.s.features[tenantID] = features
	return nil
}

// snapshot must be called with mu held.
func (s *Store) snapshot(tenantID string) (*models.TenantSnapshot, error) {
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	snap := &models.TenantSnapshot{
		ID:       t.ID,
		Slug:     t.Slug,
		Name:     t.Name,
		Status:   t.Status,
		Features: models.DefaultTenantFeatures(),
	}
	if cfg, ok := s.configs[tenantID]; ok {
		snap.Config = &cfg
	}
	if f, ok := s.features[tenantID]; ok {
		snap.Features = f
	}
	return snap, nil
}
