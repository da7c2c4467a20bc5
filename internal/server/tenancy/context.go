package tenancy

import (
	"context"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

type ctxKey struct{}

// WithTenant attaches the resolved tenant to ctx.
func WithTenant(ctx context.Context, snap *models.TenantSnapshot) context.Context {
	return context.WithValue(ctx, ctxKey{}, snap)
}

func FromContext(ctx context.Context) (*models.TenantSnapshot, bool) {
	snap, ok := ctx.Value(ctxKey{}).(*models.TenantSnapshot)
	return snap, ok && snap != nil
}

// TenantID returns the attached tenant id, or "" on platform routes.
func TenantID(ctx context.Context) string {
	if snap, ok := FromContext(ctx); ok {
		return snap.ID
	}
	return ""
}

func Features(ctx context.Context) (models.TenantFeatures, bool) {
	if snap, ok := FromContext(ctx); ok {
		return snap.Features, true
	}
	return models.TenantFeatures{}, false
}

// RequireTenantID is the accessor for tenant-scoped data access: it fails
// with common.ErrTenantNotFound instead of returning an empty id.
func RequireTenantID(ctx context.Context) (string, error) {
	id := TenantID(ctx)
	if id == "" {
		return "", common.ErrTenantNotFound
	}
	return id, nil
}
