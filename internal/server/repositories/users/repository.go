// Package users declares the user repository contract and its PostgreSQL
// implementation. Tenant users are always looked up together with their
// tenant id; OWNER accounts have no tenant and use FindOwnerByEmail.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

type Repository interface {
	// Create inserts the user and fills in ID and CreatedAt. A duplicate email
	// within the tenant yields common.ErrEmailTaken.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, tenantID, email string) (*models.User, error)
	FindOwnerByEmail(ctx context.Context, email string) (*models.User, error)
	FindByExternalID(ctx context.Context, tenantID, externalID string) (*models.User, error)
	FindByVerifyToken(ctx context.Context, token string) (*models.User, error)
	FindByResetToken(ctx context.Context, token string) (*models.User, error)

	// LinkExternalID attaches an OAuth subject to an existing account and
	// marks its email verified when verifiedAt is non-nil.
	LinkExternalID(ctx context.Context, userID, externalID string, verifiedAt *time.Time) error
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) error
	SetVerifyToken(ctx context.Context, userID, token string) error
	SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error

	// UpdatePassword stores a new hash and clears any pending reset token.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetActive(ctx context.Context, userID string, active bool) error
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
}
