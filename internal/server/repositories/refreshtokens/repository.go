// Package refreshtokens declares the repository contract for persisted
// refresh tokens and its PostgreSQL implementation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

// Repository defines issuing, looking up and revoking refresh tokens.
type Repository interface {
	// Create stores a new live token for userID expiring at expiresAt.
	Create(ctx context.Context, userID string, token string, expiresAt time.Time) error

	// Find returns the token row including revoked and expired ones.
	// A missing token yields common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke marks the token revoked only if it is still live. The result
	// reports whether this call performed the revocation, which is what
	// lets exactly one of two concurrent rotations win.
	Revoke(ctx context.Context, token string, at time.Time) (bool, error)

	// RevokeAllForUser revokes every live token of userID and returns how many were revoked.
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)

	// DeleteExpired removes rows that expired before the given instant.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
