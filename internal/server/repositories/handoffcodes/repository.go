// Package handoffcodes stores the short-lived, single-use codes that carry a
// completed OAuth sign-in over to the tenant's own domain.
package handoffcodes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, code *models.HandoffCode) error
	// Find returns common.ErrorNotFound for unknown codes.
	Find(ctx context.Context, code string) (*models.HandoffCode, error)
	// MarkUsed consumes the code if it is unused and unexpired at the given
	// instant, reporting whether this call consumed it.
	MarkUsed(ctx context.Context, code string, at time.Time) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
