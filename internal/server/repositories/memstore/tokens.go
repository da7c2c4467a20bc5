package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

type RefreshTokens struct {
	s *Store
}

func (r *RefreshTokens) Create(ctx context.Context, userID string, token string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.refresh[token] = models.RefreshToken{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: r.s.clock.Now(),
	}
	return nil
}

func (r *RefreshTokens) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.refresh[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *RefreshTokens) Revoke(ctx context.Context, token string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.refresh[token]
	if !ok || t.RevokedAt != nil {
		return false, nil
	}
	t.RevokedAt = &at
	r.s.refresh[token] = t
	return true, nil
}

func (r *RefreshTokens) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for k, t := range r.s.refresh {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &at
			r.s.refresh[k] = t
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokens) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for k, t := range r.s.refresh {
		if t.ExpiresAt.Before(before) {
			delete(r.s.refresh, k)
			n++
		}
	}
	return n, nil
}

type HandoffCodes struct {
	s *Store
}

func (r *HandoffCodes) Create(ctx context.Context, c *models.HandoffCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *c
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = r.s.clock.Now()
	}
	r.s.handoffs[c.Code] = cp
	return nil
}

func (r *HandoffCodes) Find(ctx context.Context, code string) (*models.HandoffCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.handoffs[code]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &c, nil
}

func (r *HandoffCodes) MarkUsed(ctx context.Context, code string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.handoffs[code]
	if !ok || !c.Redeemable(at) {
		return false, nil
	}
	c.UsedAt = &at
	r.s.handoffs[code] = c
	return true, nil
}

func (r *HandoffCodes) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for k, c := range r.s.handoffs {
		if c.ExpiresAt.Before(before) {
			delete(r.s.handoffs, k)
			n++
		}
	}
	return n, nil
}
