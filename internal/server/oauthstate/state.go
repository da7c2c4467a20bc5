// Package oauthstate keeps the one-time state values that tie an OAuth
// callback to the tenant and page the sign-in started from.
package oauthstate

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/saasgate/internal/common"
)

const (
	DefaultTTL = 10 * time.Minute
	stateBytes = 32
)

// State is what the callback needs to finish the flow on the right tenant.
type State struct {
	TenantID   string `json:"tenantId"`
	ReturnHost string `json:"returnHost"`
	ReturnPath string `json:"returnPath"`
}

// Store holds states until they are taken once or expire. Take of an
// unknown, expired or already taken key is common.ErrInvalidState.
type Store interface {
	Put(ctx context.Context, key string, st State, ttl time.Duration) error
	Take(ctx context.Context, key string) (*State, error)
}

// Issue stores st under a fresh random key and returns the key.
func Issue(ctx context.Context, s Store, st State, ttl time.Duration) (string, error) {
	key, err := common.MakeRandURLString(stateBytes)
	if err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	if err := s.Put(ctx, key, st, ttl); err != nil {
		return "", err
	}
	return key, nil
}
