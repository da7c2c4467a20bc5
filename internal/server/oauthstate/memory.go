package oauthstate

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dmitrijs2005/saasgate/internal/common"
)

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// MemoryStore is a process-local Store for single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   clock.Clock
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryStore{entries: map[string]memoryEntry{}, clock: clk}
}

func (s *MemoryStore) Put(_ context.Context, key string, st State, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{state: st, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, key string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, common.ErrInvalidState
	}
	delete(s.entries, key)
	if !s.clock.Now().Before(e.expiresAt) {
		return nil, common.ErrInvalidState
	}
	st := e.state
	return &st, nil
}

// Sweep drops expired states and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}
