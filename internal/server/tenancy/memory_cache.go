package tenancy

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

type memoryEntry struct {
	snap      *models.TenantSnapshot
	expiresAt time.Time
}

// MemoryCache is a process-local Cache. Entries expire lazily on read; Run
// sweeps them periodically to bound memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	gens    map[string]uint64
	all     uint64
	clock   clock.Clock
}

func NewMemoryCache(clk clock.Clock) *MemoryCache {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryCache{entries: map[string]memoryEntry{}, gens: map[string]uint64{}, clock: clk}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*models.TenantSnapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := c.clock.Now()
	if !now.Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && !now.Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.snap, true
}

func (c *MemoryCache) Put(_ context.Context, key string, snap *models.TenantSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{snap: snap, expiresAt: c.clock.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Generation(_ context.Context, key string) (Generation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Generation{Key: c.gens[key], All: c.all}, nil
}

func (c *MemoryCache) PutIfGeneration(_ context.Context, key string, gen Generation, snap *models.TenantSnapshot, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != (Generation{Key: c.gens[key], All: c.all}) {
		return false, nil
	}
	c.entries[key] = memoryEntry{snap: snap, expiresAt: c.clock.Now().Add(ttl)}
	return true, nil
}

func (c *MemoryCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.gens[k]++
	}
	return nil
}

func (c *MemoryCache) InvalidateTenant(_ context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.snap.ID == tenantID {
			delete(c.entries, k)
		}
	}
	// A fill in flight does not know its tenant yet, so every fill is fenced.
	c.all++
	return nil
}

func (c *MemoryCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]memoryEntry{}
	c.all++
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *MemoryCache) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Run calls Sweep every interval until ctx is done.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	t := c.clock.Ticker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Sweep()
		}
	}
}
