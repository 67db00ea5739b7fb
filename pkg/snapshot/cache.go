package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/viralbet/fillsim/pkg/market"
	"github.com/viralbet/fillsim/pkg/util"
)

type cacheEntry struct {
	snap    *Snapshot
	expires time.Time
}

// CachedProvider is a read-through TTL cache in front of another provider.
// Errors are never cached.
type CachedProvider struct {
	upstream Provider
	ttl      time.Duration
	clock    util.Clock

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCachedProvider(upstream Provider, ttl time.Duration, clock util.Clock) *CachedProvider {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &CachedProvider{
		upstream: upstream,
		ttl:      ttl,
		clock:    clock,
		entries:  make(map[string]cacheEntry),
	}
}

func (c *CachedProvider) Snapshot(ctx context.Context, marketID string, outcome market.Outcome) (*Snapshot, error) {
	k := key(marketID, outcome)
	now := c.clock.Now()

	c.mu.Lock()
	if e, ok := c.entries[k]; ok && now.Before(e.expires) {
		c.mu.Unlock()
		return e.snap, nil
	}
	c.mu.Unlock()

	snap, err := c.upstream.Snapshot(ctx, marketID, outcome)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[k] = cacheEntry{snap: snap, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return snap, nil
}

// Invalidate drops the cached entry so the next read hits upstream.
func (c *CachedProvider) Invalidate(marketID string, outcome market.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(marketID, outcome))
}

// Purge removes expired entries.
func (c *CachedProvider) Purge() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// RunPurger purges expired entries every interval until ctx is done.
func (c *CachedProvider) RunPurger(ctx context.Context, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(interval):
			c.Purge()
		}
	}
}

var _ Provider = (*CachedProvider)(nil)
