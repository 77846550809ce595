// Package cache holds the in-process guest token cache.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = 10 * time.Minute
)

type entry struct {
	secret   string
	cachedAt time.Time
}

// tombstone remembers the generation at which an id was invalidated.
type tombstone struct {
	gen  uint64
	when time.Time
}

// GuestTokenCache maps guest ids to their secrets so repeat visits skip a
// storage read. It is an optimization only; storage stays the source of
// truth and conversion must Invalidate the entry it converts.
//
// Fills from storage go through Stamp and PutIfNotInvalidatedSince so that
// an Invalidate landing between a storage read and the fill wins.
type GuestTokenCache struct {
	mu         sync.RWMutex
	entries    map[uuid.UUID]entry
	tombstones map[uuid.UUID]tombstone
	gen        uint64
	// floor is the newest generation whose tombstone was swept. Stamps older
	// than floor can no longer be checked per id and are refused.
	floor         uint64
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
}

type Option func(*GuestTokenCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *GuestTokenCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(c *GuestTokenCache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *GuestTokenCache) {
		c.now = now
	}
}

func NewGuestTokenCache(opts ...Option) *GuestTokenCache {
	c := &GuestTokenCache{
		entries:       make(map[uuid.UUID]entry),
		tombstones:    make(map[uuid.UUID]tombstone),
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached secret for guestID. Expired entries are misses.
func (c *GuestTokenCache) Get(guestID uuid.UUID) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[guestID]
	c.mu.RUnlock()
	if !ok || c.expired(e) {
		return "", false
	}
	return e.secret, true
}

func (c *GuestTokenCache) Put(guestID uuid.UUID, secret string) {
	c.mu.Lock()
	c.entries[guestID] = entry{secret: secret, cachedAt: c.now()}
	c.mu.Unlock()
}

// Stamp returns the current invalidation generation. Take it before reading
// storage and pass it to PutIfNotInvalidatedSince.
func (c *GuestTokenCache) Stamp() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// PutIfNotInvalidatedSince stores secret unless guestID was invalidated
// after stamp was taken. It reports whether the entry was stored.
func (c *GuestTokenCache) PutIfNotInvalidatedSince(guestID uuid.UUID, secret string, stamp uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stamp < c.floor {
		return false
	}
	if t, ok := c.tombstones[guestID]; ok && t.gen > stamp {
		return false
	}
	c.entries[guestID] = entry{secret: secret, cachedAt: c.now()}
	return true
}

func (c *GuestTokenCache) Invalidate(guestID uuid.UUID) {
	c.mu.Lock()
	c.gen++
	delete(c.entries, guestID)
	c.tombstones[guestID] = tombstone{gen: c.gen, when: c.now()}
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (c *GuestTokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep evicts expired entries and tombstones older than the TTL. It
// returns how many entries were removed.
func (c *GuestTokenCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, id)
			removed++
		}
	}
	for id, t := range c.tombstones {
		if c.now().Sub(t.when) >= c.ttl {
			delete(c.tombstones, id)
			if t.gen > c.floor {
				c.floor = t.gen
			}
		}
	}
	return removed
}

// Run sweeps on the configured interval until ctx is done.
func (c *GuestTokenCache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				slog.Default().DebugContext(ctx, "guest token cache swept",
					"module", "cache",
					"operation", "sweep",
					"removed", n,
				)
			}
		}
	}
}

func (c *GuestTokenCache) expired(e entry) bool {
	return c.now().Sub(e.cachedAt) >= c.ttl
}
