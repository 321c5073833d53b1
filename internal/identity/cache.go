package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CrispyBaguette/fb-chat-stt/internal/platform"
)

// DefaultTTL is how long a cached profile stays fresh.
const DefaultTTL = 7200 * time.Second

// entry pairs a profile with the time it was fetched. Entries are replaced
// wholesale on refresh, never mutated.
type entry struct {
	profile   platform.UserProfile
	fetchedAt time.Time
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	FetchFailures uint64 `json:"fetch_failures"`
	Entries       int    `json:"entries"`
}

// Cache is a TTL cache over a platform Directory. It is safe for
// concurrent use. There is no eviction: the cache grows with the set of
// distinct senders seen, which is bounded within a session's lifetime.
type Cache struct {
	directory platform.Directory
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]entry

	hits          uint64
	misses        uint64
	fetchFailures uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock overrides the time source. Tests use this to age entries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache backed by the given directory.
func NewCache(directory platform.Directory, opts ...Option) *Cache {
	c := &Cache{
		directory: directory,
		ttl:       DefaultTTL,
		now:       time.Now,
		entries:   make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the profile for userID, fetching it from the directory
// when missing or stale. A fetch failure leaves any previous entry in
// place and is returned to the caller, who falls back rather than crashes.
func (c *Cache) Lookup(ctx context.Context, userID string) (platform.UserProfile, error) {
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[userID]; ok && now.Sub(e.fetchedAt) < c.ttl {
		c.hits++
		c.mu.Unlock()
		return e.profile, nil
	}
	c.misses++
	c.mu.Unlock()

	// Fetch outside the lock so a slow platform call does not block other
	// lookups. Concurrent refreshes of the same key are last-writer-wins.
	profile, err := c.directory.FetchUserInfo(ctx, userID)
	if err != nil {
		c.mu.Lock()
		c.fetchFailures++
		c.mu.Unlock()
		return platform.UserProfile{}, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}

	c.mu.Lock()
	c.entries[userID] = entry{profile: profile, fetchedAt: now}
	c.mu.Unlock()

	return profile, nil
}

// GetStats returns a snapshot of the cache counters.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		FetchFailures: c.fetchFailures,
		Entries:       len(c.entries),
	}
}
