// Package cache holds the last scored token set behind a whole-set TTL.
package cache

import (
	"sync"
	"time"

	"scry-scanner/internal/domain"
)

// DefaultTTL is how long a stored token set stays fresh.
const DefaultTTL = 60 * time.Second

// Option configures an OpportunityCache.
type Option func(*OpportunityCache)

// WithClock sets the time source used for stamping and expiry.
func WithClock(now func() time.Time) Option {
	return func(c *OpportunityCache) {
		c.now = now
	}
}

// OpportunityCache stores one scored token set. Expiry is whole-set and
// time-based; there is no per-entry invalidation.
type OpportunityCache struct {
	mu      sync.RWMutex
	tokens  []domain.ScannedToken
	stamped time.Time
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given TTL. A non-positive ttl uses DefaultTTL.
func New(ttl time.Duration, opts ...Option) *OpportunityCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &OpportunityCache{
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the stored set, or nil if it is unset or stale.
func (c *OpportunityCache) Get() []domain.ScannedToken {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.freshLocked() {
		return nil
	}
	out := make([]domain.ScannedToken, len(c.tokens))
	copy(out, c.tokens)
	return out
}

// Set replaces the stored set and stamps it with the current time.
func (c *OpportunityCache) Set(tokens []domain.ScannedToken) {
	stored := make([]domain.ScannedToken, len(tokens))
	copy(stored, tokens)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = stored
	c.stamped = c.now()
}

// Fresh reports whether Get would return the stored set.
func (c *OpportunityCache) Fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.freshLocked()
}

// Age returns the time since the last Set, or zero if never set.
func (c *OpportunityCache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stamped.IsZero() {
		return 0
	}
	return c.now().Sub(c.stamped)
}

// TTL returns the configured time-to-live.
func (c *OpportunityCache) TTL() time.Duration {
	return c.ttl
}

func (c *OpportunityCache) freshLocked() bool {
	if c.stamped.IsZero() {
		return false
	}
	return c.now().Sub(c.stamped) < c.ttl
}
