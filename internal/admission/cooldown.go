package admission

import (
	"sync"
	"time"
)

// Cooldown is an in-memory TTL set used to throttle repeat notifications for
// the same subject. Injected rather than package-global so deployments can
// share one instance across classifiers.
type Cooldown struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
}

// NewCooldown creates a cooldown cache with the given suppression interval.
func NewCooldown(ttl time.Duration) *Cooldown {
	return &Cooldown{ttl: ttl, seen: make(map[string]time.Time)}
}

// Allow reports whether the key is outside its cooldown and, if so, starts a
// new one.
func (c *Cooldown) Allow(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.seen[key]; ok && now.Sub(last) < c.ttl {
		return false
	}

	// Piggyback expiry of stale entries; the map only ever holds subjects
	// seen within the last TTL plus whatever this pass removes.
	for k, ts := range c.seen {
		if now.Sub(ts) >= c.ttl {
			delete(c.seen, k)
		}
	}

	c.seen[key] = now
	return true
}
