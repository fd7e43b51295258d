// Package configcache holds the most recent topology.Configuration seen
// for each open bucket and fans out updates to registered subscribers
// whenever a newer revision replaces the current one.
package configcache

import (
	"sync"

	"github.com/evalgo-org/couchkit/internal/topology"
)

// Subscriber is notified with the new configuration every time
// UpdateConfig accepts a revision newer than the one it replaces.
type Subscriber func(*topology.Configuration)

type subscription struct {
	id uint64
	fn Subscriber
}

// Cache tracks one configuration per bucket name behind an RWMutex, the
// same read-mostly locking shape used for tracking short-lived state
// elsewhere in this codebase.
type Cache struct {
	mu          sync.RWMutex
	current     map[string]*topology.Configuration
	subscribers map[string][]subscription
	nextSubID   uint64
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		current:     make(map[string]*topology.Configuration),
		subscribers: make(map[string][]subscription),
	}
}

// OpenBucket registers bucket with no configuration yet.
// WithBucketConfiguration returns nil, ok=false for it until the first
// UpdateConfig for it arrives, the same result as for a bucket that was
// never opened.
func (c *Cache) OpenBucket(bucket string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.current[bucket]; !exists {
		c.current[bucket] = nil
	}
}

// WithBucketConfiguration returns the current configuration for bucket,
// or ok=false if the bucket was never opened or has no configuration yet.
func (c *Cache) WithBucketConfiguration(bucket string) (*topology.Configuration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, exists := c.current[bucket]
	return cfg, exists && cfg != nil
}

// UpdateConfig replaces the cached configuration for cfg.Bucket if cfg is
// newer (by Configuration.Less) than what's cached, or if nothing was
// cached yet. It reports whether the update was applied, and notifies
// subscribers only on a successful, strictly newer replacement.
func (c *Cache) UpdateConfig(cfg *topology.Configuration) bool {
	c.mu.Lock()
	existing, hadAny := c.current[cfg.Bucket]
	if hadAny && existing != nil && !existing.Less(cfg) {
		c.mu.Unlock()
		return false
	}
	c.current[cfg.Bucket] = cfg
	subs := append([]subscription(nil), c.subscribers[cfg.Bucket]...)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.fn(cfg)
	}
	return true
}

// Subscribe registers fn to be called on every accepted UpdateConfig for
// bucket. The returned function removes the subscription.
func (c *Cache) Subscribe(bucket string, fn Subscriber) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers[bucket] = append(c.subscribers[bucket], subscription{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.subscribers[bucket]
		for i, s := range subs {
			if s.id == id {
				c.subscribers[bucket] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// CloseBucket drops the cached configuration and subscribers for bucket.
func (c *Cache) CloseBucket(bucket string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.current, bucket)
	delete(c.subscribers, bucket)
}
