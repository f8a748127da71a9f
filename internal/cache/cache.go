// Package cache provides the fast-path result cache keyed by search
// fingerprint. It is a pure accelerator: the durable search record remains the
// source of truth, and clearing the cache only costs latency, never
// correctness.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Namespace prefixes every cache key so fingerprints from this subsystem can
// never collide with other result kinds sharing a cache
const Namespace = "atlas-search"

// DefaultMaxEntries bounds cache memory via LRU eviction
const DefaultMaxEntries = 1000

type entry struct {
	payload   json.RawMessage
	expiresAt time.Time
}

// Cache is an in-memory LRU result cache with per-entry TTL. Expiry is lazy:
// stale entries are detected and evicted at read time.
type Cache struct {
	mu  sync.RWMutex
	lru *lru.Cache[string, *entry]
}

// New creates a cache holding at most maxEntries results
func New(maxEntries int) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	l, err := lru.New[string, *entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &Cache{lru: l}, nil
}

// Key returns the namespaced cache key for a fingerprint
func Key(fp string) string {
	return Namespace + "-" + fp
}

// Put stores a result, overwriting any existing entry. The entry becomes
// unreadable once ttl elapses.
func (c *Cache) Put(fp string, payload json.RawMessage, ttl time.Duration) {
	e := &entry{
		payload:   append(json.RawMessage(nil), payload...),
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Lock()
	c.lru.Add(Key(fp), e)
	c.mu.Unlock()
}

// Get returns the cached result, or ok=false if the fingerprint is absent or
// its entry has expired
func (c *Cache) Get(fp string) (json.RawMessage, bool) {
	key := Key(fp)
	now := time.Now()

	c.mu.RLock()
	e, found := c.lru.Get(key)
	if !found {
		c.mu.RUnlock()
		return nil, false
	}
	if now.After(e.expiresAt) {
		c.mu.RUnlock()
		c.mu.Lock()
		c.lru.Remove(key)
		c.mu.Unlock()
		return nil, false
	}
	payload := append(json.RawMessage(nil), e.payload...)
	c.mu.RUnlock()

	return payload, true
}

// Delete removes an entry unconditionally; used for explicit invalidation
// when an expired search re-enters its pending cycle
func (c *Cache) Delete(fp string) {
	c.mu.Lock()
	c.lru.Remove(Key(fp))
	c.mu.Unlock()
}

// Len reports the number of entries currently held, including any not yet
// lazily expired
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Purge drops every entry
func (c *Cache) Purge() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
}
