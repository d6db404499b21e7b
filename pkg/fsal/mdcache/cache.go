// Package mdcache implements the stackable metadata cache: a handle layer
// that wraps any backend's object handles, caches their attributes, detects
// backend staleness, and applies FD-budget backpressure before opens reach
// the backend.
//
// Every entry wraps exactly one backend handle ("sub-handle") and shares
// the generic fsal.ObjectHandle contract, so the cache stacks transparently
// between the helper layer and any backend.
package mdcache

import (
	"sync"

	"github.com/marmos91/mdfs/internal/logger"
	"github.com/marmos91/mdfs/pkg/fsal"
)

// Cache deduplicates entries by backend handle key: at most one live entry
// exists per distinct sub-handle key. Entries evict themselves on
// finalization and on kill, so a fresh lookup after staleness builds a
// fresh entry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry

	budget  *fsal.FDBudget
	metrics Metrics
}

// New creates a cache sharing the given FD budget. A nil metrics selects
// the no-op implementation.
func New(budget *fsal.FDBudget, metrics Metrics) *Cache {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Cache{
		entries: make(map[string]*Entry),
		budget:  budget,
		metrics: metrics,
	}
}

// Wrap returns the cache entry for sub, creating it if none exists.
//
// On a hit the existing entry gains a reference and the caller's reference
// on sub is dropped, since the existing entry already owns its own
// sub-handle reference. On a miss the new entry takes ownership of the
// caller's reference on sub. Either way the caller holds one reference on
// the returned entry.
func (c *Cache) Wrap(sub fsal.ObjectHandle) *Entry {
	key := string(sub.Key())

	c.mu.Lock()
	if existing, ok := c.entries[key]; ok {
		existing.Ref()
		c.mu.Unlock()

		sub.Unref()
		c.metrics.RecordHit()
		return existing
	}

	entry := newEntry(c, sub)
	c.entries[key] = entry
	count := len(c.entries)
	c.mu.Unlock()

	c.metrics.RecordMiss()
	c.metrics.RecordEntryCount(count)
	return entry
}

// Budget returns the FD budget the cache consults on open.
func (c *Cache) Budget() *fsal.FDBudget {
	return c.budget
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evict removes the mapping for entry if it is still the mapped one. Called
// on finalization and on kill; safe to call twice.
func (c *Cache) evict(entry *Entry) {
	key := string(entry.key)

	c.mu.Lock()
	if current, ok := c.entries[key]; ok && current == entry {
		delete(c.entries, key)
		count := len(c.entries)
		c.mu.Unlock()

		c.metrics.RecordEntryCount(count)
		return
	}
	c.mu.Unlock()
}

// kill transitions entry to the terminal killed state, exactly once, and
// unmaps it so subsequent lookups rebuild from the backend.
func (c *Cache) kill(entry *Entry) {
	if !entry.killed.CompareAndSwap(false, true) {
		return
	}

	logger.Debug("Killing stale cache entry")
	c.metrics.RecordKill()
	c.evict(entry)
}
