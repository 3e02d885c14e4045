// Package suggestcache memoizes computed join suggestions per data source
// and schema. Values are immutable snapshots swapped atomically, so readers
// always see either the previous complete snapshot or the new one, never a
// partial result. Concurrent recomputes for the same key are collapsed into
// a single in-flight computation.
package suggestcache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"joinwise/internal/inference"
	"joinwise/internal/introspection"
)

// DefaultTTL is how long a snapshot stays fresh without an explicit
// invalidation.
const DefaultTTL = 24 * time.Hour

// Key identifies one cached suggestion set.
type Key struct {
	DataSourceID string
	SchemaName   string
}

// String renders the key for flight coalescing and error messages. Both
// parts are quoted so a separator inside either one cannot collide with
// another key.
func (k Key) String() string {
	return strconv.Quote(k.DataSourceID) + "/" + strconv.Quote(k.SchemaName)
}

// Snapshot is the immutable cached value: the introspected tables a
// suggestion set was derived from, together with the ordered suggestions.
// Keeping the tables alongside lets validation run against the same schema
// view the suggestions were computed from.
type Snapshot struct {
	Tables      []introspection.TableInfo
	Suggestions []inference.JoinSuggestion
	ComputedAt  time.Time
}

// ComputeFunc builds a fresh snapshot for a key. It must return a snapshot
// that is never mutated afterwards.
type ComputeFunc func(ctx context.Context, key Key) (*Snapshot, error)

type entry struct {
	snapshot  *Snapshot
	expiresAt time.Time
}

// Cache holds snapshots with a bounded TTL and request coalescing.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[Key]entry
}

// New creates a Cache with the given TTL. A non-positive ttl falls back to
// DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[Key]entry),
	}
}

// Get returns the cached snapshot for key, computing it via compute on a
// miss or after expiry. forceRefresh bypasses a fresh entry. Concurrent
// callers computing the same key share a single compute call and all
// receive the same snapshot.
func (c *Cache) Get(ctx context.Context, key Key, forceRefresh bool, compute ComputeFunc) (*Snapshot, error) {
	if !forceRefresh {
		if snap, ok := c.lookup(key); ok {
			return snap, nil
		}
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// Re-check under the flight: a caller that lost the race to start
		// the flight may find the winner already stored the snapshot.
		if !forceRefresh {
			if snap, ok := c.lookup(key); ok {
				return snap, nil
			}
		}
		snap, err := compute(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to compute suggestions for %s: %w", key, err)
		}
		if snap.ComputedAt.IsZero() {
			snap.ComputedAt = c.now()
		}
		c.store(key, snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Invalidate drops the cached snapshot for key. The next Get recomputes.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateDataSource drops every cached snapshot belonging to a data
// source, across all of its schemas.
func (c *Cache) InvalidateDataSource(dataSourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.DataSourceID == dataSourceID {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) lookup(key Key) (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.snapshot, true
}

func (c *Cache) store(key Key, snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{snapshot: snap, expiresAt: c.now().Add(c.ttl)}
}
