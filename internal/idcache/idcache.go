// Package idcache provides a read-through cache that preserves identity.
//
// A Cache maps a stable key to one value. On a miss the loader runs and its
// result is stored; later lookups return that same value until the entry is
// invalidated, cleared, or refreshed. Entries never expire on their own.
//
// Concurrent misses on the same key share a single loader call. Lookups and
// loads of different keys never wait on each other. Loader errors are
// returned to every waiting caller and are not cached.
package idcache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
)

// Loader fetches the value for key from the backing store.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Cache is a keyed read-through identity cache. It is safe for concurrent
// use.
type Cache[K comparable, V any] struct {
	name   string
	keyOf  func(V) K
	loader Loader[K, V]

	entries *xsync.MapOf[K, V]
	flights singleflight.Group

	// generation advances on every invalidation. A load that started in an
	// older generation returns its result without storing it.
	generation atomic.Uint64

	hits          *metrics.Counter
	misses        *metrics.Counter
	refreshes     *metrics.Counter
	invalidations *metrics.Counter
}

// New creates a cache. name labels the cache's metrics, keyOf derives the
// key of a cached value (used by Refresh), and loader is the default loader
// used by Get.
func New[K comparable, V any](name string, keyOf func(V) K, loader Loader[K, V]) *Cache[K, V] {
	return &Cache[K, V]{
		name:          name,
		keyOf:         keyOf,
		loader:        loader,
		entries:       xsync.NewMapOf[K, V](),
		hits:          metrics.GetOrCreateCounter(metricName("lanatus_cache_hits_total", name)),
		misses:        metrics.GetOrCreateCounter(metricName("lanatus_cache_misses_total", name)),
		refreshes:     metrics.GetOrCreateCounter(metricName("lanatus_cache_refreshes_total", name)),
		invalidations: metrics.GetOrCreateCounter(metricName("lanatus_cache_invalidations_total", name)),
	}
}

func metricName(metric, cache string) string {
	return fmt.Sprintf("%s{cache=%q}", metric, cache)
}

// Name returns the cache name.
func (c *Cache[K, V]) Name() string { return c.name }

// Get returns the value for key, loading it with the default loader on a
// miss.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
	return c.GetOrCompute(ctx, key, c.loader)
}

// GetOrCompute returns the cached value for key or computes it with loader.
func (c *Cache[K, V]) GetOrCompute(ctx context.Context, key K, loader Loader[K, V]) (V, error) {
	if v, ok := c.entries.Load(key); ok {
		c.hits.Inc()
		return v, nil
	}
	c.misses.Inc()

	gen := c.generation.Load()
	res, err, _ := c.flights.Do(flightKey(key), func() (any, error) {
		if v, ok := c.entries.Load(key); ok {
			return v, nil
		}
		v, err := loader(ctx, key)
		if err != nil {
			return nil, err
		}
		if c.generation.Load() != gen {
			return v, nil
		}
		actual, _ := c.entries.LoadOrStore(key, v)
		return actual, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Lookup returns the cached value for key without loading.
func (c *Cache[K, V]) Lookup(key K) (V, bool) {
	return c.entries.Load(key)
}

// Refresh loads the value for the key of existing and replaces the cached
// entry with it. The result is always a newly loaded value.
func (c *Cache[K, V]) Refresh(ctx context.Context, existing V) (V, error) {
	key := c.keyOf(existing)
	c.flights.Forget(flightKey(key))

	v, err := c.loader(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.entries.Store(key, v)
	c.refreshes.Inc()
	return v, nil
}

// Invalidate drops the entry for key.
func (c *Cache[K, V]) Invalidate(key K) {
	c.generation.Add(1)
	c.flights.Forget(flightKey(key))
	c.entries.Delete(key)
	c.invalidations.Inc()
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.generation.Add(1)
	c.entries.Clear()
	c.invalidations.Inc()
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return c.entries.Size()
}

// Stats is a point-in-time copy of a cache's counters. Caches created with
// the same name share counters.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Refreshes     uint64
	Invalidations uint64
}

// Stats returns the current counter values.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:          c.hits.Get(),
		Misses:        c.misses.Get(),
		Refreshes:     c.refreshes.Get(),
		Invalidations: c.invalidations.Get(),
	}
}

func flightKey[K comparable](key K) string {
	return fmt.Sprint(key)
}
