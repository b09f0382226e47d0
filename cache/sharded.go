// Package cache provides a sharded LRU cache used to keep compiled compute
// pipelines alive across solver instances.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

const (
	// ShardCount is the number of shards. Must be a power of 2.
	ShardCount = 16

	// DefaultCapacity is the default maximum entries per shard.
	DefaultCapacity = 64

	shardMask = ShardCount - 1
)

// Hasher computes the shard hash of a key.
type Hasher[K any] func(K) uint64

// StringHasher computes the FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Uint64Hasher returns the key itself.
func Uint64Hasher(u uint64) uint64 {
	return u
}

// EvictFunc is called with every entry that leaves the cache, whether by
// LRU eviction, Delete or Clear. It runs outside the shard lock.
type EvictFunc[K comparable, V any] func(key K, value V)

// Option configures a ShardedCache.
type Option[K comparable, V any] func(*ShardedCache[K, V])

// WithEvict registers a callback for entries leaving the cache.
func WithEvict[K comparable, V any](fn EvictFunc[K, V]) Option[K, V] {
	return func(c *ShardedCache[K, V]) {
		c.onEvict = fn
	}
}

// ShardedCache is a thread-safe, sharded LRU cache.
//
// Each shard holds at most capacity entries; inserting into a full shard
// evicts its least recently used entry.
type ShardedCache[K comparable, V any] struct {
	shards   [ShardCount]*shard[K, V]
	hasher   Hasher[K]
	capacity int
	onEvict  EvictFunc[K, V]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type shard[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[K, V]
	lru     *lruList[K]
}

type entry[K comparable, V any] struct {
	value V
	node  *lruNode[K]
}

type evicted[K comparable, V any] struct {
	key   K
	value V
}

// NewSharded creates a sharded cache with the given per-shard capacity.
// If capacity <= 0, DefaultCapacity is used.
func NewSharded[K comparable, V any](capacity int, hasher Hasher[K], opts ...Option[K, V]) *ShardedCache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &ShardedCache[K, V]{
		hasher:   hasher,
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(c)
	}
	for i := range c.shards {
		c.shards[i] = &shard[K, V]{
			entries: make(map[K]*entry[K, V]),
			lru:     newLRUList[K](),
		}
	}
	return c
}

func (c *ShardedCache[K, V]) shardFor(key K) *shard[K, V] {
	return c.shards[c.hasher(key)&shardMask]
}

// Get retrieves a cached value and marks it most recently used.
func (c *ShardedCache[K, V]) Get(key K) (V, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	s.lru.MoveToFront(e.node)
	value := e.value
	s.mu.Unlock()

	c.hits.Add(1)
	return value, true
}

// Set stores a value, replacing any previous value for key. A replaced
// value is passed to the evict callback.
func (c *ShardedCache[K, V]) Set(key K, value V) {
	s := c.shardFor(key)
	s.mu.Lock()
	var out []evicted[K, V]
	if e, ok := s.entries[key]; ok {
		out = append(out, evicted[K, V]{key, e.value})
		e.value = value
		s.lru.MoveToFront(e.node)
	} else {
		out = c.insertLocked(s, key, value, out)
	}
	s.mu.Unlock()
	c.notify(out)
}

// GetOrCreate returns the cached value for key or builds it with create.
// create runs under the shard lock so concurrent callers never build the
// same key twice. A failed create leaves the cache unchanged.
func (c *ShardedCache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	s := c.shardFor(key)
	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		s.lru.MoveToFront(e.node)
		value := e.value
		s.mu.Unlock()
		c.hits.Add(1)
		return value, nil
	}
	c.misses.Add(1)

	value, err := create()
	if err != nil {
		s.mu.Unlock()
		var zero V
		return zero, err
	}
	out := c.insertLocked(s, key, value, nil)
	s.mu.Unlock()
	c.notify(out)
	return value, nil
}

func (c *ShardedCache[K, V]) insertLocked(s *shard[K, V], key K, value V, out []evicted[K, V]) []evicted[K, V] {
	for s.lru.Len() >= c.capacity {
		oldest, ok := s.lru.RemoveOldest()
		if !ok {
			break
		}
		out = append(out, evicted[K, V]{oldest, s.entries[oldest].value})
		delete(s.entries, oldest)
		c.evictions.Add(1)
	}
	s.entries[key] = &entry[K, V]{value: value, node: s.lru.PushFront(key)}
	return out
}

func (c *ShardedCache[K, V]) notify(out []evicted[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range out {
		c.onEvict(e.key, e.value)
	}
}

// Delete removes an entry. Returns true if it was present.
func (c *ShardedCache[K, V]) Delete(key K) bool {
	s := c.shardFor(key)
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.lru.Remove(e.node)
	delete(s.entries, key)
	s.mu.Unlock()
	c.notify([]evicted[K, V]{{key, e.value}})
	return true
}

// Clear removes every entry, passing each to the evict callback.
func (c *ShardedCache[K, V]) Clear() {
	var out []evicted[K, V]
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			out = append(out, evicted[K, V]{k, e.value})
		}
		s.entries = make(map[K]*entry[K, V])
		s.lru.Clear()
		s.mu.Unlock()
	}
	c.notify(out)
}

// Range calls fn for every entry until fn returns false. The iteration
// order is unspecified and fn must not call back into the cache.
func (c *ShardedCache[K, V]) Range(fn func(K, V) bool) {
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if !fn(k, e.value) {
				s.mu.Unlock()
				return
			}
		}
		s.mu.Unlock()
	}
}

// Len returns the number of entries across all shards.
func (c *ShardedCache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

// Capacity returns the per-shard capacity.
func (c *ShardedCache[K, V]) Capacity() int {
	return c.capacity
}

// Stats returns a snapshot of the cache counters.
func (c *ShardedCache[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Len:       c.Len(),
		Capacity:  c.capacity * ShardCount,
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Evictions: c.evictions.Load(),
	}
}
