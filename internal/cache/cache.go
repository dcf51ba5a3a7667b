// Package cache provides a byte-budgeted LRU cache.
//
// Entries are charged by a caller-supplied size function. When the total
// size exceeds the budget, the least recently used entries are evicted until
// it fits again. An entry larger than the whole budget is still stored, so
// the most recent value is always retrievable.
//
//	c := cache.New[string, []byte](64<<20, cache.BytesSize)
//	c.Set("model", blob)
//	blob, ok := c.Get("model")
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache

import "sync"

// node is an element of the recency list. The list is circular around a
// sentinel; sentinel.next is the most recently used entry.
type node[K comparable, V any] struct {
	key        K
	value      V
	size       int64
	prev, next *node[K, V]
}

// Cache is a generic LRU cache bounded by total entry size.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]*node[K, V]
	sentinel node[K, V]
	budget   int64
	used     int64
	size     func(V) int64

	hits, misses, evictions uint64
}

// BytesSize charges a byte slice by its length.
func BytesSize(b []byte) int64 {
	return int64(len(b))
}

// New creates a cache holding at most budget size units.
// A budget of 0 means unlimited. A nil size function charges 1 per entry.
func New[K comparable, V any](budget int64, size func(V) int64) *Cache[K, V] {
	if size == nil {
		size = func(V) int64 { return 1 }
	}
	c := &Cache[K, V]{
		entries: make(map[K]*node[K, V]),
		budget:  budget,
		size:    size,
	}
	c.sentinel.prev = &c.sentinel
	c.sentinel.next = &c.sentinel
	return c
}

// Get retrieves a value and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.unlink(n)
	c.pushFront(n)
	return n.value, true
}

// Set stores a value, replacing any previous value for key, and evicts the
// least recently used entries while the cache is over budget.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.unlink(old)
		c.used -= old.size
		delete(c.entries, key)
	}
	n := &node[K, V]{key: key, value: value, size: c.size(value)}
	c.entries[key] = n
	c.pushFront(n)
	c.used += n.size

	for c.budget > 0 && c.used > c.budget && len(c.entries) > 1 {
		oldest := c.sentinel.prev
		c.unlink(oldest)
		c.used -= oldest.size
		delete(c.entries, oldest.key)
		c.evictions++
	}
}

// Delete removes an entry from the cache.
// Returns true if the entry was found and removed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return false
	}
	c.unlink(n)
	c.used -= n.size
	delete(c.entries, key)
	return true
}

// Clear removes all entries. Statistics are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*node[K, V])
	c.sentinel.prev = &c.sentinel
	c.sentinel.next = &c.sentinel
	c.used = 0
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the keys from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.entries))
	for n := c.sentinel.next; n != &c.sentinel; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Len:       len(c.entries),
		Used:      c.used,
		Budget:    c.budget,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// pushFront inserts n as the most recently used entry. Caller must hold c.mu.
func (c *Cache[K, V]) pushFront(n *node[K, V]) {
	n.prev = &c.sentinel
	n.next = c.sentinel.next
	c.sentinel.next.prev = n
	c.sentinel.next = n
}

// unlink removes n from the recency list. Caller must hold c.mu.
func (c *Cache[K, V]) unlink(n *node[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Used is the total charged size of all entries.
	Used int64
	// Budget is the size limit (0 means unlimited).
	Budget int64
	// Hits and Misses count Get outcomes.
	Hits, Misses uint64
	// HitRate is Hits / (Hits + Misses), or 0 before the first Get.
	HitRate float64
	// Evictions is the number of entries dropped to stay within budget.
	Evictions uint64
}
