// Package snapcache is a small TTL-bounded LRU cache for repository snapshot
// previews. Previews are read-only and cheap to regenerate, so entries expire
// after a fixed interval and the least recently used entry is evicted when
// the cache is full.
//
// A hash map gives O(1) lookup; a doubly linked list with sentinels keeps
// eviction order in O(1).
package snapcache

import (
	"sync"
	"time"
)

type node[V any] struct {
	key       string
	val       V
	expiresAt time.Time
	prev      *node[V]
	next      *node[V]
}

// Cache is a thread-safe LRU cache with per-entry expiry.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*node[V]
	head     *node[V] // most recently used (sentinel)
	tail     *node[V] // least recently used (sentinel)

	now func() time.Time
}

// New creates a cache holding at most capacity entries, each valid for ttl.
// Panics if capacity < 1 or ttl <= 0.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity < 1 {
		panic("snapcache: capacity must be >= 1")
	}
	if ttl <= 0 {
		panic("snapcache: ttl must be positive")
	}

	head := &node[V]{}
	tail := &node[V]{}
	head.next = tail
	tail.prev = head

	return &Cache[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*node[V], capacity),
		head:     head,
		tail:     tail,
		now:      time.Now,
	}
}

// Get returns the cached value for key if present and unexpired. An expired
// entry is removed on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	n, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.now().After(n.expiresAt) {
		c.unlink(n)
		delete(c.items, key)
		return zero, false
	}

	c.moveToFront(n)
	return n.val, true
}

// Put stores a value under key, resetting its expiry. When the cache is at
// capacity the least recently used entry is evicted.
func (c *Cache[V]) Put(key string, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)

	if n, ok := c.items[key]; ok {
		n.val = val
		n.expiresAt = expires
		c.moveToFront(n)
		return
	}

	if len(c.items) >= c.capacity {
		victim := c.tail.prev
		c.unlink(victim)
		delete(c.items, victim.key)
	}

	n := &node[V]{key: key, val: val, expiresAt: expires}
	c.items[key] = n
	c.pushFront(n)
}

// Len returns the number of entries, expired ones included until accessed.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[V]) moveToFront(n *node[V]) {
	c.unlink(n)
	c.pushFront(n)
}

func (c *Cache[V]) pushFront(n *node[V]) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *Cache[V]) unlink(n *node[V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
}
