package util

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

type lruEntry[K comparable, V any] struct {
	key        K
	value      V
	expiration time.Time
}

// LRUCache is a thread-safe cache bounded by entry count, with optional
// per-entry TTL. A TTL of zero means entries never expire.
type LRUCache[K comparable, V any] struct {
	capacity int
	ttl      time.Duration

	mu    sync.Mutex
	ll    *list.List
	items map[K]*list.Element
}

// NewLRU creates a cache holding at most capacity entries.
func NewLRU[K comparable, V any](capacity int, ttl time.Duration) (*LRUCache[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[K]*list.Element),
	}, nil
}

// Get returns the cached value and marks it most recently used. Expired
// entries are removed on access.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}

	entry := element.Value.(*lruEntry[K, V])
	if c.ttl > 0 && time.Now().After(entry.expiration) {
		c.removeLocked(element)
		var zero V
		return zero, false
	}

	c.ll.MoveToFront(element)
	return entry.value, true
}

// Put inserts or refreshes a key, evicting the least recently used entry
// when the cache is full.
func (c *LRUCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		entry := element.Value.(*lruEntry[K, V])
		entry.value = value
		if c.ttl > 0 {
			entry.expiration = time.Now().Add(c.ttl)
		}
		c.ll.MoveToFront(element)
		return
	}

	entry := &lruEntry[K, V]{key: key, value: value}
	if c.ttl > 0 {
		entry.expiration = time.Now().Add(c.ttl)
	}
	c.items[key] = c.ll.PushFront(entry)

	if c.ll.Len() > c.capacity {
		if back := c.ll.Back(); back != nil {
			c.removeLocked(back)
		}
	}
}

// Len reports the current entry count.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRUCache[K, V]) removeLocked(element *list.Element) {
	c.ll.Remove(element)
	entry := element.Value.(*lruEntry[K, V])
	delete(c.items, entry.key)
}
