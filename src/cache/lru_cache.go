package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Entry holds a cached value with its expiry.
type Entry[V any] struct {
	Value     V         `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LRUCache is a thread-safe LRU cache with TTL support.
type LRUCache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	lru      *list.List
	now      func() time.Time
}

type item[V any] struct {
	key   string
	entry Entry[V]
}

// NewLRUCache creates a cache holding at most capacity entries, each living for ttl.
func NewLRUCache[V any](capacity int, ttl time.Duration) *LRUCache[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get returns the value stored under key if present and not expired.
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	it := elem.Value.(*item[V])
	if c.now().After(it.entry.ExpiresAt) {
		c.lru.Remove(elem)
		delete(c.items, key)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return it.entry.Value, true
}

// Set adds or replaces the value for key and evicts the least recently used entry when full.
func (c *LRUCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent := Entry[V]{Value: value, ExpiresAt: c.now().Add(c.ttl)}

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*item[V]).entry = ent
		return
	}

	c.items[key] = c.lru.PushFront(&item[V]{key: key, entry: ent})
	c.evict()
}

// Clear removes all entries.
func (c *LRUCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.lru.Init()
}

// Len returns the number of entries, expired ones included until they are touched.
func (c *LRUCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Dump returns a copy of the live entries for persistence.
func (c *LRUCache[V]) Dump() map[string]Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dump := make(map[string]Entry[V], len(c.items))
	for k, elem := range c.items {
		ent := elem.Value.(*item[V]).entry
		if now.After(ent.ExpiresAt) {
			continue
		}
		dump[k] = ent
	}
	return dump
}

// Restore replaces the cache contents with dump, skipping expired entries.
func (c *LRUCache[V]) Restore(dump map[string]Entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Init()
	c.items = make(map[string]*list.Element, c.capacity)

	now := c.now()
	for k, v := range dump {
		if now.After(v.ExpiresAt) {
			continue
		}
		c.items[k] = c.lru.PushFront(&item[V]{key: k, entry: v})
	}
	c.evict()
}

func (c *LRUCache[V]) evict() {
	for c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest == nil {
			return
		}
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*item[V]).key)
	}
}

// HashKey derives a cache key from a prompt.
func HashKey(prompt string) string {
	h := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(h[:])
}
