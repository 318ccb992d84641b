package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is a size-bounded cache with idle expiry. Values for which the
// pin function reports true are never expired or evicted, so the cache may
// temporarily hold more than maxSize pinned values.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	pinned  func(T) bool
	now     func() time.Time
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with TTL
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// Pin installs the predicate that protects values from expiry and eviction.
func (c *LRUCache[T]) Pin(fn func(T) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = fn
}

func (c *LRUCache[T]) isPinned(item *cacheItem[T]) bool {
	return c.pinned != nil && c.pinned(item.data)
}

func (c *LRUCache[T]) expired(item *cacheItem[T], now time.Time) bool {
	return now.After(item.expiresAt) && !c.isPinned(item)
}

// Get retrieves a value and marks it most recently used.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if c.expired(item, c.now()) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

// Set stores a value and restarts its expiry.
func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem
	c.evict()
}

// Touch restarts the expiry of key without changing its position.
func (c *LRUCache[T]) Touch(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		elem.Value.(*cacheItem[T]).expiresAt = c.now().Add(c.ttl)
	}
}

// evict drops least recently used unpinned values until the size bound holds.
// The front value, the one just stored, is never dropped.
func (c *LRUCache[T]) evict() {
	front := c.lru.Front()
	for elem := c.lru.Back(); elem != nil && elem != front && c.lru.Len() > c.maxSize; {
		prev := elem.Prev()
		if !c.isPinned(elem.Value.(*cacheItem[T])) {
			c.removeElement(elem)
		}
		elem = prev
	}
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// Clear removes everything, pinned values included.
func (c *LRUCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
}

// Range calls fn for every live value, most recent first, until fn returns
// false. fn must not call back into the cache.
func (c *LRUCache[T]) Range(fn func(key string, data T) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*cacheItem[T])
		if c.expired(item, now) {
			continue
		}
		if !fn(item.key, item.data) {
			return
		}
	}
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var toRemove []*list.Element

	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if c.expired(elem.Value.(*cacheItem[T]), now) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		c.removeElement(elem)
	}

	return len(toRemove)
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
