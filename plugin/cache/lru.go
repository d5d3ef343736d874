package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRUCache is a size-bounded cache with per-entry expiry.
type LRUCache struct {
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	order   *list.List // front is most recently used
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	element   *list.Element
}

// NewLRUCache creates an LRU cache holding at most capacity entries.
func NewLRUCache(capacity int, defaultTTL time.Duration) *LRUCache {
	return newLRUCache(capacity, defaultTTL, time.Now)
}

func newLRUCache(capacity int, defaultTTL time.Duration, now func() time.Time) *LRUCache {
	if capacity <= 0 {
		capacity = 256
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &LRUCache{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		now:        now,
		entries:    make(map[string]*entry),
		order:      list.New(),
	}
}

// Get returns a live entry and marks it recently used.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.remove(e)
		return nil, false
	}

	c.order.MoveToFront(e.element)
	return e.value, true
}

// Set stores value, evicting the least recently used entry when full.
func (c *LRUCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(e.element)
		return
	}

	for len(c.entries) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest.Value.(*entry))
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	e.element = c.order.PushFront(e)
	c.entries[key] = e
}

// Invalidate removes key, or all keys sharing the prefix before a trailing "*".
// It returns the number of entries removed.
func (c *LRUCache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix, wildcard := strings.CutSuffix(pattern, "*")
	if !wildcard {
		if e, ok := c.entries[pattern]; ok {
			c.remove(e)
			return 1
		}
		return 0
	}

	count := 0
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.remove(e)
			count++
		}
	}
	return count
}

// Size returns the number of entries, including expired ones not yet collected.
func (c *LRUCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order.Init()
}

// CleanupExpired removes expired entries and returns how many were removed.
func (c *LRUCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if e := el.Value.(*entry); !now.Before(e.expiresAt) {
			c.remove(e)
			removed++
		}
		el = prev
	}
	return removed
}

// remove must be called with the lock held.
func (c *LRUCache) remove(e *entry) {
	c.order.Remove(e.element)
	delete(c.entries, e.key)
}
