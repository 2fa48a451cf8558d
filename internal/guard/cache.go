package guard

import (
	"container/list"
	"sync"
	"time"
)

// resultCache is a thread-safe LRU cache with TTL for safety results. A hit
// skips the whole validator fan-out; the key embeds the rule-table checksum so
// stale entries die when the rules change.
type resultCache struct {
	mu      sync.RWMutex
	items   map[string]*list.Element
	lru     *list.List
	maxSize int
	ttl     time.Duration
}

type cacheItem struct {
	key       string
	value     *ComprehensiveSafetyResult
	expiresAt time.Time
}

func newResultCache(maxSize int, ttl time.Duration) *resultCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &resultCache{
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns a copy of the cached result, or nil on miss or expiry. Expired
// items are left in place; Set sweeps them.
func (c *resultCache) Get(key string) *ComprehensiveSafetyResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elem, exists := c.items[key]
	if !exists {
		return nil
	}

	item := elem.Value.(*cacheItem)
	if time.Now().After(item.expiresAt) {
		return nil
	}

	result := *item.value
	return &result
}

func (c *resultCache) Set(key string, value *ComprehensiveSafetyResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.lru.MoveToFront(elem)
		item := elem.Value.(*cacheItem)
		item.value = value
		item.expiresAt = time.Now().Add(c.ttl)
		return
	}

	elem := c.lru.PushFront(&cacheItem{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		c.evictOldest()
	}
	if c.lru.Len()%100 == 0 {
		c.cleanExpired()
	}
}

func (c *resultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru = list.New()
}

func (c *resultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

func (c *resultCache) evictOldest() {
	if elem := c.lru.Back(); elem != nil {
		c.removeElement(elem)
	}
}

func (c *resultCache) removeElement(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.items, elem.Value.(*cacheItem).key)
}

func (c *resultCache) cleanExpired() {
	now := time.Now()
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*cacheItem).expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
}
