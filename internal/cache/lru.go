package cache

import (
	"container/list"
	"sync"
	"time"
)

// EvictReason says why an entry left the cache.
type EvictReason int

const (
	EvictCapacity EvictReason = iota
	EvictExpired
	EvictDeleted
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictExpired:
		return "expired"
	default:
		return "deleted"
	}
}

// LRUCache is a size-bounded cache whose entries expire after ttl of
// inactivity: every Get extends the entry's lifetime.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time
	onEvict func(key string, value T, reason EvictReason)
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

type evicted[T any] struct {
	key    string
	data   T
	reason EvictReason
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// OnEvict registers fn to run for every entry that leaves the cache. fn runs
// after the cache lock is released, so it may call back into the cache.
func (c *LRUCache[T]) OnEvict(fn func(key string, value T, reason EvictReason)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	var (
		zero T
		out  []evicted[T]
	)
	defer func() { c.notify(out) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}
	item := elem.Value.(*cacheItem[T])
	now := c.now()
	if now.After(item.expiresAt) {
		out = append(out, c.removeElement(elem, EvictExpired))
		return zero, false
	}
	item.expiresAt = now.Add(c.ttl)
	c.lru.MoveToFront(elem)
	return item.data, true
}

// Set stores data under key. Replacing an existing value does not evict it.
func (c *LRUCache[T]) Set(key string, data T) {
	var out []evicted[T]
	defer func() { c.notify(out) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{key: key, data: data, expiresAt: c.now().Add(c.ttl)}
	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem
	for c.maxSize > 0 && c.lru.Len() > c.maxSize {
		out = append(out, c.removeElement(c.lru.Back(), EvictCapacity))
	}
}

func (c *LRUCache[T]) Delete(key string) {
	var out []evicted[T]
	defer func() { c.notify(out) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, exists := c.items[key]; exists {
		out = append(out, c.removeElement(elem, EvictDeleted))
	}
}

func (c *LRUCache[T]) removeElement(elem *list.Element, reason EvictReason) evicted[T] {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
	return evicted[T]{key: item.key, data: item.data, reason: reason}
}

func (c *LRUCache[T]) notify(out []evicted[T]) {
	if len(out) == 0 {
		return
	}
	c.mu.Lock()
	fn := c.onEvict
	c.mu.Unlock()
	if fn == nil {
		return
	}
	for _, e := range out {
		fn(e.key, e.data, e.reason)
	}
}

// CleanExpired removes all expired entries and returns how many it removed.
func (c *LRUCache[T]) CleanExpired() int {
	var out []evicted[T]
	defer func() { c.notify(out) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*cacheItem[T]).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		out = append(out, c.removeElement(elem, EvictExpired))
	}
	return len(toRemove)
}

// Purge removes every entry, e.g. at shutdown.
func (c *LRUCache[T]) Purge() int {
	var out []evicted[T]
	defer func() { c.notify(out) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		out = append(out, c.removeElement(elem, EvictDeleted))
		elem = next
	}
	return len(out)
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
