package cache

import (
	"container/list"
	"sync"
	"time"

	"skillgoblin/internal/metrics"
)

// Reason tells an eviction callback why an entry was dropped.
type Reason string

const (
	ReasonCapacity Reason = "capacity"
	ReasonExpired  Reason = "expired"
	ReasonRemoved  Reason = "removed"
)

// Options configures a Cache.
type Options[K comparable, V any] struct {
	// Name labels the cache in metrics; empty disables metrics.
	Name string
	// Capacity is the maximum number of entries; values below 1 mean 1.
	Capacity int
	// TTL is the entry lifetime; zero keeps entries until evicted.
	TTL time.Duration
	// Sliding restarts the TTL on every successful Get.
	Sliding bool
	// OnEvict is called for every entry leaving the cache.
	OnEvict func(key K, value V, reason Reason)
	// Now overrides the clock in tests.
	Now func() time.Time
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

type eviction[K comparable, V any] struct {
	key    K
	value  V
	reason Reason
}

// Cache is a mutex-protected LRU cache with per-entry expiry.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	ll    *list.List // front is most recently used
	items map[K]*list.Element
	opts  Options[K, V]
}

// New creates a Cache.
func New[K comparable, V any](opts Options[K, V]) *Cache[K, V] {
	if opts.Capacity < 1 {
		opts.Capacity = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache[K, V]{
		ll:    list.New(),
		items: make(map[K]*list.Element, opts.Capacity),
		opts:  opts,
	}
}

// Capacity returns the maximum number of entries.
func (c *Cache[K, V]) Capacity() int {
	return c.opts.Capacity
}

func (c *Cache[K, V]) expired(e *entry[K, V], now time.Time) bool {
	return c.opts.TTL > 0 && !now.Before(e.expires)
}

func (c *Cache[K, V]) expiry(now time.Time) time.Time {
	if c.opts.TTL <= 0 {
		return time.Time{}
	}
	return now.Add(c.opts.TTL)
}

// removeElement unlinks el; the caller holds the lock.
func (c *Cache[K, V]) removeElement(el *list.Element, reason Reason, out []eviction[K, V]) []eviction[K, V] {
	e := el.Value.(*entry[K, V])
	c.ll.Remove(el)
	delete(c.items, e.key)
	return append(out, eviction[K, V]{key: e.key, value: e.value, reason: reason})
}

// finish reports evictions after the lock has been released.
func (c *Cache[K, V]) finish(evicted []eviction[K, V], size int) {
	if c.opts.Name != "" {
		for _, ev := range evicted {
			metrics.CacheEvictions.WithLabelValues(c.opts.Name, string(ev.reason)).Inc()
		}
		metrics.CacheEntries.WithLabelValues(c.opts.Name).Set(float64(size))
	}
	if c.opts.OnEvict != nil {
		for _, ev := range evicted {
			c.opts.OnEvict(ev.key, ev.value, ev.reason)
		}
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	var evicted []eviction[K, V]

	c.mu.Lock()
	now := c.opts.Now()
	el, ok := c.items[key]
	if ok {
		e := el.Value.(*entry[K, V])
		if c.expired(e, now) {
			evicted = c.removeElement(el, ReasonExpired, evicted)
			ok = false
		} else {
			c.ll.MoveToFront(el)
			if c.opts.Sliding {
				e.expires = c.expiry(now)
			}
			zero = e.value
		}
	}
	size := c.ll.Len()
	c.mu.Unlock()

	if c.opts.Name != "" {
		if ok {
			metrics.CacheHits.WithLabelValues(c.opts.Name).Inc()
		} else {
			metrics.CacheMisses.WithLabelValues(c.opts.Name).Inc()
		}
	}
	if len(evicted) > 0 {
		c.finish(evicted, size)
	}
	return zero, ok
}

// Peek returns the value for key without touching recency or metrics.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		if !c.expired(e, c.opts.Now()) {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// Set stores value under key. A previous value for key is evicted as
// removed; if the cache is full the least recently used entries go first.
func (c *Cache[K, V]) Set(key K, value V) {
	var evicted []eviction[K, V]

	c.mu.Lock()
	now := c.opts.Now()
	if el, ok := c.items[key]; ok {
		evicted = c.removeElement(el, ReasonRemoved, evicted)
	}
	for c.ll.Len() >= c.opts.Capacity {
		evicted = c.removeElement(c.ll.Back(), ReasonCapacity, evicted)
	}
	c.items[key] = c.ll.PushFront(&entry[K, V]{key: key, value: value, expires: c.expiry(now)})
	size := c.ll.Len()
	c.mu.Unlock()

	c.finish(evicted, size)
}

// Add stores value only if key is absent or expired and reports whether it did.
func (c *Cache[K, V]) Add(key K, value V) bool {
	c.mu.Lock()
	if el, ok := c.items[key]; ok && !c.expired(el.Value.(*entry[K, V]), c.opts.Now()) {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	c.Set(key, value)
	return true
}

// Remove drops key and reports whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	var evicted []eviction[K, V]

	c.mu.Lock()
	el, ok := c.items[key]
	if ok {
		evicted = c.removeElement(el, ReasonRemoved, evicted)
	}
	size := c.ll.Len()
	c.mu.Unlock()

	if ok {
		c.finish(evicted, size)
	}
	return ok
}

// Sweep drops every expired entry and returns how many were dropped.
func (c *Cache[K, V]) Sweep() int {
	if c.opts.TTL <= 0 {
		return 0
	}
	var evicted []eviction[K, V]

	c.mu.Lock()
	now := c.opts.Now()
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if c.expired(el.Value.(*entry[K, V]), now) {
			evicted = c.removeElement(el, ReasonExpired, evicted)
		}
		el = prev
	}
	size := c.ll.Len()
	c.mu.Unlock()

	c.finish(evicted, size)
	return len(evicted)
}

// Purge drops every entry.
func (c *Cache[K, V]) Purge() {
	var evicted []eviction[K, V]

	c.mu.Lock()
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		evicted = c.removeElement(el, ReasonRemoved, evicted)
		el = prev
	}
	c.mu.Unlock()

	c.finish(evicted, 0)
}

// Len returns the number of entries, expired ones included until swept.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Keys returns the keys from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}
