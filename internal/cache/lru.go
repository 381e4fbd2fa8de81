package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a size-bounded cache. Every entry lives for at most ttl, and a
// caller can shorten that per entry with PutFor.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	limit   int
	ttl     time.Duration
	index   map[K]*list.Element
	recency *list.List // front is most recently used
	nowFn   func() time.Time
	onEvict func(K)

	hits   int64
	misses int64
}

type slot[K comparable, V any] struct {
	key      K
	value    V
	deadline time.Time
}

// NewLRU creates an LRU holding at most capacity entries (minimum 1).
func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	capacity = max(capacity, 1)
	return &LRU[K, V]{
		limit:   capacity,
		ttl:     ttl,
		index:   make(map[K]*list.Element, capacity),
		recency: list.New(),
		nowFn:   time.Now,
	}
}

// SetClock replaces the time source used for expiry.
func (c *LRU[K, V]) SetClock(nowFn func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowFn = nowFn
}

// OnEvict registers fn for entries pushed out by the capacity limit.
// Expiry and Remove do not call it.
func (c *LRU[K, V]) OnEvict(fn func(K)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.index[key]
	if !ok {
		c.misses++
		return zero, false
	}
	s := elem.Value.(*slot[K, V])
	if !c.nowFn().Before(s.deadline) {
		c.drop(elem)
		c.misses++
		return zero, false
	}
	c.recency.MoveToFront(elem)
	c.hits++
	return s.value, true
}

// Put stores value for the full ttl.
func (c *LRU[K, V]) Put(key K, value V) {
	c.PutFor(key, value, c.ttl)
}

// PutFor stores value for min(lifetime, ttl). A non-positive lifetime
// removes key instead.
func (c *LRU[K, V]) PutFor(key K, value V, lifetime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.index[key]
	if lifetime <= 0 {
		if exists {
			c.drop(elem)
		}
		return
	}
	deadline := c.nowFn().Add(min(lifetime, c.ttl))
	if exists {
		s := elem.Value.(*slot[K, V])
		s.value, s.deadline = value, deadline
		c.recency.MoveToFront(elem)
		return
	}
	for c.recency.Len() >= c.limit {
		oldest := c.recency.Back()
		c.drop(oldest)
		if c.onEvict != nil {
			c.onEvict(oldest.Value.(*slot[K, V]).key)
		}
	}
	c.index[key] = c.recency.PushFront(&slot[K, V]{key: key, value: value, deadline: deadline})
}

func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.index[key]; ok {
		c.drop(elem)
	}
}

// Len counts stored entries, including expired ones not yet dropped.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

func (c *LRU[K, V]) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *LRU[K, V]) drop(elem *list.Element) {
	c.recency.Remove(elem)
	delete(c.index, elem.Value.(*slot[K, V]).key)
}
