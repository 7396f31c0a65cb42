package cache

import (
	"sync"
	"time"
)

// LRU is a capacity-bounded in-memory KV store with least-recently-used
// eviction and optional per-entry deadlines.
// All methods are safe for concurrent use by multiple goroutines.
//
// A single mutex covers the whole read-evaluate-evict-insert sequence, so
// concurrent writers can never push the store past Capacity.
type LRU[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu     sync.Mutex
	m      map[K]*node[K, V]
	head   *node[K, V] // MRU
	tail   *node[K, V] // LRU
	len    int
	evicts uint64 // capacity evictions since creation or last Clear

	cap int
	opt Options[K, V]
}

// Stats is a snapshot of the store state.
type Stats[K comparable] struct {
	Size         int
	MaxSize      int
	UsagePercent float64
	Keys         []K // MRU first
	Evictions    uint64
}

// New constructs an LRU with the provided Options.
// Defaults:
//   - nil Metrics -> NoopMetrics
//   - nil Clock   -> SystemClock
func New[K comparable, V any](opt Options[K, V]) *LRU[K, V] {
	if opt.Capacity <= 0 {
		panic("Capacity must be > 0")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Clock == nil {
		opt.Clock = SystemClock{}
	}
	return &LRU[K, V]{
		m:   make(map[K]*node[K, V], opt.Capacity),
		cap: opt.Capacity,
		opt: opt,
	}
}

// Get returns the value for k and a presence flag.
// On hit, the entry becomes MRU and its last-access time is refreshed.
// An expired entry is removed and reported absent.
func (c *LRU[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.m[k]
	if !ok {
		var zero V
		return zero, false
	}
	now := c.opt.Clock.NowUnixNano()
	if n.expired(now) {
		c.evictNode(n, EvictTTL)
		c.opt.Metrics.Size(c.len)
		var zero V
		return zero, false
	}
	n.accessed = now
	c.moveToFront(n)
	return n.val, true
}

// Peek returns the value for k without touching recency.
// Expired entries are reported absent but left for RemoveExpired.
func (c *LRU[K, V]) Peek(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.m[k]
	if !ok || n.expired(c.opt.Clock.NowUnixNano()) {
		var zero V
		return zero, false
	}
	return n.val, true
}

// Set inserts or updates k→v using DefaultTTL (if any).
func (c *LRU[K, V]) Set(k K, v V) {
	c.SetWithTTL(k, v, c.opt.DefaultTTL)
}

// SetWithTTL inserts or updates k→v with a per-key TTL (relative duration).
// A non-positive ttl disables expiration for this entry.
//
// If k is new and the store is full, the LRU entry is evicted before the
// insert. Updating an existing key never evicts.
func (c *LRU[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opt.Clock.NowUnixNano()
	var exp int64
	if ttl > 0 {
		exp = now + int64(ttl)
	}

	if n, ok := c.m[k]; ok {
		n.val = v
		n.added = now
		n.accessed = now
		n.exp = exp
		c.moveToFront(n)
		return
	}

	if c.len >= c.cap {
		if tail := c.tail; tail != nil {
			c.evictNode(tail, EvictCapacity)
		}
	}

	n := &node[K, V]{key: k, val: v, added: now, accessed: now, exp: exp}
	c.m[k] = n
	c.insertFront(n)
	c.opt.Metrics.Size(c.len)
}

// SetEntry inserts e keeping its recorded timestamps and deadline, as when
// warming the store from a snapshot. It follows the same capacity rules as
// Set and returns false (storing nothing) if e is already expired.
// Feed entries LRU first to reproduce the snapshot's recency order.
func (c *LRU[K, V]) SetEntry(e Entry[K, V]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.Deadline != 0 && c.opt.Clock.NowUnixNano() >= e.Deadline {
		return false
	}

	if n, ok := c.m[e.Key]; ok {
		n.val = e.Value
		n.added = e.InsertedAt
		n.accessed = e.LastAccess
		n.exp = e.Deadline
		c.moveToFront(n)
		return true
	}

	if c.len >= c.cap {
		if tail := c.tail; tail != nil {
			c.evictNode(tail, EvictCapacity)
		}
	}

	n := &node[K, V]{key: e.Key, val: e.Value, added: e.InsertedAt, accessed: e.LastAccess, exp: e.Deadline}
	c.m[e.Key] = n
	c.insertFront(n)
	c.opt.Metrics.Size(c.len)
	return true
}

// Remove deletes k if present and returns true on success.
// Explicit removal is not counted as an eviction.
func (c *LRU[K, V]) Remove(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.m[k]
	if !ok {
		return false
	}
	c.removeNode(n)
	delete(c.m, k)
	c.opt.Metrics.Size(c.len)
	return true
}

// RemoveExpired scans the store and drops every expired entry.
// Returns the number of entries removed.
func (c *LRU[K, V]) RemoveExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opt.Clock.NowUnixNano()
	removed := 0
	for n := c.head; n != nil; {
		next := n.next
		if n.expired(now) {
			c.evictNode(n, EvictTTL)
			removed++
		}
		n = next
	}
	if removed > 0 {
		c.opt.Metrics.Size(c.len)
	}
	return removed
}

// Clear drops every entry and resets the eviction counter.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.m = make(map[K]*node[K, V], c.cap)
	c.head, c.tail = nil, nil
	c.len = 0
	c.evicts = 0
	c.opt.Metrics.Size(0)
}

// Len returns the number of resident entries (expired ones included until
// they are touched or swept).
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.len
}

// Cap returns the configured capacity.
func (c *LRU[K, V]) Cap() int { return c.cap }

// Keys returns resident keys ordered from MRU to LRU.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keysLocked()
}

// Entries returns a copy of every resident entry ordered from MRU to LRU.
func (c *LRU[K, V]) Entries() []Entry[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry[K, V], 0, c.len)
	for n := c.head; n != nil; n = n.next {
		out = append(out, n.entry())
	}
	return out
}

// Stats returns a consistent snapshot of size, capacity and evictions.
func (c *LRU[K, V]) Stats() Stats[K] {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats[K]{
		Size:         c.len,
		MaxSize:      c.cap,
		UsagePercent: float64(c.len) / float64(c.cap) * 100,
		Keys:         c.keysLocked(),
		Evictions:    c.evicts,
	}
}

// -------------------- internals (mu held) --------------------

func (c *LRU[K, V]) keysLocked() []K {
	out := make([]K, 0, c.len)
	for n := c.head; n != nil; n = n.next {
		out = append(out, n.key)
	}
	return out
}

// insertFront inserts n at MRU in O(1).
func (c *LRU[K, V]) insertFront(n *node[K, V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
	c.len++
}

// moveToFront promotes n to MRU in O(1).
func (c *LRU[K, V]) moveToFront(n *node[K, V]) {
	if n == c.head {
		return
	}
	// detach
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if c.tail == n {
		c.tail = n.prev
	}
	// insert at head
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

// removeNode unlinks n and updates the length in O(1).
func (c *LRU[K, V]) removeNode(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if c.head == n {
		c.head = n.next
	}
	if c.tail == n {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
	c.len--
}

// evictNode removes the node, updates counters and calls OnEvict.
// Only capacity evictions count towards Stats().Evictions.
func (c *LRU[K, V]) evictNode(n *node[K, V], reason EvictReason) {
	c.removeNode(n)
	delete(c.m, n.key)
	if reason == EvictCapacity {
		c.evicts++
	}
	c.opt.Metrics.Evict(reason)
	if cb := c.opt.OnEvict; cb != nil {
		cb(n.key, n.val, reason)
	}
}
