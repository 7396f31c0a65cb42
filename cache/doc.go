// Package cache provides a generic, capacity-bounded in-memory store with
// least-recently-used eviction and optional per-entry TTL.
//
// Design
//
//   - Concurrency: one mutex guards the map and the list, so every
//     read-evaluate-evict-insert sequence is atomic and the store never
//     exceeds Capacity, even under concurrent writers.
//
//   - Storage: a map[K]*node for lookups and an intrusive MRU↔LRU doubly
//     linked list for ordering. All operations are O(1) expected, except
//     RemoveExpired, Keys and Entries which walk the list.
//
//   - Eviction: inserting a new key into a full store first evicts the tail
//     of the list. Recency is the list order itself, so there are no
//     timestamp ties to break.
//
//   - TTL: entries can carry an absolute deadline (UnixNano). Expiration is
//     lazy on Get and eager in RemoveExpired. An entry is expired once its
//     age reaches the TTL.
//
//   - Metrics: Options.Metrics receives Evict/Size signals. Hit and miss
//     accounting is left to the owner of the store.
//
// Basic usage
//
//	c := cache.New[string, []byte](cache.Options[string, []byte]{Capacity: 10_000})
//	c.Set("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//	c.Remove("a")
//
// With TTL
//
//	c := cache.New[string, string](cache.Options[string, string]{Capacity: 1024})
//	c.SetWithTTL("tmp", "v", 200*time.Millisecond)
//	time.Sleep(300*time.Millisecond)
//	_, ok := c.Get("tmp") // ok == false (expired)
package cache
