package cache

import (
	"time"
)

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictCapacity: removed to make room for a new key at capacity.
	EvictCapacity EvictReason = iota
	// EvictTTL: expired (lazily on access or by RemoveExpired).
	EvictTTL
)

// String returns a stable label for the reason.
func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	default:
		return "capacity"
	}
}

// Metrics exposes store-level observability hooks.
// Hit/miss accounting belongs to the owner of the store (the loader or the
// response cache), so it is not part of this interface.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Evict(reason EvictReason)
	Size(entries int)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) NowUnixNano() int64 { return time.Now().UnixNano() }

// Options configures the store. Zero values are safe except Capacity;
// defaults are applied in New():
//   - nil Metrics => NoopMetrics
//   - nil Clock   => SystemClock
type Options[K comparable, V any] struct {
	// Capacity is the entry count limit. Must be > 0.
	Capacity int

	// DefaultTTL applies to Set (0 = no TTL).
	DefaultTTL time.Duration

	// OnEvict is called for every capacity eviction and TTL removal,
	// under the store lock; keep callbacks lightweight and never call back
	// into the same store. Explicit Remove and Clear do not trigger it.
	OnEvict func(k K, v V, reason EvictReason)

	Metrics Metrics

	// Clock allows overriding the time source (tests).
	Clock Clock
}
