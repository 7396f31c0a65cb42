package cache

// node is an intrusive doubly linked list element owned by an LRU.
// It stores the key/value alongside list links and the timestamps used for
// expiry and inspection.
type node[K comparable, V any] struct {
	key K
	val V

	// Intrusive list links: head is MRU, tail is LRU.
	prev *node[K, V]
	next *node[K, V]

	// UnixNano timestamps. added is reset on overwrite; accessed on every hit.
	added    int64
	accessed int64

	// Absolute expiration deadline in UnixNano.
	// Zero means "no TTL".
	exp int64
}

// expired reports whether the node's deadline has been reached at now.
// An entry whose age equals its TTL is already expired.
func (n *node[K, V]) expired(now int64) bool {
	return n.exp != 0 && now >= n.exp
}

// Entry is a point-in-time copy of a resident entry.
type Entry[K comparable, V any] struct {
	Key        K
	Value      V
	InsertedAt int64 // UnixNano
	LastAccess int64 // UnixNano
	Deadline   int64 // UnixNano, 0 = no TTL
}

func (n *node[K, V]) entry() Entry[K, V] {
	return Entry[K, V]{
		Key:        n.key,
		Value:      n.val,
		InsertedAt: n.added,
		LastAccess: n.accessed,
		Deadline:   n.exp,
	}
}
