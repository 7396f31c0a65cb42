// Package response caches computed answers keyed by a normalized fingerprint
// of the question.
//
// Two questions that differ only in case, accents, punctuation or spacing
// share a fingerprint and therefore a cache entry:
//
//	rc := response.New(response.Options{MaxSize: 1000, Duration: 24 * time.Hour})
//	rc.Set("¿Cuál es el precio?", "42")
//	v, ok := rc.Get("cual es el precio") // "42", true
//
// Entries expire Duration after they were stored. Reads refresh recency for
// eviction but never extend the lifetime. Expired entries are dropped lazily
// on Get and eagerly by CleanupExpired (or RunJanitor).
//
// GetOrCompute coalesces concurrent misses for the same fingerprint into a
// single compute call and caches only successful results.
package response
