// Package loader provides lazy, single-flight construction of expensive
// named resources (model instances, clients, indexes) with a bound on how
// many constructions run at once.
//
// Resources are registered up front with a Factory and built on the first
// Get. Constructed instances live in an LRU-bounded cache; when the cache
// pushes one out, or Unload drops it, the next Get builds it again.
//
//	l := loader.New[Model](loader.Options{CacheSize: 4, MaxConcurrent: 2})
//	defer l.Close()
//
//	l.Register("summarizer", func() (Model, error) { return loadSummarizer() })
//	m, err := l.Get("summarizer") // built once, even under concurrent callers
//
// Get for the same name serializes on a per-name lock and re-checks the
// cache after acquiring it, so callers that queued behind a construction
// receive its result instead of starting their own. Different names build
// in parallel, up to Options.MaxConcurrent, on a bounded worker pool.
//
// Failures are returned to the caller unchanged and never cached. Whether a
// failure turns into a degraded answer is the caller's decision.
package loader
