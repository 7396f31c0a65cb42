package response

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/IvanBrykalov/rescache/cache"
)

// Metrics exposes response-cache observability hooks.
type Metrics interface {
	cache.Metrics
	Hit()
	Miss()
}

// NoopMetrics is the default Metrics.
type NoopMetrics struct{ cache.NoopMetrics }

func (NoopMetrics) Hit()  {}
func (NoopMetrics) Miss() {}

var _ Metrics = NoopMetrics{}

// Options configures a Cache. Defaults are applied in New():
//   - MaxSize <= 0  => 1000
//   - Duration <= 0 => 24h
//   - nil Clock     => cache.SystemClock
//   - nil Logger    => zap.NewNop()
//   - nil Metrics   => NoopMetrics
type Options struct {
	MaxSize  int
	Duration time.Duration

	Clock   cache.Clock
	Logger  *zap.Logger
	Metrics Metrics
}

const (
	defaultMaxSize  = 1000
	defaultDuration = 24 * time.Hour
)

// entry is the stored value; timestamps live in the store node.
type entry struct {
	question string
	response string
}

// Entry is an inspectable copy of one cached answer.
type Entry struct {
	Fingerprint string
	Question    string
	Response    string
	InsertedAt  time.Time
	LastAccess  time.Time
}

// Stats is a snapshot of cache effectiveness.
type Stats struct {
	Hits          uint64
	Misses        uint64
	TotalRequests uint64
	HitRate       float64 // percent, 0 when there were no requests
	Size          int
	MaxSize       int
	UsagePercent  float64
	Evictions     uint64
	Duration      time.Duration
}

// Cache maps question fingerprints to previously computed answers.
// Entries expire a fixed Duration after insertion regardless of how often
// they are read; within that window the least recently read entry is
// evicted first when the cache is full.
//
// All methods are safe for concurrent use.
type Cache struct {
	store    *cache.LRU[string, entry]
	duration time.Duration
	log      *zap.Logger
	met      Metrics

	// coalesces concurrent GetOrCompute calls per fingerprint
	sf singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	total  atomic.Uint64
}

// New constructs a Cache. See Options for defaults.
func New(opt Options) *Cache {
	if opt.MaxSize <= 0 {
		opt.MaxSize = defaultMaxSize
	}
	if opt.Duration <= 0 {
		opt.Duration = defaultDuration
	}
	if opt.Clock == nil {
		opt.Clock = cache.SystemClock{}
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}

	c := &Cache{
		duration: opt.Duration,
		log:      opt.Logger.Named("response_cache"),
		met:      opt.Metrics,
	}
	c.store = cache.New[string, entry](cache.Options[string, entry]{
		Capacity:   opt.MaxSize,
		DefaultTTL: opt.Duration,
		Clock:      opt.Clock,
		Metrics:    opt.Metrics,
		OnEvict:    c.onEvict,
	})

	c.log.Info("response cache initialized",
		zap.Int("max_size", opt.MaxSize),
		zap.Duration("duration", opt.Duration),
	)
	return c
}

// Get returns the cached answer for question. Expired entries are dropped
// and reported as a miss.
func (c *Cache) Get(question string) (string, bool) {
	c.total.Add(1)
	e, ok := c.store.Get(Fingerprint(question))
	if !ok {
		c.misses.Add(1)
		c.met.Miss()
		c.log.Debug("cache miss", zap.String("question", preview(question)))
		return "", false
	}
	c.hits.Add(1)
	c.met.Hit()
	c.log.Debug("cache hit", zap.String("question", preview(question)))
	return e.response, true
}

// Set stores response under the fingerprint of question, evicting the least
// recently read entry first if the cache is full and the fingerprint is new.
func (c *Cache) Set(question, response string) {
	c.store.Set(Fingerprint(question), entry{question: question, response: response})
	c.log.Debug("response cached", zap.String("question", preview(question)))
}

// GetOrCompute returns the cached answer for question or computes, stores and
// returns it. Concurrent calls for equivalent questions share one compute.
// Errors are returned to every waiter and never cached. A panicking compute
// is recovered and reported as *PanicError.
//
// compute runs detached from ctx cancellation so a finished answer still
// lands in the cache; ctx only bounds how long this caller waits.
func (c *Cache) GetOrCompute(ctx context.Context, question string, compute func(context.Context) (string, error)) (string, error) {
	if v, ok := c.Get(question); ok {
		return v, nil
	}

	key := Fingerprint(question)
	ch := c.sf.DoChan(key, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				v, err = "", &PanicError{Question: question, Value: r, Stack: debug.Stack()}
				c.log.Error("response compute panicked",
					zap.String("question", preview(question)),
					zap.Any("panic", r),
				)
			}
		}()

		// double-check after joining the flight
		if e, ok := c.store.Peek(key); ok {
			return e.response, nil
		}
		answer, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		c.Set(question, answer)
		return answer, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CleanupExpired removes every expired entry and returns how many it removed.
func (c *Cache) CleanupExpired() int {
	n := c.store.RemoveExpired()
	if n > 0 {
		c.log.Info("expired responses removed", zap.Int("count", n))
	}
	return n
}

// RunJanitor calls CleanupExpired every interval until ctx is done.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.CleanupExpired()
		}
	}
}

// Clear drops every entry and resets the eviction counter.
// Hit and miss counters are kept.
func (c *Cache) Clear() {
	c.store.Clear()
	c.log.Info("response cache cleared")
}

// Len returns the number of resident entries.
func (c *Cache) Len() int { return c.store.Len() }

// Entries returns a copy of every resident entry, most recently read first.
func (c *Cache) Entries() []Entry {
	es := c.store.Entries()
	out := make([]Entry, 0, len(es))
	for _, e := range es {
		out = append(out, Entry{
			Fingerprint: e.Key,
			Question:    e.Value.question,
			Response:    e.Value.response,
			InsertedAt:  time.Unix(0, e.InsertedAt),
			LastAccess:  time.Unix(0, e.LastAccess),
		})
	}
	return out
}

// Restore re-inserts entries, most recently read first as returned by
// Entries, keeping their original insertion time so they expire on their
// original schedule. Expired entries are skipped. It returns how many were
// restored. The fingerprint is recomputed from the question.
func (c *Cache) Restore(entries []Entry) int {
	restored := 0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		inserted := e.InsertedAt.UnixNano()
		last := e.LastAccess.UnixNano()
		if last < inserted {
			last = inserted
		}
		ok := c.store.SetEntry(cache.Entry[string, entry]{
			Key:        Fingerprint(e.Question),
			Value:      entry{question: e.Question, response: e.Response},
			InsertedAt: inserted,
			LastAccess: last,
			Deadline:   inserted + int64(c.duration),
		})
		if ok {
			restored++
		}
	}
	if restored > 0 {
		c.log.Info("response cache restored", zap.Int("entries", restored), zap.Int("offered", len(entries)))
	}
	return restored
}

// Stats returns hit/miss counters and occupancy.
func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	st := c.store.Stats()

	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses) * 100
	}
	return Stats{
		Hits:          hits,
		Misses:        misses,
		TotalRequests: c.total.Load(),
		HitRate:       hitRate,
		Size:          st.Size,
		MaxSize:       st.MaxSize,
		UsagePercent:  st.UsagePercent,
		Evictions:     st.Evictions,
		Duration:      c.duration,
	}
}

func (c *Cache) onEvict(_ string, e entry, reason cache.EvictReason) {
	c.log.Debug("response evicted",
		zap.String("question", preview(e.question)),
		zap.Stringer("reason", reason),
	)
}

// preview truncates a question for log lines.
func preview(s string) string {
	const max = 50
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}
