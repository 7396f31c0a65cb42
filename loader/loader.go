package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/rescache/cache"
	"github.com/IvanBrykalov/rescache/gate"
	"github.com/IvanBrykalov/rescache/internal/workerpool"
)

// registration is the per-name record.
type registration[R any] struct {
	name string

	// mu serializes construction (and Unload) of this one name.
	// It is never held while Loader.mu is needed by another name.
	mu sync.Mutex

	// ---- guarded by Loader.mu ----
	factory  Factory[R]
	loaded   bool
	instance R
	loads    uint64
	failures uint64
	lastLoad time.Duration
	lastErr  error
}

// Loader lazily constructs named resources on first use and keeps them in
// an LRU-bounded cache.
//
// Guarantees:
//   - at most one construction per name is in flight; concurrent callers
//     for the same name wait and share the result;
//   - at most MaxConcurrent constructions run at once across all names;
//   - only successful constructions are cached.
//
// All methods are safe for concurrent use.
type Loader[R any] struct {
	mu   sync.RWMutex
	regs map[string]*registration[R]

	cache *cache.LRU[string, R]
	gate  *gate.Gate
	pool  *workerpool.Pool
	log   *zap.Logger
	met   Metrics

	// closeMu is held shared by every Get so Close can wait them out.
	closeMu sync.RWMutex
	closed  bool

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Stats is a snapshot of loader state.
type Stats struct {
	Registered int
	Loaded     int
	Loads      uint64 // successful constructions
	Failures   uint64 // failed constructions
	Hits       uint64 // Get served by the cache fast path
	Misses     uint64
	Gate       gate.Stats
	Cache      cache.Stats[string]
	Resources  []ResourceStats // sorted by name
}

// ResourceStats describes one registration.
type ResourceStats struct {
	Name      string
	Loaded    bool
	Loads     uint64
	Failures  uint64
	LastLoad  time.Duration
	LastError string
}

// New constructs a Loader. See Options for defaults.
func New[R any](opt Options) *Loader[R] {
	if opt.CacheSize <= 0 {
		opt.CacheSize = defaultCacheSize
	}
	if opt.MaxConcurrent <= 0 {
		opt.MaxConcurrent = defaultMaxConcurrent
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}

	l := &Loader[R]{
		regs: make(map[string]*registration[R]),
		gate: gate.New(opt.MaxConcurrent),
		pool: workerpool.New(opt.MaxConcurrent),
		log:  opt.Logger.Named("loader"),
		met:  opt.Metrics,
	}
	l.cache = cache.New[string, R](cache.Options[string, R]{
		Capacity: opt.CacheSize,
		Metrics:  opt.Metrics,
		Clock:    opt.Clock,
		OnEvict:  l.onEvict,
	})

	l.log.Info("loader initialized",
		zap.Int("cache_size", opt.CacheSize),
		zap.Int("max_concurrent", opt.MaxConcurrent),
	)
	return l
}

// Register adds a factory under name. Registering an existing name replaces
// its factory; an already loaded instance stays loaded.
func (l *Loader[R]) Register(name string, factory Factory[R]) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if reg, ok := l.regs[name]; ok {
		reg.factory = factory
		l.log.Info("resource factory replaced", zap.String("resource", name))
		return
	}
	l.regs[name] = &registration[R]{name: name, factory: factory}
	l.log.Info("resource registered", zap.String("resource", name))
}

// Get returns the resource registered under name, constructing it if it is
// not resident. It blocks while another caller constructs the same name and
// while the construction gate is full.
//
// Errors: ErrNotRegistered (wrapped, use errors.Is) for unknown names,
// ErrClosed after Close, the factory's own error verbatim, or *PanicError
// if the factory panicked. Failures are not cached; the next Get retries.
func (l *Loader[R]) Get(name string) (R, error) {
	var zero R

	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	if l.closed {
		return zero, ErrClosed
	}

	// fast path
	if v, ok := l.cache.Get(name); ok {
		l.hits.Add(1)
		l.met.Hit()
		return v, nil
	}
	l.misses.Add(1)
	l.met.Miss()

	l.mu.RLock()
	reg, ok := l.regs[name]
	l.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	// double-check: a caller we queued behind may have just finished.
	if v, ok := l.cache.Get(name); ok {
		l.log.Debug("resource loaded by concurrent caller", zap.String("resource", name))
		return v, nil
	}
	return l.construct(reg)
}

// construct runs the factory under a gate permit. reg.mu must be held.
// The permit is released only after the result is visible in the cache.
func (l *Loader[R]) construct(reg *registration[R]) (R, error) {
	var zero R

	// Constructions are not cancellable, so the wait is unbounded.
	if err := l.gate.Acquire(context.Background()); err != nil {
		return zero, err
	}
	defer l.gate.Release()

	l.mu.RLock()
	factory := reg.factory
	l.mu.RUnlock()

	l.log.Info("loading resource", zap.String("resource", reg.name))
	start := time.Now()
	v, err := workerpool.Run[R](l.pool, factory)
	took := time.Since(start)
	var pe *workerpool.PanicError
	if errors.As(err, &pe) {
		err = &PanicError{Name: reg.name, Value: pe.Value, Stack: pe.Stack}
	}
	l.met.ObserveLoad(reg.name, took, err)

	if err != nil {
		l.mu.Lock()
		reg.failures++
		reg.lastErr = err
		l.mu.Unlock()
		l.log.Error("resource load failed",
			zap.String("resource", reg.name),
			zap.Duration("took", took),
			zap.Error(err),
		)
		return zero, err
	}

	// Mark loaded before publishing: if the cache evicts the entry right
	// away, onEvict resets the flag after us, not before.
	l.mu.Lock()
	reg.loaded = true
	reg.instance = v
	reg.loads++
	reg.lastLoad = took
	reg.lastErr = nil
	l.mu.Unlock()
	l.cache.Set(reg.name, v)

	l.log.Info("resource loaded",
		zap.String("resource", reg.name),
		zap.Duration("took", took),
	)
	return v, nil
}

// Unload drops the instance of name and marks it unloaded. The factory stays
// registered and the next Get reconstructs on demand. Unload waits for an
// in-flight construction of the same name to finish first.
func (l *Loader[R]) Unload(name string) {
	l.mu.RLock()
	reg, ok := l.regs[name]
	l.mu.RUnlock()
	if !ok {
		return
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	l.mu.Lock()
	l.resetLocked(reg)
	l.mu.Unlock()
	l.cache.Remove(name)

	l.log.Info("resource unloaded", zap.String("resource", name))
}

// Loaded reports whether name currently has a resident instance.
func (l *Loader[R]) Loaded(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	reg, ok := l.regs[name]
	return ok && reg.loaded
}

// Stats returns registration counts plus gate and cache snapshots.
func (l *Loader[R]) Stats() Stats {
	st := Stats{
		Hits:   l.hits.Load(),
		Misses: l.misses.Load(),
	}

	l.mu.RLock()
	st.Registered = len(l.regs)
	st.Resources = make([]ResourceStats, 0, len(l.regs))
	for _, reg := range l.regs {
		if reg.loaded {
			st.Loaded++
		}
		st.Loads += reg.loads
		st.Failures += reg.failures
		rs := ResourceStats{
			Name:     reg.name,
			Loaded:   reg.loaded,
			Loads:    reg.loads,
			Failures: reg.failures,
			LastLoad: reg.lastLoad,
		}
		if reg.lastErr != nil {
			rs.LastError = reg.lastErr.Error()
		}
		st.Resources = append(st.Resources, rs)
	}
	l.mu.RUnlock()

	sort.Slice(st.Resources, func(i, j int) bool { return st.Resources[i].Name < st.Resources[j].Name })
	st.Gate = l.gate.Stats()
	st.Cache = l.cache.Stats()
	return st
}

// GateStats returns the construction gate snapshot without walking the
// registrations.
func (l *Loader[R]) GateStats() gate.Stats { return l.gate.Stats() }

// Close waits for in-flight Get calls and rejects new ones with ErrClosed.
// Resident instances are kept; Close does not tear resources down.
func (l *Loader[R]) Close() error {
	l.closeMu.Lock()
	l.closed = true
	l.closeMu.Unlock()
	l.pool.Wait()
	l.log.Info("loader closed")
	return nil
}

// onEvict runs under the cache lock when the LRU pushes a resource out.
func (l *Loader[R]) onEvict(name string, _ R, reason cache.EvictReason) {
	l.mu.Lock()
	if reg, ok := l.regs[name]; ok {
		l.resetLocked(reg)
	}
	l.mu.Unlock()
	l.log.Info("resource evicted",
		zap.String("resource", name),
		zap.Stringer("reason", reason),
	)
}

func (l *Loader[R]) resetLocked(reg *registration[R]) {
	var zero R
	reg.loaded = false
	reg.instance = zero
}
