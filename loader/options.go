package loader

import (
	"time"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/rescache/cache"
)

// Factory constructs one resource instance. It runs on the loader's worker
// pool and is never called concurrently for the same name.
type Factory[R any] func() (R, error)

// Metrics exposes loader-level observability hooks on top of the
// resource cache hooks.
type Metrics interface {
	cache.Metrics
	Hit()
	Miss()
	// ObserveLoad records one construction attempt.
	ObserveLoad(name string, d time.Duration, err error)
}

// NoopMetrics is the default Metrics.
type NoopMetrics struct{ cache.NoopMetrics }

func (NoopMetrics) Hit()                                     {}
func (NoopMetrics) Miss()                                    {}
func (NoopMetrics) ObserveLoad(string, time.Duration, error) {}

var _ Metrics = NoopMetrics{}

// Options configures a Loader. Zero values are safe; defaults are applied
// in New():
//   - CacheSize <= 0     => 1000
//   - MaxConcurrent <= 0 => 10
//   - nil Logger         => zap.NewNop()
//   - nil Metrics        => NoopMetrics
type Options struct {
	// CacheSize bounds how many constructed resources stay resident.
	CacheSize int

	// MaxConcurrent bounds simultaneous constructions across all names and
	// sizes the worker pool factories run on.
	MaxConcurrent int

	Logger  *zap.Logger
	Metrics Metrics

	// Clock is forwarded to the resource cache (tests).
	Clock cache.Clock
}

const (
	defaultCacheSize     = 1000
	defaultMaxConcurrent = 10
)
