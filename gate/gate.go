// Package gate bounds the number of simultaneous expensive operations.
package gate

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Gate is a counting admission-control primitive.
// It does not promise FIFO ordering among waiters.
type Gate struct {
	sem *semaphore.Weighted
	max int

	mu     sync.Mutex
	active int
	total  uint64
}

// Stats is a snapshot of gate usage.
type Stats struct {
	Active       int
	Total        uint64
	Max          int
	UsagePercent float64
}

// New returns a gate admitting at most maxConcurrent holders.
// A non-positive value is treated as 1.
func New(maxConcurrent int) *Gate {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Gate{
		sem: semaphore.NewWeighted(int64(maxConcurrent)),
		max: maxConcurrent,
	}
}

// Acquire blocks until a permit is available, then marks it active.
// It fails only if ctx is done before a permit is granted.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.admit()
	return nil
}

// TryAcquire takes a permit without blocking and reports whether it did.
func (g *Gate) TryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.admit()
	return true
}

// Release returns a permit. It never blocks. A Release without a matching
// Acquire is ignored.
func (g *Gate) Release() {
	g.mu.Lock()
	if g.active == 0 {
		g.mu.Unlock()
		return
	}
	g.active--
	g.mu.Unlock()
	g.sem.Release(1)
}

// Stats returns active, total and max counts plus utilization.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Active:       g.active,
		Total:        g.total,
		Max:          g.max,
		UsagePercent: float64(g.active) / float64(g.max) * 100,
	}
}

func (g *Gate) admit() {
	g.mu.Lock()
	g.active++
	g.total++
	g.mu.Unlock()
}
