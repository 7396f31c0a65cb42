// Package workerpool runs blocking work on a bounded set of goroutines so
// slow calls do not pile up unbounded goroutines in the caller.
package workerpool

import (
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// PanicError is returned by Run when the submitted function panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("workerpool: task panicked: %v", e.Value)
}

// Pool bounds the number of tasks running at once.
// The zero value is not usable; call New.
type Pool struct {
	g    errgroup.Group
	size int
}

// New returns a pool running at most size tasks concurrently
// (non-positive => 1).
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{size: size}
	p.g.SetLimit(size)
	return p
}

// Size returns the configured concurrency limit.
func (p *Pool) Size() int { return p.size }

// Run executes fn on a pool goroutine and waits for its result.
// If all workers are busy, Run blocks until one frees up.
// A panic in fn is recovered and returned as *PanicError.
func Run[T any](p *Pool, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	p.g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		v, err := fn()
		done <- result{v: v, err: err}
		return nil
	})
	r := <-done
	return r.v, r.err
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() { _ = p.g.Wait() }
