package workerpool

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRun_ReturnsResult(t *testing.T) {
	t.Parallel()

	p := New(2)
	v, err := Run(p, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	boom := errors.New("boom")
	_, err = Run(p, func() (int, error) { return 0, boom })
	assert.Same(t, boom, err)
}

func TestRun_RecoversPanic(t *testing.T) {
	t.Parallel()

	p := New(1)
	_, err := Run(p, func() (int, error) { panic("kaboom") })

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)

	// The worker slot is free again.
	v, err := Run(p, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRun_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	p := New(2)
	var inFlight, peak atomic.Int64

	var eg errgroup.Group
	for i := 0; i < 20; i++ {
		eg.Go(func() error {
			_, err := Run(p, func() (struct{}, error) {
				n := inFlight.Add(1)
				for {
					cur := peak.Load()
					if n <= cur || peak.CompareAndSwap(cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return struct{}{}, nil
			})
			return err
		})
	}
	require.NoError(t, eg.Wait())
	p.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(2))
	assert.Equal(t, 2, p.Size())
}
