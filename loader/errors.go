package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRegistered is returned by Get for a name that was never
	// registered. It is never retried internally.
	ErrNotRegistered = errors.New("loader: resource not registered")

	// ErrClosed is returned by Get after Close.
	ErrClosed = errors.New("loader: closed")
)

// PanicError reports a factory that panicked instead of returning.
// The resource stays unloaded, exactly as for a returned error.
type PanicError struct {
	Name  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("loader: factory for %q panicked: %v", e.Name, e.Value)
}
