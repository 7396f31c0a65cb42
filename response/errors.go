package response

import "fmt"

// PanicError reports a compute function that panicked instead of returning.
// Nothing is cached and every waiter of the shared call receives it.
type PanicError struct {
	Question string
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("response: compute for %q panicked: %v", preview(e.Question), e.Value)
}
