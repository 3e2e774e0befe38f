package sim

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrSchedulingInPast is returned when an event would fire before the current model time.
	ErrSchedulingInPast = errors.New("scheduling in the past")

	// ErrEmptyQueue is returned by Pop when no live event remains.
	ErrEmptyQueue = errors.New("event queue is empty")

	// ErrNilHandler is returned when scheduling a nil handler.
	ErrNilHandler = errors.New("handler must not be nil")
)

// InvariantError reports a violated model invariant. Handlers raise it through
// Assert; the kernel run loop recovers it and aborts the run.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Msg
}

// Assert panics with an *InvariantError when cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
	}
}
