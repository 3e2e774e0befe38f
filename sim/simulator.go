// sim/simulator.go
package sim

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Simulator is the narrow facade handed to every handler. It exposes the
// scheduling API, the clock, the logger and the model context, but neither
// the queue nor the stop-condition internals of the Kernel.
type Simulator[C any] struct {
	kernel *Kernel[C]
}

// Schedule plans h to fire delay seconds from now and returns its id.
// A negative delay fails with ErrSchedulingInPast.
func (s *Simulator[C]) Schedule(delay float64, h Handler[C], label string) (EventID, error) {
	return s.kernel.schedule(delay, h, label)
}

// Call plans h to fire at the current model time, after every event
// already scheduled for this instant.
func (s *Simulator[C]) Call(h Handler[C], label string) (EventID, error) {
	return s.kernel.schedule(0, h, label)
}

// MustSchedule is Schedule for callers that treat a scheduling failure as a
// broken invariant.
func (s *Simulator[C]) MustSchedule(delay float64, h Handler[C], label string) EventID {
	id, err := s.Schedule(delay, h, label)
	Assert(err == nil, "schedule %q: %v", label, err)
	return id
}

// Cancel cancels a pending event, returning 1 if it was pending and 0
// otherwise. Cancelling the zero EventID is a no-op.
func (s *Simulator[C]) Cancel(id EventID) int {
	return s.kernel.queue.Cancel(id)
}

// Stop requests the run loop to exit before the next event.
func (s *Simulator[C]) Stop(msg string) {
	s.kernel.stopRequested = true
	s.kernel.stopMessage = msg
}

// Now returns the current model time in seconds.
func (s *Simulator[C]) Now() float64 {
	return s.kernel.clock
}

// Logger returns the run's logger; records carry the model time.
func (s *Simulator[C]) Logger() *logrus.Entry {
	return s.kernel.logger
}

// Context returns the model context owned by this run.
func (s *Simulator[C]) Context() C {
	return s.kernel.context
}

func (k *Kernel[C]) schedule(delay float64, h Handler[C], label string) (EventID, error) {
	if h == nil {
		return 0, errors.Wrapf(ErrNilHandler, "event %q", label)
	}
	if delay < 0 {
		return 0, errors.Wrapf(ErrSchedulingInPast, "event %q with delay %g", label, delay)
	}
	return k.queue.Push(k.clock+delay, h, label)
}
