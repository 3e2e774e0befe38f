package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ExitReason tells why a run loop stopped.
type ExitReason int

const (
	NoMoreEvents ExitReason = iota
	ReachedSimTimeLimit
	ReachedRealTimeLimit
	ReachedMaxNumEvents
	Stopped
)

func (r ExitReason) String() string {
	switch r {
	case NoMoreEvents:
		return "no more events"
	case ReachedSimTimeLimit:
		return "reached max sim time"
	case ReachedRealTimeLimit:
		return "reached max real time"
	case ReachedMaxNumEvents:
		return "reached max number of events"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("ExitReason(%d)", int(r))
}

// MarshalText renders the reason for JSON and YAML output.
func (r ExitReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ExecutionStats describes a finished run.
type ExecutionStats struct {
	RunID              string        `json:"run_id"`
	NumEventsProcessed int           `json:"num_events_processed"`
	SimTime            float64       `json:"sim_time"`
	TimeElapsed        time.Duration `json:"time_elapsed"`
	ExitReason         ExitReason    `json:"exit_reason"`
	StopMessage        string        `json:"stop_message,omitempty"`
	LastHandler        string        `json:"last_handler,omitempty"`
}

// Config holds the stop-condition ceilings of a run. A zero value disables
// the corresponding condition.
type Config struct {
	MaxSimTime   float64       // model seconds; events after this time are not dispatched
	MaxRealTime  time.Duration // wall-clock budget, checked between events
	MaxNumEvents int           // number of dispatched events
	Logger       *logrus.Logger
}

// Result bundles what a run hands back to its caller.
type Result[C any] struct {
	Stats           ExecutionStats
	Context         C
	FinalizerResult any
}

// Kernel owns the clock, the event queue and the stop conditions of one run.
// A kernel runs once; create a new one per run.
type Kernel[C any] struct {
	name    string
	runID   string
	context C
	queue   *EventQueue[Handler[C]]
	clock   float64
	config  Config

	initializer Initializer[C]
	finalizer   Finalizer[C]

	stopRequested bool
	stopMessage   string
	numEvents     int
	lastHandler   string
	ran           bool

	logger *logrus.Entry
}

// NewKernel creates a kernel for the named model with the given context.
func NewKernel[C any](name string, context C, init Initializer[C], fin Finalizer[C], config Config) *Kernel[C] {
	k := &Kernel[C]{
		name:        name,
		runID:       uuid.NewString(),
		context:     context,
		queue:       NewEventQueue[Handler[C]](),
		config:      config,
		initializer: init,
		finalizer:   fin,
	}
	k.logger = newModelLogger(config.Logger, func() float64 { return k.clock }).WithFields(logrus.Fields{
		"model": name,
		"run":   k.runID[:8],
	})
	return k
}

// RunID returns the unique id of this run.
func (k *Kernel[C]) RunID() string {
	return k.runID
}

// Run invokes the initializer, drives the event loop until a stop condition
// holds or the queue empties, and invokes the finalizer.
//
// A handler that violates a model invariant (see Assert) aborts the run; the
// returned error names the invariant, the last handler and the model time.
func (k *Kernel[C]) Run() (result *Result[C], err error) {
	if k.ran {
		return nil, errors.Errorf("kernel %s: Run called twice", k.name)
	}
	k.ran = true

	facade := &Simulator[C]{kernel: k}
	started := time.Now()
	stats := ExecutionStats{RunID: k.runID}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		inv, ok := r.(*InvariantError)
		if !ok {
			panic(r)
		}
		k.logger.Errorf("run aborted: %v (last handler %s)", inv, k.lastHandler)
		result = nil
		err = errors.Wrapf(inv, "model %s aborted in %s at t=%.6f after %d events",
			k.name, k.lastHandler, k.clock, k.numEvents)
	}()

	if k.initializer != nil {
		k.lastHandler = "initializer"
		k.initializer(facade)
	}

	stats.ExitReason = k.loop(facade, started)

	stats.NumEventsProcessed = k.numEvents
	stats.SimTime = k.clock
	stats.TimeElapsed = time.Since(started)
	stats.StopMessage = k.stopMessage
	stats.LastHandler = k.lastHandler
	k.logger.Infof("simulation ended: %s after %d events", stats.ExitReason, stats.NumEventsProcessed)

	result = &Result[C]{Stats: stats, Context: k.context}
	if k.finalizer != nil {
		result.FinalizerResult = k.finalizer(facade)
	}
	return result, nil
}

func (k *Kernel[C]) loop(facade *Simulator[C], started time.Time) ExitReason {
	maxSimTime := k.config.MaxSimTime
	if maxSimTime <= 0 {
		maxSimTime = math.Inf(1)
	}
	for {
		if k.stopRequested {
			return Stopped
		}
		if k.config.MaxNumEvents > 0 && k.numEvents >= k.config.MaxNumEvents {
			return ReachedMaxNumEvents
		}
		if k.config.MaxRealTime > 0 && time.Since(started) > k.config.MaxRealTime {
			return ReachedRealTimeLimit
		}
		next, ok := k.queue.Peek()
		if !ok {
			return NoMoreEvents
		}
		if next.Time > maxSimTime {
			k.clock = maxSimTime
			return ReachedSimTimeLimit
		}

		ev, err := k.queue.Pop()
		Assert(err == nil, "pop after successful peek: %v", err)
		Assert(ev.Time >= k.clock, "clock went backwards: %g < %g", ev.Time, k.clock)
		k.clock = ev.Time
		k.lastHandler = handlerName(ev.Label, ev.Payload)
		k.logger.Tracef("executing %s", k.lastHandler)
		ev.Payload.Handle(facade)
		k.numEvents++
	}
}

func handlerName(label string, h any) string {
	if label != "" {
		return label
	}
	return fmt.Sprintf("%T", h)
}

// Simulate builds a kernel and runs it in one call.
func Simulate[C any](name string, context C, init Initializer[C], fin Finalizer[C], config Config) (*Result[C], error) {
	return NewKernel(name, context, init, fin, config).Run()
}
