package sim

// Handler is implemented by every event kind a model schedules. Each kind is
// a small struct carrying its own typed payload; Handle runs when the event
// fires and advances model state through the facade.
type Handler[C any] interface {
	Handle(sim *Simulator[C])
}

// HandlerFunc adapts an ordinary function to a Handler. Useful for
// initializers and tests; models should prefer typed event structs.
type HandlerFunc[C any] func(sim *Simulator[C])

// Handle calls f(sim).
func (f HandlerFunc[C]) Handle(sim *Simulator[C]) {
	f(sim)
}

// Initializer seeds the first events of a run.
type Initializer[C any] func(sim *Simulator[C])

// Finalizer runs once after the loop exits; its return value is surfaced in Result.
type Finalizer[C any] func(sim *Simulator[C]) any
