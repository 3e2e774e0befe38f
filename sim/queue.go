// Implements the EventQueue, which holds all pending events of a run.
// Events are ordered by (time, insertion sequence); cancelled events are
// tombstoned and skipped lazily when they reach the top of the heap.

package sim

import (
	"container/heap"

	"github.com/pkg/errors"
)

// EventID identifies a scheduled event. IDs are positive and strictly
// increasing in submission order; the zero value means "no event".
type EventID uint64

// Event is a popped queue entry.
type Event[T any] struct {
	Time    float64
	ID      EventID
	Payload T
	Label   string
}

type slot[T any] struct {
	time      float64
	id        EventID
	payload   T
	label     string
	cancelled bool
}

// slotHeap implements heap.Interface over indices into the slot arena.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type slotHeap[T any] struct {
	slots *[]slot[T]
	idx   []int
}

func (h slotHeap[T]) Len() int { return len(h.idx) }

func (h slotHeap[T]) Less(i, j int) bool {
	si, sj := &(*h.slots)[h.idx[i]], &(*h.slots)[h.idx[j]]
	if si.time != sj.time {
		return si.time < sj.time
	}
	return si.id < sj.id
}

func (h slotHeap[T]) Swap(i, j int) { h.idx[i], h.idx[j] = h.idx[j], h.idx[i] }

func (h *slotHeap[T]) Push(x any) { h.idx = append(h.idx, x.(int)) }

func (h *slotHeap[T]) Pop() any {
	old := h.idx
	n := len(old)
	item := old[n-1]
	h.idx = old[0 : n-1]
	return item
}

// EventQueue is a time-ordered container of pending events.
//
// Slots live in an index-stable arena; the heap orders slot indices. Cancel
// marks a slot dead in O(1) and Pop reclaims dead slots as it meets them.
//
// Thread-safety: NOT thread-safe. A queue belongs to exactly one run.
type EventQueue[T any] struct {
	slots  []slot[T]
	free   []int
	heap   slotHeap[T]
	live   map[EventID]int // id -> slot index, only for events not yet popped or cancelled
	nextID EventID
	now    float64
}

// NewEventQueue creates an empty queue whose notion of "now" is 0.
func NewEventQueue[T any]() *EventQueue[T] {
	q := &EventQueue[T]{
		live:   make(map[EventID]int),
		nextID: 1,
	}
	q.heap.slots = &q.slots
	heap.Init(&q.heap)
	return q
}

// Now returns the time of the most recently popped event.
func (q *EventQueue[T]) Now() float64 {
	return q.now
}

// Push inserts an event firing at time at. Events scheduled before Now()
// are rejected with ErrSchedulingInPast.
func (q *EventQueue[T]) Push(at float64, payload T, label string) (EventID, error) {
	if at < q.now {
		return 0, errors.Wrapf(ErrSchedulingInPast, "event %q at %g, now %g", label, at, q.now)
	}
	id := q.nextID
	q.nextID++

	s := slot[T]{time: at, id: id, payload: payload, label: label}
	var index int
	if n := len(q.free); n > 0 {
		index = q.free[n-1]
		q.free = q.free[:n-1]
		q.slots[index] = s
	} else {
		index = len(q.slots)
		q.slots = append(q.slots, s)
	}
	q.live[id] = index
	heap.Push(&q.heap, index)
	return id, nil
}

// Cancel marks the event dead and returns the number of cancelled events:
// 1 for a pending event, 0 for an unknown, popped or already cancelled one.
func (q *EventQueue[T]) Cancel(id EventID) int {
	index, ok := q.live[id]
	if !ok {
		return 0
	}
	delete(q.live, id)
	q.slots[index].cancelled = true
	var zero T
	q.slots[index].payload = zero
	return 1
}

// Len returns the number of live (not cancelled) events.
func (q *EventQueue[T]) Len() int {
	return len(q.live)
}

// Peek returns the earliest live event without removing it.
func (q *EventQueue[T]) Peek() (Event[T], bool) {
	q.dropCancelled()
	if q.heap.Len() == 0 {
		return Event[T]{}, false
	}
	s := &q.slots[q.heap.idx[0]]
	return Event[T]{Time: s.time, ID: s.id, Payload: s.payload, Label: s.label}, true
}

// Pop removes and returns the earliest live event and advances Now() to its
// time. It returns ErrEmptyQueue if no live event remains.
func (q *EventQueue[T]) Pop() (Event[T], error) {
	q.dropCancelled()
	if q.heap.Len() == 0 {
		return Event[T]{}, ErrEmptyQueue
	}
	index := heap.Pop(&q.heap).(int)
	s := q.slots[index]
	delete(q.live, s.id)
	q.release(index)
	q.now = s.time
	return Event[T]{Time: s.time, ID: s.id, Payload: s.payload, Label: s.label}, nil
}

// Clear drops every pending event. Now() and the ID sequence are kept, so
// IDs are never reused within a queue.
func (q *EventQueue[T]) Clear() {
	q.slots = q.slots[:0]
	q.free = q.free[:0]
	q.heap.idx = q.heap.idx[:0]
	q.live = make(map[EventID]int)
}

func (q *EventQueue[T]) dropCancelled() {
	for q.heap.Len() > 0 {
		index := q.heap.idx[0]
		if !q.slots[index].cancelled {
			return
		}
		heap.Pop(&q.heap)
		q.release(index)
	}
}

func (q *EventQueue[T]) release(index int) {
	q.slots[index] = slot[T]{}
	q.free = append(q.free, index)
}
