package sim

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func popAll(t *testing.T, q *EventQueue[string]) []string {
	t.Helper()
	var out []string
	for q.Len() > 0 {
		ev, err := q.Pop()
		require.NoError(t, err)
		out = append(out, ev.Payload)
	}
	return out
}

func TestEventQueue_Pop_OrdersByTime(t *testing.T) {
	// GIVEN events pushed out of time order
	q := NewEventQueue[string]()
	for _, e := range []struct {
		at float64
		p  string
	}{{3, "c"}, {1, "a"}, {2, "b"}, {0.5, "first"}} {
		_, err := q.Push(e.at, e.p, "")
		require.NoError(t, err)
	}

	// WHEN all events are popped
	got := popAll(t, q)

	// THEN they come out in non-decreasing time order
	assert.Equal(t, []string{"first", "a", "b", "c"}, got)
	assert.Equal(t, 3.0, q.Now())
}

func TestEventQueue_Pop_EqualTimesAreFIFO(t *testing.T) {
	// GIVEN five events at the same instant
	q := NewEventQueue[string]()
	want := []string{"e1", "e2", "e3", "e4", "e5"}
	for _, p := range want {
		_, err := q.Push(1.0, p, "")
		require.NoError(t, err)
	}

	// THEN they fire in submission order
	assert.Equal(t, want, popAll(t, q))
}

func TestEventQueue_Push_IDsIncrease(t *testing.T) {
	q := NewEventQueue[string]()
	id1, err := q.Push(5, "x", "")
	require.NoError(t, err)
	id2, err := q.Push(1, "y", "")
	require.NoError(t, err)

	assert.NotZero(t, id1)
	assert.Greater(t, id2, id1)
}

func TestEventQueue_Cancel_ReturnsOneThenZero(t *testing.T) {
	// GIVEN three pending events
	q := NewEventQueue[string]()
	_, _ = q.Push(1, "a", "")
	idB, _ := q.Push(2, "b", "")
	_, _ = q.Push(3, "c", "")

	// WHEN the middle event is cancelled twice
	first := q.Cancel(idB)
	second := q.Cancel(idB)

	// THEN only the first cancel counts and the event never fires
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []string{"a", "c"}, popAll(t, q))
}

func TestEventQueue_Cancel_UnknownAndPoppedIDs(t *testing.T) {
	q := NewEventQueue[string]()
	id, _ := q.Push(1, "a", "")
	_, err := q.Pop()
	require.NoError(t, err)

	assert.Equal(t, 0, q.Cancel(id), "popped event")
	assert.Equal(t, 0, q.Cancel(EventID(999)), "unknown id")
	assert.Equal(t, 0, q.Cancel(0), "zero id")
}

func TestEventQueue_Cancel_HeadIsSkippedByPeek(t *testing.T) {
	// GIVEN the earliest event is cancelled
	q := NewEventQueue[string]()
	idA, _ := q.Push(1, "a", "")
	_, _ = q.Push(2, "b", "")
	q.Cancel(idA)

	// WHEN peeking
	ev, ok := q.Peek()

	// THEN the next live event is reported and the clock did not move
	require.True(t, ok)
	assert.Equal(t, "b", ev.Payload)
	assert.Equal(t, 2.0, ev.Time)
	assert.Equal(t, 0.0, q.Now())
}

func TestEventQueue_Pop_Empty_ReturnsError(t *testing.T) {
	q := NewEventQueue[string]()
	_, err := q.Pop()
	assert.True(t, errors.Is(err, ErrEmptyQueue))

	id, _ := q.Push(1, "a", "")
	q.Cancel(id)
	_, err = q.Pop()
	assert.True(t, errors.Is(err, ErrEmptyQueue), "only cancelled events remain")

	_, ok := q.Peek()
	assert.False(t, ok)
}

func TestEventQueue_Push_InPast_Rejected(t *testing.T) {
	// GIVEN a queue whose clock reached t=5
	q := NewEventQueue[string]()
	_, _ = q.Push(5, "a", "")
	_, err := q.Pop()
	require.NoError(t, err)

	// WHEN an event is pushed at t=4
	_, err = q.Push(4, "late", "late-event")

	// THEN it is rejected and the queue stays empty
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchedulingInPast))
	assert.Equal(t, 0, q.Len())

	// AND an event at exactly now is accepted
	_, err = q.Push(5, "now", "")
	assert.NoError(t, err)
}

func TestEventQueue_Clear_KeepsClockAndIDs(t *testing.T) {
	q := NewEventQueue[string]()
	_, _ = q.Push(1, "a", "")
	_, _ = q.Pop()
	last, _ := q.Push(2, "b", "")
	_, _ = q.Push(3, "c", "")

	q.Clear()

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 1.0, q.Now())
	assert.Equal(t, 0, q.Cancel(last))
	next, err := q.Push(4, "d", "")
	require.NoError(t, err)
	assert.Greater(t, next, last)
	assert.Equal(t, []string{"d"}, popAll(t, q))
}

func TestEventQueue_SlotReuse_PreservesOrder(t *testing.T) {
	// GIVEN heavy push/cancel/pop churn that recycles arena slots
	q := NewEventQueue[string]()
	for i := 0; i < 100; i++ {
		id, err := q.Push(float64(i), "dead", "")
		require.NoError(t, err)
		q.Cancel(id)
	}
	_, _ = q.Push(10, "b", "")
	_, _ = q.Push(10, "c", "")
	_, _ = q.Push(2, "a", "")

	// THEN recycled slots still honour (time, sequence) order
	assert.Equal(t, []string{"a", "b", "c"}, popAll(t, q))
	assert.LessOrEqual(t, len(q.slots), 103)
}
