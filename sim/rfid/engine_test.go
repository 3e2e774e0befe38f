package rfid

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2sim/gen2sim/sim"
	"github.com/gen2sim/gen2sim/sim/channel"
)

// stationaryParams places a single parked tag 2 m under an always-on reader.
func stationaryParams() Params {
	p := DefaultParams()
	p.NumTags = 1
	p.SpeedKmph = 0
	p.Geometry.Lifetime = 1
	p.Geometry.InitialDistanceToReader = 0
	p.Altitude = 2
	p.Q = 0
	p.UseAdjust = false
	p.TIDWordSize = 4
	p.Power.Mode = PowerAlwaysOn
	p.Channel.BERDistribution = channel.AWGN
	p.Inventory.TargetStrategy = TargetConst
	return p
}

func TestRun_SingleStationaryTag_IsInventoriedOnce(t *testing.T) {
	// GIVEN one stationary tag in a strong field
	m, err := NewModel(stationaryParams(), 1)
	require.NoError(t, err)

	// WHEN the run completes
	res, err := Run(m, sim.Config{})
	require.NoError(t, err)

	// THEN it stops once the tag retires
	assert.Equal(t, sim.Stopped, res.Stats.ExitReason)
	assert.Equal(t, "all tags simulated", res.Stats.StopMessage)
	assert.InDelta(t, 2.0, res.Stats.SimTime, 1e-9)

	stats, ok := res.FinalizerResult.(*Statistics)
	require.True(t, ok)
	assert.Same(t, m.Stats, stats)
	assert.Equal(t, 1, stats.TagsSimulated)
	assert.Equal(t, 1.0, stats.InventoryProbability())
	assert.Equal(t, 1.0, stats.ReadTIDProbability())

	// AND it is singulated exactly once: target A stays constant and the
	// tag's S0 flag flips to B after the read
	require.Len(t, stats.Tags, 1)
	rec := stats.Tags[0]
	assert.Equal(t, 1, rec.Rounds)
	require.Len(t, rec.Reads, 1)
	read := rec.Reads[0]
	assert.True(t, read.EPCRead)
	assert.True(t, read.TIDRead)
	assert.Less(t, read.StartedAt-rec.CreatedAt, 5e-3)
	assert.Greater(t, read.EndedAt, read.StartedAt)
	assert.LessOrEqual(t, rec.FirstEPCAt, rec.FirstTIDAt)

	idt := stats.AverageIdentificationTime(true)
	assert.Positive(t, idt)
	assert.Less(t, idt, 0.05)
}

func TestRun_NoTags_SettlesAfterFirstPowerCycle(t *testing.T) {
	// GIVEN a periodic reader and nothing to inventory
	p := DefaultParams()
	p.NumTags = 0
	m, err := NewModel(p, 1)
	require.NoError(t, err)

	// WHEN run
	res, err := Run(m, sim.Config{})
	require.NoError(t, err)

	// THEN on, one empty Query, one position tick and off are all that happens
	assert.Equal(t, sim.NoMoreEvents, res.Stats.ExitReason)
	assert.Equal(t, 4, res.Stats.NumEventsProcessed)
	assert.InDelta(t, p.Power.OnDuration, res.Stats.SimTime, 1e-12)
	assert.Equal(t, 0, m.Stats.TagsCreated)
	assert.Equal(t, 1, m.Stats.Rounds)
	assert.Equal(t, 0.0, m.Stats.InventoryProbability())
}

// runTwoTags runs p with two tags created together at t = 0, before the
// reader turns on. prepare, when set, sees the model before the run starts.
func runTwoTags(t *testing.T, p Params, prepare func(*Model)) *Model {
	t.Helper()
	p.NumTags = 2
	p.Geometry.Lifetime = 0.2
	m, err := NewModel(p, 3)
	require.NoError(t, err)
	if prepare != nil {
		prepare(m)
	}

	setup := func(s *Simulator) {
		m := enter(s)
		m.handleGenerateTag(s)
		m.handleGenerateTag(s)
		m.handleStart(s)
	}
	res, err := sim.Simulate("two-tags", m, setup, finish, sim.Config{})
	require.NoError(t, err)
	require.Equal(t, sim.Stopped, res.Stats.ExitReason)
	return m
}

func TestRun_TwoTagsWithQZero_CollideEveryRound(t *testing.T) {
	// GIVEN two co-located tags and a reader stuck at Q = 0
	p := stationaryParams()

	// WHEN they share the field for their whole lifetime
	m := runTwoTags(t, p, nil)

	// THEN every round is a collision and no EPC gets through
	require.Len(t, m.Stats.Tags, 2)
	for _, rec := range m.Stats.Tags {
		assert.Positive(t, rec.Rounds)
		assert.InDelta(t, rec.Rounds, rec.Collisions, 1, "tag %d", rec.Index)
		assert.False(t, rec.EPCRead)
		assert.Empty(t, rec.Reads)
	}
	assert.Equal(t, 0.0, m.Stats.InventoryProbability())
	assert.Equal(t, 0, m.Stats.QAdjustments)
	assert.Equal(t, 0, m.Stats.PeakQ)
}

func TestRun_TwoTagsWithAdjust_RaiseQ(t *testing.T) {
	// GIVEN the same collision but with Q adjustment on
	p := stationaryParams()
	p.UseAdjust = true

	type slot struct {
		replies    int
		q          int
		collisions [2]int
	}
	var slots []slot

	// WHEN run, sampling Q and the per-tag collision counts after every slot
	m := runTwoTags(t, p, func(m *Model) {
		m.OnResolved = func(tx *Transaction) {
			slots = append(slots, slot{
				replies:    len(tx.Replies),
				q:          m.Reader.Q,
				collisions: [2]int{m.Stats.Tags[0].Collisions, m.Stats.Tags[1].Collisions},
			})
		}
	})

	// THEN collision counters never go down
	require.NotEmpty(t, slots)
	assert.Equal(t, 2, slots[0].replies, "both tags answer the opening Query")
	for i := 1; i < len(slots); i++ {
		for k := range 2 {
			assert.GreaterOrEqual(t, slots[i].collisions[k], slots[i-1].collisions[k], "tag %d, slot %d", k, i)
		}
		// AND Q never drops across successive collisions
		if slots[i].replies > 1 && slots[i-1].replies > 1 {
			assert.GreaterOrEqual(t, slots[i].q, slots[i-1].q, "slot %d", i)
		}
	}

	// AND the opening run of collisions lifts Q off zero before the tags
	// separate
	n := 0
	for n < len(slots) && slots[n].replies > 1 {
		n++
	}
	require.Positive(t, n)
	assert.GreaterOrEqual(t, slots[n-1].q, 1)

	assert.Positive(t, m.Stats.QAdjustments)
	assert.GreaterOrEqual(t, m.Stats.PeakQ, 1)
	assert.Positive(t, m.Stats.Collisions)
}

func TestRun_TagLeavingMidReply_StillCollides(t *testing.T) {
	// GIVEN two co-located tags answering the opening Query together
	p := stationaryParams()
	p.NumTags = 2
	p.Geometry.Lifetime = 0.2
	m, err := NewModel(p, 3)
	require.NoError(t, err)

	var (
		opening, resolved *Transaction
		leaving           *Tag
		collisions        int
		next              ReaderState
	)
	m.OnResolved = func(tx *Transaction) {
		if resolved == nil {
			resolved, collisions, next = tx, m.Stats.Collisions, m.Reader.State
		}
	}
	setup := func(s *Simulator) {
		m := enter(s)
		m.handleGenerateTag(s)
		m.handleGenerateTag(s)
		m.handleTurnReaderOn(s)
		opening, leaving = m.Transaction, m.Tags[0]

		// WHEN the first tag retires while both replies are on air
		s.MustSchedule(0.9*opening.Duration, removeTag{tag: leaving}, "remove_tag")
		s.MustSchedule(opening.Duration, sim.HandlerFunc[*Model](func(s *Simulator) {
			s.Stop("opening slot resolved")
		}), "stop")
	}
	res, err := sim.Simulate("departure", m, setup, finish, sim.Config{})
	require.NoError(t, err)
	assert.Equal(t, "opening slot resolved", res.Stats.StopMessage)

	// THEN the slot still resolves as a collision
	require.NotNil(t, resolved)
	assert.Same(t, opening, resolved)
	assert.Len(t, resolved.Replies, 2)
	assert.True(t, resolved.Departed[leaving])
	assert.Equal(t, 1, collisions)
	assert.NotEqual(t, ReaderAck, next)

	// AND only the tag still present is charged with it
	require.Len(t, m.Stats.Tags, 2)
	assert.True(t, m.Stats.Tags[0].Removed)
	assert.Equal(t, 0, m.Stats.Tags[0].Collisions)
	assert.Equal(t, 1, m.Stats.Tags[1].Collisions)
}

func TestRun_SameSeed_SameStatistics(t *testing.T) {
	p := DefaultParams()
	p.NumTags = 3
	p.UseAdjust = true

	run := func() *Statistics {
		m, err := NewModel(p, 42)
		require.NoError(t, err)
		_, err = Run(m, sim.Config{})
		require.NoError(t, err)
		return m.Stats
	}

	a, b := run(), run()
	assert.Equal(t, a, b)
	assert.Equal(t, 3, a.TagsSimulated)
}

func TestRun_RespectsEventCeiling(t *testing.T) {
	m, err := NewModel(DefaultParams(), 1)
	require.NoError(t, err)

	res, err := Run(m, sim.Config{MaxNumEvents: 100})

	require.NoError(t, err)
	assert.Equal(t, sim.ReachedMaxNumEvents, res.Stats.ExitReason)
	assert.Equal(t, 100, res.Stats.NumEventsProcessed)
}

func TestRun_OverlappingTransactions_AbortRun(t *testing.T) {
	// GIVEN an initializer that opens two transactions at once
	m, err := NewModel(stationaryParams(), 1)
	require.NoError(t, err)
	setup := func(s *Simulator) {
		m := enter(s)
		m.startTransaction(s, m.Reader.TurnOn())
		m.startTransaction(s, m.Reader.Timeout())
	}

	// WHEN run
	res, err := sim.Simulate("overlap", m, setup, finish, sim.Config{})

	// THEN the kernel reports the violated invariant
	assert.Nil(t, res)
	require.Error(t, err)
	var inv *sim.InvariantError
	assert.True(t, errors.As(err, &inv))
	assert.Contains(t, err.Error(), "is active")
}

func TestRun_InvalidParams(t *testing.T) {
	p := DefaultParams()
	p.Q = -1
	_, err := NewModel(p, 1)
	assert.Error(t, err)
}
