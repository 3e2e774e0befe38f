package rfid

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gen2sim/gen2sim/sim/gen2"
	"github.com/gen2sim/gen2sim/sim/internal/testutil"
)

func TestTransaction_NoReplies_WaitsForLongerOfT1T3AndT4(t *testing.T) {
	timing := DefaultParams().LinkTiming()
	cmd := gen2.NewReaderFrame(gen2.QueryRep{}, timing)

	tx := NewTransaction(2, cmd, nil)

	want := cmd.Duration() + math.Max(timing.T1()+timing.T3(), timing.T4())
	testutil.AssertFloat64Equal(t, "duration", want, tx.Duration, 1e-12)
	testutil.AssertFloat64Equal(t, "end", 2+want, tx.End(), 1e-12)
	assert.True(t, math.IsNaN(tx.ReplyStart))
	assert.False(t, tx.Collision())
}

func TestTransaction_WithReplies_CoversLongestReply(t *testing.T) {
	// GIVEN a Query answered by a short and a long reply
	timing := DefaultParams().LinkTiming()
	cmd := gen2.NewReaderFrame(gen2.Query{Q: 1}, timing)
	short := gen2.NewTagFrame(gen2.RN16Reply{}, timing)
	long := gen2.NewTagFrame(gen2.AckReply{EPC: make([]byte, 12)}, timing)
	a, b := &Tag{Index: 0}, &Tag{Index: 1}

	// WHEN the transaction opens at t = 1
	tx := NewTransaction(1, cmd, []ReplyFrame{{Tag: a, Frame: short}, {Tag: b, Frame: long}})

	// THEN the window spans command, T1, the longest reply and T2
	want := cmd.Duration() + timing.T1() + long.Duration() + timing.T2()
	testutil.AssertFloat64Equal(t, "duration", want, tx.Duration, 1e-12)
	testutil.AssertFloat64Equal(t, "reply start", 1+cmd.Duration()+timing.T1(), tx.ReplyStart, 1e-12)
	assert.True(t, tx.Collision())

	// AND a tag leaving mid-window keeps its reply on air
	tx.depart(a)
	assert.Len(t, tx.Replies, 2)
	assert.True(t, tx.Collision())
	assert.True(t, tx.Departed[a])
	assert.False(t, tx.Departed[b])
}

func TestGenerator_IdentitiesAndExhaustion(t *testing.T) {
	p := DefaultParams()
	p.NumTags = 2
	p.TIDWordSize = 3
	g, err := NewGenerator(p, rand.New(rand.NewSource(1)))
	assert.NoError(t, err)

	index, epc, tid := g.NextIdentity()
	assert.Equal(t, 0, index)
	assert.Len(t, epc, 12)
	assert.Equal(t, []byte{0xAA, 0xAA}, epc[:2])
	assert.Equal(t, []byte{0xAA, 0xAA, 0, 0, 0, 0}, tid)

	_, epc, _ = g.NextIdentity()
	assert.Equal(t, byte(1), epc[11])
	assert.True(t, g.Exhausted())
}

func TestGenerator_BadPrefix(t *testing.T) {
	p := DefaultParams()
	p.Tag.EPCPrefix = "XYZ"
	_, err := NewGenerator(p, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestGenerator_Intervals(t *testing.T) {
	p := DefaultParams()
	g, _ := NewGenerator(p, rand.New(rand.NewSource(1)))
	assert.Equal(t, 1.0, g.NextInterval())

	// GIVEN exponential intervals with mean 0.2
	p.Tag.GenerationInterval = GenerationInterval{Kind: IntervalExponential, Value: 0.2}
	g, _ = NewGenerator(p, rand.New(rand.NewSource(42)))

	// THEN the sample mean is close to 0.2
	sum := 0.0
	const n = 20000
	for range n {
		x := g.NextInterval()
		assert.Positive(t, x)
		sum += x
	}
	assert.InDelta(t, 0.2, sum/n, 0.01)
}

func TestStatistics_Aggregates(t *testing.T) {
	// GIVEN two finished tags and one still alive
	s := NewStatistics()
	a, b, c := &Tag{Index: 0, CreatedAt: 0}, &Tag{Index: 1, CreatedAt: 1}, &Tag{Index: 2, CreatedAt: 2}
	ra, rb, rc := s.Open(a), s.Open(b), s.Open(c)

	ra.Rounds, ra.Collisions = 4, 1
	ra.EPCRead, ra.FirstEPCAt = true, 0.5
	ra.TIDRead, ra.FirstTIDAt = true, 0.75
	rb.Rounds, rb.Collisions = 2, 3
	rb.EPCRead, rb.FirstEPCAt = true, 1.25
	rc.Rounds = 100
	s.Close(a, 3)
	s.Close(b, 4)

	// THEN only finished tags count
	assert.Equal(t, 3, s.TagsCreated)
	assert.Equal(t, 2, s.TagsSimulated)
	assert.Equal(t, 3.0, s.AverageRoundsPerTag())
	assert.Equal(t, 2.0, s.AverageCollisionsPerTag())
	assert.Equal(t, 1.0, s.InventoryProbability())
	assert.Equal(t, 0.5, s.ReadTIDProbability())
	assert.Equal(t, 0.75, s.AverageIdentificationTime(true))
	assert.Equal(t, 0.375, s.AverageIdentificationTime(false))

	_, live := s.Record(c)
	assert.True(t, live)
	_, live = s.Record(a)
	assert.False(t, live)
}

func TestStatistics_EmptyAggregatesAreZero(t *testing.T) {
	s := NewStatistics()
	assert.Equal(t, 0.0, s.AverageRoundsPerTag())
	assert.Equal(t, 0.0, s.InventoryProbability())
	assert.Equal(t, 0.0, s.AverageIdentificationTime(true))
}
