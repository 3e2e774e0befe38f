package results

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2sim/gen2sim/sim"
	"github.com/gen2sim/gen2sim/sim/channel"
	"github.com/gen2sim/gen2sim/sim/rfid"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

// singleTagRun runs one stationary tag under an always-on reader.
func singleTagRun(t *testing.T) *rfid.Result {
	t.Helper()
	p := rfid.DefaultParams()
	p.NumTags = 1
	p.SpeedKmph = 0
	p.Geometry.Lifetime = 1
	p.Geometry.InitialDistanceToReader = 0
	p.Altitude = 2
	p.Q = 0
	p.TIDWordSize = 4
	p.Power.Mode = rfid.PowerAlwaysOn
	p.Channel.BERDistribution = channel.AWGN
	p.Inventory.TargetStrategy = rfid.TargetConst

	m, err := rfid.NewModel(p, 1)
	require.NoError(t, err)
	res, err := rfid.Run(m, sim.Config{})
	require.NoError(t, err)
	return res
}

func TestSummarize_NilResult_ZeroValues(t *testing.T) {
	s := Summarize(nil, 7)

	assert.Equal(t, int64(7), s.Seed)
	assert.Empty(t, s.RunID)
	assert.Zero(t, s.TagsSimulated)
	assert.Zero(t, s.InventoryProb)
}

func TestSummarize_FinishedRun(t *testing.T) {
	// GIVEN a run in which the only tag is inventoried
	res := singleTagRun(t)

	// WHEN summarized
	s := Summarize(res, 1)

	// THEN the derived figures come from the statistics and the kernel
	assert.Equal(t, res.Stats.RunID, s.RunID)
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, 1, s.TagsSimulated)
	assert.Equal(t, 1.0, s.InventoryProb)
	assert.Equal(t, 1.0, s.ReadTIDProb)
	assert.Equal(t, 1.0, s.RoundsPerTag)
	assert.Positive(t, s.ReadTIDTime)
	assert.Equal(t, "stopped", s.ExitReason)
	assert.Equal(t, res.Stats.NumEventsProcessed, s.NumEvents)
	assert.GreaterOrEqual(t, s.Slots, s.Rounds)
}

func TestFprint(t *testing.T) {
	s := &Summary{
		Variable:      "speed",
		Value:         10,
		TagsCreated:   1200,
		TagsSimulated: 1200,
		InventoryProb: 0.975,
		ReadTIDTime:   0.0125,
		NumEvents:     1234567,
		ExitReason:    "stopped",
		StopMessage:   "all tags simulated",
	}

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, s))
	out := buf.String()

	assert.Contains(t, out, "1,200 of 1,200")
	assert.Contains(t, out, "0.9750")
	assert.Contains(t, out, "12.5 ms")
	assert.Contains(t, out, "1,234,567")
	assert.Contains(t, out, "stopped (all tags simulated)")
	assert.NotContains(t, out, "Q adjustments")
}

func TestFprintSweep_OneRowPerPoint(t *testing.T) {
	rows := []*Summary{
		{Variable: "q", Value: 2, InventoryProb: 0.5},
		{Variable: "q", Value: 4, InventoryProb: 0.75},
	}

	var buf bytes.Buffer
	require.NoError(t, FprintSweep(&buf, rows))
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))

	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "q")
	assert.Contains(t, string(lines[2]), "0.7500")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, &Summary{RunID: "r1", InventoryProb: 0.5}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "r1", got["run_id"])
	assert.Equal(t, 0.5, got["inventory_prob"])
	assert.NotContains(t, got, "variable")
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndListSweep(t *testing.T) {
	// GIVEN two sweep points saved out of order and one single run
	s := newTestStore(t)
	ctx := context.Background()
	sweep := NewSweepID()

	p := rfid.DefaultParams()
	p.Q = 4
	require.NoError(t, s.SaveRun(ctx, sweep, p, &Summary{RunID: "b", Variable: "q", Value: 4, InventoryProb: 0.8, ExitReason: "stopped"}))
	p.Q = 2
	require.NoError(t, s.SaveRun(ctx, sweep, p, &Summary{RunID: "a", Variable: "q", Value: 2, InventoryProb: 0.6, ExitReason: "stopped"}))
	single := &Summary{ExitReason: "no more events"}
	require.NoError(t, s.SaveRun(ctx, "", rfid.DefaultParams(), single))

	// WHEN the sweep is listed
	runs, err := s.ListRuns(ctx, sweep)

	// THEN its points come back ordered by value with their parameters
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].RunID)
	assert.Equal(t, 2, runs[0].Params.Q)
	assert.Equal(t, 0.6, runs[0].InventoryProb)
	assert.Equal(t, "b", runs[1].RunID)
	assert.Equal(t, 4, runs[1].Params.Q)
	assert.Equal(t, sweep, runs[1].SweepID)
	assert.False(t, runs[1].CreatedAt.IsZero())

	// AND the single run got an id of its own
	assert.NotEmpty(t, single.RunID)
	singles, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, singles, 1)
	assert.Equal(t, single.RunID, singles[0].RunID)
	assert.Equal(t, rfid.DefaultParams(), singles[0].Params)
}

func TestStore_DuplicateRunID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sum := &Summary{RunID: "dup"}

	require.NoError(t, s.SaveRun(ctx, "", rfid.DefaultParams(), sum))
	assert.Error(t, s.SaveRun(ctx, "", rfid.DefaultParams(), sum))
}

func TestContended(t *testing.T) {
	assert.False(t, contended(nil))
	assert.False(t, contended(assert.AnError))
	assert.True(t, contended(fmt.Errorf("exec: database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, contended(fmt.Errorf("insert: %w", errors.New("database table is locked"))))
}

func fastBackoff() backoff {
	return backoff{attempts: 4, base: time.Millisecond, ceiling: 2 * time.Millisecond}
}

func TestBackoff_RetriesContention(t *testing.T) {
	// GIVEN a write that loses the lock twice
	calls := 0
	fn := func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	}

	// WHEN retried
	err := fastBackoff().do(context.Background(), fn)

	// THEN the third attempt succeeds
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoff_GivesUpAfterLastAttempt(t *testing.T) {
	calls := 0
	err := fastBackoff().do(context.Background(), func() error {
		calls++
		return errors.New("database is locked")
	})

	assert.EqualError(t, err, "database is locked")
	assert.Equal(t, 4, calls)
}

func TestBackoff_OtherErrorsAreNotRetried(t *testing.T) {
	calls := 0
	err := fastBackoff().do(context.Background(), func() error {
		calls++
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestBackoff_StopsWaitingWhenContextEnds(t *testing.T) {
	// GIVEN a cancelled context and a pause far longer than the test
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := backoff{attempts: 4, base: time.Hour, ceiling: time.Hour}
	calls := 0

	// WHEN the first attempt hits contention
	err := b.do(ctx, func() error {
		calls++
		return errors.New("database is locked")
	})

	// THEN no further attempt is made and the context error is reported
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Equal(t, 1, calls)
}
