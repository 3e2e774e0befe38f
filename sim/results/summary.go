// Package results turns finished RFID runs into summaries, renders them and
// persists them.
package results

import (
	"github.com/gen2sim/gen2sim/sim/rfid"
)

// Summary aggregates the outcome of one run.
type Summary struct {
	RunID    string  `json:"run_id"`
	Seed     int64   `json:"seed"`
	Variable string  `json:"variable,omitempty"` // swept parameter, empty for single runs
	Value    float64 `json:"value,omitempty"`

	TagsCreated   int     `json:"tags_created"`
	TagsSimulated int     `json:"tags_simulated"`
	RoundsPerTag  float64 `json:"rounds_per_tag"`
	InventoryProb float64 `json:"inventory_prob"`
	ReadTIDProb   float64 `json:"read_tid_prob"`
	ReadTIDTime   float64 `json:"read_tid_time"` // s; time to first EPC read when TID reading is off
	AvgCollisions float64 `json:"avg_collisions"`

	Rounds       int `json:"rounds"`
	Slots        int `json:"slots"`
	EmptySlots   int `json:"empty_slots"`
	Collisions   int `json:"collisions"`
	LostReplies  int `json:"lost_replies"`
	QAdjustments int `json:"q_adjustments"`
	PeakQ        int `json:"peak_q"`

	NumEvents     int     `json:"num_events"`
	SimTime       float64 `json:"sim_time"`
	ExitReason    string  `json:"exit_reason"`
	StopMessage   string  `json:"stop_message,omitempty"`
	ExecutionTime float64 `json:"execution_time"` // wall-clock seconds
}

// Summarize computes a Summary from a finished run.
// Safe for a nil result (returns zero-value fields).
func Summarize(res *rfid.Result, seed int64) *Summary {
	summary := &Summary{Seed: seed}
	if res == nil {
		return summary
	}

	exec := res.Stats
	summary.RunID = exec.RunID
	summary.NumEvents = exec.NumEventsProcessed
	summary.SimTime = exec.SimTime
	summary.ExitReason = exec.ExitReason.String()
	summary.StopMessage = exec.StopMessage
	summary.ExecutionTime = exec.TimeElapsed.Seconds()

	m := res.Context
	if m == nil || m.Stats == nil {
		return summary
	}
	st := m.Stats
	summary.TagsCreated = st.TagsCreated
	summary.TagsSimulated = st.TagsSimulated
	summary.RoundsPerTag = st.AverageRoundsPerTag()
	summary.InventoryProb = st.InventoryProbability()
	summary.ReadTIDProb = st.ReadTIDProbability()
	summary.ReadTIDTime = st.AverageIdentificationTime(m.Reader.ReadTID)
	summary.AvgCollisions = st.AverageCollisionsPerTag()

	summary.Rounds = st.Rounds
	summary.Slots = st.Slots
	summary.EmptySlots = st.EmptySlots
	summary.Collisions = st.Collisions
	summary.LostReplies = st.LostReplies
	summary.QAdjustments = st.QAdjustments
	summary.PeakQ = st.PeakQ

	return summary
}
