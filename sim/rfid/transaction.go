package rfid

import (
	"fmt"
	"math"

	"github.com/gen2sim/gen2sim/sim"
	"github.com/gen2sim/gen2sim/sim/gen2"
)

// ReplyFrame is a reply frame together with the tag that sent it.
type ReplyFrame struct {
	Tag   *Tag
	Frame *gen2.TagFrame
}

// Transaction is one reader command and the replies it collects before its
// window closes.
type Transaction struct {
	Command *gen2.ReaderFrame
	Replies []ReplyFrame

	// ReaderRxPower holds the backscatter power of each replying tag at the
	// reader, dBm, sampled when the replies start.
	ReaderRxPower map[*Tag]float64

	// Departed holds tags removed while the window was open. Their replies
	// stay on air, so they still count toward the resolution class.
	Departed map[*Tag]bool

	Start      float64
	Duration   float64
	ReplyStart float64 // absolute; NaN without replies

	TimeoutEvent       sim.EventID
	ResponseStartEvent sim.EventID
}

// NewTransaction opens a transaction at now. With replies the window lasts
// command + T1 + longest reply + T2; without, command + max(T1 + T3, T4).
func NewTransaction(now float64, cmd *gen2.ReaderFrame, replies []ReplyFrame) *Transaction {
	timing := cmd.Timing
	tx := &Transaction{
		Command:       cmd,
		Replies:       replies,
		ReaderRxPower: make(map[*Tag]float64, len(replies)),
		Start:         now,
		ReplyStart:    math.NaN(),
	}
	if len(replies) == 0 {
		tx.Duration = cmd.Duration() + math.Max(timing.T1()+timing.T3(), timing.T4())
		return tx
	}
	longest := 0.0
	for _, r := range replies {
		longest = math.Max(longest, r.Frame.Duration())
	}
	tx.ReplyStart = now + cmd.Duration() + timing.T1()
	tx.Duration = cmd.Duration() + timing.T1() + longest + timing.T2()
	return tx
}

// End returns the time the window closes.
func (tx *Transaction) End() float64 {
	return tx.Start + tx.Duration
}

// Collision reports whether more than one tag replied.
func (tx *Transaction) Collision() bool {
	return len(tx.Replies) > 1
}

func (tx *Transaction) String() string {
	return fmt.Sprintf("Transaction{%v, replies=%d, start=%.6f, duration=%.2fus}",
		tx.Command.Command, len(tx.Replies), tx.Start, tx.Duration*1e6)
}

// depart records that t left the model while its reply may be on air.
func (tx *Transaction) depart(t *Tag) {
	if tx.Departed == nil {
		tx.Departed = make(map[*Tag]bool)
	}
	tx.Departed[t] = true
}
