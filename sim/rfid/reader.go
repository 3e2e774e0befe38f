package rfid

import (
	"fmt"

	"github.com/gen2sim/gen2sim/sim"
	"github.com/gen2sim/gen2sim/sim/channel"
	"github.com/gen2sim/gen2sim/sim/gen2"
)

// ReaderState is the state of the reader's inventory cycle.
type ReaderState int

const (
	ReaderOff ReaderState = iota
	ReaderQuery
	ReaderQRep
	ReaderQAdjust
	ReaderAck
	ReaderReqRN
	ReaderRead
)

func (s ReaderState) String() string {
	switch s {
	case ReaderOff:
		return "OFF"
	case ReaderQuery:
		return "QUERY"
	case ReaderQRep:
		return "QREP"
	case ReaderQAdjust:
		return "QADJUST"
	case ReaderAck:
		return "ACK"
	case ReaderReqRN:
		return "REQ_RN"
	case ReaderRead:
		return "READ"
	}
	return fmt.Sprintf("ReaderState(%d)", int(s))
}

// Round is the reader's position within the current inventory round.
type Round struct {
	Index    int // 1-based; 0 before the first Query
	Slot     int
	NumSlots int
}

// Reader drives the inventory cycle. Every transition that sends something
// returns the command frame to transmit.
type Reader struct {
	State  ReaderState
	Timing gen2.LinkTiming

	Q         int
	UseAdjust bool
	Adjust    *QController

	Sel             gen2.SelFlag
	Session         gen2.Session
	Target          gen2.InventoryFlag
	TargetStrategy  TargetStrategy
	RoundsPerTarget int
	Round           Round

	ReadTID  bool
	TIDWords int

	Antennas                    []channel.Endpoint
	AntennaIndex                int
	AlwaysStartWithFirstAntenna bool

	TxPower   float64 // dBm
	Gain      float64 // dBi
	CableLoss float64 // dB
	Noise     float64 // dBm

	// OnSlotEnd runs whenever a slot is closed: after a successful read,
	// on timeout and on power-off.
	OnSlotEnd func()

	rn16   uint16
	handle uint16
	upDn   gen2.UpDn
}

// Antenna returns the active antenna.
func (r *Reader) Antenna() channel.Endpoint {
	return r.Antennas[r.AntennaIndex]
}

// SwitchAntenna activates the next antenna and returns its index.
func (r *Reader) SwitchAntenna() int {
	r.AntennaIndex = (r.AntennaIndex + 1) % len(r.Antennas)
	return r.AntennaIndex
}

// TurnOn powers the reader up and returns the opening Query.
func (r *Reader) TurnOn() *gen2.ReaderFrame {
	sim.Assert(r.State == ReaderOff, "reader turned on in state %s", r.State)
	if r.AlwaysStartWithFirstAntenna {
		r.AntennaIndex = 0
	}
	return r.setState(ReaderQuery)
}

// TurnOff powers the reader down, closing the current slot.
func (r *Reader) TurnOff() {
	if r.State != ReaderOff {
		r.endSlot()
	}
	r.State = ReaderOff
}

// Timeout closes the current slot and continues the round with QueryRep.
func (r *Reader) Timeout() *gen2.ReaderFrame {
	sim.Assert(r.State != ReaderOff, "timeout while the reader is off")
	r.endSlot()
	return r.setState(ReaderQRep)
}

// AdjustQ feeds one arbitration outcome (+1 collision, -1 empty slot) to the
// Q controller. When Q moves it returns the QueryAdjust carrying the change.
// Adjustment only happens while arbitrating.
func (r *Reader) AdjustQ(direction int) (*gen2.ReaderFrame, bool) {
	if !r.UseAdjust || (r.State != ReaderQuery && r.State != ReaderQRep) {
		return nil, false
	}
	q, changed := r.Adjust.Feed(r.Q, direction)
	if !changed {
		return nil, false
	}
	sim.Assert(q >= 0 && q <= MaxQ, "q %d out of [0, %d]", q, MaxQ)
	if q > r.Q {
		r.upDn = gen2.UpDnIncrement
	} else {
		r.upDn = gen2.UpDnDecrement
	}
	r.Q = q
	frame := r.setState(ReaderQAdjust)
	r.upDn = gen2.UpDnNone
	return frame, true
}

// Receive processes a decoded tag reply. A reply that does not fit the
// current state is handled like a timeout.
func (r *Reader) Receive(reply gen2.Reply) *gen2.ReaderFrame {
	switch rep := reply.(type) {
	case gen2.RN16Reply:
		if r.arbitrating() {
			r.rn16 = rep.RN
			return r.setState(ReaderAck)
		}
	case gen2.AckReply:
		if r.State == ReaderAck {
			if r.ReadTID {
				return r.setState(ReaderReqRN)
			}
			return r.Timeout()
		}
	case gen2.HandleReply:
		if r.State == ReaderReqRN {
			r.handle = rep.Handle
			return r.setState(ReaderRead)
		}
	case gen2.ReadReply:
		if r.State == ReaderRead {
			return r.Timeout()
		}
	default:
		sim.Assert(false, "unknown reply %T", reply)
	}
	return r.Timeout()
}

func (r *Reader) arbitrating() bool {
	return r.State == ReaderQuery || r.State == ReaderQRep || r.State == ReaderQAdjust
}

func (r *Reader) endSlot() {
	if r.OnSlotEnd != nil {
		r.OnSlotEnd()
	}
}

func (r *Reader) setState(s ReaderState) *gen2.ReaderFrame {
	switch s {
	case ReaderQuery:
		r.State = s
		r.Round.Index++
		r.Round.Slot = 0
		r.Round.NumSlots = 1 << r.Q
		if r.TargetStrategy == TargetSwitch && r.Round.Index > 1 && (r.Round.Index-1)%r.RoundsPerTarget == 0 {
			r.Target = r.Target.Invert()
		}
		return r.frame(gen2.Query{
			DR:      r.Timing.DR,
			M:       r.Timing.M,
			TRext:   r.Timing.TRext,
			Sel:     r.Sel,
			Session: r.Session,
			Target:  r.Target,
			Q:       r.Q,
		})
	case ReaderQRep:
		r.Round.Slot++
		if r.Round.Slot >= r.Round.NumSlots {
			return r.setState(ReaderQuery)
		}
		r.State = s
		return r.frame(gen2.QueryRep{Session: r.Session})
	case ReaderQAdjust:
		r.State = s
		r.Round.Slot = 0
		r.Round.NumSlots = 1 << r.Q
		return r.frame(gen2.QueryAdjust{Session: r.Session, UpDn: r.upDn})
	case ReaderAck:
		r.State = s
		return r.frame(gen2.Ack{RN: r.rn16})
	case ReaderReqRN:
		r.State = s
		return r.frame(gen2.ReqRN{RN: r.rn16})
	case ReaderRead:
		r.State = s
		return r.frame(gen2.Read{Bank: gen2.BankTID, WordCount: r.TIDWords, RN: r.handle})
	}
	sim.Assert(false, "reader cannot enter state %s", s)
	return nil
}

func (r *Reader) frame(cmd gen2.Command) *gen2.ReaderFrame {
	return gen2.NewReaderFrame(cmd, r.Timing)
}
