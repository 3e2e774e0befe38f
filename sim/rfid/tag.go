package rfid

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/gen2sim/gen2sim/sim/channel"
	"github.com/gen2sim/gen2sim/sim/gen2"
)

// TagState is the protocol state of a tag.
type TagState int

const (
	TagOff TagState = iota // not powered
	TagReady
	TagArbitrate
	TagReply
	TagAcknowledged
	TagOpen
	TagSecured
)

func (s TagState) String() string {
	switch s {
	case TagOff:
		return "OFF"
	case TagReady:
		return "READY"
	case TagArbitrate:
		return "ARBITRATE"
	case TagReply:
		return "REPLY"
	case TagAcknowledged:
		return "ACKNOWLEDGED"
	case TagOpen:
		return "OPEN"
	case TagSecured:
		return "SECURED"
	}
	return fmt.Sprintf("TagState(%d)", int(s))
}

// noSlot parks a tag that left the reply state until the next round.
const noSlot = 0x7FFF

// Tag is a passive Gen2 tag moving through the reader's field.
type Tag struct {
	Index int
	EPC   []byte
	TID   []byte

	State   TagState
	Session gen2.Session // session of the round the tag last joined
	Flags   [4]gen2.InventoryFlag
	Q       int
	Slot    int
	RN16    uint16
	Handle  uint16

	Sensitivity float64    // dBm
	Persistence [4]float64 // seconds a session flag survives power loss
	Powered     bool
	RxPower     float64 // last power received from the reader, dBm
	offSince    float64

	Antenna   channel.Endpoint
	lastMoved float64

	CreatedAt float64
	RemovedAt float64
	Removed   bool
}

// NewTag creates an unpowered tag at pos. Every session flag starts at A.
func NewTag(index int, epc, tid []byte, now float64, antenna channel.Endpoint, sensitivity float64, persistence [4]float64) *Tag {
	return &Tag{
		Index:       index,
		EPC:         epc,
		TID:         tid,
		State:       TagOff,
		Sensitivity: sensitivity,
		Persistence: persistence,
		RxPower:     math.Inf(-1),
		offSince:    math.Inf(-1),
		Antenna:     antenna,
		lastMoved:   now,
		CreatedAt:   now,
	}
}

func (t *Tag) String() string {
	return fmt.Sprintf("Tag#%d(%s)", t.Index, t.State)
}

// Position returns where the tag is at time now, extrapolating from the last
// position update.
func (t *Tag) Position(now float64) r3.Vec {
	return r3.Add(t.Antenna.Pos, r3.Scale(now-t.lastMoved, t.Antenna.Velocity))
}

// SinceMoved returns the time elapsed since the last position update.
func (t *Tag) SinceMoved(now float64) float64 {
	return now - t.lastMoved
}

// Move commits the extrapolated position at time now.
func (t *Tag) Move(now float64) {
	t.Antenna.Pos = t.Position(now)
	t.lastMoved = now
}

// SetPower records the power the tag receives and switches it on or off
// against its sensitivity. A tag losing power forgets its S0 flag at once;
// the S1..S3 flags reset only when the tag stays off longer than their
// persistence time.
func (t *Tag) SetPower(now, power float64) {
	t.RxPower = power
	on := power >= t.Sensitivity
	if on == t.Powered {
		return
	}
	t.Powered = on
	if !on {
		t.State = TagOff
		t.Flags[gen2.S0] = gen2.FlagA
		t.offSince = now
		return
	}
	for s := gen2.S1; s <= gen2.S3; s++ {
		if now-t.offSince > t.Persistence[s] {
			t.Flags[s] = gen2.FlagA
		}
	}
	t.State = TagReady
}

// Receive processes a reader command and returns the tag's reply, or nil if
// the tag stays silent.
func (t *Tag) Receive(cmd gen2.Command, rng *rand.Rand) gen2.Reply {
	if !t.Powered {
		return nil
	}
	switch c := cmd.(type) {
	case gen2.Query:
		return t.handleQuery(c, rng)
	case gen2.QueryRep:
		return t.handleQueryRep(c, rng)
	case gen2.QueryAdjust:
		return t.handleQueryAdjust(c, rng)
	case gen2.Ack:
		return t.handleAck(c)
	case gen2.ReqRN:
		return t.handleReqRN(c, rng)
	case gen2.Read:
		return t.handleRead(c)
	}
	return nil
}

func (t *Tag) singulated() bool {
	return t.State == TagAcknowledged || t.State == TagOpen || t.State == TagSecured
}

// leaveRound ends a singulated tag's participation and flips its flag so
// that it does not answer the same target again.
func (t *Tag) leaveRound() {
	t.Flags[t.Session] = t.Flags[t.Session].Invert()
	t.State = TagReady
}

func (t *Tag) handleQuery(c gen2.Query, rng *rand.Rand) gen2.Reply {
	if t.singulated() && c.Session == t.Session {
		t.Flags[t.Session] = t.Flags[t.Session].Invert()
	}
	t.Session = c.Session
	if t.Flags[c.Session] != c.Target {
		t.State = TagReady
		return nil
	}
	t.Q = c.Q
	return t.drawSlot(rng)
}

func (t *Tag) drawSlot(rng *rand.Rand) gen2.Reply {
	t.Slot = rng.Intn(1 << t.Q)
	if t.Slot == 0 {
		return t.backscatterRN16(rng)
	}
	t.State = TagArbitrate
	return nil
}

func (t *Tag) backscatterRN16(rng *rand.Rand) gen2.Reply {
	t.State = TagReply
	t.RN16 = uint16(rng.Intn(1 << 16))
	return gen2.RN16Reply{RN: t.RN16}
}

func (t *Tag) handleQueryRep(c gen2.QueryRep, rng *rand.Rand) gen2.Reply {
	if c.Session != t.Session {
		return nil
	}
	switch {
	case t.State == TagArbitrate:
		t.Slot--
		if t.Slot == 0 {
			return t.backscatterRN16(rng)
		}
	case t.State == TagReply:
		t.State = TagArbitrate
		t.Slot = noSlot
	case t.singulated():
		t.leaveRound()
	}
	return nil
}

func (t *Tag) handleQueryAdjust(c gen2.QueryAdjust, rng *rand.Rand) gen2.Reply {
	if c.Session != t.Session {
		return nil
	}
	switch {
	case t.State == TagArbitrate || t.State == TagReply:
		t.Q = min(MaxQ, max(0, t.Q+int(c.UpDn)))
		return t.drawSlot(rng)
	case t.singulated():
		t.leaveRound()
	}
	return nil
}

func (t *Tag) handleAck(c gen2.Ack) gen2.Reply {
	switch t.State {
	case TagReply, TagAcknowledged:
		if c.RN != t.RN16 {
			t.State = TagArbitrate
			t.Slot = noSlot
			return nil
		}
		t.State = TagAcknowledged
		return gen2.AckReply{PC: gen2.PCWord(8 * len(t.EPC)), EPC: t.EPC}
	}
	return nil
}

func (t *Tag) handleReqRN(c gen2.ReqRN, rng *rand.Rand) gen2.Reply {
	if t.State != TagAcknowledged || c.RN != t.RN16 {
		return nil
	}
	// The access password is zero, so the tag goes straight to secured.
	t.State = TagSecured
	t.Handle = uint16(rng.Intn(1 << 16))
	return gen2.HandleReply{Handle: t.Handle}
}

func (t *Tag) handleRead(c gen2.Read) gen2.Reply {
	if (t.State != TagOpen && t.State != TagSecured) || c.RN != t.Handle {
		return nil
	}
	var memory []byte
	if c.Bank == gen2.BankTID {
		memory = wordsOf(t.TID, int(c.WordPtr), c.WordCount)
	}
	return gen2.ReadReply{Memory: memory, Handle: t.Handle}
}

// wordsOf slices count 16-bit words from ptr, padding past the end with zeros.
func wordsOf(mem []byte, ptr, count int) []byte {
	out := make([]byte, 2*count)
	if 2*ptr < len(mem) {
		copy(out, mem[2*ptr:])
	}
	return out
}
