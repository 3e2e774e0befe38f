package rfid

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/gen2sim/gen2sim/sim"
	"github.com/gen2sim/gen2sim/sim/channel"
	"github.com/gen2sim/gen2sim/sim/gen2"
)

// Model is the context of one RFID run: a reader, the live tags, the tag
// generator, the active transaction and the statistics.
type Model struct {
	Params Params
	Medium channel.Medium
	Timing gen2.LinkTiming

	Reader      *Reader
	Tags        []*Tag
	Generator   *Generator
	Transaction *Transaction
	Stats       *Statistics

	// OnResolved, when set, observes each transaction right after its
	// resolution, before the next command goes out.
	OnResolved func(tx *Transaction)

	tagRNG     *rand.Rand
	channelRNG *rand.Rand

	// reading is the slot record of the singulated tag, closed at slot end.
	reading    *ReadRecord
	readingTag *Tag

	now float64 // time of the event being handled

	powerEvent         sim.EventID
	antennaSwitchEvent sim.EventID
}

// NewModel validates p and wires a model whose randomness derives from seed.
func NewModel(p Params, seed int64) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
	gen, err := NewGenerator(p, rng.ForSubsystem(sim.SubsystemGenerator))
	if err != nil {
		return nil, err
	}
	m := &Model{
		Params:     p,
		Medium:     p.medium(),
		Timing:     p.LinkTiming(),
		Generator:  gen,
		Stats:      NewStatistics(),
		tagRNG:     rng.ForSubsystem(sim.SubsystemTags),
		channelRNG: rng.ForSubsystem(sim.SubsystemChannel),
	}
	m.Reader = newReader(p, m.Timing)
	m.Stats.PeakQ = p.Q
	m.Reader.OnSlotEnd = m.closeReading
	return m, nil
}

func vec(v Vec3) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func unit(v Vec3) r3.Vec {
	u := vec(v)
	if n := r3.Norm(u); n > 0 {
		return r3.Scale(1/n, u)
	}
	return u
}

func newReader(p Params, timing gen2.LinkTiming) *Reader {
	pattern, _ := p.Geometry.ReaderAntennaPattern.Func()
	var antennas []channel.Endpoint
	for _, a := range p.Reader.Antennas {
		antennas = append(antennas, channel.Endpoint{
			Pos:          vec(a.Position),
			Direction:    unit(a.Direction),
			Pattern:      pattern,
			Polarization: p.Channel.ReaderPolarization,
		})
	}
	if len(antennas) == 0 {
		antennas = []channel.Endpoint{{
			Pos:          r3.Vec{X: p.ReaderOffset, Z: p.Altitude},
			Direction:    unit(p.Geometry.ReaderAntennaDirection),
			Pattern:      pattern,
			Polarization: p.Channel.ReaderPolarization,
		}}
	}
	return &Reader{
		State:                       ReaderOff,
		Timing:                      timing,
		Q:                           p.Q,
		UseAdjust:                   p.UseAdjust,
		Adjust:                      NewQController(p.AdjustStrategy, p.Delta, p.Q),
		Sel:                         p.Inventory.Sel,
		Session:                     p.Inventory.Session,
		Target:                      p.Inventory.Target,
		TargetStrategy:              p.Inventory.TargetStrategy,
		RoundsPerTarget:             p.Inventory.RoundsPerTarget,
		ReadTID:                     p.Inventory.ReadTIDBank && p.TIDWordSize > 0,
		TIDWords:                    p.TIDWordSize,
		Antennas:                    antennas,
		AlwaysStartWithFirstAntenna: p.Reader.AlwaysStartWithFirstAntenna,
		TxPower:                     p.PowerDBm,
		Gain:                        p.Energy.ReaderAntennaGain,
		CableLoss:                   p.Energy.ReaderCableLoss,
		Noise:                       p.Energy.ReaderNoise,
	}
}

// newTag places a fresh tag at the start of its track: initial distance
// before the reader along -y, at the tag offset from the wall.
func (m *Model) newTag(now float64) *Tag {
	p := m.Params
	index, epc, tid := m.Generator.NextIdentity()
	speed := channel.KmphToMps(p.SpeedKmph)
	pattern, _ := p.Geometry.TagAntennaPattern.Func()
	antenna := channel.Endpoint{
		Pos:          r3.Vec{X: p.TagOffset, Y: -p.Geometry.InitialDistanceToReader, Z: p.Tag.Altitude},
		Direction:    unit(p.Geometry.TagAntennaDirection),
		Velocity:     r3.Scale(speed, unit(p.Geometry.MovementDirection)),
		Pattern:      pattern,
		Polarization: p.Channel.TagPolarization,
	}
	persistence := [4]float64{0, p.Tag.S1Persistence, p.Tag.S2Persistence, p.Tag.S3Persistence}
	return NewTag(index, epc, tid, now, antenna, p.Energy.TagSensitivity, persistence)
}

func (m *Model) link(t *Tag) channel.Link {
	return channel.Link{
		Reader:         m.Reader.Antenna(),
		Tag:            t.Antenna,
		TxPower:        m.Reader.TxPower,
		ReaderGain:     m.Reader.Gain,
		CableLoss:      m.Reader.CableLoss,
		TagGain:        m.Params.Energy.TagAntennaGain,
		ModulationLoss: m.Params.Energy.TagModulationLoss,
	}
}

// TagRxPower returns the power tag t receives at now, dBm. It is -Inf while
// the reader is off.
func (m *Model) TagRxPower(t *Tag, now float64) float64 {
	if m.Reader.State == ReaderOff {
		return math.Inf(-1)
	}
	return m.Medium.TagRxPower(m.link(t), t.SinceMoved(now))
}

// ReaderRxPower returns the power of t's backscatter at the reader, dBm.
func (m *Model) ReaderRxPower(t *Tag, now float64) float64 {
	if m.Reader.State == ReaderOff {
		return math.Inf(-1)
	}
	return m.Medium.ReaderRxPower(m.link(t), t.SinceMoved(now))
}

// receive evaluates a reply frame arriving at the reader with power dBm.
func (m *Model) receive(frame *gen2.TagFrame, power float64) channel.FrameReception {
	return m.Medium.Receive(power, m.Reader.Noise, frame.BitLen(),
		m.Timing.M.SymbolsPerBit(), 1/m.Timing.BLF(), m.Timing.TagPreamble())
}

// updatePower refreshes the power every tag receives, moves the tags to
// their position at now and, when tx is given, samples the backscatter
// power of its replying tags.
func (m *Model) updatePower(now float64, tags []*Tag, tx *Transaction) {
	for _, t := range tags {
		t.SetPower(now, m.TagRxPower(t, now))
		t.Move(now)
	}
	if tx != nil {
		for _, r := range tx.Replies {
			tx.ReaderRxPower[r.Tag] = m.ReaderRxPower(r.Tag, now)
		}
	}
	if !m.Params.Energy.CollectPowerStatistics {
		return
	}
	for _, t := range tags {
		rec, ok := m.Stats.Record(t)
		sim.Assert(ok, "power sample for unknown tag %d", t.Index)
		rx := m.ReaderRxPower(t, now)
		fr := m.receive(gen2.NewTagFrame(gen2.RN16Reply{}, m.Timing), rx)
		rec.Power = append(rec.Power, PowerSample{
			Time:          now,
			TagRxPower:    t.RxPower,
			ReaderRxPower: rx,
			SNR:           fr.SNR,
			BER:           fr.BER,
		})
	}
}

// settled reports whether nothing is left to simulate: the generator is
// exhausted and no tag is alive.
func (m *Model) settled() bool {
	return m.Generator.Exhausted() && len(m.Tags) == 0
}

func (m *Model) removeLive(t *Tag) bool {
	for i, live := range m.Tags {
		if live == t {
			m.Tags = append(m.Tags[:i], m.Tags[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Model) openReading(t *Tag, now float64, fr channel.FrameReception) {
	m.closeReading()
	m.reading = &ReadRecord{
		Round:           m.Reader.Round.Index,
		Antenna:         m.Reader.AntennaIndex,
		TagPosition:     t.Antenna.Pos,
		AntennaPosition: m.Reader.Antenna().Pos,
		SNR:             fr.SNR,
		BER:             fr.BER,
		StartedAt:       now,
	}
	m.readingTag = t
}

func (m *Model) closeReading() {
	if m.reading == nil {
		return
	}
	if rec, ok := m.Stats.Record(m.readingTag); ok {
		m.reading.EndedAt = m.now
		rec.Reads = append(rec.Reads, *m.reading)
	}
	m.reading = nil
	m.readingTag = nil
}
