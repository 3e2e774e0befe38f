package rfid

import (
	"encoding/hex"
	"strings"

	"github.com/gen2sim/gen2sim/sim"
	"github.com/gen2sim/gen2sim/sim/gen2"
)

// handleStart seeds a run: the reader turns on at once, the first tag
// arrives after one generation interval, position updates start ticking.
func (m *Model) handleStart(s *Simulator) {
	if !m.Generator.Exhausted() {
		s.MustSchedule(m.Generator.NextInterval(), generateTag{}, "generate_tag")
	}
	s.MustSchedule(m.Params.Geometry.UpdateInterval, updatePositions{}, "update_positions")
	s.MustSchedule(0, turnReaderOn{}, "turn_reader_on")
}

func (m *Model) handleTurnReaderOn(s *Simulator) {
	frame := m.Reader.TurnOn()
	if len(m.Reader.Antennas) > 1 {
		m.antennaSwitchEvent = s.MustSchedule(m.Params.Reader.AntennaSwitchInterval, switchAntenna{}, "switch_antenna")
	}
	sim.Assert(m.Transaction == nil, "reader turned on with active %v", m.Transaction)
	m.updatePower(m.now, m.Tags, nil)
	m.startTransaction(s, frame)

	if m.Params.Power.Mode == PowerPeriodic {
		m.powerEvent = s.MustSchedule(m.Params.Power.OnDuration, turnReaderOff{}, "turn_reader_off")
	}
	s.Logger().Debugf("reader on, antenna #%d", m.Reader.AntennaIndex)
}

func (m *Model) handleTurnReaderOff(s *Simulator) {
	m.Reader.TurnOff()
	m.updatePower(m.now, m.Tags, nil)

	if tx := m.Transaction; tx != nil {
		s.Cancel(tx.ResponseStartEvent)
		s.Cancel(tx.TimeoutEvent)
		m.Transaction = nil
	}
	s.Cancel(m.antennaSwitchEvent)
	m.antennaSwitchEvent = 0
	m.powerEvent = 0

	if m.settled() {
		s.Logger().Debug("reader off, nothing left to inventory")
		return
	}
	m.powerEvent = s.MustSchedule(m.Params.Power.OffDuration, turnReaderOn{}, "turn_reader_on")
	s.Logger().Debug("reader off")
}

func (m *Model) handleResponseStart(s *Simulator, e responseStart) {
	sim.Assert(e.tx == m.Transaction, "response start of inactive %v", e.tx)
	m.updatePower(m.now, m.Tags, e.tx)
	e.tx.ResponseStartEvent = 0
}

func (m *Model) handleFinishTransaction(s *Simulator, e finishTransaction) {
	tx := e.tx
	sim.Assert(tx == m.Transaction, "finishing inactive %v", tx)
	s.Logger().Tracef("finished %v", tx)
	m.Transaction = nil

	if m.settled() {
		m.closeReading()
		s.Logger().Debug("inventory stopped, no tags left")
		return
	}

	var next *gen2.ReaderFrame
	switch len(tx.Replies) {
	case 0:
		m.Stats.EmptySlots++
		next = m.adjustOrTimeout(s, -1)
	case 1:
		next = m.resolveReply(s, tx, tx.Replies[0])
	default:
		next = m.resolveCollision(s, tx)
	}
	if m.OnResolved != nil {
		m.OnResolved(tx)
	}
	m.startTransaction(s, next)
}

// adjustOrTimeout feeds the Q controller and falls back to continuing the
// round when Q does not move.
func (m *Model) adjustOrTimeout(s *Simulator, direction int) *gen2.ReaderFrame {
	prev := m.Reader.Q
	if frame, ok := m.Reader.AdjustQ(direction); ok {
		m.Stats.QAdjustments++
		m.Stats.PeakQ = max(m.Stats.PeakQ, m.Reader.Q)
		s.Logger().Debugf("Q %d -> %d (q_fp %.3f)", prev, m.Reader.Q, m.Reader.Adjust.QFp)
		return frame
	}
	return m.Reader.Timeout()
}

func (m *Model) resolveCollision(s *Simulator, tx *Transaction) *gen2.ReaderFrame {
	m.Stats.Collisions++
	for _, r := range tx.Replies {
		rec, ok := m.Stats.Record(r.Tag)
		if !ok {
			sim.Assert(tx.Departed[r.Tag], "collision reply from unknown tag %d", r.Tag.Index)
			continue
		}
		rec.Collisions++
	}
	s.Logger().Tracef("collision of %d replies to %v", len(tx.Replies), tx.Command.Command)
	return m.adjustOrTimeout(s, +1)
}

func (m *Model) resolveReply(s *Simulator, tx *Transaction, r ReplyFrame) *gen2.ReaderFrame {
	power, ok := tx.ReaderRxPower[r.Tag]
	if !ok {
		power = m.ReaderRxPower(r.Tag, m.now)
	}
	fr := m.receive(r.Frame, power)
	if m.channelRNG.Float64() >= fr.Success {
		m.Stats.LostReplies++
		s.Logger().Tracef("lost %v from tag %d (snr %.3g, ber %.3g)", r.Frame.Reply, r.Tag.Index, fr.SNR, fr.BER)
		return m.adjustOrTimeout(s, -1)
	}

	// A departed tag's reply is still decoded and answered; only its
	// bookkeeping is gone.
	rec, ok := m.Stats.Record(r.Tag)
	sim.Assert(ok || tx.Departed[r.Tag], "reply from unknown tag %d", r.Tag.Index)

	switch reply := r.Frame.Reply.(type) {
	case gen2.RN16Reply:
		if ok && m.Reader.arbitrating() {
			m.openReading(r.Tag, m.now, fr)
		}
	case gen2.AckReply:
		if ok && m.Reader.State == ReaderAck {
			if !rec.EPCRead {
				rec.EPCRead = true
				rec.FirstEPCAt = m.now
			}
			if m.readingTag == r.Tag {
				m.reading.EPCRead = true
			}
			s.Logger().Infof("received EPC=%s, power=%.2f dBm from tag %d",
				strings.ToUpper(hex.EncodeToString(reply.EPC)), power, r.Tag.Index)
		}
	case gen2.HandleReply:
	case gen2.ReadReply:
		if ok && m.Reader.State == ReaderRead {
			if !rec.TIDRead {
				rec.TIDRead = true
				rec.FirstTIDAt = m.now
			}
			if m.readingTag == r.Tag {
				m.reading.TIDRead = true
			}
			s.Logger().Infof("received TID=%s, power=%.2f dBm from tag %d",
				strings.ToUpper(hex.EncodeToString(reply.Memory)), power, r.Tag.Index)
		}
	default:
		sim.Assert(false, "unknown reply %T from tag %d", reply, r.Tag.Index)
	}
	return m.Reader.Receive(r.Frame.Reply)
}

// startTransaction broadcasts frame to the live tags and opens the window
// collecting their replies.
func (m *Model) startTransaction(s *Simulator, frame *gen2.ReaderFrame) {
	sim.Assert(m.Transaction == nil, "starting %v while %v is active", frame.Command, m.Transaction)

	var replies []ReplyFrame
	for _, t := range m.Tags {
		if reply := t.Receive(frame.Command, m.tagRNG); reply != nil {
			replies = append(replies, ReplyFrame{Tag: t, Frame: gen2.NewTagFrame(reply, m.Timing)})
		}
	}

	switch frame.Command.(type) {
	case gen2.Query:
		m.Stats.Rounds++
		m.Stats.Slots++
		for _, t := range m.Tags {
			if t.State != TagArbitrate && t.State != TagReply {
				continue
			}
			rec, ok := m.Stats.Record(t)
			sim.Assert(ok, "round attained by unknown tag %d", t.Index)
			rec.Rounds++
		}
	case gen2.QueryRep, gen2.QueryAdjust:
		m.Stats.Slots++
	}

	tx := NewTransaction(m.now, frame, replies)
	m.Transaction = tx
	tx.TimeoutEvent = s.MustSchedule(tx.Duration, finishTransaction{tx: tx}, "finish_transaction")
	if len(replies) > 0 {
		tx.ResponseStartEvent = s.MustSchedule(tx.ReplyStart-m.now, responseStart{tx: tx}, "response_start")
	}
	s.Logger().Tracef("started %v", tx)
}

func (m *Model) handleSwitchAntenna(s *Simulator) {
	index := m.Reader.SwitchAntenna()
	s.Logger().Debugf("switched to antenna #%d", index)
	if m.settled() {
		m.antennaSwitchEvent = 0
		return
	}
	m.antennaSwitchEvent = s.MustSchedule(m.Params.Reader.AntennaSwitchInterval, switchAntenna{}, "switch_antenna")
}

func (m *Model) handleGenerateTag(s *Simulator) {
	if m.Generator.Exhausted() {
		return
	}
	t := m.newTag(m.now)
	m.Tags = append(m.Tags, t)
	m.Stats.Open(t)

	s.MustSchedule(m.Generator.Lifetime, removeTag{tag: t}, "remove_tag")
	if !m.Generator.Exhausted() {
		s.MustSchedule(m.Generator.NextInterval(), generateTag{}, "generate_tag")
	}
	m.updatePower(m.now, []*Tag{t}, nil)
	s.Logger().Infof("(+) tag %d created for %.3fs at %v", t.Index, m.Generator.Lifetime, t.Antenna.Pos)
}

func (m *Model) handleRemoveTag(s *Simulator, e removeTag) {
	t := e.tag
	sim.Assert(m.removeLive(t), "removing unknown tag %d", t.Index)
	if m.readingTag == t {
		m.closeReading()
	}
	if tx := m.Transaction; tx != nil {
		tx.depart(t)
	}
	t.Removed = true
	t.RemovedAt = m.now
	m.Stats.Close(t, m.now)
	s.Logger().Infof("(x) tag %d removed", t.Index)

	if m.Params.NumTags > 0 && m.Stats.TagsSimulated >= m.Params.NumTags {
		s.Stop("all tags simulated")
	}
}

func (m *Model) handleUpdatePositions(s *Simulator) {
	m.updatePower(m.now, m.Tags, m.Transaction)
	if m.settled() {
		return
	}
	s.MustSchedule(m.Params.Geometry.UpdateInterval, updatePositions{}, "update_positions")
}
