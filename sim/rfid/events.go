package rfid

import "github.com/gen2sim/gen2sim/sim"

// Simulator is the facade handed to RFID event handlers.
type Simulator = sim.Simulator[*Model]

// enter returns the model with its clock set to the event being handled.
func enter(s *Simulator) *Model {
	m := s.Context()
	m.now = s.Now()
	return m
}

// turnReaderOn powers the reader up and opens a round.
type turnReaderOn struct{}

func (turnReaderOn) Handle(s *Simulator) {
	enter(s).handleTurnReaderOn(s)
}

// turnReaderOff powers the reader down, dropping the active transaction.
type turnReaderOff struct{}

func (turnReaderOff) Handle(s *Simulator) {
	enter(s).handleTurnReaderOff(s)
}

// responseStart samples link power when the replies of tx begin.
type responseStart struct {
	tx *Transaction
}

func (e responseStart) Handle(s *Simulator) {
	enter(s).handleResponseStart(s, e)
}

// finishTransaction resolves tx when its window closes.
type finishTransaction struct {
	tx *Transaction
}

func (e finishTransaction) Handle(s *Simulator) {
	enter(s).handleFinishTransaction(s, e)
}

// switchAntenna rotates the active reader antenna.
type switchAntenna struct{}

func (switchAntenna) Handle(s *Simulator) {
	enter(s).handleSwitchAntenna(s)
}

// generateTag creates the next tag.
type generateTag struct{}

func (generateTag) Handle(s *Simulator) {
	enter(s).handleGenerateTag(s)
}

// removeTag retires tag at the end of its lifetime.
type removeTag struct {
	tag *Tag
}

func (e removeTag) Handle(s *Simulator) {
	enter(s).handleRemoveTag(s, e)
}

// updatePositions moves the tags and refreshes link power.
type updatePositions struct{}

func (updatePositions) Handle(s *Simulator) {
	enter(s).handleUpdatePositions(s)
}
