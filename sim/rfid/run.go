package rfid

import "github.com/gen2sim/gen2sim/sim"

// Result is the outcome of one RFID run.
type Result = sim.Result[*Model]

// Run simulates m until every tag has lived its lifetime, the model settles
// or a ceiling in cfg is reached. FinalizerResult holds the *Statistics.
func Run(m *Model, cfg sim.Config) (*Result, error) {
	name := m.Params.ModelName
	if name == "" {
		name = "RFID"
	}
	return sim.Simulate(name, m, start, finish, cfg)
}

func start(s *Simulator) {
	enter(s).handleStart(s)
}

func finish(s *Simulator) any {
	m := enter(s)
	m.closeReading()
	return m.Stats
}
