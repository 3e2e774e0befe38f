// Package sim provides the discrete-event simulation kernel for gen2sim.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - queue.go: EventQueue, a (time, sequence)-ordered heap with lazy cancellation
//   - kernel.go: Kernel, the run loop, stop conditions and ExecutionStats
//   - simulator.go: Simulator, the facade every handler receives
//
// # Architecture
//
// The kernel is generic over the model context C. A model defines its event
// kinds as small structs implementing Handler[C]; the kernel pops the earliest
// live event, advances the clock to its time and calls Handle with the facade.
// Handlers never block: waiting is expressed by scheduling a future event.
//
// Sub-packages build the RFID model on top of the kernel:
//   - sim/channel/: two-ray propagation, reflection, SNR and bit-error models
//   - sim/gen2/: EPC Gen2 commands, replies, frames and link timing
//   - sim/rfid/: reader, tag and transaction state machines, Q adjustment, statistics
//   - sim/results/: run summaries and the SQLite result store
//   - sim/sweep/: concurrent one-parameter sweeps, one kernel per worker
//
// # Determinism
//
// Events at equal times fire in submission order and all randomness flows
// from a PartitionedRNG, so a run is reproducible for a fixed seed.
package sim
