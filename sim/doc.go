// Package sim provides the core discrete-event simulation engine for the
// mmWave SU-MIMO beamforming training simulator.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - session.go: Link session lifecycle (idle → sector sweep → SISO → MIMO → complete)
//   - event.go: Completion events that drive the simulation (sweep, SISO, MIMO, failure)
//   - simulator.go: The event loop, tick clock, and trace-index mapping
//
// # Architecture
//
// The sim package owns the clock, the training sequencer, and the
// candidate-ranking pipeline; supporting layers live in sub-packages:
//   - sim/mac/: Emulated MAC layer, beam codebooks, and the channel model
//   - sim/trace/: Append-only CSV trace records and the exporter
//
// The sequencer (sequencer.go) reacts to completion events and decides when a
// link moves to its next training phase; it never talks to the channel
// directly, only through the MACLayer interface on the Simulator.
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Event: anything schedulable on the event queue
//   - MACLayer: sector sweeps, combination training, MIMO evaluation, AWV resolution
//   - StatsObserver: optional sink mirroring the run counters (Prometheus in cmd)
package sim
