package sim

import (
	"container/heap"

	"github.com/sirupsen/logrus"

	"github.com/bft-sim/bft-sim/sim/trace"
)

// TicksPerSecond is the simulation clock resolution: one tick per
// microsecond. Exported trace timestamps are nanoseconds (ticks * 1000).
const TicksPerSecond int64 = 1_000_000

// Event defines the interface for all simulation events. Each event has a
// Timestamp (in ticks) and an Execute method that advances simulation state
// when invoked.
type Event interface {
	Timestamp() int64
	Execute(*Simulator)
}

type queuedEvent struct {
	ev  Event
	seq uint64
}

// EventQueue implements heap.Interface and orders events by timestamp.
// Events with equal timestamps dispatch in scheduling order, which is what
// preserves per-session ordering of completion callbacks.
type EventQueue []queuedEvent

func (eq EventQueue) Len() int { return len(eq) }
func (eq EventQueue) Less(i, j int) bool {
	if eq[i].ev.Timestamp() != eq[j].ev.Timestamp() {
		return eq[i].ev.Timestamp() < eq[j].ev.Timestamp()
	}
	return eq[i].seq < eq[j].seq
}
func (eq EventQueue) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *EventQueue) Push(x any) {
	*eq = append(*eq, x.(queuedEvent))
}

func (eq *EventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	*eq = old[0 : n-1]
	return item
}

// MACLayer is the external MAC/codebook/channel surface the sequencer
// drives. Invocations return immediately; outcomes arrive later as
// completion events on the simulator queue.
type MACLayer interface {
	// BeginSectorSweep starts a transmit sector sweep from the given
	// station toward its peer.
	BeginSectorSweep(initiator NodeID)
	// BeginCombinationTraining starts the SISO discovery sub-phase of
	// SU-MIMO beamforming training over the given initiator antennas.
	BeginCombinationTraining(initiator, responder NodeID, antennas []AntennaID)
	// RequestMimoEvaluation asks for the MIMO evaluation sub-phase over a
	// shortlist of per-antenna candidate sectors.
	RequestMimoEvaluation(id SessionID, txCandidates Antenna2Sectors, requestedCount int, useExtendedAWVs bool)
	// CombinationFromAWVID resolves an AWV identifier back to the physical
	// steering configuration it indexes in the peer-facing codebook.
	CombinationFromAWVID(awvID uint16, peer NodeID) AntennaCombination
	// AntennaIDs lists the antennas available at a station.
	AntennaIDs(node NodeID) []AntennaID
}

// TraceIndexConfig positions the run inside the channel trace: the discrete
// index starts at Start and advances once per Interval ticks.
type TraceIndexConfig struct {
	Start    uint32
	Interval int64
}

// Simulator is the core object that holds simulation time, system state,
// and the event loop. All component operations execute as time-stamped
// callbacks dispatched in non-decreasing time order; there is no
// parallelism.
type Simulator struct {
	Clock   int64
	Horizon int64

	Sessions  *SessionRegistry
	Sequencer *Sequencer
	Telemetry *TelemetrySampler
	Counters  *Counters
	Exporter  *trace.Exporter
	MAC       MACLayer
	RNG       *PartitionedRNG

	queue    EventQueue
	seq      uint64
	traceIdx TraceIndexConfig
	failure  error
}

// NewSimulator assembles a simulator around its collaborators. The MAC
// layer is attached afterwards via AttachMAC because it needs the simulator
// to schedule its completion events.
func NewSimulator(horizon int64, seed int64, traceIdx TraceIndexConfig, exporter *trace.Exporter, counters *Counters) *Simulator {
	if traceIdx.Interval <= 0 {
		traceIdx.Interval = TicksPerSecond / 10
	}
	return &Simulator{
		Horizon:  horizon,
		Sessions: NewSessionRegistry(),
		Counters: counters,
		Exporter: exporter,
		RNG:      NewPartitionedRNG(NewSimulationKey(seed)),
		queue:    make(EventQueue, 0),
		traceIdx: traceIdx,
	}
}

// AttachMAC wires the external-layer implementation.
func (sim *Simulator) AttachMAC(mac MACLayer) {
	sim.MAC = mac
}

// Schedule pushes an event into the simulator's event queue.
func (sim *Simulator) Schedule(ev Event) {
	heap.Push(&sim.queue, queuedEvent{ev: ev, seq: sim.seq})
	sim.seq++
}

// ScheduleAfter schedules fn as an event delay ticks after the current
// clock.
func (sim *Simulator) ScheduleAfter(delay int64, fn func(*Simulator)) {
	sim.Schedule(&funcEvent{time: sim.Clock + delay, fn: fn})
}

// Fail records a fatal run error and stops the event loop after the
// current event. Only the first failure is kept.
func (sim *Simulator) Fail(err error) {
	if sim.failure == nil {
		sim.failure = err
	}
}

// Run drains the event queue until it is empty, the horizon is reached, or
// a fatal failure is recorded. It returns the fatal error, if any.
func (sim *Simulator) Run() error {
	for len(sim.queue) > 0 && sim.failure == nil {
		qe := heap.Pop(&sim.queue).(queuedEvent)
		if qe.ev.Timestamp() > sim.Horizon {
			break
		}
		sim.Clock = qe.ev.Timestamp()
		qe.ev.Execute(sim)
	}
	if sim.failure != nil {
		logrus.Errorf("simulation aborted at %d ticks: %v", sim.Clock, sim.failure)
	}
	return sim.failure
}

// NowSeconds returns the current clock in seconds.
func (sim *Simulator) NowSeconds() float64 {
	return float64(sim.Clock) / float64(TicksPerSecond)
}

// TimestampNs returns the current clock as a monotonic nanosecond integer,
// the mandatory trailing column of every exported table.
func (sim *Simulator) TimestampNs() int64 {
	return sim.Clock * 1000
}

// TraceIndex returns the discrete channel-trace index in effect at the
// current clock.
func (sim *Simulator) TraceIndex() uint32 {
	return sim.traceIdx.Start + uint32(sim.Clock/sim.traceIdx.Interval)
}

// Export appends a record through the run's exporter, treating any failure
// to produce the output artifact as fatal for the whole run.
func (sim *Simulator) Export(r trace.Record) {
	if err := sim.Exporter.Append(r); err != nil {
		sim.Fail(err)
	}
}

// funcEvent adapts a closure into an Event; used for one-shot internal
// timers where a named event type would add nothing.
type funcEvent struct {
	time int64
	fn   func(*Simulator)
}

func (e *funcEvent) Timestamp() int64 { return e.time }

func (e *funcEvent) Execute(sim *Simulator) { e.fn(sim) }
