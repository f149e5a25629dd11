package sim

import (
	"testing"

	"github.com/bft-sim/bft-sim/sim/trace"
)

// newTestSim builds a simulator with a real exporter writing into a test
// temp directory and a 10 s horizon.
func newTestSim(t *testing.T) *Simulator {
	t.Helper()
	exporter, err := trace.NewExporter(t.TempDir())
	if err != nil {
		t.Fatalf("creating exporter: %v", err)
	}
	t.Cleanup(func() { exporter.Close() })
	s := NewSimulator(10*TicksPerSecond, 42, TraceIndexConfig{}, exporter, &Counters{})
	s.Sequencer = NewSequencer(DefaultSequencerConfig())
	return s
}

// fakeMAC records sequencer invocations without scheduling anything, so
// tests can drive handlers one call at a time.
type fakeMAC struct {
	sweepsStarted    []NodeID
	trainingsStarted []SessionID
	evalRequests     []Antenna2Sectors
	antennas         []AntennaID
	combos           map[uint16]AntennaCombination
}

func newFakeMAC() *fakeMAC {
	return &fakeMAC{
		antennas: []AntennaID{1, 2},
		combos:   make(map[uint16]AntennaCombination),
	}
}

func (m *fakeMAC) BeginSectorSweep(initiator NodeID) {
	m.sweepsStarted = append(m.sweepsStarted, initiator)
}

func (m *fakeMAC) BeginCombinationTraining(initiator, responder NodeID, antennas []AntennaID) {
	m.trainingsStarted = append(m.trainingsStarted, SessionID{Src: initiator, Dst: responder})
}

func (m *fakeMAC) RequestMimoEvaluation(id SessionID, txCandidates Antenna2Sectors, requestedCount int, useExtendedAWVs bool) {
	m.evalRequests = append(m.evalRequests, txCandidates)
}

func (m *fakeMAC) CombinationFromAWVID(awvID uint16, peer NodeID) AntennaCombination {
	return m.combos[awvID]
}

func (m *fakeMAC) AntennaIDs(node NodeID) []AntennaID {
	return m.antennas
}
