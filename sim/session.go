package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// TrainingPhase is the beam-training state of one link direction. Phases
// are strictly ordered; a session never regresses to an earlier phase.
type TrainingPhase int

const (
	PhaseIdle TrainingPhase = iota
	PhaseSectorSweep
	PhaseSisoDiscovery
	PhaseMimoCandidateSelection
	PhaseMimoEvaluation
	PhaseComplete
)

var phaseNames = map[TrainingPhase]string{
	PhaseIdle:                   "Idle",
	PhaseSectorSweep:            "SectorSweep",
	PhaseSisoDiscovery:          "SisoDiscovery",
	PhaseMimoCandidateSelection: "MimoCandidateSelection",
	PhaseMimoEvaluation:         "MimoEvaluation",
	PhaseComplete:               "Complete",
}

func (p TrainingPhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("TrainingPhase(%d)", int(p))
}

// SessionID identifies one ordered link direction under training.
type SessionID struct {
	Src NodeID
	Dst NodeID
}

func (id SessionID) String() string {
	return fmt.Sprintf("%d->%d", id.Src, id.Dst)
}

// Reverse returns the opposite direction of the same endpoint pair.
func (id SessionID) Reverse() SessionID {
	return SessionID{Src: id.Dst, Dst: id.Src}
}

// PairKey is the unordered endpoint pair shared by both directions of a
// link. Beamformed-direction counting is per pair, not per direction.
type PairKey struct {
	A NodeID
	B NodeID
}

// Pair returns the canonical unordered pair for this direction.
func (id SessionID) Pair() PairKey {
	if id.Src < id.Dst {
		return PairKey{A: id.Src, B: id.Dst}
	}
	return PairKey{A: id.Dst, B: id.Src}
}

// LinkSession is the per-direction training state. Identity fields (ID, K)
// are fixed at creation; only Phase and the bookkeeping flags advance.
type LinkSession struct {
	ID    SessionID
	Phase TrainingPhase

	// K is the number of ranked candidates retained for this session.
	// Fixed for the session's lifetime once training starts.
	K int

	// SweepRequested records that the one-shot sector-sweep kickoff for
	// this session already fired; later training windows are no-ops.
	SweepRequested bool

	// NTx and NRx are the stream counts reported by the SISO completion
	// and reused when ranking MIMO measurements.
	NTx int
	NRx int
}

// AdvanceTo moves the session forward to phase p. Transitions are
// monotonic: moving to the current or an earlier phase is refused.
func (s *LinkSession) AdvanceTo(p TrainingPhase) error {
	if p <= s.Phase {
		return fmt.Errorf("session %s: refusing transition %s -> %s", s.ID, s.Phase, p)
	}
	logrus.Debugf("session %s: %s -> %s", s.ID, s.Phase, p)
	s.Phase = p
	return nil
}

// SessionRegistry is the arena of link sessions indexed by direction.
// Handlers receive session identifiers and look the session up here rather
// than holding owning references.
type SessionRegistry struct {
	sessions map[SessionID]*LinkSession
	order    []SessionID
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[SessionID]*LinkSession)}
}

// Create registers a new Idle session for the given direction with its
// candidate budget k. Creating a direction twice is an error: session
// identity is immutable once training starts.
func (r *SessionRegistry) Create(id SessionID, k int) (*LinkSession, error) {
	if _, ok := r.sessions[id]; ok {
		return nil, fmt.Errorf("session %s already exists", id)
	}
	s := &LinkSession{ID: id, Phase: PhaseIdle, K: k}
	r.sessions[id] = s
	r.order = append(r.order, id)
	return s, nil
}

// Lookup returns the session for a direction, or nil if none is registered.
func (r *SessionRegistry) Lookup(id SessionID) *LinkSession {
	return r.sessions[id]
}

// All returns the registered sessions in creation order.
func (r *SessionRegistry) All() []*LinkSession {
	out := make([]*LinkSession, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id])
	}
	return out
}
