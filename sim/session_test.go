package sim

import (
	"strings"
	"testing"
)

// === TrainingPhase Tests ===

func TestTrainingPhase_String(t *testing.T) {
	tests := []struct {
		phase TrainingPhase
		want  string
	}{
		{PhaseIdle, "Idle"},
		{PhaseSectorSweep, "SectorSweep"},
		{PhaseSisoDiscovery, "SisoDiscovery"},
		{PhaseMimoCandidateSelection, "MimoCandidateSelection"},
		{PhaseMimoEvaluation, "MimoEvaluation"},
		{PhaseComplete, "Complete"},
		{TrainingPhase(99), "TrainingPhase(99)"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", int(tt.phase), got, tt.want)
		}
	}
}

// === SessionID Tests ===

func TestSessionID_ReverseAndPair(t *testing.T) {
	id := SessionID{Src: 2, Dst: 1}

	rev := id.Reverse()
	if rev.Src != 1 || rev.Dst != 2 {
		t.Errorf("Reverse() = %v, want 1->2", rev)
	}
	if id.Pair() != rev.Pair() {
		t.Errorf("Pair differs across directions: %v vs %v", id.Pair(), rev.Pair())
	}
	if got := id.Pair(); got.A != 1 || got.B != 2 {
		t.Errorf("Pair() = %v, want canonical {1 2}", got)
	}
	if id.String() != "2->1" {
		t.Errorf("String() = %q, want \"2->1\"", id.String())
	}
}

// === LinkSession Tests ===

func TestLinkSession_AdvanceMonotonic(t *testing.T) {
	s := &LinkSession{ID: SessionID{Src: 1, Dst: 2}, Phase: PhaseIdle}

	order := []TrainingPhase{
		PhaseSectorSweep,
		PhaseSisoDiscovery,
		PhaseMimoCandidateSelection,
		PhaseMimoEvaluation,
		PhaseComplete,
	}
	for _, p := range order {
		if err := s.AdvanceTo(p); err != nil {
			t.Fatalf("AdvanceTo(%s) failed: %v", p, err)
		}
		if s.Phase != p {
			t.Fatalf("Phase = %s after AdvanceTo(%s)", s.Phase, p)
		}
	}
}

func TestLinkSession_RefusesRegression(t *testing.T) {
	s := &LinkSession{ID: SessionID{Src: 1, Dst: 2}, Phase: PhaseMimoEvaluation}

	tests := []struct {
		name string
		to   TrainingPhase
	}{
		{"same phase", PhaseMimoEvaluation},
		{"earlier phase", PhaseSectorSweep},
		{"idle", PhaseIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AdvanceTo(tt.to)
			if err == nil {
				t.Fatalf("AdvanceTo(%s) succeeded, want refusal", tt.to)
			}
			if !strings.Contains(err.Error(), "refusing transition") {
				t.Errorf("error %q missing transition context", err)
			}
			if s.Phase != PhaseMimoEvaluation {
				t.Errorf("Phase changed to %s on refused transition", s.Phase)
			}
		})
	}
}

func TestLinkSession_AdvanceMaySkipPhases(t *testing.T) {
	// Forward jumps are legal; only regression is refused.
	s := &LinkSession{ID: SessionID{Src: 1, Dst: 2}, Phase: PhaseIdle}
	if err := s.AdvanceTo(PhaseMimoEvaluation); err != nil {
		t.Fatalf("forward jump failed: %v", err)
	}
}

// === SessionRegistry Tests ===

func TestSessionRegistry_CreateAndLookup(t *testing.T) {
	r := NewSessionRegistry()
	id := SessionID{Src: 2, Dst: 1}

	s, err := r.Create(id, 10)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if s.Phase != PhaseIdle || s.K != 10 {
		t.Errorf("new session = %+v, want Idle with K=10", s)
	}
	if r.Lookup(id) != s {
		t.Error("Lookup did not return the created session")
	}
	if r.Lookup(id.Reverse()) != nil {
		t.Error("Lookup returned a session for the unregistered reverse direction")
	}
}

func TestSessionRegistry_DuplicateCreate(t *testing.T) {
	r := NewSessionRegistry()
	id := SessionID{Src: 1, Dst: 2}

	if _, err := r.Create(id, 5); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	if _, err := r.Create(id, 5); err == nil {
		t.Error("duplicate Create succeeded, want error")
	}
}

func TestSessionRegistry_AllCreationOrder(t *testing.T) {
	r := NewSessionRegistry()
	ids := []SessionID{{Src: 2, Dst: 1}, {Src: 1, Dst: 2}, {Src: 3, Dst: 1}}
	for _, id := range ids {
		if _, err := r.Create(id, 1); err != nil {
			t.Fatalf("Create(%s) failed: %v", id, err)
		}
	}

	all := r.All()
	if len(all) != len(ids) {
		t.Fatalf("All() returned %d sessions, want %d", len(all), len(ids))
	}
	for i, id := range ids {
		if all[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, all[i].ID, id)
		}
	}
}
