package sim

import (
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/bft-sim/bft-sim/sim/trace"
)

// SequencerConfig carries the training-phase trigger parameters.
type SequencerConfig struct {
	// BeamformedLinkThreshold is the number of data-period sector-sweep
	// completions between the two endpoints required before SU-MIMO
	// training may start. The default of 2 means both directions of the
	// pair are beamformed; for scenarios with more endpoints this is
	// scenario configuration, not a protocol rule.
	BeamformedLinkThreshold int

	// MimoDwellTicks is the minimum simulated time before SU-MIMO training
	// may start.
	MimoDwellTicks int64

	// KBest is the number of shortlisted combinations carried into the
	// MIMO evaluation sub-phase.
	KBest int

	// TxCombinationsRequested is the number of TX combinations the
	// external layer is asked to feed back.
	TxCombinationsRequested int

	// UseExtendedAWVs requests fine-grained AWV testing in the MIMO phase.
	UseExtendedAWVs bool
}

// DefaultSequencerConfig mirrors the reference scenario defaults: two
// beamformed directions, 0.6 s dwell, 10 shortlisted combinations.
func DefaultSequencerConfig() SequencerConfig {
	return SequencerConfig{
		BeamformedLinkThreshold: 2,
		MimoDwellTicks:          6 * TicksPerSecond / 10,
		KBest:                   10,
		TxCombinationsRequested: 10,
	}
}

// Sequencer owns the per-session TrainingPhase state machine. It reacts to
// completion events from the external MAC layer; its only side effects are
// further MAC invocations and trace rows. No SNR computation happens here.
//
// There is no retry logic: when the external layer reports a failure the
// session stays in its current phase indefinitely.
type Sequencer struct {
	cfg SequencerConfig

	associated map[NodeID]NodeID
	// beamformed counts completed data-period sweep directions per
	// endpoint pair.
	beamformed map[PairKey]int
	// trainingDone marks pairs whose SU-MIMO training completed; the
	// trigger in the training window must not fire again for them.
	trainingDone map[PairKey]bool
}

// NewSequencer creates a sequencer with zero-valued config fields replaced
// by the reference defaults.
func NewSequencer(cfg SequencerConfig) *Sequencer {
	def := DefaultSequencerConfig()
	if cfg.BeamformedLinkThreshold <= 0 {
		cfg.BeamformedLinkThreshold = def.BeamformedLinkThreshold
	}
	if cfg.MimoDwellTicks <= 0 {
		cfg.MimoDwellTicks = def.MimoDwellTicks
	}
	if cfg.KBest <= 0 {
		cfg.KBest = def.KBest
	}
	if cfg.TxCombinationsRequested <= 0 {
		cfg.TxCombinationsRequested = def.TxCombinationsRequested
	}
	return &Sequencer{
		cfg:          cfg,
		associated:   make(map[NodeID]NodeID),
		beamformed:   make(map[PairKey]int),
		trainingDone: make(map[PairKey]bool),
	}
}

// Config returns the effective trigger parameters.
func (q *Sequencer) Config() SequencerConfig {
	return q.cfg
}

// HandleAssociation records that sta is associated with peer.
func (q *Sequencer) HandleAssociation(sim *Simulator, sta, peer NodeID) {
	q.associated[sta] = peer
}

// HandleTrainingWindow reacts to a DTI start at node. Two triggers live
// here: the one-shot sector-sweep kickoff for a freshly associated session,
// and the SU-MIMO combination-training start once enough directions are
// beamformed and the dwell time has elapsed.
func (q *Sequencer) HandleTrainingWindow(sim *Simulator, node, peer NodeID) {
	id := SessionID{Src: node, Dst: peer}
	sess := sim.Sessions.Lookup(id)
	if sess == nil {
		logrus.Warnf("training window for unknown session %s", id)
		return
	}

	if _, ok := q.associated[node]; ok && !sess.SweepRequested {
		sess.SweepRequested = true
		// An association-period sweep may already have moved the session
		// out of Idle; the kickoff itself still fires exactly once.
		if sess.Phase == PhaseIdle {
			if err := sess.AdvanceTo(PhaseSectorSweep); err != nil {
				logrus.Warnf("%v", err)
				return
			}
			sim.Counters.PhaseChanged(id, sess.Phase)
		}
		sim.MAC.BeginSectorSweep(node)
		return
	}

	pair := id.Pair()
	if q.beamformed[pair] >= q.cfg.BeamformedLinkThreshold &&
		sim.Clock > q.cfg.MimoDwellTicks &&
		!q.trainingDone[pair] &&
		sess.Phase == PhaseSectorSweep {
		logrus.Infof("STA %d initiating SU-MIMO BFT with STA %d at %.3fs", node, peer, sim.NowSeconds())
		if err := sess.AdvanceTo(PhaseSisoDiscovery); err != nil {
			logrus.Warnf("%v", err)
			return
		}
		sim.Counters.PhaseChanged(id, sess.Phase)
		sim.MAC.BeginCombinationTraining(node, peer, sim.MAC.AntennaIDs(node))
	}
}

// HandleSectorSweepCompleted exports the sweep result and counts
// data-period completions toward the MIMO gate.
func (q *Sequencer) HandleSectorSweepCompleted(sim *Simulator, id SessionID, res SectorResult) {
	sess := sim.Sessions.Lookup(id)
	if sess == nil {
		logrus.Warnf("sector sweep completion for unknown session %s", id)
		return
	}
	// The responder direction enters SectorSweep through its first result:
	// the sweep that produced it was started by the initiator's window.
	if sess.Phase == PhaseIdle {
		if err := sess.AdvanceTo(PhaseSectorSweep); err != nil {
			logrus.Warnf("%v", err)
			return
		}
		sim.Counters.PhaseChanged(id, sess.Phase)
	}

	sim.Export(trace.SectorSweepRecord{
		SrcID:        uint32(id.Src),
		DstID:        uint32(id.Dst),
		TraceIndex:   sim.TraceIndex(),
		AntennaID:    uint8(res.Antenna),
		SectorID:     uint8(res.Sector),
		AccessPeriod: res.AccessPeriod.String(),
		SnrDb:        RatioToDb(res.Snr),
		TimestampNs:  sim.TimestampNs(),
	})

	if res.AccessPeriod == AccessPeriodDTI {
		q.beamformed[id.Pair()]++
	}
}

// HandleSisoMeasurements exports the raw per-AWV probes of the SISO
// discovery sub-phase.
func (q *Sequencer) HandleSisoMeasurements(sim *Simulator, id SessionID, ms SisoMeasurements, awvsPerSector uint8) {
	sess := sim.Sessions.Lookup(id)
	if sess == nil || sess.Phase != PhaseSisoDiscovery {
		q.anomaly(sim, id, "SISO measurements")
		return
	}
	for _, key := range sortedMeasurementKeys(ms) {
		for i, snr := range ms[key] {
			sim.Export(trace.SisoMeasurementRecord{
				SrcID:       uint32(id.Src),
				DstID:       uint32(id.Dst),
				TraceIndex:  sim.TraceIndex(),
				RxAntennaID: uint8(key.RxAntenna),
				TxAntennaID: uint8(key.TxAntenna),
				TxSectorID:  uint8(key.TxSector),
				AwvID:       uint8(i + 1),
				SnrDb:       RatioToDb(snr),
				TimestampNs: sim.TimestampNs(),
			})
		}
	}
}

// HandleSisoCompleted exports the feedback map, runs the K-best selection,
// and requests the MIMO evaluation sub-phase over the shortlist. An
// insufficient feedback map is surfaced in the log and leaves the session
// in SisoDiscovery; there is no padding and no retry.
func (q *Sequencer) HandleSisoCompleted(sim *Simulator, id SessionID, feedback SisoFeedback, nTx, nRx int) {
	sess := sim.Sessions.Lookup(id)
	if sess == nil || sess.Phase != PhaseSisoDiscovery {
		q.anomaly(sim, id, "SISO completion")
		return
	}
	sess.NTx = nTx
	sess.NRx = nRx

	for _, key := range sortedFeedbackKeys(feedback) {
		sim.Export(trace.SisoFeedbackRecord{
			SrcID:       uint32(id.Src),
			DstID:       uint32(id.Dst),
			TraceIndex:  sim.TraceIndex(),
			RxAntennaID: uint8(key.RxAntenna),
			TxAntennaID: uint8(key.TxAntenna),
			TxSectorID:  uint8(key.TxSector),
			SnrDb:       RatioToDb(feedback[key]),
			TimestampNs: sim.TimestampNs(),
		})
	}

	shortlist, err := SelectKBest(feedback, sess.K, nTx, nRx)
	if err != nil {
		if errors.Is(err, ErrInsufficientFeedback) {
			logrus.Errorf("session %s: %v", id, err)
			return
		}
		logrus.Errorf("session %s: K-best selection failed: %v", id, err)
		return
	}

	if err := sess.AdvanceTo(PhaseMimoCandidateSelection); err != nil {
		logrus.Warnf("%v", err)
		return
	}
	sim.Counters.PhaseChanged(id, sess.Phase)

	sim.MAC.RequestMimoEvaluation(id, CandidateSectorLists(shortlist), q.cfg.TxCombinationsRequested, q.cfg.UseExtendedAWVs)

	// The shortlist request is issued; evaluation is in flight.
	if err := sess.AdvanceTo(PhaseMimoEvaluation); err != nil {
		logrus.Warnf("%v", err)
		return
	}
	sim.Counters.PhaseChanged(id, sess.Phase)
}

// HandleMimoCandidates logs and exports the candidate sets the external
// layer accepted for evaluation. State is not altered here.
func (q *Sequencer) HandleMimoCandidates(sim *Simulator, id SessionID, tx, rx Antenna2Sectors) {
	sess := sim.Sessions.Lookup(id)
	if sess == nil || sess.Phase != PhaseMimoEvaluation {
		q.anomaly(sim, id, "MIMO candidate confirmation")
		return
	}
	q.exportCandidates(sim, id, "Tx", tx)
	q.exportCandidates(sim, id, "Rx", rx)
}

func (q *Sequencer) exportCandidates(sim *Simulator, id SessionID, side string, cands Antenna2Sectors) {
	antennas := make([]AntennaID, 0, len(cands))
	for ant := range cands {
		antennas = append(antennas, ant)
	}
	sort.Slice(antennas, func(i, j int) bool { return antennas[i] < antennas[j] })

	rows := 0
	for i, ant := range antennas {
		if i == 0 || len(cands[ant]) < rows {
			rows = len(cands[ant])
		}
	}
	for row := 0; row < rows; row++ {
		entries := make([]trace.CandidateEntry, 0, len(antennas))
		for _, ant := range antennas {
			entries = append(entries, trace.CandidateEntry{
				AntennaID: uint8(ant),
				SectorID:  uint8(cands[ant][row]),
			})
		}
		sim.Export(trace.MimoCandidateRecord{
			SrcID:       uint32(id.Src),
			DstID:       uint32(id.Dst),
			TraceIndex:  sim.TraceIndex(),
			Side:        side,
			Entries:     entries,
			TimestampNs: sim.TimestampNs(),
		})
	}
}

// HandleMimoMeasurements ranks the raw combination measurements by their
// worst stream and exports them best first, resolving AWV ids to physical
// configurations through the codebook.
func (q *Sequencer) HandleMimoMeasurements(sim *Simulator, id SessionID, ms []MimoMeasurement, nTx, nRx, combinationsTested int) {
	sess := sim.Sessions.Lookup(id)
	if sess == nil || sess.Phase != PhaseMimoEvaluation {
		q.anomaly(sim, id, "MIMO measurements")
		return
	}
	logrus.Debugf("session %s: ranking %d measurements (%dx%d streams, %d RX combinations tested)",
		id, len(ms), nTx, nRx, combinationsTested)

	for _, c := range RankByMinStreamSnr(ms).Drain() {
		txCombo := sim.MAC.CombinationFromAWVID(c.TxAwvID, id.Src)
		rxCombo := sim.MAC.CombinationFromAWVID(c.RxAwvID, id.Dst)

		matrix := make([]float64, 0, len(c.SnrMatrix)*len(c.SnrMatrix))
		for _, row := range c.SnrMatrix {
			for _, v := range row {
				matrix = append(matrix, RatioToDb(v))
			}
		}
		sim.Export(trace.MimoMeasurementRecord{
			SrcID:          uint32(id.Src),
			DstID:          uint32(id.Dst),
			TraceIndex:     sim.TraceIndex(),
			TxStreams:      streamEntries(txCombo),
			RxStreams:      streamEntries(rxCombo),
			SnrMatrixDb:    matrix,
			MinStreamSnrDb: RatioToDb(c.MinStreamSnr),
			TimestampNs:    sim.TimestampNs(),
		})
	}
}

// HandleMimoCompleted marks the session finished. A second completion for
// the same session is an anomaly: counted, logged, and ignored.
func (q *Sequencer) HandleMimoCompleted(sim *Simulator, id SessionID) {
	sess := sim.Sessions.Lookup(id)
	if sess == nil || sess.Phase != PhaseMimoEvaluation {
		q.anomaly(sim, id, "MIMO completion")
		return
	}
	if err := sess.AdvanceTo(PhaseComplete); err != nil {
		logrus.Warnf("%v", err)
		return
	}
	sim.Counters.PhaseChanged(id, sess.Phase)
	q.trainingDone[id.Pair()] = true
}

// HandleTrainingFailure accumulates a transmission failure reported by the
// external layer. The session stays in its current phase; there is no
// automatic re-trigger.
func (q *Sequencer) HandleTrainingFailure(sim *Simulator, id SessionID, reason string) {
	logrus.Warnf("session %s: transmission failure: %s", id, reason)
	sim.Counters.TxFailed()
}

// BeamformedDirections returns how many data-period sweep directions have
// completed for the pair containing id.
func (q *Sequencer) BeamformedDirections(id SessionID) int {
	return q.beamformed[id.Pair()]
}

func (q *Sequencer) anomaly(sim *Simulator, id SessionID, what string) {
	phase := "unknown session"
	if sess := sim.Sessions.Lookup(id); sess != nil {
		phase = "phase " + sess.Phase.String()
	}
	logrus.Warnf("session %s: unexpected %s event (%s); ignored", id, what, phase)
	sim.Counters.Anomaly()
}

func streamEntries(combo AntennaCombination) []trace.StreamEntry {
	entries := make([]trace.StreamEntry, 0, len(combo))
	for _, s := range combo {
		entries = append(entries, trace.StreamEntry{
			AntennaID: uint8(s.Antenna),
			SectorID:  uint8(s.Sector),
			AwvID:     uint8(s.AWV),
		})
	}
	return entries
}

// sortedMeasurementKeys gives the export loop a deterministic row order.
func sortedMeasurementKeys(ms SisoMeasurements) []SisoMeasurementKey {
	keys := make([]SisoMeasurementKey, 0, len(ms))
	for k := range ms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.RxAntenna != b.RxAntenna {
			return a.RxAntenna < b.RxAntenna
		}
		if a.TxAntenna != b.TxAntenna {
			return a.TxAntenna < b.TxAntenna
		}
		return a.TxSector < b.TxSector
	})
	return keys
}

func sortedFeedbackKeys(fb SisoFeedback) []SisoFeedbackKey {
	keys := make([]SisoFeedbackKey, 0, len(fb))
	for k := range fb {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.RxAntenna != b.RxAntenna {
			return a.RxAntenna < b.RxAntenna
		}
		if a.TxAntenna != b.TxAntenna {
			return a.TxAntenna < b.TxAntenna
		}
		return a.TxSector < b.TxSector
	})
	return keys
}
