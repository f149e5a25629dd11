package sim

import "github.com/sirupsen/logrus"

// Completion events raised by the external MAC layer. Each completion kind
// is its own event type carrying the session identifier; handlers look the
// session up in the registry rather than holding references to it.

// AssociationEvent reports that a station associated with its peer.
type AssociationEvent struct {
	Time int64
	Sta  NodeID
	Peer NodeID
	AID  uint16
}

func (e *AssociationEvent) Timestamp() int64 { return e.Time }

func (e *AssociationEvent) Execute(sim *Simulator) {
	logrus.Infof("<< STA %d associated with %d, AID=%d at %.3fs", e.Sta, e.Peer, e.AID, sim.NowSeconds())
	sim.Counters.Associated()
	sim.Sequencer.HandleAssociation(sim, e.Sta, e.Peer)
}

// TrainingWindowEvent marks the start of a data transmission interval, the
// periodic window in which training and data transfer may run.
type TrainingWindowEvent struct {
	Time int64
	Node NodeID
	Peer NodeID
}

func (e *TrainingWindowEvent) Timestamp() int64 { return e.Time }

func (e *TrainingWindowEvent) Execute(sim *Simulator) {
	logrus.Debugf("<< DTI start for STA %d at %.3fs", e.Node, sim.NowSeconds())
	sim.Sequencer.HandleTrainingWindow(sim, e.Node, e.Peer)
}

// SectorSweepCompletedEvent delivers the outcome of one sector-level sweep.
type SectorSweepCompletedEvent struct {
	Time    int64
	Session SessionID
	Result  SectorResult
}

func (e *SectorSweepCompletedEvent) Timestamp() int64 { return e.Time }

func (e *SectorSweepCompletedEvent) Execute(sim *Simulator) {
	logrus.Infof("<< SLS completed for %s (antenna=%d sector=%d, %s) at %.3fs",
		e.Session, e.Result.Antenna, e.Result.Sector, e.Result.AccessPeriod, sim.NowSeconds())
	sim.Sequencer.HandleSectorSweepCompleted(sim, e.Session, e.Result)
}

// SisoMeasurementsEvent delivers raw per-AWV measurements of the SISO
// discovery sub-phase. Zero or more of these precede the completion event.
type SisoMeasurementsEvent struct {
	Time          int64
	Session       SessionID
	Measurements  SisoMeasurements
	AwvsPerSector uint8
}

func (e *SisoMeasurementsEvent) Timestamp() int64 { return e.Time }

func (e *SisoMeasurementsEvent) Execute(sim *Simulator) {
	logrus.Infof("<< SISO measurements for %s (%d keys) at %.3fs", e.Session, len(e.Measurements), sim.NowSeconds())
	sim.Sequencer.HandleSisoMeasurements(sim, e.Session, e.Measurements, e.AwvsPerSector)
}

// SisoCompletedEvent ends the SISO discovery sub-phase with the feedback
// map reported back to the initiator. Exactly one is emitted per training.
type SisoCompletedEvent struct {
	Time     int64
	Session  SessionID
	Feedback SisoFeedback
	NTx      int
	NRx      int
}

func (e *SisoCompletedEvent) Timestamp() int64 { return e.Time }

func (e *SisoCompletedEvent) Execute(sim *Simulator) {
	logrus.Infof("<< SISO phase completed for %s (%d feedback entries) at %.3fs",
		e.Session, len(e.Feedback), sim.NowSeconds())
	sim.Sequencer.HandleSisoCompleted(sim, e.Session, e.Feedback, e.NTx, e.NRx)
}

// MimoCandidatesEvent confirms which TX/RX candidate sets the external
// layer accepted for MIMO evaluation.
type MimoCandidatesEvent struct {
	Time    int64
	Session SessionID
	Tx      Antenna2Sectors
	Rx      Antenna2Sectors
}

func (e *MimoCandidatesEvent) Timestamp() int64 { return e.Time }

func (e *MimoCandidatesEvent) Execute(sim *Simulator) {
	logrus.Infof("<< MIMO candidates selected for %s at %.3fs", e.Session, sim.NowSeconds())
	sim.Sequencer.HandleMimoCandidates(sim, e.Session, e.Tx, e.Rx)
}

// MimoMeasurementsEvent delivers the raw per-combination SNR matrices of
// the MIMO evaluation sub-phase.
type MimoMeasurementsEvent struct {
	Time               int64
	Session            SessionID
	Measurements       []MimoMeasurement
	NTx                int
	NRx                int
	CombinationsTested int
}

func (e *MimoMeasurementsEvent) Timestamp() int64 { return e.Time }

func (e *MimoMeasurementsEvent) Execute(sim *Simulator) {
	logrus.Infof("<< MIMO measurements for %s (%d combinations) at %.3fs",
		e.Session, len(e.Measurements), sim.NowSeconds())
	sim.Sequencer.HandleMimoMeasurements(sim, e.Session, e.Measurements, e.NTx, e.NRx, e.CombinationsTested)
}

// MimoCompletedEvent ends the MIMO evaluation sub-phase. Exactly one is
// expected per training; duplicates are anomalies.
type MimoCompletedEvent struct {
	Time    int64
	Session SessionID
}

func (e *MimoCompletedEvent) Timestamp() int64 { return e.Time }

func (e *MimoCompletedEvent) Execute(sim *Simulator) {
	logrus.Infof("<< MIMO phase completed for %s at %.3fs", e.Session, sim.NowSeconds())
	sim.Sequencer.HandleMimoCompleted(sim, e.Session)
}

// TrainingFailedEvent reports a transmission failure from the external
// layer. The sequencer counts it and leaves the session where it is; there
// is no retry path.
type TrainingFailedEvent struct {
	Time    int64
	Session SessionID
	Reason  string
}

func (e *TrainingFailedEvent) Timestamp() int64 { return e.Time }

func (e *TrainingFailedEvent) Execute(sim *Simulator) {
	sim.Sequencer.HandleTrainingFailure(sim, e.Session, e.Reason)
}
