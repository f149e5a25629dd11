package sim

import "fmt"

// LinkCounters accumulates MAC/PHY statistics for one run. Counters are
// observational only: the sequencer reads them for the end-of-run summary
// but never branches on them, matching the no-retry failure policy.
type LinkCounters struct {
	TxPackets      uint64
	RxPackets      uint64
	DroppedPackets uint64
	FailedTx       uint64
	Associations   uint64
	RxBytes        uint64

	// Anomalies counts phase-completion events that arrived for a session
	// not in the expected state. They are logged and dropped, never fatal.
	Anomalies uint64
}

// StatsObserver mirrors counter increments into an external metrics
// surface. A nil observer is valid and ignored.
type StatsObserver interface {
	AddTxPackets(n uint64)
	AddRxPackets(n, bytes uint64)
	AddDroppedPackets(n uint64)
	IncFailedTx()
	IncAssociations()
	IncAnomalies()
	SetPhase(session, phase string)
}

// Counters is the shared accumulator passed to MAC callbacks, optionally
// tee-ing into a StatsObserver.
type Counters struct {
	LinkCounters
	Observer StatsObserver
}

func (c *Counters) AddTx(n uint64) {
	c.TxPackets += n
	if c.Observer != nil {
		c.Observer.AddTxPackets(n)
	}
}

func (c *Counters) AddRx(n, bytes uint64) {
	c.RxPackets += n
	c.RxBytes += bytes
	if c.Observer != nil {
		c.Observer.AddRxPackets(n, bytes)
	}
}

func (c *Counters) AddDropped(n uint64) {
	c.DroppedPackets += n
	if c.Observer != nil {
		c.Observer.AddDroppedPackets(n)
	}
}

func (c *Counters) TxFailed() {
	c.FailedTx++
	if c.Observer != nil {
		c.Observer.IncFailedTx()
	}
}

func (c *Counters) Associated() {
	c.Associations++
	if c.Observer != nil {
		c.Observer.IncAssociations()
	}
}

func (c *Counters) Anomaly() {
	c.Anomalies++
	if c.Observer != nil {
		c.Observer.IncAnomalies()
	}
}

func (c *Counters) PhaseChanged(id SessionID, phase TrainingPhase) {
	if c.Observer != nil {
		c.Observer.SetPhase(id.String(), phase.String())
	}
}

// Summary formats the MAC/PHY statistics block printed at the end of a run.
func (c *Counters) Summary() string {
	return fmt.Sprintf(
		"MAC Layer Statistics:\n"+
			"  Number of Failed Tx Data Packets:  %d\n"+
			"  Number of Associations:            %d\n"+
			"  Number of Anomalous Completions:   %d\n"+
			"PHY Layer Statistics:\n"+
			"  Number of Tx Packets:         %d\n"+
			"  Number of Rx Packets:         %d\n"+
			"  Number of Rx Dropped Packets: %d",
		c.FailedTx, c.Associations, c.Anomalies,
		c.TxPackets, c.RxPackets, c.DroppedPackets)
}
