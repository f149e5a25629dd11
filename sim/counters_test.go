package sim

import (
	"strings"
	"testing"
)

// tallyObserver records every mirrored increment.
type tallyObserver struct {
	tx, rx, bytes, dropped uint64
	failed, assoc, anom    int
	phases                 map[string]string
}

func newTallyObserver() *tallyObserver {
	return &tallyObserver{phases: make(map[string]string)}
}

func (o *tallyObserver) AddTxPackets(n uint64) { o.tx += n }

func (o *tallyObserver) AddRxPackets(n, bytes uint64) { o.rx += n; o.bytes += bytes }

func (o *tallyObserver) AddDroppedPackets(n uint64) { o.dropped += n }

func (o *tallyObserver) IncFailedTx() { o.failed++ }

func (o *tallyObserver) IncAssociations() { o.assoc++ }

func (o *tallyObserver) IncAnomalies() { o.anom++ }
func (o *tallyObserver) SetPhase(session, phase string) {
	o.phases[session] = phase
}

func TestCounters_MirrorsIntoObserver(t *testing.T) {
	obs := newTallyObserver()
	c := &Counters{Observer: obs}

	c.AddTx(10)
	c.AddRx(8, 8*1448)
	c.AddDropped(2)
	c.TxFailed()
	c.Associated()
	c.Anomaly()
	c.PhaseChanged(SessionID{Src: 2, Dst: 1}, PhaseSectorSweep)

	if c.TxPackets != 10 || c.RxPackets != 8 || c.RxBytes != 8*1448 || c.DroppedPackets != 2 {
		t.Errorf("counters = %+v, want 10/8/%d/2", c.LinkCounters, 8*1448)
	}
	if c.FailedTx != 1 || c.Associations != 1 || c.Anomalies != 1 {
		t.Errorf("counters = %+v, want one failed/assoc/anomaly each", c.LinkCounters)
	}
	if obs.tx != 10 || obs.rx != 8 || obs.bytes != 8*1448 || obs.dropped != 2 {
		t.Errorf("observer packets = %+v, want mirror of counters", obs)
	}
	if obs.failed != 1 || obs.assoc != 1 || obs.anom != 1 {
		t.Errorf("observer events = %+v, want mirror of counters", obs)
	}
	if obs.phases["2->1"] != "SectorSweep" {
		t.Errorf("observer phase = %q, want SectorSweep", obs.phases["2->1"])
	}
}

func TestCounters_NilObserverIsValid(t *testing.T) {
	c := &Counters{}
	c.AddTx(1)
	c.AddRx(1, 100)
	c.AddDropped(1)
	c.TxFailed()
	c.Associated()
	c.Anomaly()
	c.PhaseChanged(SessionID{Src: 1, Dst: 2}, PhaseComplete)

	if c.TxPackets != 1 {
		t.Errorf("TxPackets = %d, want 1", c.TxPackets)
	}
}

func TestCounters_Summary(t *testing.T) {
	c := &Counters{LinkCounters: LinkCounters{
		TxPackets: 1000, RxPackets: 990, DroppedPackets: 10,
		FailedTx: 2, Associations: 1, Anomalies: 0,
	}}

	got := c.Summary()
	for _, want := range []string{
		"MAC Layer Statistics", "PHY Layer Statistics",
		"Tx Packets:         1000", "Rx Packets:         990",
		"Rx Dropped Packets: 10", "Failed Tx Data Packets:  2",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Summary missing %q:\n%s", want, got)
		}
	}
}
