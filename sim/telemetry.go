package sim

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/bft-sim/bft-sim/sim/trace"
)

// ThroughputSample is one self-contained telemetry sample: interval bounds,
// the throughput derived from the rx-byte delta over the interval, and the
// channel-trace index in effect when it was taken.
type ThroughputSample struct {
	StartS     float64
	EndS       float64
	Mbps       float64
	TraceIndex uint32
}

// TelemetrySampler periodically samples the cumulative received byte count
// into interval throughput. It runs on its own timer for the whole
// simulation lifetime and neither reads nor blocks the training-phase state
// machine.
type TelemetrySampler struct {
	Interval int64 // ticks between samples
	Link     SessionID

	lastBytes uint64
	lastTick  int64
	samples   []ThroughputSample
}

// NewTelemetrySampler creates a sampler for the data direction identified
// by link. A non-positive interval falls back to the 0.1 s default.
func NewTelemetrySampler(link SessionID, interval int64) *TelemetrySampler {
	if interval <= 0 {
		interval = TicksPerSecond / 10
	}
	return &TelemetrySampler{Interval: interval, Link: link}
}

// Start schedules the first sample one interval from now.
func (t *TelemetrySampler) Start(sim *Simulator) {
	sim.Schedule(&telemetrySampleEvent{time: sim.Clock + t.Interval, sampler: t})
}

// Samples returns the collected interval series.
func (t *TelemetrySampler) Samples() []ThroughputSample {
	return t.samples
}

// sample computes the throughput of the elapsed interval, exports it, and
// reschedules itself.
func (t *TelemetrySampler) sample(sim *Simulator) {
	now := sim.Clock
	bytes := sim.Counters.RxBytes
	elapsed := now - t.lastTick
	if elapsed <= 0 {
		elapsed = t.Interval
	}
	mbps := float64(bytes-t.lastBytes) * 8 / (float64(elapsed) / float64(TicksPerSecond)) / 1e6

	s := ThroughputSample{
		StartS:     float64(t.lastTick) / float64(TicksPerSecond),
		EndS:       float64(now) / float64(TicksPerSecond),
		Mbps:       mbps,
		TraceIndex: sim.TraceIndex(),
	}
	t.samples = append(t.samples, s)
	t.lastBytes = bytes
	t.lastTick = now

	sim.Export(trace.ThroughputRecord{
		SrcID:          uint32(t.Link.Src),
		DstID:          uint32(t.Link.Dst),
		TraceIndex:     s.TraceIndex,
		IntervalStartS: s.StartS,
		IntervalEndS:   s.EndS,
		ThroughputMbps: s.Mbps,
		TimestampNs:    sim.TimestampNs(),
	})

	if now+t.Interval <= sim.Horizon {
		sim.Schedule(&telemetrySampleEvent{time: now + t.Interval, sampler: t})
	}
}

// Summary aggregates the interval series into the end-of-run report.
func (t *TelemetrySampler) Summary() string {
	if len(t.samples) == 0 {
		return "Throughput: no samples"
	}
	xs := make([]float64, len(t.samples))
	for i, s := range t.samples {
		xs[i] = s.Mbps
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return fmt.Sprintf(
		"Throughput over %d intervals: mean %.3f Mbps, median %.3f Mbps, p95 %.3f Mbps, max %.3f Mbps",
		len(xs),
		stat.Mean(xs, nil),
		stat.Quantile(0.5, stat.Empirical, sorted, nil),
		stat.Quantile(0.95, stat.Empirical, sorted, nil),
		sorted[len(sorted)-1],
	)
}

type telemetrySampleEvent struct {
	time    int64
	sampler *TelemetrySampler
}

func (e *telemetrySampleEvent) Timestamp() int64 { return e.time }

func (e *telemetrySampleEvent) Execute(sim *Simulator) {
	e.sampler.sample(sim)
}
