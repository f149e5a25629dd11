package sim

import (
	"math"
	"strings"
	"testing"
)

func TestTelemetrySampler_IntervalThroughput(t *testing.T) {
	s := newTestSim(t)
	link := SessionID{Src: 2, Dst: 1}
	sampler := NewTelemetrySampler(link, TicksPerSecond/10)
	s.Telemetry = sampler
	sampler.Start(s)

	// 1250 bytes per 10 ms gives 1 Mbps.
	var feed func(inner *Simulator)
	feed = func(inner *Simulator) {
		inner.Counters.AddRx(1, 1250)
		if inner.Clock+10_000 <= inner.Horizon {
			inner.ScheduleAfter(10_000, feed)
		}
	}
	s.ScheduleAfter(10_000, feed)

	if err := s.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	samples := sampler.Samples()
	if len(samples) < 90 {
		t.Fatalf("got %d samples over a 10s run, want ~100", len(samples))
	}
	// Skip the first interval: it straddles the feed startup.
	for i, smp := range samples[1 : len(samples)-1] {
		if math.Abs(smp.Mbps-1.0) > 0.05 {
			t.Fatalf("sample %d throughput = %v Mbps, want ~1.0", i+1, smp.Mbps)
		}
		if smp.EndS <= smp.StartS {
			t.Fatalf("sample %d interval [%v, %v] not increasing", i+1, smp.StartS, smp.EndS)
		}
	}
}

func TestTelemetrySampler_DefaultInterval(t *testing.T) {
	sampler := NewTelemetrySampler(SessionID{Src: 1, Dst: 2}, 0)
	if sampler.Interval != TicksPerSecond/10 {
		t.Errorf("Interval = %d, want 100ms default", sampler.Interval)
	}
}

func TestTelemetrySampler_StopsAtHorizon(t *testing.T) {
	s := newTestSim(t)
	sampler := NewTelemetrySampler(SessionID{Src: 2, Dst: 1}, TicksPerSecond)
	s.Telemetry = sampler
	sampler.Start(s)

	if err := s.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// 10 s horizon, 1 s interval: samples at 1..10 s inclusive.
	if got := len(sampler.Samples()); got != 10 {
		t.Errorf("sample count = %d, want 10", got)
	}
}

func TestTelemetrySampler_SummaryEmpty(t *testing.T) {
	sampler := NewTelemetrySampler(SessionID{Src: 1, Dst: 2}, 0)
	if got := sampler.Summary(); got != "Throughput: no samples" {
		t.Errorf("Summary = %q", got)
	}
}

func TestTelemetrySampler_SummaryAggregates(t *testing.T) {
	sampler := NewTelemetrySampler(SessionID{Src: 1, Dst: 2}, 0)
	sampler.samples = []ThroughputSample{
		{Mbps: 100}, {Mbps: 200}, {Mbps: 300},
	}

	got := sampler.Summary()
	for _, want := range []string{"3 intervals", "mean 200.000", "max 300.000"} {
		if !strings.Contains(got, want) {
			t.Errorf("Summary missing %q:\n%s", want, got)
		}
	}
}
