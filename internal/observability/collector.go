// Package observability bundles the Prometheus metrics surface of a
// simulation run and serves it over HTTP while the run is in progress.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers the link-level counters against a Prometheus
// registerer and implements the simulator's StatsObserver surface.
type Collector struct {
	gatherer prometheus.Gatherer

	TxPackets      prometheus.Counter
	RxPackets      prometheus.Counter
	RxBytes        prometheus.Counter
	DroppedPackets prometheus.Counter
	FailedTx       prometheus.Counter
	Associations   prometheus.Counter
	Anomalies      prometheus.Counter
	Phase          *prometheus.GaugeVec
}

// NewCollector registers run metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	counters := []struct {
		target *prometheus.Counter
		name   string
		help   string
	}{
		{&c.TxPackets, "link_tx_packets_total", "Total transmitted data packets."},
		{&c.RxPackets, "link_rx_packets_total", "Total received data packets."},
		{&c.RxBytes, "link_rx_bytes_total", "Total received payload bytes."},
		{&c.DroppedPackets, "link_rx_dropped_packets_total", "Total dropped data packets."},
		{&c.FailedTx, "link_tx_failed_total", "Total failed transmissions reported by the MAC layer."},
		{&c.Associations, "link_associations_total", "Total station associations."},
		{&c.Anomalies, "training_anomalies_total", "Total out-of-order training completion events."},
	}
	for _, def := range counters {
		counter := prometheus.NewCounter(prometheus.CounterOpts{Name: def.name, Help: def.help})
		if err := reg.Register(counter); err != nil {
			return nil, fmt.Errorf("registering %s: %w", def.name, err)
		}
		*def.target = counter
	}

	c.Phase = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "training_phase",
		Help: "Current training phase per link direction (1 = active phase).",
	}, []string{"session", "phase"})
	if err := reg.Register(c.Phase); err != nil {
		return nil, fmt.Errorf("registering training_phase: %w", err)
	}
	return c, nil
}

// StatsObserver implementation; mirrors the simulator counters.

func (c *Collector) AddTxPackets(n uint64) { c.TxPackets.Add(float64(n)) }

func (c *Collector) AddRxPackets(n, bytes uint64) {
	c.RxPackets.Add(float64(n))
	c.RxBytes.Add(float64(bytes))
}

func (c *Collector) AddDroppedPackets(n uint64) { c.DroppedPackets.Add(float64(n)) }

func (c *Collector) IncFailedTx() { c.FailedTx.Inc() }

func (c *Collector) IncAssociations() { c.Associations.Inc() }

func (c *Collector) IncAnomalies() { c.Anomalies.Inc() }

func (c *Collector) SetPhase(session, phase string) {
	c.Phase.DeletePartialMatch(prometheus.Labels{"session": session})
	c.Phase.WithLabelValues(session, phase).Set(1)
}

// Serve exposes /metrics on addr for the lifetime of the run. It returns
// the server so the caller can shut it down.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
