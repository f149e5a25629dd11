package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bft-sim/bft-sim/internal/observability"
	"github.com/bft-sim/bft-sim/sim"
	"github.com/bft-sim/bft-sim/sim/mac"
	"github.com/bft-sim/bft-sim/sim/trace"
)

var (
	// Run control
	seed           int64   // Seed for the partitioned RNG
	simulationTime float64 // Simulation time in seconds
	logLevel       string  // Log verbosity level
	csvOnly        bool    // Suppress narration, keep CSV artifacts only

	// Beamforming training configs
	kBest            int     // Number of K best candidates to test in the MIMO phase
	numStreams       int     // Number of spatial streams
	txCombinations   int     // Number of Tx combinations to feed back
	useAwvs          bool    // Test fine-grained AWVs in the MIMO phase
	beamformedLinks  int     // Data-period sweep completions required before MIMO training
	mimoDwellSeconds float64 // Minimum time before MIMO training may start
	extendedAwvCount uint8   // AWVs appended per sector when --use-awvs is set

	// Channel trace configs
	traceStartIndex   uint32  // Start index in the channel trace
	traceIntervalMs   int64   // Milliseconds per channel-trace index step
	tracesFolder      string  // Directory for the CSV trace artifacts
	scenarioFile      string  // YAML scenario description
	telemetryInterval float64 // Telemetry sampling period in seconds

	metricsAddr string // Optional Prometheus /metrics listen address
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "bft-sim",
	Short: "Discrete-event simulator for mmWave SU-MIMO beamforming training",
}

// runCmd executes one training run using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the beamforming training simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		if csvOnly {
			logrus.SetLevel(logrus.ErrorLevel)
		}

		scenario := DefaultScenario()
		if scenarioFile != "" {
			scenario, err = LoadScenario(scenarioFile)
			if err != nil {
				logrus.Fatalf("unable to read scenario config: %v", err)
			}
		}

		// The run cannot proceed without its output sink.
		exporter, err := trace.NewExporter(tracesFolder)
		if err != nil {
			logrus.Fatalf("unable to create trace exporter: %v", err)
		}

		counters := &sim.Counters{}
		if metricsAddr != "" {
			collector, err := observability.NewCollector(nil)
			if err != nil {
				logrus.Fatalf("unable to register metrics: %v", err)
			}
			counters.Observer = collector
			srv := collector.Serve(metricsAddr)
			defer srv.Close()
			logrus.Infof("serving metrics on %s/metrics", metricsAddr)
		}

		horizon := int64(simulationTime * float64(sim.TicksPerSecond))
		s := sim.NewSimulator(horizon, seed, sim.TraceIndexConfig{
			Start:    traceStartIndex,
			Interval: traceIntervalMs * sim.TicksPerSecond / 1000,
		}, exporter, counters)
		s.Sequencer = sim.NewSequencer(sim.SequencerConfig{
			BeamformedLinkThreshold: beamformedLinks,
			MimoDwellTicks:          int64(mimoDwellSeconds * float64(sim.TicksPerSecond)),
			KBest:                   kBest,
			TxCombinationsRequested: txCombinations,
			UseExtendedAWVs:         useAwvs,
		})

		downlink := sim.SessionID{Src: sim.NodeID(scenario.Initiator.ID), Dst: sim.NodeID(scenario.Responder.ID)}
		for _, id := range []sim.SessionID{downlink, downlink.Reverse()} {
			if _, err := s.Sessions.Create(id, kBest); err != nil {
				logrus.Fatalf("unable to create session %s: %v", id, err)
			}
		}

		layer, err := mac.New(s, scenario.MacConfig(numStreams, extendedAwvCount))
		if err != nil {
			logrus.Fatalf("invalid MAC configuration: %v", err)
		}
		s.AttachMAC(layer)
		layer.Start()

		s.Telemetry = sim.NewTelemetrySampler(downlink, int64(telemetryInterval*float64(sim.TicksPerSecond)))
		s.Telemetry.Start(s)

		logrus.Infof("Starting simulation: %.1fs horizon, %d spatial streams, K=%d, traces in %s",
			simulationTime, numStreams, kBest, exporter.Dir())
		startTime := time.Now()

		runErr := s.Run()
		if err := exporter.Close(); err != nil && runErr == nil {
			runErr = err
		}
		if runErr != nil {
			logrus.Fatalf("simulation failed: %v", runErr)
		}

		if !csvOnly {
			fmt.Println(counters.Summary())
			fmt.Println(s.Telemetry.Summary())
			fmt.Printf("Wall-clock time: %s\n", time.Since(startTime).Round(time.Millisecond))
		}
		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for deterministic channel noise and traffic draws")
	runCmd.Flags().Float64Var(&simulationTime, "simulation-time", 10, "Simulation time in seconds")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().BoolVar(&csvOnly, "csv", false, "Suppress narration and statistics; CSV artifacts only")

	runCmd.Flags().IntVar(&kBest, "k-best", 10, "Number of K best candidates to test in the MIMO phase")
	runCmd.Flags().IntVar(&numStreams, "num-streams", 2, "Number of spatial streams")
	runCmd.Flags().IntVar(&txCombinations, "tx-combinations-requested", 10, "Number of Tx combinations to feed back")
	runCmd.Flags().BoolVar(&useAwvs, "use-awvs", false, "Test fine-grained AWVs in the MIMO phase")
	runCmd.Flags().IntVar(&beamformedLinks, "beamformed-links", 2, "Data-period sweep completions required before MIMO training")
	runCmd.Flags().Float64Var(&mimoDwellSeconds, "mimo-dwell", 0.6, "Minimum simulated time (seconds) before MIMO training may start")
	runCmd.Flags().Uint8Var(&extendedAwvCount, "extended-awvs", 5, "AWVs appended per sector when --use-awvs is set")

	runCmd.Flags().Uint32Var(&traceStartIndex, "trace-index", 0, "Start index in the channel trace")
	runCmd.Flags().Int64Var(&traceIntervalMs, "trace-interval", 100, "Milliseconds per channel-trace index step")
	runCmd.Flags().StringVar(&tracesFolder, "traces-folder", "Traces", "Directory for the CSV trace artifacts")
	runCmd.Flags().StringVar(&scenarioFile, "scenario", "", "YAML scenario file (defaults to the built-in SU-MIMO 2x2 setup)")
	runCmd.Flags().Float64Var(&telemetryInterval, "telemetry-interval", 0.1, "Telemetry sampling period in seconds")

	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")

	rootCmd.AddCommand(runCmd)
}
