package mac

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/bft-sim/bft-sim/sim"
	"github.com/bft-sim/bft-sim/sim/trace"
)

// Config parameterizes the emulated MAC layer for a two-station scenario.
type Config struct {
	Initiator  sim.NodeID
	Responder  sim.NodeID
	NumStreams int

	BeaconIntervalTicks  int64
	AssocDelayTicks      int64
	SweepDurationTicks   int64
	SisoDurationTicks    int64
	MimoDurationTicks    int64
	TrafficIntervalTicks int64

	// ExtendedAwvCount is how many fine-steering AWVs are appended per
	// sector when the sequencer requests extended AWV testing.
	ExtendedAwvCount uint8

	PacketSize   int
	SisoRateMbps float64
	DropRate     float64
	FailRate     float64

	Profile   LinkProfile
	Codebooks map[sim.NodeID][]AntennaDef
}

// DefaultConfig mirrors the reference scenario: a 102.4 ms beacon interval
// and two 2-antenna stations.
func DefaultConfig(initiator, responder sim.NodeID) Config {
	antennas := []AntennaDef{
		{ID: 1, Sectors: 12, AwvsPerSector: 4},
		{ID: 2, Sectors: 12, AwvsPerSector: 4},
	}
	return Config{
		Initiator:            initiator,
		Responder:            responder,
		NumStreams:           2,
		BeaconIntervalTicks:  102_400,
		AssocDelayTicks:      30_000,
		SweepDurationTicks:   2_000,
		SisoDurationTicks:    20_000,
		MimoDurationTicks:    40_000,
		TrafficIntervalTicks: 10_000,
		ExtendedAwvCount:     5,
		PacketSize:           1448,
		SisoRateMbps:         770,
		DropRate:             0.002,
		FailRate:             0.0005,
		Profile:              DefaultLinkProfile(),
		Codebooks: map[sim.NodeID][]AntennaDef{
			initiator: antennas,
			responder: antennas,
		},
	}
}

// Layer is the emulated MAC/codebook/channel stack. Sequencer invocations
// return immediately; the layer schedules the corresponding completion
// events on the simulator queue.
type Layer struct {
	sim *sim.Simulator
	cfg Config

	codebooks  map[sim.NodeID]*Codebook
	channel    *Channel
	trafficRng *rand.Rand

	associated   bool
	awvsExtended bool
	mimoDone     bool

	// bestTx caches the winning sweep configuration per direction for
	// data-packet SNR reporting.
	bestTx map[sim.SessionID]sim.StreamConfig
}

// New builds the layer and its codebooks. The channel noise and traffic
// RNGs come from the simulator's partitioned RNG so runs reproduce.
func New(s *sim.Simulator, cfg Config) (*Layer, error) {
	if cfg.NumStreams <= 0 {
		return nil, fmt.Errorf("number of spatial streams must be positive, got %d", cfg.NumStreams)
	}
	codebooks := make(map[sim.NodeID]*Codebook, len(cfg.Codebooks))
	for node, defs := range cfg.Codebooks {
		cb, err := NewCodebook(defs)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", node, err)
		}
		codebooks[node] = cb
	}
	for _, node := range []sim.NodeID{cfg.Initiator, cfg.Responder} {
		if _, ok := codebooks[node]; !ok {
			return nil, fmt.Errorf("no codebook configured for node %d", node)
		}
	}
	return &Layer{
		sim:        s,
		cfg:        cfg,
		codebooks:  codebooks,
		channel:    NewChannel(cfg.Profile, s.RNG.ForSubsystem(sim.SubsystemChannel)),
		trafficRng: s.RNG.ForSubsystem(sim.SubsystemTraffic),
		bestTx:     make(map[sim.SessionID]sim.StreamConfig),
	}, nil
}

// Start schedules association, the beacon-interval loop, and the traffic
// loop.
func (l *Layer) Start() {
	// Association concludes the A-BFT sector sweep, so both directions
	// report an association-period sweep result just before the event.
	l.completeSweep(sim.SessionID{Src: l.cfg.Responder, Dst: l.cfg.Initiator}, sim.AccessPeriodABFT, l.cfg.AssocDelayTicks-2)
	l.completeSweep(sim.SessionID{Src: l.cfg.Initiator, Dst: l.cfg.Responder}, sim.AccessPeriodABFT, l.cfg.AssocDelayTicks-1)
	l.sim.Schedule(&sim.AssociationEvent{
		Time: l.cfg.AssocDelayTicks,
		Sta:  l.cfg.Initiator,
		Peer: l.cfg.Responder,
		AID:  1,
	})
	l.sim.ScheduleAfter(l.cfg.AssocDelayTicks, func(s *sim.Simulator) {
		l.associated = true
	})

	var beacon func(s *sim.Simulator)
	beacon = func(s *sim.Simulator) {
		s.Schedule(&sim.TrainingWindowEvent{Time: s.Clock, Node: l.cfg.Initiator, Peer: l.cfg.Responder})
		if s.Clock+l.cfg.BeaconIntervalTicks <= s.Horizon {
			s.ScheduleAfter(l.cfg.BeaconIntervalTicks, beacon)
		}
	}
	l.sim.ScheduleAfter(l.cfg.BeaconIntervalTicks, beacon)

	var traffic func(s *sim.Simulator)
	traffic = func(s *sim.Simulator) {
		l.deliverTraffic(s)
		if s.Clock+l.cfg.TrafficIntervalTicks <= s.Horizon {
			s.ScheduleAfter(l.cfg.TrafficIntervalTicks, traffic)
		}
	}
	l.sim.ScheduleAfter(l.cfg.TrafficIntervalTicks, traffic)
}

// AntennaIDs implements sim.MACLayer.
func (l *Layer) AntennaIDs(node sim.NodeID) []sim.AntennaID {
	cb, ok := l.codebooks[node]
	if !ok {
		return nil
	}
	return cb.AntennaIDs()
}

// CombinationFromAWVID implements sim.MACLayer.
func (l *Layer) CombinationFromAWVID(awvID uint16, peer sim.NodeID) sim.AntennaCombination {
	cb, ok := l.codebooks[peer]
	if !ok {
		return nil
	}
	return cb.CombinationFromAWVID(awvID)
}

// BeginSectorSweep implements sim.MACLayer. A transmit sector sweep during
// the data period trains both directions of the pair.
func (l *Layer) BeginSectorSweep(initiator sim.NodeID) {
	peer := l.peerOf(initiator)
	l.completeSweep(sim.SessionID{Src: initiator, Dst: peer}, sim.AccessPeriodDTI, l.sim.Clock+l.cfg.SweepDurationTicks)
	l.completeSweep(sim.SessionID{Src: peer, Dst: initiator}, sim.AccessPeriodDTI, l.sim.Clock+2*l.cfg.SweepDurationTicks)
}

// completeSweep scans the source codebook for the best sector toward the
// destination and schedules the completion event.
func (l *Layer) completeSweep(id sim.SessionID, period sim.AccessPeriod, at int64) {
	cfg, snr := l.scanBest(id.Src, id.Dst)
	l.bestTx[id] = cfg
	l.sim.Schedule(&sim.SectorSweepCompletedEvent{
		Time:    at,
		Session: id,
		Result: sim.SectorResult{
			Antenna:      cfg.Antenna,
			Sector:       cfg.Sector,
			Peer:         id.Dst,
			Snr:          snr,
			AccessPeriod: period,
			Timestamp:    at,
		},
	})
}

// scanBest probes every (antenna, sector) of the source codebook against a
// quasi-omni receiver and returns the winner.
func (l *Layer) scanBest(src, dst sim.NodeID) (sim.StreamConfig, float64) {
	srcCb := l.codebooks[src]
	rxAnt := l.codebooks[dst].AntennaIDs()[0]
	traceIdx := l.sim.TraceIndex()

	var best sim.StreamConfig
	bestSnr := -1.0
	for _, ant := range srcCb.AntennaIDs() {
		sectors := srcCb.Sectors(ant)
		for _, sector := range sectors {
			cfg := sim.StreamConfig{Antenna: ant, Sector: sector}
			snr := l.channel.Snr(src, cfg, dst, rxAnt, uint8(len(sectors)), 0, traceIdx)
			if snr > bestSnr {
				best, bestSnr = cfg, snr
			}
		}
	}
	return best, bestSnr
}

// BeginCombinationTraining implements sim.MACLayer: the SISO discovery
// sub-phase probing every (rxAntenna, txAntenna, txSector, AWV) tuple.
func (l *Layer) BeginCombinationTraining(initiator, responder sim.NodeID, antennas []sim.AntennaID) {
	id := sim.SessionID{Src: initiator, Dst: responder}
	if len(antennas) == 0 {
		l.sim.Schedule(&sim.TrainingFailedEvent{
			Time:    l.sim.Clock + 1,
			Session: id,
			Reason:  "no antennas available for combination training",
		})
		return
	}

	srcCb := l.codebooks[initiator]
	rxAntennas := l.codebooks[responder].AntennaIDs()
	traceIdx := l.sim.TraceIndex()

	measurements := make(sim.SisoMeasurements)
	feedback := make(sim.SisoFeedback)
	awvsPerSector := srcCb.AwvsPerSector(antennas[0])
	for _, rxAnt := range rxAntennas {
		for _, txAnt := range antennas {
			sectors := srcCb.Sectors(txAnt)
			nAwvs := srcCb.AwvsPerSector(txAnt)
			for _, sector := range sectors {
				samples := make([]float64, 0, nAwvs)
				bestSnr := -1.0
				for awv := uint8(1); awv <= nAwvs; awv++ {
					cfg := sim.StreamConfig{Antenna: txAnt, Sector: sector, AWV: sim.AWVID(awv)}
					snr := l.channel.Snr(initiator, cfg, responder, rxAnt, uint8(len(sectors)), nAwvs, traceIdx)
					samples = append(samples, snr)
					if snr > bestSnr {
						bestSnr = snr
					}
				}
				measurements[sim.SisoMeasurementKey{RxAntenna: rxAnt, TxAntenna: txAnt, TxSector: sector}] = samples
				feedback[sim.SisoFeedbackKey{TxSector: sector, RxAntenna: rxAnt, TxAntenna: txAnt}] = bestSnr
			}
		}
	}

	l.sim.Schedule(&sim.SisoMeasurementsEvent{
		Time:          l.sim.Clock + l.cfg.SisoDurationTicks/2,
		Session:       id,
		Measurements:  measurements,
		AwvsPerSector: awvsPerSector,
	})
	l.sim.Schedule(&sim.SisoCompletedEvent{
		Time:     l.sim.Clock + l.cfg.SisoDurationTicks,
		Session:  id,
		Feedback: feedback,
		NTx:      len(antennas),
		NRx:      len(rxAntennas),
	})
}

// RequestMimoEvaluation implements sim.MACLayer: confirms the accepted
// candidate sets, measures every TX/RX combination pairing, and completes
// the MIMO phase.
func (l *Layer) RequestMimoEvaluation(id sim.SessionID, txCandidates sim.Antenna2Sectors, requestedCount int, useExtendedAWVs bool) {
	if len(txCandidates) == 0 {
		l.sim.Schedule(&sim.TrainingFailedEvent{
			Time:    l.sim.Clock + 1,
			Session: id,
			Reason:  "no valid sector in MIMO candidate shortlist",
		})
		return
	}
	if useExtendedAWVs && !l.awvsExtended {
		for _, cb := range l.codebooks {
			cb.AppendExtendedAwvs(l.cfg.ExtendedAwvCount)
		}
		l.awvsExtended = true
		logrus.Debugf("appended %d extended AWVs per sector for MIMO evaluation", l.cfg.ExtendedAwvCount)
	}

	tx := l.acceptCandidates(txCandidates, requestedCount, l.cfg.NumStreams)
	rx := l.rxCandidates(id, requestedCount)

	l.sim.Schedule(&sim.MimoCandidatesEvent{
		Time:    l.sim.Clock + l.cfg.MimoDurationTicks/8,
		Session: id,
		Tx:      tx,
		Rx:      rx,
	})

	txCombos := l.registerCombos(id.Src, tx)
	rxCombos := l.registerCombos(id.Dst, rx)
	traceIdx := l.sim.TraceIndex()

	srcSectors := sectorCount(l.codebooks[id.Src])
	srcAwvs := l.codebooks[id.Src].AwvsPerSector(l.codebooks[id.Src].AntennaIDs()[0])
	measurements := make([]sim.MimoMeasurement, 0, len(txCombos)*len(rxCombos))
	for _, tc := range txCombos {
		for _, rc := range rxCombos {
			n := len(tc.combo)
			if len(rc.combo) < n {
				n = len(rc.combo)
			}
			matrix := make([][]float64, n)
			diag := make([]float64, n)
			for i := 0; i < n; i++ {
				matrix[i] = make([]float64, n)
				for j := 0; j < n; j++ {
					rxAnt := rc.combo[j].Antenna
					if i == j {
						matrix[i][j] = l.channel.Snr(id.Src, tc.combo[i], id.Dst, rxAnt, srcSectors, srcAwvs, traceIdx)
						diag[i] = matrix[i][j]
					} else {
						matrix[i][j] = l.channel.CrossSnr(id.Src, tc.combo[i], id.Dst, rxAnt, srcSectors, srcAwvs, traceIdx)
					}
				}
			}
			measurements = append(measurements, sim.MimoMeasurement{
				TxAwvID:      tc.awvID,
				RxAwvID:      rc.awvID,
				SnrMatrix:    matrix,
				PerStreamSnr: diag,
			})
		}
	}

	streams := l.cfg.NumStreams
	l.sim.Schedule(&sim.MimoMeasurementsEvent{
		Time:               l.sim.Clock + l.cfg.MimoDurationTicks*3/4,
		Session:            id,
		Measurements:       measurements,
		NTx:                streams,
		NRx:                streams,
		CombinationsTested: len(rxCombos),
	})
	l.sim.Schedule(&sim.MimoCompletedEvent{
		Time:    l.sim.Clock + l.cfg.MimoDurationTicks,
		Session: id,
	})
	l.sim.ScheduleAfter(l.cfg.MimoDurationTicks, func(*sim.Simulator) {
		l.mimoDone = true
	})
}

// acceptCandidates truncates the shortlist to the requested feedback count
// and at most maxAntennas antennas, keeping best-first order.
func (l *Layer) acceptCandidates(cands sim.Antenna2Sectors, requestedCount, maxAntennas int) sim.Antenna2Sectors {
	antennas := make([]sim.AntennaID, 0, len(cands))
	for ant := range cands {
		antennas = append(antennas, ant)
	}
	sort.Slice(antennas, func(i, j int) bool { return antennas[i] < antennas[j] })
	if len(antennas) > maxAntennas {
		antennas = antennas[:maxAntennas]
	}

	out := make(sim.Antenna2Sectors, len(antennas))
	for _, ant := range antennas {
		sectors := cands[ant]
		if len(sectors) > requestedCount {
			sectors = sectors[:requestedCount]
		}
		out[ant] = append([]sim.SectorID(nil), sectors...)
	}
	return out
}

// rxCandidates ranks each responder antenna's sectors toward the initiator
// and keeps the requested count, best first.
func (l *Layer) rxCandidates(id sim.SessionID, requestedCount int) sim.Antenna2Sectors {
	cb := l.codebooks[id.Dst]
	peerRxAnt := l.codebooks[id.Src].AntennaIDs()[0]
	traceIdx := l.sim.TraceIndex()

	rxAntennas := cb.AntennaIDs()
	if len(rxAntennas) > l.cfg.NumStreams {
		rxAntennas = rxAntennas[:l.cfg.NumStreams]
	}
	out := make(sim.Antenna2Sectors, len(rxAntennas))
	for _, ant := range rxAntennas {
		sectors := cb.Sectors(ant)
		type scored struct {
			sector sim.SectorID
			snr    float64
		}
		ranked := make([]scored, 0, len(sectors))
		for _, sector := range sectors {
			cfg := sim.StreamConfig{Antenna: ant, Sector: sector}
			ranked = append(ranked, scored{
				sector: sector,
				snr:    l.channel.Snr(id.Dst, cfg, id.Src, peerRxAnt, uint8(len(sectors)), 0, traceIdx),
			})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].snr != ranked[j].snr {
				return ranked[i].snr > ranked[j].snr
			}
			return ranked[i].sector < ranked[j].sector
		})
		n := requestedCount
		if n > len(ranked) {
			n = len(ranked)
		}
		list := make([]sim.SectorID, 0, n)
		for _, r := range ranked[:n] {
			list = append(list, r.sector)
		}
		out[ant] = list
	}
	return out
}

type registeredCombo struct {
	awvID uint16
	combo sim.AntennaCombination
}

// registerCombos forms one multi-stream combination per candidate row
// (one sector per antenna) and registers each in the node's codebook.
func (l *Layer) registerCombos(node sim.NodeID, cands sim.Antenna2Sectors) []registeredCombo {
	cb := l.codebooks[node]
	antennas := make([]sim.AntennaID, 0, len(cands))
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

	combos := make([]registeredCombo, 0, rows)
	for row := 0; row < rows; row++ {
		combo := make(sim.AntennaCombination, 0, len(antennas))
		for _, ant := range antennas {
			nAwvs := cb.AwvsPerSector(ant)
			awv := sim.AWVID(uint8(row)%nAwvs + 1)
			combo = append(combo, sim.StreamConfig{Antenna: ant, Sector: cands[ant][row], AWV: awv})
		}
		combos = append(combos, registeredCombo{awvID: cb.RegisterCombination(combo), combo: combo})
	}
	return combos
}

// deliverTraffic moves one interval of data packets and accounts for them.
func (l *Layer) deliverTraffic(s *sim.Simulator) {
	if !l.associated {
		return
	}
	rate := l.cfg.SisoRateMbps
	if l.mimoDone {
		rate *= float64(l.cfg.NumStreams)
	}
	intervalS := float64(l.cfg.TrafficIntervalTicks) / float64(sim.TicksPerSecond)
	bytes := rate * 1e6 / 8 * intervalS
	packets := uint64(bytes / float64(l.cfg.PacketSize))
	if packets == 0 {
		return
	}
	dropped := uint64(float64(packets)*l.cfg.DropRate + l.trafficRng.Float64())
	if dropped > packets {
		dropped = packets
	}
	delivered := packets - dropped

	s.Counters.AddTx(packets)
	s.Counters.AddDropped(dropped)
	s.Counters.AddRx(delivered, delivered*uint64(l.cfg.PacketSize))
	if l.trafficRng.Float64() < l.cfg.FailRate*float64(packets) {
		s.Counters.TxFailed()
	}

	id := sim.SessionID{Src: l.cfg.Initiator, Dst: l.cfg.Responder}
	if cfg, ok := l.bestTx[id]; ok {
		srcCb := l.codebooks[id.Src]
		sectors := uint8(len(srcCb.Sectors(cfg.Antenna)))
		snr := l.channel.Snr(id.Src, cfg, id.Dst, l.codebooks[id.Dst].AntennaIDs()[0], sectors, 0, s.TraceIndex())
		s.Export(trace.DataSnrRecord{
			SrcID:       uint32(id.Src),
			DstID:       uint32(id.Dst),
			TraceIndex:  s.TraceIndex(),
			SnrDb:       sim.RatioToDb(snr),
			TimestampNs: s.TimestampNs(),
		})
	}
}

func (l *Layer) peerOf(node sim.NodeID) sim.NodeID {
	if node == l.cfg.Initiator {
		return l.cfg.Responder
	}
	return l.cfg.Initiator
}

func sectorCount(cb *Codebook) uint8 {
	return uint8(len(cb.Sectors(cb.AntennaIDs()[0])))
}
