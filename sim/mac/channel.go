package mac

import (
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/bft-sim/bft-sim/sim"
)

// LinkProfile parameterizes the deterministic directional channel: a base
// link SNR shaped by sector alignment, AWV refinement, slow drift across
// the channel-trace index, and per-measurement noise.
type LinkProfile struct {
	BaseSnrDb        float64 `yaml:"baseSnrDb"`
	SectorPeakDb     float64 `yaml:"sectorPeakDb"`
	SectorRolloffDb  float64 `yaml:"sectorRolloffDb"`
	AwvPeakDb        float64 `yaml:"awvPeakDb"`
	AwvRolloffDb     float64 `yaml:"awvRolloffDb"`
	DriftAmplitudeDb float64 `yaml:"driftAmplitudeDb"`
	NoiseStdDb       float64 `yaml:"noiseStdDb"`
}

// DefaultLinkProfile is a short indoor mmWave link: strong when aligned,
// quickly useless off-sector.
func DefaultLinkProfile() LinkProfile {
	return LinkProfile{
		BaseSnrDb:        8,
		SectorPeakDb:     14,
		SectorRolloffDb:  6,
		AwvPeakDb:        2,
		AwvRolloffDb:     0.5,
		DriftAmplitudeDb: 1.5,
		NoiseStdDb:       0.8,
	}
}

// Channel produces per-configuration SNR for a node pair. The best sector
// and AWV of every (antenna, antenna) cross is derived from a hash of the
// endpoint identities, so geometry is stable across runs while differing
// between antenna pairs.
type Channel struct {
	profile LinkProfile
	rng     *rand.Rand
}

// NewChannel creates a channel using the given profile and the noise RNG.
func NewChannel(profile LinkProfile, rng *rand.Rand) *Channel {
	return &Channel{profile: profile, rng: rng}
}

// bestSector derives the aligned sector index (1-based) for a directed
// antenna pair out of nSectors.
func (c *Channel) bestSector(tx sim.NodeID, txAnt sim.AntennaID, rx sim.NodeID, rxAnt sim.AntennaID, nSectors uint8) sim.SectorID {
	h := fnv.New32a()
	h.Write([]byte{byte(tx), byte(txAnt), byte(rx), byte(rxAnt)})
	return sim.SectorID(h.Sum32()%uint32(nSectors) + 1)
}

// bestAwv derives the aligned fine-steering AWV (1-based) within a sector.
func (c *Channel) bestAwv(tx sim.NodeID, txAnt sim.AntennaID, txSector sim.SectorID, rx sim.NodeID, nAwvs uint8) sim.AWVID {
	h := fnv.New32a()
	h.Write([]byte{byte(tx), byte(txAnt), byte(txSector), byte(rx), 0x5a})
	return sim.AWVID(h.Sum32()%uint32(nAwvs) + 1)
}

// Snr measures the link SNR (linear ratio) for a TX steering configuration
// toward an RX antenna. AWV 0 means sector-center steering (no
// refinement). Each call draws fresh measurement noise.
func (c *Channel) Snr(tx sim.NodeID, txCfg sim.StreamConfig, rx sim.NodeID, rxAnt sim.AntennaID, nSectors, nAwvs uint8, traceIdx uint32) float64 {
	best := c.bestSector(tx, txCfg.Antenna, rx, rxAnt, nSectors)
	db := c.profile.BaseSnrDb + c.profile.SectorPeakDb - c.profile.SectorRolloffDb*sectorDistance(txCfg.Sector, best, nSectors)

	if txCfg.AWV != 0 && nAwvs > 0 {
		bestAwv := c.bestAwv(tx, txCfg.Antenna, txCfg.Sector, rx, nAwvs)
		dist := math.Abs(float64(txCfg.AWV) - float64(bestAwv))
		db += c.profile.AwvPeakDb - c.profile.AwvRolloffDb*dist
	}

	db += c.profile.DriftAmplitudeDb * math.Sin(float64(traceIdx)/7)
	db += c.rng.NormFloat64() * c.profile.NoiseStdDb
	return sim.DbToRatio(db)
}

// CrossSnr measures the interference path from the stream steered by txCfg
// into a different RX stream. Cross paths sit well below the aligned path;
// they fill the off-diagonal entries of the MIMO measurement matrix.
func (c *Channel) CrossSnr(tx sim.NodeID, txCfg sim.StreamConfig, rx sim.NodeID, rxAnt sim.AntennaID, nSectors, nAwvs uint8, traceIdx uint32) float64 {
	aligned := c.Snr(tx, txCfg, rx, rxAnt, nSectors, nAwvs, traceIdx)
	isolationDb := 12 + c.rng.NormFloat64()*2
	return aligned / sim.DbToRatio(isolationDb)
}

// sectorDistance is the circular distance between two sector indices.
func sectorDistance(a, b sim.SectorID, n uint8) float64 {
	d := math.Abs(float64(a) - float64(b))
	if wrap := float64(n) - d; wrap < d {
		d = wrap
	}
	return d
}
