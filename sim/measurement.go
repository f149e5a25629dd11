package sim

import "math"

// Identifier types for the directional link model. Antenna, sector, and AWV
// identifiers are 1-based, matching the codebook numbering used in the
// exported traces.
type (
	// NodeID identifies a station in the scenario.
	NodeID uint32
	// AntennaID identifies a phased antenna array on a station.
	AntennaID uint8
	// SectorID identifies a coarse directional sector within an antenna.
	SectorID uint8
	// AWVID identifies an analog weight vector (fine steering) within a sector.
	AWVID uint8
)

// AccessPeriod distinguishes where in the beacon interval a sector sweep
// completed. Only data-period (DTI) sweeps count toward the beamformed-link
// threshold that gates MIMO training.
type AccessPeriod int

const (
	AccessPeriodABFT AccessPeriod = iota // association beamforming training
	AccessPeriodDTI                      // data transmission interval
)

func (a AccessPeriod) String() string {
	if a == AccessPeriodABFT {
		return "ABFT"
	}
	return "DTI"
}

// SectorResult is the outcome of one completed sector-level sweep in one
// direction: the best coarse sector found and the SNR measured on it.
type SectorResult struct {
	Antenna      AntennaID
	Sector       SectorID
	Peer         NodeID
	Snr          float64 // linear ratio
	AccessPeriod AccessPeriod
	Timestamp    int64 // ticks
}

// SisoMeasurementKey indexes the raw SISO discovery measurements: every AWV
// tested within (rxAntenna, txAntenna, txSector) contributes one SNR sample.
type SisoMeasurementKey struct {
	RxAntenna AntennaID
	TxAntenna AntennaID
	TxSector  SectorID
}

// SisoMeasurements holds the per-AWV SNR samples of the SISO discovery
// sub-phase, ordered by AWV index within each key.
type SisoMeasurements map[SisoMeasurementKey][]float64

// SisoFeedbackKey indexes the representative per-combination SNR reported
// back to the initiator after the SISO sub-phase.
type SisoFeedbackKey struct {
	TxSector  SectorID
	RxAntenna AntennaID
	TxAntenna AntennaID
}

// SisoFeedback maps each measured (txSector, rxAntenna, txAntenna)
// combination to its representative SNR (linear ratio).
type SisoFeedback map[SisoFeedbackKey]float64

// StreamConfig is the steering configuration of a single spatial stream.
type StreamConfig struct {
	Antenna AntennaID
	Sector  SectorID
	AWV     AWVID
}

// AntennaCombination assigns one steering configuration per spatial stream,
// for one side (TX or RX) of the link. Its length equals the configured
// number of spatial streams.
type AntennaCombination []StreamConfig

// Antenna2Sectors lists, per antenna, the candidate sectors shortlisted for
// the MIMO evaluation sub-phase.
type Antenna2Sectors map[AntennaID][]SectorID

// MimoMeasurement is the raw outcome of testing one TX/RX combination pair
// in the MIMO evaluation sub-phase. The combinations are identified by the
// opaque AWV ids assigned during the evaluation; they resolve back to
// physical steering configurations through the codebook only when trace
// rows are formatted. SnrMatrix is the full nTx x nRx cross-stream
// measurement; PerStreamSnr is its diagonal, the SNR each spatial stream
// would see under this assignment.
type MimoMeasurement struct {
	TxAwvID      uint16
	RxAwvID      uint16
	SnrMatrix    [][]float64
	PerStreamSnr []float64
}

// RankedCandidate is a MIMO combination scored by its weakest stream.
// MinStreamSnr is always min(PerStreamSnr).
type RankedCandidate struct {
	TxAwvID      uint16
	RxAwvID      uint16
	SnrMatrix    [][]float64
	PerStreamSnr []float64
	MinStreamSnr float64
}

// RatioToDb converts a linear SNR ratio to decibels.
func RatioToDb(ratio float64) float64 {
	return 10 * math.Log10(ratio)
}

// DbToRatio converts a decibel SNR value back to a linear ratio.
// It is the inverse of RatioToDb.
func DbToRatio(db float64) float64 {
	return math.Pow(10, db/10)
}
