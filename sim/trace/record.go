// Package trace provides the append-only CSV export of beam-training phase
// results. Records are pure data: this package holds no decision logic and
// no dependency on the sim event loop.
package trace

import (
	"fmt"
	"strconv"
)

// Record is one immutable row of a named output stream. A record is never
// mutated after emission; every stream is append-only.
type Record interface {
	// File is the output stream name, without extension. One file exists
	// per (phase, link direction).
	File() string
	// Header is the column set of the stream, written once on creation.
	Header() []string
	// Row is the formatted row. len(Row()) == len(Header()).
	Row() []string
}

func formatSnr(db float64) string {
	return strconv.FormatFloat(db, 'g', -1, 64)
}

func itoa[T ~uint8 | ~uint32 | ~uint16 | ~int](v T) string {
	return strconv.FormatUint(uint64(v), 10)
}

// SectorSweepRecord is one completed sector-level sweep in one direction.
type SectorSweepRecord struct {
	SrcID        uint32
	DstID        uint32
	TraceIndex   uint32
	AntennaID    uint8
	SectorID     uint8
	AccessPeriod string
	SnrDb        float64
	TimestampNs  int64
}

func (r SectorSweepRecord) File() string {
	return fmt.Sprintf("slsResults_%d_%d", r.SrcID, r.DstID)
}

func (r SectorSweepRecord) Header() []string {
	return []string{"SRC_ID", "DST_ID", "TRACE_IDX", "ANTENNA_ID", "SECTOR_ID", "ACCESS_PERIOD", "SNR", "TIMESTAMP"}
}

func (r SectorSweepRecord) Row() []string {
	return []string{
		itoa(r.SrcID), itoa(r.DstID), itoa(r.TraceIndex),
		itoa(r.AntennaID), itoa(r.SectorID), r.AccessPeriod,
		formatSnr(r.SnrDb), strconv.FormatInt(r.TimestampNs, 10),
	}
}

// SisoMeasurementRecord is one raw AWV probe of the SISO discovery
// sub-phase.
type SisoMeasurementRecord struct {
	SrcID       uint32
	DstID       uint32
	TraceIndex  uint32
	RxAntennaID uint8
	TxAntennaID uint8
	TxSectorID  uint8
	AwvID       uint8
	SnrDb       float64
	TimestampNs int64
}

func (r SisoMeasurementRecord) File() string {
	return fmt.Sprintf("sisoPhaseMeasurements_%d_%d", r.SrcID, r.DstID)
}

func (r SisoMeasurementRecord) Header() []string {
	return []string{"SRC_ID", "DST_ID", "TRACE_IDX", "RX_ANTENNA_ID", "TX_ANTENNA_ID", "TX_SECTOR_ID", "AWV_ID", "SNR", "TIMESTAMP"}
}

func (r SisoMeasurementRecord) Row() []string {
	return []string{
		itoa(r.SrcID), itoa(r.DstID), itoa(r.TraceIndex),
		itoa(r.RxAntennaID), itoa(r.TxAntennaID), itoa(r.TxSectorID), itoa(r.AwvID),
		formatSnr(r.SnrDb), strconv.FormatInt(r.TimestampNs, 10),
	}
}

// SisoFeedbackRecord is one representative SNR reported back to the
// initiator at SISO completion.
type SisoFeedbackRecord struct {
	SrcID       uint32
	DstID       uint32
	TraceIndex  uint32
	RxAntennaID uint8
	TxAntennaID uint8
	TxSectorID  uint8
	SnrDb       float64
	TimestampNs int64
}

func (r SisoFeedbackRecord) File() string {
	return fmt.Sprintf("sisoPhaseResults_%d_%d", r.SrcID, r.DstID)
}

func (r SisoFeedbackRecord) Header() []string {
	return []string{"SRC_ID", "DST_ID", "TRACE_IDX", "RX_ANTENNA_ID", "TX_ANTENNA_ID", "TX_SECTOR_ID", "SNR", "TIMESTAMP"}
}

func (r SisoFeedbackRecord) Row() []string {
	return []string{
		itoa(r.SrcID), itoa(r.DstID), itoa(r.TraceIndex),
		itoa(r.RxAntennaID), itoa(r.TxAntennaID), itoa(r.TxSectorID),
		formatSnr(r.SnrDb), strconv.FormatInt(r.TimestampNs, 10),
	}
}

// CandidateEntry is one (antenna, sector) element of a MIMO candidate row.
type CandidateEntry struct {
	AntennaID uint8
	SectorID  uint8
}

// MimoCandidateRecord is one accepted candidate row of the MIMO evaluation
// shortlist, on either the TX or the RX side.
type MimoCandidateRecord struct {
	SrcID       uint32
	DstID       uint32
	TraceIndex  uint32
	Side        string // "Tx" or "Rx"
	Entries     []CandidateEntry
	TimestampNs int64
}

func (r MimoCandidateRecord) File() string {
	return fmt.Sprintf("mimo%sCandidates_%d_%d", r.Side, r.SrcID, r.DstID)
}

func (r MimoCandidateRecord) Header() []string {
	cols := []string{"SRC_ID", "DST_ID", "TRACE_IDX"}
	for i := range r.Entries {
		cols = append(cols,
			fmt.Sprintf("ANTENNA_ID%d", i+1),
			fmt.Sprintf("SECTOR_ID%d", i+1))
	}
	return append(cols, "TIMESTAMP")
}

func (r MimoCandidateRecord) Row() []string {
	row := []string{itoa(r.SrcID), itoa(r.DstID), itoa(r.TraceIndex)}
	for _, e := range r.Entries {
		row = append(row, itoa(e.AntennaID), itoa(e.SectorID))
	}
	return append(row, strconv.FormatInt(r.TimestampNs, 10))
}

// StreamEntry is the full steering configuration of one spatial stream in a
// MIMO measurement row.
type StreamEntry struct {
	AntennaID uint8
	SectorID  uint8
	AwvID     uint8
}

// MimoMeasurementRecord is one ranked TX/RX combination of the MIMO
// evaluation sub-phase: N TX tuples, N RX tuples, the NxN cross-stream SNR
// matrix, and the worst-stream SNR that ranked it.
type MimoMeasurementRecord struct {
	SrcID          uint32
	DstID          uint32
	TraceIndex     uint32
	TxStreams      []StreamEntry
	RxStreams      []StreamEntry
	SnrMatrixDb    []float64 // row-major, len = len(TxStreams)*len(RxStreams)
	MinStreamSnrDb float64
	TimestampNs    int64
}

func (r MimoMeasurementRecord) File() string {
	return fmt.Sprintf("mimoPhaseMeasurements_%d_%d", r.SrcID, r.DstID)
}

func (r MimoMeasurementRecord) Header() []string {
	cols := []string{"SRC_ID", "DST_ID", "TRACE_IDX"}
	for i := range r.TxStreams {
		cols = append(cols,
			fmt.Sprintf("TX_ANTENNA_ID%d", i+1),
			fmt.Sprintf("TX_SECTOR_ID%d", i+1),
			fmt.Sprintf("TX_AWV_ID%d", i+1))
	}
	for i := range r.RxStreams {
		cols = append(cols,
			fmt.Sprintf("RX_ANTENNA_ID%d", i+1),
			fmt.Sprintf("RX_SECTOR_ID%d", i+1),
			fmt.Sprintf("RX_AWV_ID%d", i+1))
	}
	for range r.SnrMatrixDb {
		cols = append(cols, "SNR")
	}
	return append(cols, "MIN_STREAM_SNR", "TIMESTAMP")
}

func (r MimoMeasurementRecord) Row() []string {
	row := []string{itoa(r.SrcID), itoa(r.DstID), itoa(r.TraceIndex)}
	for _, s := range r.TxStreams {
		row = append(row, itoa(s.AntennaID), itoa(s.SectorID), itoa(s.AwvID))
	}
	for _, s := range r.RxStreams {
		row = append(row, itoa(s.AntennaID), itoa(s.SectorID), itoa(s.AwvID))
	}
	for _, snr := range r.SnrMatrixDb {
		row = append(row, formatSnr(snr))
	}
	return append(row, formatSnr(r.MinStreamSnrDb), strconv.FormatInt(r.TimestampNs, 10))
}

// ThroughputRecord is one telemetry sample of interval throughput.
type ThroughputRecord struct {
	SrcID          uint32
	DstID          uint32
	TraceIndex     uint32
	IntervalStartS float64
	IntervalEndS   float64
	ThroughputMbps float64
	TimestampNs    int64
}

func (r ThroughputRecord) File() string {
	return fmt.Sprintf("throughput_%d_%d", r.SrcID, r.DstID)
}

func (r ThroughputRecord) Header() []string {
	return []string{"SRC_ID", "DST_ID", "TRACE_IDX", "INTERVAL_START", "INTERVAL_END", "THROUGHPUT_MBPS", "TIMESTAMP"}
}

func (r ThroughputRecord) Row() []string {
	return []string{
		itoa(r.SrcID), itoa(r.DstID), itoa(r.TraceIndex),
		strconv.FormatFloat(r.IntervalStartS, 'f', 1, 64),
		strconv.FormatFloat(r.IntervalEndS, 'f', 1, 64),
		strconv.FormatFloat(r.ThroughputMbps, 'f', 3, 64),
		strconv.FormatInt(r.TimestampNs, 10),
	}
}

// DataSnrRecord is the SNR of one received data packet burst.
type DataSnrRecord struct {
	SrcID       uint32
	DstID       uint32
	TraceIndex  uint32
	SnrDb       float64
	TimestampNs int64
}

func (r DataSnrRecord) File() string {
	return fmt.Sprintf("snrValues_%d_%d", r.SrcID, r.DstID)
}

func (r DataSnrRecord) Header() []string {
	return []string{"SRC_ID", "DST_ID", "TRACE_IDX", "SNR", "TIMESTAMP"}
}

func (r DataSnrRecord) Row() []string {
	return []string{
		itoa(r.SrcID), itoa(r.DstID), itoa(r.TraceIndex),
		formatSnr(r.SnrDb), strconv.FormatInt(r.TimestampNs, 10),
	}
}
