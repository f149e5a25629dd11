package trace

import (
	"strings"
	"testing"
)

func sampleRecords() []Record {
	return []Record{
		SectorSweepRecord{SrcID: 2, DstID: 1, TraceIndex: 3, AntennaID: 1, SectorID: 5, AccessPeriod: "DTI", SnrDb: 21.5, TimestampNs: 1_000_000},
		SisoMeasurementRecord{SrcID: 2, DstID: 1, TraceIndex: 3, RxAntennaID: 1, TxAntennaID: 2, TxSectorID: 4, AwvID: 3, SnrDb: 18.2, TimestampNs: 2_000_000},
		SisoFeedbackRecord{SrcID: 2, DstID: 1, TraceIndex: 3, RxAntennaID: 1, TxAntennaID: 2, TxSectorID: 4, SnrDb: 19.9, TimestampNs: 3_000_000},
		MimoCandidateRecord{SrcID: 2, DstID: 1, TraceIndex: 3, Side: "Tx", Entries: []CandidateEntry{{1, 5}, {2, 7}}, TimestampNs: 4_000_000},
		MimoMeasurementRecord{
			SrcID: 2, DstID: 1, TraceIndex: 3,
			TxStreams:      []StreamEntry{{1, 5, 2}, {2, 7, 1}},
			RxStreams:      []StreamEntry{{1, 3, 1}, {2, 9, 1}},
			SnrMatrixDb:    []float64{22, 4, 5, 20},
			MinStreamSnrDb: 20,
			TimestampNs:    5_000_000,
		},
		ThroughputRecord{SrcID: 2, DstID: 1, TraceIndex: 3, IntervalStartS: 0.1, IntervalEndS: 0.2, ThroughputMbps: 770.123, TimestampNs: 6_000_000},
		DataSnrRecord{SrcID: 2, DstID: 1, TraceIndex: 3, SnrDb: 23.4, TimestampNs: 7_000_000},
	}
}

func TestRecords_RowMatchesHeader(t *testing.T) {
	for _, r := range sampleRecords() {
		if got, want := len(r.Row()), len(r.Header()); got != want {
			t.Errorf("%s: row has %d columns, header has %d", r.File(), got, want)
		}
	}
}

func TestRecords_TimestampIsLastColumn(t *testing.T) {
	for _, r := range sampleRecords() {
		header := r.Header()
		if header[len(header)-1] != "TIMESTAMP" {
			t.Errorf("%s: last column = %q, want TIMESTAMP", r.File(), header[len(header)-1])
		}
	}
}

func TestRecords_FileNamesCarryDirection(t *testing.T) {
	tests := []struct {
		r    Record
		want string
	}{
		{SectorSweepRecord{SrcID: 2, DstID: 1}, "slsResults_2_1"},
		{SisoMeasurementRecord{SrcID: 2, DstID: 1}, "sisoPhaseMeasurements_2_1"},
		{SisoFeedbackRecord{SrcID: 1, DstID: 2}, "sisoPhaseResults_1_2"},
		{MimoCandidateRecord{SrcID: 2, DstID: 1, Side: "Tx"}, "mimoTxCandidates_2_1"},
		{MimoCandidateRecord{SrcID: 2, DstID: 1, Side: "Rx"}, "mimoRxCandidates_2_1"},
		{MimoMeasurementRecord{SrcID: 2, DstID: 1}, "mimoPhaseMeasurements_2_1"},
		{ThroughputRecord{SrcID: 2, DstID: 1}, "throughput_2_1"},
		{DataSnrRecord{SrcID: 2, DstID: 1}, "snrValues_2_1"},
	}
	for _, tt := range tests {
		if got := tt.r.File(); got != tt.want {
			t.Errorf("File() = %q, want %q", got, tt.want)
		}
	}
}

func TestMimoCandidateRecord_NumberedColumns(t *testing.T) {
	r := MimoCandidateRecord{Entries: []CandidateEntry{{1, 5}, {2, 7}}}
	header := strings.Join(r.Header(), ",")
	for _, want := range []string{"ANTENNA_ID1", "SECTOR_ID1", "ANTENNA_ID2", "SECTOR_ID2"} {
		if !strings.Contains(header, want) {
			t.Errorf("header %q missing %q", header, want)
		}
	}
}

func TestMimoMeasurementRecord_MinStreamColumn(t *testing.T) {
	r := MimoMeasurementRecord{
		TxStreams:   []StreamEntry{{1, 5, 2}},
		RxStreams:   []StreamEntry{{1, 3, 1}},
		SnrMatrixDb: []float64{17.5},
	}
	header := r.Header()
	if header[len(header)-2] != "MIN_STREAM_SNR" {
		t.Errorf("second-to-last column = %q, want MIN_STREAM_SNR", header[len(header)-2])
	}
}

func TestFormatSnr_Precision(t *testing.T) {
	tests := []struct {
		db   float64
		want string
	}{
		{0, "0"},
		{21.5, "21.5"},
		{-3.25, "-3.25"},
	}
	for _, tt := range tests {
		if got := formatSnr(tt.db); got != tt.want {
			t.Errorf("formatSnr(%v) = %q, want %q", tt.db, got, tt.want)
		}
	}
}
