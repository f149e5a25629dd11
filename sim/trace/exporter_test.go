package trace

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCsv(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExporter_CreatesFileWithHeader(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir)
	require.NoError(t, err)

	r := DataSnrRecord{SrcID: 2, DstID: 1, TraceIndex: 0, SnrDb: 20, TimestampNs: 1000}
	require.NoError(t, e.Append(r))
	require.NoError(t, e.Close())

	rows := readCsv(t, filepath.Join(dir, "snrValues_2_1.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, r.Header(), rows[0])
	assert.Equal(t, r.Row(), rows[1])
}

func TestExporter_AppendOnlyReuse(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Append(DataSnrRecord{SrcID: 2, DstID: 1, SnrDb: float64(i), TimestampNs: int64(i)}))
	}
	require.NoError(t, e.Close())

	rows := readCsv(t, filepath.Join(dir, "snrValues_2_1.csv"))
	// One header and five data rows; the header is written exactly once.
	require.Len(t, rows, 6)
	assert.Equal(t, "SRC_ID", rows[0][0])
	assert.Equal(t, "0", rows[1][3])
	assert.Equal(t, "4", rows[5][3])
}

func TestExporter_SeparateStreamsPerDirection(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir)
	require.NoError(t, err)

	require.NoError(t, e.Append(DataSnrRecord{SrcID: 2, DstID: 1, SnrDb: 20}))
	require.NoError(t, e.Append(DataSnrRecord{SrcID: 1, DstID: 2, SnrDb: 21}))
	require.NoError(t, e.Append(SectorSweepRecord{SrcID: 2, DstID: 1, AccessPeriod: "DTI", SnrDb: 22}))
	require.NoError(t, e.Close())

	for _, name := range []string{"snrValues_2_1.csv", "snrValues_1_2.csv", "slsResults_2_1.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected stream file %s", name)
	}
}

func TestExporter_CreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "Traces")
	e, err := NewExporter(dir)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, dir, e.Dir())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExporter_UncreatableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := NewExporter(filepath.Join(blocker, "sub"))
	assert.Error(t, err)
}
