package sonar

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonar.report/internal/fsutil"
)

func TestCSVRoundTrip(t *testing.T) {
	muteLogs(t)
	table := newTestTable(t, []float64{-45, 0, 45})
	require.NoError(t, table.LabelByBearing("label_ice_presence", 1, 0, 90, 0))

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))

	got, err := ReadCSV(&buf, "restored", table.Schema())
	require.NoError(t, err)

	assert.Equal(t, "restored", got.Name())
	assert.Equal(t, table.Len(), got.Len())
	assert.Equal(t, table.Index(), got.Index())
	if diff := cmp.Diff(table.rows, got.rows, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("round trip changed values (-want +got):\n%s", diff)
	}
}

func TestWriteCSVMaterializesPending(t *testing.T) {
	muteLogs(t)
	s := NewSchema()
	table := NewTimeSeries("pending", s)
	ts := time.Date(2020, time.January, 24, 12, 0, 0, 0, time.UTC)
	require.NoError(t, table.Append(makeEnsemble(s, ts, 0, 0, 0.9)))

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))

	got, err := ReadCSV(&buf, "pending", s)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestWriteCSVEmptyTable(t *testing.T) {
	muteLogs(t)
	var buf bytes.Buffer
	table := NewTimeSeries("empty", NewSchema())
	require.NoError(t, table.WriteCSV(&buf))
	assert.Zero(t, buf.Len(), "empty table must not emit a header")
}

func TestReadCSVSchemaMismatch(t *testing.T) {
	muteLogs(t)
	table := newTestTable(t, []float64{0})

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))

	small, err := NewSchemaWithCapacity(8)
	require.NoError(t, err)

	var sm *SchemaMismatch
	_, err = ReadCSV(bytes.NewReader(buf.Bytes()), "t", small)
	require.ErrorAs(t, err, &sm)

	// Same column count but a renamed field is also a mismatch.
	renamed := strings.Replace(buf.String(), "bearing_ref_world", "heading", 1)
	_, err = ReadCSV(strings.NewReader(renamed), "t", table.Schema())
	require.ErrorAs(t, err, &sm)
}

func TestReadCSVBadCell(t *testing.T) {
	muteLogs(t)
	table := newTestTable(t, []float64{0})

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))

	// Corrupt the steps value in the data row.
	corrupted := strings.Replace(buf.String(), "0.9", "not-a-number", 1)
	var pe *ParseError
	_, err := ReadCSV(strings.NewReader(corrupted), "t", table.Schema())
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "not-a-number", pe.Token)
}

func TestSaveAndLoadCSV(t *testing.T) {
	muteLogs(t)
	fs := fsutil.NewMemoryFileSystem()
	table := newTestTable(t, []float64{0, 90})

	require.NoError(t, table.SaveCSV(fs, "out"))
	require.True(t, fs.Exists("out/test.csv"))

	got, err := LoadCSV(fs, "out/test.csv", table.Schema())
	require.NoError(t, err)
	assert.Equal(t, "test", got.Name())
	assert.Equal(t, 2, got.Len())

	want, _ := table.Column("bearing_ref_world")
	have, _ := got.Column("bearing_ref_world")
	assert.Equal(t, want, have)
}

func TestCSVPreservesNaN(t *testing.T) {
	muteLogs(t)
	table := newTestTable(t, []float64{0})

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))

	got, err := ReadCSV(&buf, "t", table.Schema())
	require.NoError(t, err)
	v, err := got.At(0, "label_ice_presence")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v), "unset labels must round trip as NaN")
}
