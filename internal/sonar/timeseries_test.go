package sonar

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonar.report/internal/monitoring"
)

// makeEnsemble builds a minimal record directly against the schema for
// table-level tests; decoder tests cover the full decode path.
func makeEnsemble(s *Schema, ts time.Time, bearing, world, steps float64) *Ensemble {
	e := newEnsemble(s)
	e.Set("date_time", float64(ts.Unix()))
	e.Set("bearing", bearing)
	e.Set("bearing_ref_world", world)
	e.Set("steps", steps)
	for _, name := range classFields {
		e.Set(name, math.NaN())
	}
	return e
}

func muteLogs(t *testing.T) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })
}

func newTestTable(t *testing.T, bearings []float64) *TimeSeries {
	t.Helper()
	s := NewSchema()
	table := NewTimeSeries("test", s)
	base := time.Date(2020, time.January, 24, 12, 0, 0, 0, time.UTC)
	for i, b := range bearings {
		e := makeEnsemble(s, base.Add(time.Duration(i)*time.Second), b, b, 0.9)
		require.NoError(t, table.Append(e))
	}
	require.Equal(t, len(bearings), table.Materialize())
	return table
}

func TestAppendThenMaterialize(t *testing.T) {
	muteLogs(t)
	s := NewSchema()
	table := NewTimeSeries("deploy1", s)
	base := time.Date(2020, time.January, 24, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		e := makeEnsemble(s, base.Add(time.Duration(i)*time.Minute), 0, 0, 0.9)
		require.NoError(t, table.Append(e))
	}
	assert.Equal(t, 3, table.PendingCount())
	assert.Equal(t, 0, table.Len(), "rows appear only after materialize")

	assert.Equal(t, 3, table.Materialize())
	assert.Equal(t, 0, table.PendingCount())
	assert.Equal(t, 3, table.Len())

	index := table.Index()
	require.Len(t, index, 3)
	assert.Equal(t, base, index[0])
	assert.Equal(t, base.Add(2*time.Minute), index[2])
}

func TestMaterializeEmptyIsNoOp(t *testing.T) {
	var warned bool
	monitoring.SetLogger(func(format string, v ...interface{}) { warned = true })
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	table := newTestTable(t, []float64{0, 45})
	warned = false
	before := table.Len()
	assert.Equal(t, 0, table.Materialize())
	assert.Equal(t, before, table.Len())
	assert.True(t, warned, "empty materialize must warn, not fail")
}

func TestAppendSchemaMismatch(t *testing.T) {
	small, err := NewSchemaWithCapacity(8)
	require.NoError(t, err)

	table := NewTimeSeries("test", NewSchema())
	e := newEnsemble(small)
	var sv *SchemaViolation
	require.ErrorAs(t, table.Append(e), &sv)
}

func TestLabelByBearing(t *testing.T) {
	muteLogs(t)
	table := newTestTable(t, []float64{0, -45, 45, 180})

	require.NoError(t, table.LabelByBearing("label_ice_presence", 1, 0, 90, 0))
	got, err := table.Column("label_ice_presence")
	require.NoError(t, err)

	// Window is [0, 90): bearings 0 and 45 match; -45 and 180 do not.
	assert.Equal(t, 1.0, got[0])
	assert.True(t, math.IsNaN(got[1]))
	assert.Equal(t, 1.0, got[2])
	assert.True(t, math.IsNaN(got[3]))
}

func TestLabelByBearingPad(t *testing.T) {
	muteLogs(t)
	table := newTestTable(t, []float64{0, 45})

	// Pad shrinks the window to [10, 80): only the 45 deg row matches.
	require.NoError(t, table.LabelByBearing("label_ice_category", 2, 0, 90, 10))
	got, err := table.Column("label_ice_category")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got[0]))
	assert.Equal(t, 2.0, got[1])
}

func TestLabelByBearingRejectsNonLabelField(t *testing.T) {
	muteLogs(t)
	table := newTestTable(t, []float64{0})
	var sv *SchemaViolation
	require.ErrorAs(t, table.LabelByBearing("bearing", 1, -180, 180, 0), &sv)
	require.ErrorAs(t, table.LabelByBearing("not_a_field", 1, -180, 180, 0), &sv)
}

func TestResetLabels(t *testing.T) {
	muteLogs(t)
	table := newTestTable(t, []float64{0, 45, 180})

	require.NoError(t, table.LabelByBearing("label_ice_presence", 1, -180, 181, 0))
	require.NoError(t, table.LabelByBearing("class_ice_presence", 1, -180, 181, 0))

	table.ResetLabels()

	labels, err := table.Column("label_ice_presence")
	require.NoError(t, err)
	for i, v := range labels {
		assert.True(t, math.IsNaN(v), "label row %d must reset", i)
	}

	// Automated classification slots are not labels and stay put.
	class, err := table.Column("class_ice_presence")
	require.NoError(t, err)
	for i, v := range class {
		assert.Equal(t, 1.0, v, "class row %d must survive reset", i)
	}
}

func TestCropIdentity(t *testing.T) {
	muteLogs(t)
	table := newTestTable(t, []float64{-170, -45, 0, 45, 170, 180})

	cropped := table.CropOnBearing(-180, 180, false)
	assert.Equal(t, table.Len(), cropped.Len())
	assert.Equal(t, "test_cropped", cropped.Name())

	want, _ := table.Column("bearing_ref_world")
	got, _ := cropped.Column("bearing_ref_world")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("identity crop changed values (-want +got):\n%s", diff)
	}
}

func TestCropWrapAround(t *testing.T) {
	muteLogs(t)
	table := newTestTable(t, []float64{175, -175, 0, 90, 170, -170})

	cropped := table.CropOnBearing(170, -170, false)
	got, err := cropped.Column("bearing_ref_world")
	require.NoError(t, err)
	assert.Equal(t, []float64{175, -175, 170, -170}, got,
		"wrap crop selects the union of rows at or beyond both seams")
}

func TestCropSingleSwath(t *testing.T) {
	muteLogs(t)
	bearings := make([]float64, 10)
	table := newTestTable(t, bearings)

	// steps 0.9 minus the quantization epsilon gives 0.8 deg per row;
	// ceil(2/0.8)*2 = 6 rows for the [-1, 1] window.
	swath := table.CropOnBearing(-1, 1, true)
	assert.Equal(t, 6, swath.Len())
	assert.Equal(t, "test_swath", swath.Name())
}

func TestMergeTables(t *testing.T) {
	muteLogs(t)
	a := newTestTable(t, []float64{0, 45})
	b := newTestTable(t, []float64{90})

	merged, err := MergeTables("combined", a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, merged.Len())
	assert.Equal(t, "combined", merged.Name())
}

func TestMergeTablesSchemaMismatch(t *testing.T) {
	muteLogs(t)
	a := newTestTable(t, []float64{0})

	small, err := NewSchemaWithCapacity(8)
	require.NoError(t, err)
	b := NewTimeSeries("other", small)

	var sm *SchemaMismatch
	_, err = MergeTables("combined", a, b)
	require.ErrorAs(t, err, &sm)
}
