package sonar

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/sonar.report/internal/monitoring"
)

// swathStepEpsilon compensates for device step-size quantization noise
// when truncating to a single swath; without it the row-count estimate
// can come up one short at sweep boundaries.
const swathStepEpsilon = 0.1

// TimeSeries accumulates decoded ensembles into a row-indexed table keyed
// by capture timestamp. Appends go to a pending buffer; an explicit
// Materialize stacks the buffer into the table. Incremental single-row
// insertion into a columnar table is asymptotically expensive, so
// ingestion batches writes and flattens them periodically or at the end.
type TimeSeries struct {
	name    string
	schema  *Schema
	pending [][]float64
	rows    [][]float64
	index   []time.Time
}

// NewTimeSeries returns an empty table bound to the shared schema value.
func NewTimeSeries(name string, schema *Schema) *TimeSeries {
	return &TimeSeries{name: name, schema: schema}
}

// Name returns the table name, used when persisting to file.
func (t *TimeSeries) Name() string { return t.name }

// Schema returns the schema shared by every row of the table.
func (t *TimeSeries) Schema() *Schema { return t.schema }

// Append buffers one decoded ensemble. The record must have been decoded
// against the table's schema.
func (t *TimeSeries) Append(e *Ensemble) error {
	if e.Schema() != t.schema && !sameFields(e.Schema(), t.schema) {
		return &SchemaViolation{Detail: "ensemble schema does not match table schema"}
	}
	t.pending = append(t.pending, e.Data())
	return nil
}

// PendingCount returns the number of buffered, not yet materialized rows.
func (t *TimeSeries) PendingCount() int { return len(t.pending) }

// Len returns the number of materialized rows.
func (t *TimeSeries) Len() int { return len(t.rows) }

// Materialize stacks the pending buffer onto the table, indexes the new
// rows by their capture timestamp and clears the buffer. Returns the
// number of rows added. Calling with an empty buffer is a warned no-op.
func (t *TimeSeries) Materialize() int {
	if len(t.pending) == 0 {
		monitoring.Warnf("no ensembles to materialize into table %q", t.name)
		return 0
	}
	tsOffset, _ := t.schema.Offset("date_time")
	for _, row := range t.pending {
		t.rows = append(t.rows, row)
		t.index = append(t.index, time.Unix(int64(row[tsOffset]), 0).UTC())
	}
	added := len(t.pending)
	t.pending = nil
	return added
}

// Index returns a copy of the timestamp index of the materialized rows.
func (t *TimeSeries) Index() []time.Time {
	return append([]time.Time(nil), t.index...)
}

// At returns the value of the named field in materialized row i.
func (t *TimeSeries) At(i int, field string) (float64, error) {
	if i < 0 || i >= len(t.rows) {
		return 0, fmt.Errorf("row %d out of range (%d rows)", i, len(t.rows))
	}
	offset, err := t.schema.Offset(field)
	if err != nil {
		return 0, err
	}
	return t.rows[i][offset], nil
}

// Column returns a copy of the named column over the materialized rows.
func (t *TimeSeries) Column(field string) ([]float64, error) {
	offset, err := t.schema.Offset(field)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[offset]
	}
	return out, nil
}

// LabelByBearing sets field to value on every materialized row whose
// device-relative bearing lies in [bearingMin+pad, bearingMax-pad). The
// pad shrinks the window on both sides, which makes it easier to avoid
// mislabeling near an uncertain transition angle. Only classification and
// label fields may be written this way.
func (t *TimeSeries) LabelByBearing(field string, value, bearingMin, bearingMax, pad float64) error {
	if !t.schema.IsClassField(field) {
		return &SchemaViolation{Detail: fmt.Sprintf("%q is not a classification or label field", field)}
	}
	bearingOffset, _ := t.schema.Offset("bearing")
	fieldOffset, _ := t.schema.Offset(field)
	lo := bearingMin + pad
	hi := bearingMax - pad
	for _, row := range t.rows {
		if b := row[bearingOffset]; b >= lo && b < hi {
			row[fieldOffset] = value
		}
	}
	return nil
}

// ResetLabels restores every label field to NaN (unknown) on every
// materialized row, covering the full ±180° bearing range.
func (t *TimeSeries) ResetLabels() {
	for _, field := range t.schema.LabelFields() {
		offset, _ := t.schema.Offset(field)
		for _, row := range t.rows {
			row[offset] = math.NaN()
		}
	}
}

// CropOnBearing returns a new table restricted to rows whose
// world-referenced bearing lies in [left, right] when right > left, or in
// the wrap-around union [left,180] ∪ [-180,right] otherwise, which
// supports windows crossing the ±180° seam. With singleSwath set the
// result is further truncated to exactly one forward angular sweep.
func (t *TimeSeries) CropOnBearing(left, right float64, singleSwath bool) *TimeSeries {
	suffix := "_cropped"
	if singleSwath {
		suffix = "_swath"
	}
	out := NewTimeSeries(t.name+suffix, t.schema)

	worldOffset, _ := t.schema.Offset("bearing_ref_world")
	for i, row := range t.rows {
		b := row[worldOffset]
		var keep bool
		if right > left {
			keep = b >= left && b <= right
		} else {
			keep = b >= left || b <= right
		}
		if keep {
			out.rows = append(out.rows, append([]float64(nil), row...))
			out.index = append(out.index, t.index[i])
		}
	}

	if singleSwath && len(out.rows) > 0 {
		stepsOffset, _ := t.schema.Offset("steps")
		steps := out.rows[0][stepsOffset] - swathStepEpsilon
		if steps > 0 {
			swath := int(math.Ceil(math.Abs(right-left)/steps)) * 2
			if swath < len(out.rows) {
				out.rows = out.rows[:swath]
				out.index = out.index[:swath]
			}
		}
	}
	return out
}

// MergeTables concatenates materialized tables sharing one schema into a
// new table. Tables with a different column layout are rejected.
func MergeTables(name string, tables ...*TimeSeries) (*TimeSeries, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to merge")
	}
	out := NewTimeSeries(name, tables[0].schema)
	for _, tbl := range tables {
		if tbl.schema != out.schema && !sameFields(tbl.schema, out.schema) {
			return nil, &SchemaMismatch{Detail: fmt.Sprintf("table %q has a different column layout", tbl.name)}
		}
		for i, row := range tbl.rows {
			out.rows = append(out.rows, append([]float64(nil), row...))
			out.index = append(out.index, tbl.index[i])
		}
	}
	return out, nil
}

func sameFields(a, b *Schema) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i, name := range a.fields {
		if b.fields[i] != name {
			return false
		}
	}
	return true
}
