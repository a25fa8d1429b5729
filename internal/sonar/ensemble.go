package sonar

import (
	"fmt"
	"time"
)

// Ensemble is one decoded scan line: a fixed-length numeric row indexed
// through its schema's name->offset mapping. Header and intensity fields
// are immutable once decoded; only the classification/label fields are
// expected to change afterwards, via the time series table.
type Ensemble struct {
	schema *Schema
	data   []float64
}

func newEnsemble(schema *Schema) *Ensemble {
	return &Ensemble{
		schema: schema,
		data:   make([]float64, schema.Len()),
	}
}

// Schema returns the schema this record was decoded against.
func (e *Ensemble) Schema() *Schema {
	return e.schema
}

// Get returns the value of the named field.
func (e *Ensemble) Get(name string) (float64, error) {
	i, err := e.schema.Offset(name)
	if err != nil {
		return 0, err
	}
	return e.data[i], nil
}

// MustGet returns the value of the named field and panics on an unknown
// name. Intended for fields whose presence the caller has already
// established through the schema.
func (e *Ensemble) MustGet(name string) float64 {
	v, err := e.Get(name)
	if err != nil {
		panic(fmt.Sprintf("sonar: %v", err))
	}
	return v
}

// Set stores a value into the named field.
func (e *Ensemble) Set(name string, v float64) error {
	i, err := e.schema.Offset(name)
	if err != nil {
		return err
	}
	e.data[i] = v
	return nil
}

// Data returns a copy of the full record row.
func (e *Ensemble) Data() []float64 {
	out := make([]float64, len(e.data))
	copy(out, e.data)
	return out
}

// Intensity returns a copy of the intensity bins.
func (e *Ensemble) Intensity() []float64 {
	return append([]float64(nil), e.intensity()...)
}

// intensity returns the live view of the intensity region. Decoder use only.
func (e *Ensemble) intensity() []float64 {
	return e.data[e.schema.IntensityOffset():]
}

// Time returns the capture timestamp of this scan line.
func (e *Ensemble) Time() time.Time {
	return time.Unix(int64(e.MustGet("date_time")), 0).UTC()
}
