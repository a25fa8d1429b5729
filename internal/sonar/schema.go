// Package sonar decodes raw Micron scanning-sonar ensembles into physical
// units, removes known acoustic artifacts, extracts the dominant-reflection
// peak, and accumulates decoded ensembles into a time-indexed table used
// for ice/water classification datasets.
package sonar

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultIntensityCapacity is the fixed number of intensity bins every
// record carries regardless of how many samples a given scan line
// actually reported. A shared capacity gives every ensemble in a run the
// same row shape so records can be stacked into a table.
const DefaultIntensityCapacity = 500

// headerFields are reported verbatim by the sonar, one set per scan line.
// DO NOT edit: the device outputs exactly this order.
var headerFields = []string{
	"line_header", // line marker, not numeric on the wire
	"date_time",   // time of day the line was recorded
	"node",        // node is 2 for imaging sonar
	"status",      // 2 byte device bitset
	"hdctrl",      // 2 byte head-control bitset
	"range_scale", // operating range setting
	"gain",        // gain setting used for the sonar
	"slope",       // receiver slope, Time Variable Gain (TVG)
	"ad_low",      // display formatting lower bound
	"ad_span",     // display formatting span
	"left_lim",    // left limit of the swath
	"right_lim",   // right limit of the swath
	"steps",       // angular step size
	"bearing",     // bearing of this scan line
	"dbytes",      // number of intensity samples actually present
}

// derivedFields are computed by the decoder from the header and intensity
// values.
var derivedFields = []string{
	"year",
	"month",
	"day",
	"sonar_depth",        // [m], NaN when unknown
	"sonar_altitude",     // [m], NaN when unknown
	"bearing_bias",       // vehicle roll correction [deg]
	"bearing_ref_world",  // bearing corrected for roll bias [deg]
	"incidence_angle",    // deviation from straight-up [deg]
	"bin_size",           // [m] per intensity bin
	"max_intensity",      // [dB]
	"max_intensity_bin",  // bin index of the maximum
	"max_intensity_norm", // max intensity [dB] * peak start distance [m]
	"peak_start_bin",
	"peak_start", // [m]
	"peak_end_bin",
	"peak_end", // [m]
	"peak_width_bin",
	"peak_width",     // [m]
	"vertical_range", // [m], NaN when the projection is undefined
}

// classFields hold the automated classification outputs and the manually
// assigned training labels. The decoder initializes all of them to NaN
// and never writes them afterwards.
var classFields = []string{
	"class_ice_category",
	"class_ice_presence",
	"class_ice_percent",
	"class_ice_thickness",
	"class_ice_slope",
	"class_ice_roughness",
	"label_ice_category",
	"label_ice_presence",
	"label_ice_percent",
	"label_ice_thickness",
	"label_ice_slope",
	"label_ice_roughness",
	"label_saltwater_flag", // 1 saltwater, 0 freshwater
}

// Schema is the immutable description of every field an ensemble record
// holds and the stable name->offset mapping shared by the decoder and the
// time series table.
type Schema struct {
	fields            []string
	index             map[string]int
	intensityOffset   int
	intensityCapacity int
}

// NewSchema returns a schema with the default intensity capacity.
func NewSchema() *Schema {
	s, err := NewSchemaWithCapacity(DefaultIntensityCapacity)
	if err != nil {
		// Unreachable: the default capacity is a positive constant.
		panic(err)
	}
	return s
}

// NewSchemaWithCapacity returns a schema carrying capacity intensity bins.
func NewSchemaWithCapacity(capacity int) (*Schema, error) {
	if capacity < 1 {
		return nil, &SchemaViolation{Detail: fmt.Sprintf("intensity capacity must be >= 1, got %d", capacity)}
	}

	s := &Schema{
		intensityOffset:   len(headerFields) + len(derivedFields) + len(classFields),
		intensityCapacity: capacity,
	}
	s.fields = make([]string, 0, s.intensityOffset+capacity)
	s.fields = append(s.fields, headerFields...)
	s.fields = append(s.fields, derivedFields...)
	s.fields = append(s.fields, classFields...)
	for i := 0; i < capacity; i++ {
		s.fields = append(s.fields, BinField(i))
	}

	s.index = make(map[string]int, len(s.fields))
	for i, name := range s.fields {
		if _, dup := s.index[name]; dup {
			return nil, &SchemaViolation{Detail: fmt.Sprintf("duplicate field name %q", name)}
		}
		s.index[name] = i
	}
	return s, nil
}

// BinField returns the field name of intensity bin i.
func BinField(i int) string {
	return "bin_" + strconv.Itoa(i)
}

// Fields returns the full ordered field list, which is also the row
// layout of every record and the column layout of persisted tables.
func (s *Schema) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

// HeaderFields returns the ordered header field names.
func (s *Schema) HeaderFields() []string {
	return append([]string(nil), headerFields...)
}

// DerivedFields returns the ordered derived field names.
func (s *Schema) DerivedFields() []string {
	return append([]string(nil), derivedFields...)
}

// ClassFields returns the classification and label field names.
func (s *Schema) ClassFields() []string {
	return append([]string(nil), classFields...)
}

// LabelFields returns the manually-assigned label field names (the
// class_* slots are written by the automated classifier instead).
func (s *Schema) LabelFields() []string {
	var out []string
	for _, name := range classFields {
		if strings.HasPrefix(name, "label") {
			out = append(out, name)
		}
	}
	return out
}

// Offset returns the record offset of the named field.
func (s *Schema) Offset(name string) (int, error) {
	i, ok := s.index[name]
	if !ok {
		return 0, &SchemaViolation{Detail: fmt.Sprintf("unknown field %q", name)}
	}
	return i, nil
}

// Has reports whether name is a declared field.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// IsClassField reports whether name is a classification or label field.
func (s *Schema) IsClassField(name string) bool {
	for _, f := range classFields {
		if f == name {
			return true
		}
	}
	return false
}

// Len returns the total record length in fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// IntensityOffset returns the record offset of bin_0.
func (s *Schema) IntensityOffset() int {
	return s.intensityOffset
}

// IntensityCapacity returns the fixed number of intensity bins.
func (s *Schema) IntensityCapacity() int {
	return s.intensityCapacity
}
