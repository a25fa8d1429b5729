package sonar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/units"
)

// Wire-format constants for a raw DumpLog ensemble row.
const (
	// lineHeaderSentinel replaces the non-numeric line marker token.
	lineHeaderSentinel = 1

	// timeOfDayLayout parses the time-of-day header token. Fractional
	// seconds in the token are accepted and then dropped: the device does
	// not embed a reliable date, so the calendar date is supplied by the
	// caller and sub-second precision is not kept.
	timeOfDayLayout = "15:04:05"

	degHalfCircle = 180.0
	degFullCircle = 360.0
)

// Options carries the per-deployment environmental corrections applied
// while decoding. SonarDepth and SonarAltitude are optional; when nil the
// corresponding reflection filter never fires and the record stores NaN.
type Options struct {
	// BearingBias compensates vehicle roll in degrees. Positive bias
	// corresponds with the vehicle rolling right.
	BearingBias float64

	// SonarDepth is the transducer depth in meters, used to filter out
	// surface multipath reflections.
	SonarDepth *float64

	// SonarAltitude is the transducer altitude in meters, used to filter
	// out bottom multipath reflections.
	SonarAltitude *float64
}

// Decoder turns one raw ensemble row into a populated record: numeric
// parsing, unit conversion, bearing reorientation, artifact filtering and
// peak-width extraction. A decoder is safe to reuse across rows; it holds
// no per-row state.
type Decoder struct {
	schema *Schema

	// Tuning parameters. The zero Decoder is not usable; construct
	// through NewDecoder, which applies the shared defaults.
	BlankingDistanceMeters float64
	ReflectionFactor       float64
	CosEpsilon             float64
	RollingMedianLength    int
	ClosingKernelLength    int
}

// NewDecoder returns a decoder for the given schema with default tuning.
func NewDecoder(schema *Schema) *Decoder {
	return &Decoder{
		schema:                 schema,
		BlankingDistanceMeters: config.DefaultBlankingDistanceMeters,
		ReflectionFactor:       config.DefaultReflectionFactor,
		CosEpsilon:             config.DefaultCosEpsilon,
		RollingMedianLength:    config.DefaultRollingMedianLength,
		ClosingKernelLength:    config.DefaultClosingKernelLength,
	}
}

// NewTunedDecoder returns a decoder configured from a tuning config.
func NewTunedDecoder(schema *Schema, cfg *config.TuningConfig) *Decoder {
	d := NewDecoder(schema)
	d.BlankingDistanceMeters = cfg.GetBlankingDistanceMeters()
	d.ReflectionFactor = cfg.GetReflectionFactor()
	d.CosEpsilon = cfg.GetCosEpsilon()
	d.RollingMedianLength = cfg.GetRollingMedianLength()
	d.ClosingKernelLength = cfg.GetClosingKernelLength()
	return d
}

// ReorientBearing maps a device bearing (clockwise from its reference)
// into the signed ±180° convention used for all physical geometry: the
// angle is negated and wrapped back into range when it falls at or below
// -180°. When applyBias is set the roll-bias correction is added on top.
func ReorientBearing(angleDeg, bias float64, applyBias bool) float64 {
	angleDeg = -angleDeg
	if angleDeg <= -degHalfCircle {
		angleDeg += degFullCircle
	}
	if applyBias {
		angleDeg += bias
	}
	return angleDeg
}

// Decode parses one raw ensemble row into a record. tokens holds the 15
// header tokens followed by the intensity sample tokens; captureDate
// supplies the calendar date for the embedded time-of-day. Decode either
// produces a complete record or fails; it never returns a partial one.
func (d *Decoder) Decode(tokens []string, captureDate time.Time, opts Options) (*Ensemble, error) {
	headerLen := len(headerFields)
	if len(tokens) < headerLen {
		return nil, &ParseError{Err: fmt.Errorf("got %d tokens, need at least %d header tokens", len(tokens), headerLen)}
	}

	e := newEnsemble(d.schema)

	if err := d.parseHeader(e, tokens, captureDate, opts); err != nil {
		return nil, err
	}
	if err := d.parseIntensity(e, tokens, opts); err != nil {
		return nil, err
	}
	d.deriveFeatures(e)
	return e, nil
}

// parseHeader decodes the 15 header tokens, converts them to physical
// units and computes the bearing-derived quantities. Later stages depend
// on the corrected bearing and bin size set here.
func (d *Decoder) parseHeader(e *Ensemble, tokens []string, captureDate time.Time, opts Options) error {
	for i, name := range headerFields {
		switch name {
		case "line_header":
			// Non-numeric marker; replaced with a constant sentinel.
			e.Set(name, lineHeaderSentinel)
		case "date_time":
			tod, err := time.Parse(timeOfDayLayout, strings.TrimSpace(tokens[i]))
			if err != nil {
				return &ParseError{Field: name, Token: tokens[i], Err: err}
			}
			year, month, day := captureDate.Date()
			ts := time.Date(year, month, day,
				tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC)
			e.Set("date_time", float64(ts.Unix()))
			e.Set("year", float64(year))
			e.Set("month", float64(month))
			e.Set("day", float64(day))
		default:
			v, err := strconv.Atoi(strings.TrimSpace(tokens[i]))
			if err != nil {
				return &ParseError{Field: name, Token: tokens[i], Err: err}
			}
			e.Set(name, float64(v))
		}
	}

	e.Set("bearing_bias", opts.BearingBias)
	e.Set("sonar_depth", optionalMeters(opts.SonarDepth))
	e.Set("sonar_altitude", optionalMeters(opts.SonarAltitude))

	// Convert raw device units to metric.
	scaleField(e, "range_scale", units.DmToM)
	scaleField(e, "left_lim", units.GradToDeg)
	scaleField(e, "right_lim", units.GradToDeg)
	scaleField(e, "steps", units.GradToDeg)
	scaleField(e, "bearing", units.GradToDeg)
	scaleField(e, "ad_low", units.CountsToDb)
	scaleField(e, "ad_span", units.CountsToDb)

	// Reorient the bearing coordinate system. The device-relative bearing
	// and the swath limits stay unbiased; the world-referenced bearing
	// carries the roll-bias correction and drives all geometry below.
	rawBearing := e.MustGet("bearing")
	e.Set("bearing", ReorientBearing(rawBearing, 0, false))
	e.Set("bearing_ref_world", ReorientBearing(rawBearing, opts.BearingBias, true))
	e.Set("left_lim", ReorientBearing(e.MustGet("left_lim"), 0, false))
	e.Set("right_lim", ReorientBearing(e.MustGet("right_lim"), 0, false))

	// Incidence angle: deviation from the beam pointing straight up.
	e.Set("incidence_angle", math.Abs(e.MustGet("bearing_ref_world")))

	dbytes := int(e.MustGet("dbytes"))
	if dbytes < 1 {
		return &ParseError{Field: "dbytes", Token: tokens[14],
			Err: fmt.Errorf("declared sample count must be >= 1, got %d", dbytes)}
	}
	if dbytes > d.schema.IntensityCapacity() {
		return &SchemaViolation{Detail: fmt.Sprintf(
			"declared sample count %d exceeds intensity capacity %d",
			dbytes, d.schema.IntensityCapacity())}
	}

	// Bin size converts bin index to physical distance for every later stage.
	e.Set("bin_size", e.MustGet("range_scale")/float64(dbytes))
	return nil
}

// parseIntensity loads the declared intensity samples, converts them to
// dB and applies the blanking-distance and reflection filters. Bins at or
// beyond the declared sample count stay zero.
func (d *Decoder) parseIntensity(e *Ensemble, tokens []string, opts Options) error {
	headerLen := len(headerFields)
	dbytes := int(e.MustGet("dbytes"))
	if len(tokens) < headerLen+dbytes {
		return &ParseError{Err: fmt.Errorf(
			"token stream too short: declared %d samples, found %d", dbytes, len(tokens)-headerLen)}
	}

	live := e.intensity()[:dbytes]
	for i := 0; i < dbytes; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(tokens[headerLen+i]), 64)
		if err != nil {
			return &ParseError{Field: BinField(i), Token: tokens[headerLen+i], Err: err}
		}
		live[i] = v
	}

	// Same counts->dB multiplier used for the display gain fields.
	floats.Scale(units.CountsToDb, live)

	d.filterBlankingDistance(e, live)
	d.filterReflections(e, live, opts)
	return nil
}

// filterBlankingDistance zeroes the near-field bins inside the device's
// minimum operating range; they hold transducer ringing, not returns.
func (d *Decoder) filterBlankingDistance(e *Ensemble, live []float64) {
	binSize := e.MustGet("bin_size")
	blanked := int(math.Ceil(d.BlankingDistanceMeters / binSize))
	if blanked > len(live) {
		blanked = len(live)
	}
	for i := 0; i < blanked; i++ {
		live[i] = 0
	}
}

// filterReflections zeroes bins beyond the estimated slant range to a
// surface or bottom multipath reflection. The surface filter requires a
// known depth and an incidence angle strictly below 90°; the bottom
// filter requires a known altitude and an incidence angle strictly above
// 90°. At exactly 90° incidence neither filter fires. A near-grazing
// epsilon on the cosine avoids the division blowing up.
func (d *Decoder) filterReflections(e *Ensemble, live []float64, opts Options) {
	incidence := e.MustGet("incidence_angle")
	cosBear := math.Abs(math.Cos(units.DegreesToRadians(e.MustGet("bearing_ref_world"))))
	if cosBear < d.CosEpsilon {
		return
	}
	binSize := e.MustGet("bin_size")

	zeroBeyond := func(dist float64) {
		cut := int(math.Floor(dist / binSize))
		if cut < 0 {
			cut = 0
		}
		for i := cut; i < len(live); i++ {
			live[i] = 0
		}
	}

	if opts.SonarDepth != nil && incidence < 90 {
		zeroBeyond(*opts.SonarDepth * d.ReflectionFactor / cosBear)
	}
	if opts.SonarAltitude != nil && incidence > 90 {
		zeroBeyond(*opts.SonarAltitude * d.ReflectionFactor / cosBear)
	}
}

// deriveFeatures locates the dominant reflection peak over the filtered
// live samples and records the per-ensemble feature set. All
// classification and label fields are initialized to NaN; they belong to
// the labeling collaborator, never to the decoder.
func (d *Decoder) deriveFeatures(e *Ensemble) {
	dbytes := int(e.MustGet("dbytes"))
	live := e.intensity()[:dbytes]
	binSize := e.MustGet("bin_size")

	maxBin := floats.MaxIdx(live)
	maxIntensity := live[maxBin]
	e.Set("max_intensity", maxIntensity)
	e.Set("max_intensity_bin", float64(maxBin))

	start, end := locatePeak(live, maxBin, d.RollingMedianLength, d.ClosingKernelLength)
	e.Set("peak_start_bin", float64(start))
	e.Set("peak_end_bin", float64(end))
	e.Set("peak_width_bin", float64(end-start))
	e.Set("peak_start", float64(start)*binSize)
	e.Set("peak_end", float64(end)*binSize)
	e.Set("peak_width", float64(end-start)*binSize)

	// Distance-normalized signal strength: depth-independent feature for
	// the downstream classifier.
	e.Set("max_intensity_norm", maxIntensity*float64(start)*binSize)

	// Vertical projection of the peak start. Undefined when the beam
	// points below the horizontal plane.
	cosWorld := math.Cos(units.DegreesToRadians(e.MustGet("bearing_ref_world")))
	if cosWorld < 0 {
		e.Set("vertical_range", math.NaN())
	} else {
		e.Set("vertical_range", float64(start)*binSize*cosWorld)
	}

	for _, name := range classFields {
		e.Set(name, math.NaN())
	}
}

func optionalMeters(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func scaleField(e *Ensemble, name string, multiplier float64) {
	e.Set(name, e.MustGet(name)*multiplier)
}
