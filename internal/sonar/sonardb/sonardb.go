// Package sonardb persists materialized sonar time series to sqlite so
// downstream classification tooling can query feature rows without
// reparsing raw DumpLog files.
package sonardb

import (
	"database/sql"
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/sonar.report/internal/sonar"
)

// schema.sql defines the ensembles table and its indexes.
//
//go:embed schema.sql
var schemaSQL string

// SonarDB wraps a sqlite handle initialized with the ensemble schema.
type SonarDB struct {
	*sql.DB
}

// NewSonarDB opens (creating if needed) the sonar database at path.
func NewSonarDB(path string) (*SonarDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize sonar schema: %w", err)
	}
	return &SonarDB{db}, nil
}

// featureColumns lists the scalar feature fields copied from each row, in
// insert order after series and captured_at.
var featureColumns = []string{
	"bearing",
	"bearing_ref_world",
	"incidence_angle",
	"range_scale",
	"bin_size",
	"max_intensity",
	"max_intensity_bin",
	"max_intensity_norm",
	"peak_start",
	"peak_end",
	"peak_width",
	"vertical_range",
}

// RecordTimeSeries inserts every materialized row of the table. Returns
// the number of rows written. NaN feature values are stored as NULL.
func (db *SonarDB) RecordTimeSeries(t *sonar.TimeSeries) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO ensembles (
			series, captured_at,
			bearing, bearing_ref_world, incidence_angle, range_scale, bin_size,
			max_intensity, max_intensity_bin, max_intensity_norm,
			peak_start, peak_end, peak_width, vertical_range,
			intensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	index := t.Index()
	written := 0
	for i := 0; i < t.Len(); i++ {
		args := make([]any, 0, 3+len(featureColumns))
		args = append(args, t.Name(), index[i].Unix())
		for _, col := range featureColumns {
			v, err := t.At(i, col)
			if err != nil {
				return written, err
			}
			args = append(args, nullifyNaN(v))
		}

		dbytes, err := t.At(i, "dbytes")
		if err != nil {
			return written, err
		}
		intensity, err := intensityRow(t, i, int(dbytes))
		if err != nil {
			return written, err
		}
		args = append(args, packIntensity(intensity))

		if _, err := stmt.Exec(args...); err != nil {
			return written, fmt.Errorf("failed to insert ensemble row %d: %w", i, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return written, fmt.Errorf("failed to commit: %w", err)
	}
	return written, nil
}

// CountEnsembles returns the number of stored rows for a series name.
func (db *SonarDB) CountEnsembles(series string) (int64, error) {
	var n int64
	err := db.QueryRow(`SELECT COUNT(*) FROM ensembles WHERE series = ?`, series).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count ensembles: %w", err)
	}
	return n, nil
}

// ReadIntensity returns the unpacked intensity bins of a stored row.
func (db *SonarDB) ReadIntensity(id int64) ([]float64, error) {
	var blob []byte
	err := db.QueryRow(`SELECT intensity FROM ensembles WHERE id = ?`, id).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("failed to read intensity for row %d: %w", id, err)
	}
	return unpackIntensity(blob), nil
}

func intensityRow(t *sonar.TimeSeries, i, dbytes int) ([]float64, error) {
	out := make([]float64, dbytes)
	for bin := 0; bin < dbytes; bin++ {
		v, err := t.At(i, sonar.BinField(bin))
		if err != nil {
			return nil, err
		}
		out[bin] = v
	}
	return out, nil
}

// packIntensity encodes bins as little-endian float64 bytes.
func packIntensity(bins []float64) []byte {
	out := make([]byte, 8*len(bins))
	for i, v := range bins {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

func unpackIntensity(blob []byte) []float64 {
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return out
}

// nullifyNaN maps NaN sentinels to SQL NULL; NaN means "unavailable",
// not a storable measurement.
func nullifyNaN(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
