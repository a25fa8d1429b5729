package sonar

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/sonar.report/internal/fsutil"
	"github.com/banshee-data/sonar.report/internal/monitoring"
)

// Persisted table format: one header row holding the timestamp-index
// column (unnamed, pandas style) followed by the schema field list
// exactly, then one data row per ensemble. Writing then reading
// reproduces an identical field list and field values.

// timestampLayout formats the first (index) column of a persisted table.
const timestampLayout = "2006-01-02 15:04:05"

// WriteCSV writes the materialized table to w. A pending buffer is
// materialized first so no appended ensemble is silently dropped.
func (t *TimeSeries) WriteCSV(w io.Writer) error {
	if len(t.pending) > 0 {
		t.Materialize()
	}
	if len(t.rows) == 0 {
		monitoring.Warnf("no data to save for table %q", t.name)
		return nil
	}

	cw := csv.NewWriter(w)
	header := append([]string{""}, t.schema.Fields()...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, 1+t.schema.Len())
	for i, row := range t.rows {
		record[0] = t.index[i].UTC().Format(timestampLayout)
		for j, v := range row {
			record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the table to <dir>/<name>.csv on the given filesystem.
func (t *TimeSeries) SaveCSV(fs fsutil.FileSystem, dir string) error {
	f, err := fs.Create(filepath.Join(dir, t.name+".csv"))
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV reads a previously persisted table from r. The column header
// set must match the schema field list exactly; any deviation fails with
// a SchemaMismatch rather than decoding against the wrong layout.
func ReadCSV(r io.Reader, name string, schema *Schema) (*TimeSeries, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	fields := schema.Fields()
	if len(header) != len(fields)+1 {
		return nil, &SchemaMismatch{Detail: fmt.Sprintf(
			"expected %d columns (index + %d fields), got %d", len(fields)+1, len(fields), len(header))}
	}
	for i, name := range fields {
		if header[i+1] != name {
			return nil, &SchemaMismatch{Detail: fmt.Sprintf(
				"column %d is %q, expected %q", i+1, header[i+1], name)}
		}
	}

	t := NewTimeSeries(name, schema)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(t.rows), err)
		}
		ts, err := time.ParseInLocation(timestampLayout, record[0], time.UTC)
		if err != nil {
			return nil, &ParseError{Field: "date_time", Token: record[0], Err: err}
		}
		row := make([]float64, len(fields))
		for j, cell := range record[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, &ParseError{Field: fields[j], Token: cell, Err: err}
			}
			row[j] = v
		}
		t.rows = append(t.rows, row)
		t.index = append(t.index, ts)
	}
	return t, nil
}

// LoadCSV reads a persisted table from path, naming it after the file.
func LoadCSV(fs fsutil.FileSystem, path string, schema *Schema) (*TimeSeries, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ReadCSV(f, name, schema)
}
