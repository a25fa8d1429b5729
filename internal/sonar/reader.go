package sonar

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/sonar.report/internal/fsutil"
	"github.com/banshee-data/sonar.report/internal/monitoring"
)

// progressInterval controls how often the reader logs ingest progress.
const progressInterval = 100

// Reader ingests raw Seanet DumpLog CSV exports: one header line followed
// by one ensemble row per line. Each row is decoded and appended into a
// TimeSeries, which is materialized once the file is exhausted. Malformed
// rows are logged and skipped; a decode failure rejects the row whole but
// never aborts the file.
type Reader struct {
	FS      fsutil.FileSystem
	Decoder *Decoder
}

// NewReader returns a reader over the OS filesystem with default tuning.
func NewReader(schema *Schema) *Reader {
	return &Reader{
		FS:      fsutil.OSFileSystem{},
		Decoder: NewDecoder(schema),
	}
}

// ReadFile decodes every ensemble row of a raw DumpLog CSV file into a
// materialized table named after the file. captureDate supplies the
// calendar date for the time-of-day tokens in the file.
func (r *Reader) ReadFile(path string, captureDate time.Time, opts Options) (*TimeSeries, error) {
	f, err := r.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw csv: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	monitoring.Logf("parsing raw sonar file %q", name)

	t := NewTimeSeries(name, r.Decoder.schema)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	// Skip the DumpLog column header line.
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read header line: %w", err)
		}
		return nil, fmt.Errorf("raw csv %q is empty", path)
	}

	var decoded, skipped int
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		tokens := strings.Split(line, ",")

		// The device leaves an empty row at the end of the file.
		if len(tokens) <= 1 && strings.TrimSpace(line) == "" {
			continue
		}

		e, err := r.Decoder.Decode(tokens, captureDate, opts)
		if err != nil {
			skipped++
			monitoring.Warnf("skipping row %d of %q: %v", decoded+skipped, name, err)
			continue
		}
		t.Append(e)

		decoded++
		if decoded%progressInterval == 0 {
			monitoring.Logf("  ensembles parsed: %5d", decoded)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed while reading %q: %w", path, err)
	}

	t.Materialize()
	monitoring.Logf("finished parsing %q: %d ensembles, %d rows skipped", name, decoded, skipped)
	return t, nil
}

// ReadDir ingests every .csv file in dir into one merged table.
func (r *Reader) ReadDir(dir, name string, captureDate time.Time, opts Options) (*TimeSeries, error) {
	files, err := r.FS.ListFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", dir, err)
	}

	var tables []*TimeSeries
	for _, f := range files {
		if strings.ToLower(filepath.Ext(f)) != ".csv" {
			continue
		}
		t, err := r.ReadFile(filepath.Join(dir, f), captureDate, opts)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no csv files found in %q", dir)
	}
	return MergeTables(name, tables...)
}
