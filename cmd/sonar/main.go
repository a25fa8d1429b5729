// Command sonar decodes raw Micron Sonar DumpLog CSV exports into a
// materialized ensemble table and writes the result as a processed CSV
// and/or into a sqlite database for downstream ice classification work.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/fsutil"
	"github.com/banshee-data/sonar.report/internal/sonar"
	"github.com/banshee-data/sonar.report/internal/sonar/sonardb"
	"github.com/banshee-data/sonar.report/internal/version"
)

var (
	inFile      = flag.String("in", "", "Raw DumpLog CSV file to decode")
	inDir       = flag.String("dir", "", "Directory of raw DumpLog CSV files to decode (alternative to -in)")
	seriesName  = flag.String("name", "survey", "Series name used when ingesting a directory")
	dateStr     = flag.String("date", "", "Capture date as YYYY-MM-DD (required; the device only records time of day)")
	bearingBias = flag.Float64("bias", 0, "Bearing bias in degrees (positive = vehicle rolled right)")
	sonarDepth  = flag.Float64("depth", math.NaN(), "Sonar depth in meters; enables surface reflection filtering")
	sonarAlt    = flag.Float64("altitude", math.NaN(), "Sonar altitude in meters; enables bottom reflection filtering")
	outDir      = flag.String("out", ".", "Directory for the processed CSV output")
	dbPath      = flag.String("db", "", "Optional sqlite database to record the materialized table into")
	tuningPath  = flag.String("tuning", "", "Optional JSON tuning config for the decoder")
	cropLeft    = flag.Float64("crop-left", -180, "Left bearing limit for cropping the table")
	cropRight   = flag.Float64("crop-right", 180, "Right bearing limit for cropping the table")
	singleSwath = flag.Bool("single-swath", false, "Truncate the cropped table to one forward sweep")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

const dateLayout = "2006-01-02"

func main() {
	flag.Parse()
	applySiteDefaults()

	if *showVersion {
		fmt.Println("sonar", version.String())
		return
	}

	if (*inFile == "") == (*inDir == "") {
		log.Fatal("exactly one of -in or -dir is required")
	}
	if *dateStr == "" {
		log.Fatal("-date is required")
	}
	captureDate, err := time.Parse(dateLayout, *dateStr)
	if err != nil {
		log.Fatalf("invalid -date %q: %v", *dateStr, err)
	}

	tuning := config.EmptyTuningConfig()
	if *tuningPath != "" {
		tuning, err = config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	schema, err := sonar.NewSchemaWithCapacity(tuning.GetIntensityCapacity())
	if err != nil {
		log.Fatalf("failed to build schema: %v", err)
	}

	reader := sonar.NewReader(schema)
	reader.Decoder = sonar.NewTunedDecoder(schema, tuning)

	opts := sonar.Options{
		BearingBias:   *bearingBias,
		SonarDepth:    optional(*sonarDepth),
		SonarAltitude: optional(*sonarAlt),
	}

	var table *sonar.TimeSeries
	if *inFile != "" {
		table, err = reader.ReadFile(*inFile, captureDate, opts)
	} else {
		table, err = reader.ReadDir(*inDir, *seriesName, captureDate, opts)
	}
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}

	if *cropLeft != -180 || *cropRight != 180 || *singleSwath {
		table = table.CropOnBearing(*cropLeft, *cropRight, *singleSwath)
		log.Printf("cropped to bearing window [%g, %g]: %d rows", *cropLeft, *cropRight, table.Len())
	}

	if err := table.SaveCSV(fsutil.OSFileSystem{}, *outDir); err != nil {
		log.Fatalf("failed to save csv: %v", err)
	}
	log.Printf("saved %s/%s.csv (%d rows)", *outDir, table.Name(), table.Len())

	if *dbPath != "" {
		db, err := sonardb.NewSonarDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
		written, err := db.RecordTimeSeries(table)
		if err != nil {
			log.Fatalf("failed to record table: %v", err)
		}
		log.Printf("recorded %d ensembles into %s", written, *dbPath)
	}

	fmt.Fprintln(os.Stderr, "done")
}

// optional maps the NaN flag default to "not provided".
func optional(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
