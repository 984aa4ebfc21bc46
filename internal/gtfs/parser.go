package gtfs

import (
	"archive/zip"
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

// ErrUnknownFileName is returned when a file is not part of the feed tables we read
var ErrUnknownFileName = errors.New("unknown file name encountered")

var setReaderOnce sync.Once

func useGTFSReader() {
	setReaderOnce.Do(func() {
		gocsv.SetCSVReader(gtfsCSVReader)
	})
}

// GTFS allows optional trailing columns, so rows may be shorter than the header.
// Feeds exported from spreadsheets often start with a byte order mark, which
// would otherwise end up in the first header name.
func gtfsCSVReader(in io.Reader) gocsv.CSVReader {
	br := bufio.NewReader(in)
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r
}

// LoadDir reads an extracted GTFS feed
func LoadDir(dir string) (*Data, error) {
	useGTFSReader()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read GTFS directory: %w", err)
	}

	data := newData()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := data.parseDirFile(dir, entry.Name()); err != nil && !errors.Is(err, ErrUnknownFileName) {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to parse GTFS file")
		}
	}

	data.finish()
	return data, nil
}

// LoadZip reads a GTFS feed straight from its archive
func LoadZip(zipPath string) (*Data, error) {
	useGTFSReader()

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	data := newData()
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := data.parseZipFile(f); err != nil && !errors.Is(err, ErrUnknownFileName) {
			log.Warn().Err(err).Str("file", f.Name).Msg("Failed to parse GTFS file")
		}
	}

	data.finish()
	return data, nil
}

func newData() *Data {
	return &Data{
		Shapes: make(map[string][]ShapePoint),
	}
}

func (d *Data) parseDirFile(dir, name string) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	return d.parseFile(name, f)
}

func (d *Data) parseZipFile(zf *zip.File) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	// Some publishers nest the tables one folder deep
	return d.parseFile(filepath.Base(zf.Name), rc)
}

func (d *Data) parseFile(name string, contents io.Reader) error {
	switch name {
	case "agency.txt":
		return gocsv.Unmarshal(contents, &d.Agencies)

	case "routes.txt":
		return gocsv.Unmarshal(contents, &d.Routes)

	case "stops.txt":
		return gocsv.Unmarshal(contents, &d.Stops)

	case "trips.txt":
		return gocsv.Unmarshal(contents, &d.Trips)

	case "stop_times.txt":
		return gocsv.Unmarshal(contents, &d.StopTimes)

	case "shapes.txt":
		var points []ShapePoint
		if err := gocsv.Unmarshal(contents, &points); err != nil {
			return err
		}
		for _, p := range points {
			d.Shapes[p.ShapeID] = append(d.Shapes[p.ShapeID], p)
		}
		return nil

	default:
		return ErrUnknownFileName
	}
}

// finish orders shape points and stop times by sequence and logs a summary
func (d *Data) finish() {
	for id := range d.Shapes {
		pts := d.Shapes[id]
		sort.SliceStable(pts, func(i, j int) bool {
			return pts[i].ShapePtSequence < pts[j].ShapePtSequence
		})
	}

	sort.SliceStable(d.StopTimes, func(i, j int) bool {
		a, b := d.StopTimes[i], d.StopTimes[j]
		if a.TripID != b.TripID {
			return a.TripID < b.TripID
		}
		return a.StopSequence < b.StopSequence
	})

	log.Info().
		Int("routes", len(d.Routes)).
		Int("stops", len(d.Stops)).
		Int("trips", len(d.Trips)).
		Int("stop_times", len(d.StopTimes)).
		Int("shapes", len(d.Shapes)).
		Msg("GTFS parsed")
}

// StopTimesByTrip groups stop times by trip id, each group in sequence order
func (d *Data) StopTimesByTrip() map[string][]StopTime {
	byTrip := make(map[string][]StopTime)
	for _, st := range d.StopTimes {
		byTrip[st.TripID] = append(byTrip[st.TripID], st)
	}
	return byTrip
}
