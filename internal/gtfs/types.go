package gtfs

import (
	"math"
	"strconv"
	"strings"

	"github.com/aston-transit/backend/internal/geo"
)

// Data represents all parsed GTFS data
type Data struct {
	Agencies  []Agency
	Routes    []Route
	Stops     []Stop
	Trips     []Trip
	StopTimes []StopTime
	Shapes    map[string][]ShapePoint // keyed by shape_id, sorted by sequence
}

// Agency represents an agency from agency.txt
type Agency struct {
	AgencyID   string `csv:"agency_id"`
	AgencyName string `csv:"agency_name"`
	AgencyURL  string `csv:"agency_url"`
	AgencyTZ   string `csv:"agency_timezone"`
}

// Route represents a route from routes.txt
type Route struct {
	RouteID        string `csv:"route_id"`
	AgencyID       string `csv:"agency_id"`
	RouteShortName string `csv:"route_short_name"`
	RouteLongName  string `csv:"route_long_name"`
	RouteType      CSVInt `csv:"route_type"`
	RouteColor     string `csv:"route_color"`
	RouteTextColor string `csv:"route_text_color"`
}

// Stop represents a stop from stops.txt. Coordinates are kept as text so
// that a malformed row still reaches the network, where it is dropped.
type Stop struct {
	StopID        string `csv:"stop_id"`
	StopCode      string `csv:"stop_code"`
	StopName      string `csv:"stop_name"`
	StopLat       string `csv:"stop_lat"`
	StopLon       string `csv:"stop_lon"`
	LocationType  CSVInt `csv:"location_type"`
	ParentStation string `csv:"parent_station"`
}

// Point parses the stop's coordinates
func (s Stop) Point() (geo.Point, bool) {
	return parsePoint(s.StopLat, s.StopLon)
}

// parsePoint reads a latitude/longitude text pair. "NaN", "Inf" and
// out-of-range values are rejected along with anything unparseable.
func parsePoint(latText, lonText string) (geo.Point, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return geo.Point{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if err != nil {
		return geo.Point{}, false
	}
	p := geo.Point{Lat: lat, Lng: lon}
	return p, geo.IsValid(p)
}

// Trip represents a trip from trips.txt
type Trip struct {
	RouteID      string `csv:"route_id"`
	ServiceID    string `csv:"service_id"`
	TripID       string `csv:"trip_id"`
	TripHeadsign string `csv:"trip_headsign"`
	DirectionID  CSVInt `csv:"direction_id"`
	ShapeID      string `csv:"shape_id"`
}

// StopTime represents a stop time from stop_times.txt
type StopTime struct {
	TripID        string `csv:"trip_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	StopID        string `csv:"stop_id"`
	StopSequence  CSVInt `csv:"stop_sequence"`
}

// ShapePoint represents a point from shapes.txt. Coordinates are kept as
// text, like Stop, so a broken row can be told apart from 0,0.
type ShapePoint struct {
	ShapeID           string   `csv:"shape_id"`
	ShapePtLat        string   `csv:"shape_pt_lat"`
	ShapePtLon        string   `csv:"shape_pt_lon"`
	ShapePtSequence   CSVInt   `csv:"shape_pt_sequence"`
	ShapeDistTraveled CSVFloat `csv:"shape_dist_traveled"`
}

// Point parses the vertex coordinates
func (sp ShapePoint) Point() (geo.Point, bool) {
	return parsePoint(sp.ShapePtLat, sp.ShapePtLon)
}

// CSVInt is an integer column. Blank or unreadable values decode as 0.
type CSVInt int

// UnmarshalCSV parses the column text
func (i *CSVInt) UnmarshalCSV(csv string) error {
	val, err := strconv.Atoi(strings.TrimSpace(csv))
	if err != nil {
		*i = 0
		return nil
	}
	*i = CSVInt(val)
	return nil
}

// MarshalCSV renders the value
func (i CSVInt) MarshalCSV() (string, error) {
	return strconv.Itoa(int(i)), nil
}

// CSVFloat is a float column. Blank, unreadable or non-finite values
// decode as 0.
type CSVFloat float64

// UnmarshalCSV parses the column text
func (f *CSVFloat) UnmarshalCSV(csv string) error {
	val, err := strconv.ParseFloat(strings.TrimSpace(csv), 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		*f = 0
		return nil
	}
	*f = CSVFloat(val)
	return nil
}

// MarshalCSV renders the value
func (f CSVFloat) MarshalCSV() (string, error) {
	return strconv.FormatFloat(float64(f), 'f', -1, 64), nil
}
