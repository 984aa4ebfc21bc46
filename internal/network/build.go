package network

import (
	"time"

	"github.com/aston-transit/backend/internal/geo"
	"github.com/aston-transit/backend/internal/gtfs"
)

// SourceGTFS is recorded under meta.source for networks built from a feed
const SourceGTFS = "gtfs"

// Build assembles the raw network around center from parsed GTFS tables.
//
// Routes are collected when any of their trips calls at a stop within
// bufferMeters of center. Each collected route is described by its
// representative trip: of the trips calling in that area, the one with the
// most stop times (lowest trip id on a tie). The result is meant to be
// passed through FilterByRadius.
func Build(data *gtfs.Data, center geo.Point, bufferMeters float64) Network {
	net := Network{
		Stops:  make([]Stop, 0),
		Routes: make([]Route, 0),
	}
	if data == nil {
		net.Meta = buildMeta(center, bufferMeters, net)
		return net
	}

	// Stops inside the collection area
	collection := make(map[string]bool)
	for _, s := range data.Stops {
		if p, ok := s.Point(); ok && geo.Haversine(center, p) <= bufferMeters {
			collection[s.StopID] = true
		}
	}

	stopTimesByTrip := data.StopTimesByTrip()

	// Pick a representative trip for every route touching the area, out of
	// the trips that call there
	tripsByID := make(map[string]gtfs.Trip, len(data.Trips))
	representative := make(map[string]string)
	touches := make(map[string]bool)
	for _, trip := range data.Trips {
		tripsByID[trip.TripID] = trip
		sts := stopTimesByTrip[trip.TripID]
		if !callsAt(sts, collection) {
			continue
		}
		touches[trip.RouteID] = true

		best, ok := representative[trip.RouteID]
		if !ok || isBetterTrip(trip.TripID, len(sts), best, len(stopTimesByTrip[best])) {
			representative[trip.RouteID] = trip.TripID
		}
	}

	referenced := make(map[string]bool)
	for _, r := range data.Routes {
		if !touches[r.RouteID] {
			continue
		}

		trip := tripsByID[representative[r.RouteID]]
		sts := stopTimesByTrip[trip.TripID]

		stopIDs := make([]ID, len(sts))
		for i, st := range sts {
			stopIDs[i] = ID(st.StopID)
			referenced[st.StopID] = true
		}

		route := Route{
			ID:      ID(r.RouteID),
			StopIDs: stopIDs,
			Attrs:   routeAttrs(r),
		}
		if shape := buildShape(data.Shapes[trip.ShapeID]); shape != nil {
			route.Shape = shape
		}
		net.Routes = append(net.Routes, route)
	}

	// Stops the routes call at, plus everything in the collection area
	for _, s := range data.Stops {
		if referenced[s.StopID] || collection[s.StopID] {
			net.Stops = append(net.Stops, buildStop(s))
		}
	}

	net.Meta = buildMeta(center, bufferMeters, net)
	return net
}

func callsAt(sts []gtfs.StopTime, collection map[string]bool) bool {
	for _, st := range sts {
		if collection[st.StopID] {
			return true
		}
	}
	return false
}

func isBetterTrip(id string, n int, bestID string, bestN int) bool {
	if n != bestN {
		return n > bestN
	}
	return id < bestID
}

func buildStop(s gtfs.Stop) Stop {
	stop := Stop{
		ID:   ID(s.StopID),
		Name: s.StopName,
		Lat:  s.StopLat,
		Lng:  s.StopLon,
	}
	if p, ok := s.Point(); ok {
		stop.Lat = p.Lat
		stop.Lng = p.Lng
	}
	if s.StopCode != "" {
		stop.Attrs = map[string]any{"code": s.StopCode}
	}
	return stop
}

// buildShape converts the readable vertices of a shape; rows with broken or
// non-finite coordinates are dropped one by one.
func buildShape(points []gtfs.ShapePoint) Polyline {
	var shape Polyline
	for _, sp := range points {
		p, ok := sp.Point()
		if !ok {
			continue
		}
		shape = append(shape, []float64{p.Lat, p.Lng})
	}
	return shape
}

func routeAttrs(r gtfs.Route) map[string]any {
	return map[string]any{
		"shortName": r.RouteShortName,
		"longName":  r.RouteLongName,
		"type":      int(r.RouteType),
		"color":     r.RouteColor,
		"textColor": r.RouteTextColor,
		"agencyId":  r.AgencyID,
	}
}

func buildMeta(center geo.Point, bufferMeters float64, net Network) map[string]any {
	return map[string]any{
		"source":                 SourceGTFS,
		"generatedAt":            time.Now().UTC().Format(time.RFC3339),
		"center":                 center,
		"collectionBufferMeters": bufferMeters,
		"stopCount":              len(net.Stops),
		"routeCount":             len(net.Routes),
	}
}
