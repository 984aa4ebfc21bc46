package network

import (
	"github.com/aston-transit/backend/internal/geo"
)

const (
	// DefaultMinStopsInArea is how many of a route's stops must fall
	// inside the radius for the route to be kept
	DefaultMinStopsInArea = 3

	// FilterTypeRadius is recorded under meta.filter.type
	FilterTypeRadius = "radius"
)

// MalformedPolicy says what the filter does with a stop or shape vertex
// whose coordinates cannot be read as numbers
type MalformedPolicy int

const (
	// SkipMalformed drops the offending item and carries on. A skipped
	// stop is never counted towards any route.
	SkipMalformed MalformedPolicy = iota
)

// OnMalformed is the policy FilterByRadius applies. Malformed items are
// never reported as errors and never logged.
const OnMalformed = SkipMalformed

// FilterMeta is stored under meta["filter"] on every filtered network
type FilterMeta struct {
	Type           string    `json:"type"`
	Center         geo.Point `json:"center"`
	BufferMeters   float64   `json:"bufferMeters"`
	MinStopsInArea int       `json:"minStopsInArea"`
	ClipShapes     bool      `json:"clipShapes"`
}

type filterOptions struct {
	minStopsInArea int
	clipShapes     bool
}

// FilterOption tunes FilterByRadius
type FilterOption func(*filterOptions)

// WithMinStopsInArea sets the route retention threshold
func WithMinStopsInArea(n int) FilterOption {
	return func(o *filterOptions) {
		o.minStopsInArea = n
	}
}

// WithClipShapes toggles trimming route polylines to the radius
func WithClipShapes(clip bool) FilterOption {
	return func(o *filterOptions) {
		o.clipShapes = clip
	}
}

// FilterByRadius returns the part of net that lies within bufferMeters of center.
//
// Stops are kept when their haversine distance to center is at most
// bufferMeters. Routes are then kept when at least minStopsInArea of their
// stop ids (counted as listed) belong to the kept stops; a route's own
// geometry plays no part in that decision. When clipping is on, each kept
// route's shape is reduced to its vertices inside the radius, unless fewer
// than two survive, in which case the original shape is kept.
//
// Stops must be filtered before routes: the route threshold is measured
// against the filtered stop set. The input network is not modified.
func FilterByRadius(net Network, center geo.Point, bufferMeters float64, opts ...FilterOption) Network {
	o := filterOptions{
		minStopsInArea: DefaultMinStopsInArea,
		clipShapes:     true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	// Stops inside the radius
	keepStopIDs := make(map[ID]struct{})
	stops := make([]Stop, 0)
	for _, s := range net.Stops {
		p, ok := s.Point()
		if !ok {
			continue
		}
		if geo.Haversine(center, p) <= bufferMeters {
			keepStopIDs[s.ID] = struct{}{}
			stops = append(stops, s)
		}
	}

	// Routes with enough of those stops
	routes := make([]Route, 0)
	for _, r := range net.Routes {
		if countInArea(r.StopIDs, keepStopIDs) < o.minStopsInArea {
			continue
		}

		rr := r
		rr.StopIDs = make([]ID, len(r.StopIDs))
		copy(rr.StopIDs, r.StopIDs)

		// Trim the drawn path; a degenerate clip keeps the original
		if o.clipShapes && len(r.Shape) > 0 {
			if clipped := clipShape(r.Shape, center, bufferMeters); len(clipped) >= 2 {
				rr.Shape = clipped
			}
		}

		routes = append(routes, rr)
	}

	// Shallow copy with the filter recorded in meta
	out := net
	out.Stops = stops
	out.Routes = routes
	out.Meta = make(map[string]any, len(net.Meta)+1)
	for k, v := range net.Meta {
		out.Meta[k] = v
	}
	out.Meta["filter"] = FilterMeta{
		Type:           FilterTypeRadius,
		Center:         center,
		BufferMeters:   bufferMeters,
		MinStopsInArea: o.minStopsInArea,
		ClipShapes:     o.clipShapes,
	}
	return out
}

func clipShape(shape Polyline, center geo.Point, bufferMeters float64) Polyline {
	var clipped Polyline
	for _, v := range shape {
		p, ok := toVertex(v)
		if !ok {
			continue
		}
		if geo.Haversine(center, p) <= bufferMeters {
			clipped = append(clipped, []float64{p.Lat, p.Lng})
		}
	}
	return clipped
}

func countInArea(stopIDs []ID, keep map[ID]struct{}) int {
	n := 0
	for _, id := range stopIDs {
		if _, ok := keep[id]; ok {
			n++
		}
	}
	return n
}
