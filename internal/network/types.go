package network

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aston-transit/backend/internal/geo"
)

// ID is a string-coercible identifier. JSON numbers decode to their
// literal text so that 42 and "42" name the same stop.
type ID string

// UnmarshalJSON accepts strings, numbers and null
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Stop is a network node. Lat and Lng hold the coordinates as received
// (numbers, numeric strings, or anything else); see Stop.Point.
type Stop struct {
	ID    ID
	Name  string
	Lat   any
	Lng   any
	Attrs map[string]any
}

// Point coerces the stop's coordinates, reporting false when either is unusable
func (s Stop) Point() (geo.Point, bool) {
	lat, ok := toFloat(s.Lat)
	if !ok {
		return geo.Point{}, false
	}
	lng, ok := toFloat(s.Lng)
	if !ok {
		return geo.Point{}, false
	}
	return geo.Point{Lat: lat, Lng: lng}, true
}

func (s Stop) MarshalJSON() ([]byte, error) {
	return encodeObject(map[string]any{
		"id":   s.ID,
		"name": s.Name,
		"lat":  s.Lat,
		"lng":  s.Lng,
	}, s.Attrs)
}

func (s *Stop) UnmarshalJSON(data []byte) error {
	var out Stop
	attrs, err := decodeObject(data, map[string]any{
		"id":   &out.ID,
		"name": &out.Name,
		"lat":  &out.Lat,
		"lng":  &out.Lng,
	})
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	out.Attrs = attrs
	*s = out
	return nil
}

// Polyline is a route path. Each vertex is expected to be a [lat, lng]
// pair but is kept as received until it is clipped.
type Polyline []any

// Route is a line through the network. StopIDs is the path through stops
// and Shape, when present, the drawn geometry; the two are independent.
type Route struct {
	ID      ID
	StopIDs []ID
	Shape   Polyline
	Attrs   map[string]any
}

func (r Route) MarshalJSON() ([]byte, error) {
	stopIDs := r.StopIDs
	if stopIDs == nil {
		stopIDs = []ID{}
	}
	fields := map[string]any{
		"id":      r.ID,
		"stopIds": stopIDs,
	}
	if r.Shape != nil {
		fields["shape"] = r.Shape
	}
	return encodeObject(fields, r.Attrs)
}

func (r *Route) UnmarshalJSON(data []byte) error {
	var out Route
	attrs, err := decodeObject(data, map[string]any{
		"id":      &out.ID,
		"stopIds": &out.StopIDs,
		"shape":   &out.Shape,
	})
	if err != nil {
		return fmt.Errorf("route: %w", err)
	}
	out.Attrs = attrs
	*r = out
	return nil
}

// Network is the graph served to the map: stops, routes and free-form metadata
type Network struct {
	Stops  []Stop
	Routes []Route
	Meta   map[string]any
	Extra  map[string]any
}

func (n Network) MarshalJSON() ([]byte, error) {
	stops := n.Stops
	if stops == nil {
		stops = []Stop{}
	}
	routes := n.Routes
	if routes == nil {
		routes = []Route{}
	}
	meta := n.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	return encodeObject(map[string]any{
		"stops":  stops,
		"routes": routes,
		"meta":   meta,
	}, n.Extra)
}

func (n *Network) UnmarshalJSON(data []byte) error {
	var out Network
	extra, err := decodeObject(data, map[string]any{
		"stops":  &out.Stops,
		"routes": &out.Routes,
		"meta":   &out.Meta,
	})
	if err != nil {
		return fmt.Errorf("network: %w", err)
	}
	out.Extra = extra
	*n = out
	return nil
}

// decodeObject decodes the known keys of a JSON object into fields and
// returns every other key as a generic value
func decodeObject(data []byte, fields map[string]any) (map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	for key, dst := range fields {
		value, ok := raw[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, dst); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		delete(raw, key)
	}

	if len(raw) == 0 {
		return nil, nil
	}
	rest := make(map[string]any, len(raw))
	for key, value := range raw {
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		rest[key] = v
	}
	return rest, nil
}

// encodeObject writes fields on top of extra, so known keys always win
func encodeObject(fields, extra map[string]any) ([]byte, error) {
	out := make(map[string]any, len(fields)+len(extra))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}
