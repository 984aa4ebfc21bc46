package network

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/aston-transit/backend/internal/geo"
)

// toFloat converts a coordinate as received into a number. NaN and
// infinities count as unreadable.
func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toVertex converts a polyline vertex into a point. Only the first two
// entries are read; anything shorter is unusable.
func toVertex(v any) (geo.Point, bool) {
	var lat, lng any
	switch t := v.(type) {
	case []any:
		if len(t) < 2 {
			return geo.Point{}, false
		}
		lat, lng = t[0], t[1]
	case []float64:
		if len(t) < 2 {
			return geo.Point{}, false
		}
		lat, lng = t[0], t[1]
	case [2]float64:
		lat, lng = t[0], t[1]
	case []string:
		if len(t) < 2 {
			return geo.Point{}, false
		}
		lat, lng = t[0], t[1]
	default:
		return geo.Point{}, false
	}

	plat, ok := toFloat(lat)
	if !ok {
		return geo.Point{}, false
	}
	plng, ok := toFloat(lng)
	if !ok {
		return geo.Point{}, false
	}
	return geo.Point{Lat: plat, Lng: plng}, true
}
