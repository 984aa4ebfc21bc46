package network

// FeatureCollection is a GeoJSON FeatureCollection
type FeatureCollection struct {
	Type     string         `json:"type"`
	Features []Feature      `json:"features"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Feature is a GeoJSON feature for a stop or a route
type Feature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
	Geometry   Geometry       `json:"geometry"`
}

// Geometry holds either a Point or a LineString. Coordinates are [lng, lat].
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// ToGeoJSON renders stops as Point features followed by routes as
// LineString features. Stops with unreadable coordinates are left out, and
// so are routes with fewer than two readable shape vertices.
func ToGeoJSON(net Network) FeatureCollection {
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(net.Stops)+len(net.Routes)),
		Meta:     net.Meta,
	}

	for _, s := range net.Stops {
		p, ok := s.Point()
		if !ok {
			continue
		}

		props := make(map[string]any, len(s.Attrs)+3)
		for k, v := range s.Attrs {
			props[k] = v
		}
		props["kind"] = "stop"
		props["id"] = string(s.ID)
		props["name"] = s.Name

		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			ID:         "stop:" + string(s.ID),
			Properties: props,
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: [2]float64{p.Lng, p.Lat},
			},
		})
	}

	for _, r := range net.Routes {
		coords := make([][2]float64, 0, len(r.Shape))
		for _, v := range r.Shape {
			if p, ok := toVertex(v); ok {
				coords = append(coords, [2]float64{p.Lng, p.Lat})
			}
		}
		if len(coords) < 2 {
			continue
		}

		props := make(map[string]any, len(r.Attrs)+3)
		for k, v := range r.Attrs {
			props[k] = v
		}
		props["kind"] = "route"
		props["id"] = string(r.ID)
		props["stopIds"] = r.StopIDs

		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			ID:         "route:" + string(r.ID),
			Properties: props,
			Geometry: Geometry{
				Type:        "LineString",
				Coordinates: coords,
			},
		})
	}

	return fc
}
