package geo

import "math"

const earthRadiusMeters = 6371000

// Point is a WGS84 latitude/longitude pair in degrees
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Haversine calculates the great-circle distance between two points in meters
func Haversine(a, b Point) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	deltaPhi := (b.Lat - a.Lat) * math.Pi / 180
	deltaLambda := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Within reports whether p lies within radiusMeters of center (inclusive)
func Within(center, p Point, radiusMeters float64) bool {
	return Haversine(center, p) <= radiusMeters
}

// Offset returns the point reached by travelling distanceMeters from p
// along the given initial bearing (degrees clockwise from north)
func Offset(p Point, bearingDegrees, distanceMeters float64) Point {
	delta := distanceMeters / earthRadiusMeters
	theta := bearingDegrees * math.Pi / 180
	phi1 := p.Lat * math.Pi / 180
	lambda1 := p.Lng * math.Pi / 180

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) +
		math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	return Point{Lat: phi2 * 180 / math.Pi, Lng: lambda2 * 180 / math.Pi}
}

// IsValid checks that a point is inside the WGS84 coordinate range
func IsValid(p Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
