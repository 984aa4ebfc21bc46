package realtime

import (
	"time"

	"github.com/aston-transit/backend/internal/geo"
)

// Vehicle is one entry of a GTFS-RT VehiclePositions feed
type Vehicle struct {
	VehicleKey  string     `json:"vehicleKey"`
	VehicleID   *string    `json:"vehicleId,omitempty"`
	Label       string     `json:"label,omitempty"`
	TripID      *string    `json:"tripId,omitempty"`
	RouteID     *string    `json:"routeId,omitempty"`
	StopID      *string    `json:"stopId,omitempty"`
	Status      string     `json:"status,omitempty"`
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	Bearing     *float64   `json:"bearing,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	DistanceM   float64    `json:"distanceMeters"`
	hasPosition bool
}

// Point returns the reported position
func (v Vehicle) Point() geo.Point {
	return geo.Point{Lat: v.Lat, Lng: v.Lng}
}

// StatusMap maps GTFS-RT VehicleStopStatus enum to string
var StatusMap = map[int32]string{
	0: "INCOMING_AT",
	1: "STOPPED_AT",
	2: "IN_TRANSIT_TO",
}
