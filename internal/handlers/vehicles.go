package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/aston-transit/backend/internal/geo"
	"github.com/aston-transit/backend/internal/realtime"
)

// VehicleSource fetches live vehicle positions
type VehicleSource interface {
	FetchVehicles(ctx context.Context) ([]realtime.Vehicle, error)
}

// VehicleHandler serves live vehicles near the center
type VehicleHandler struct {
	source        VehicleSource
	center        geo.Point
	defaultBuffer float64
}

// NewVehicleHandler creates a new handler for the given feed
func NewVehicleHandler(source VehicleSource, center geo.Point, defaultBuffer float64) *VehicleHandler {
	return &VehicleHandler{source: source, center: center, defaultBuffer: defaultBuffer}
}

// GetVehiclesResponse is the JSON response for GET /api/vehicles
type GetVehiclesResponse struct {
	Vehicles     []realtime.Vehicle `json:"vehicles"`
	Count        int                `json:"count"`
	BufferMeters float64            `json:"bufferMeters"`
	PolledAt     time.Time          `json:"polledAt"`
}

// GetVehicles handles GET /api/vehicles
// Query: bufferMeters (defaults to the network default)
func (h *VehicleHandler) GetVehicles(w http.ResponseWriter, r *http.Request) {
	buffer := h.defaultBuffer
	if s := r.URL.Query().Get("bufferMeters"); s != "" {
		v, err := parseBufferMeters(s)
		if err != nil || v <= 0 || v > MaxBufferMeters {
			writeError(w, http.StatusBadRequest, "bufferMeters must be a positive number", map[string]interface{}{
				"bufferMeters": s,
			})
			return
		}
		buffer = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	vehicles, err := h.source.FetchVehicles(ctx)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to retrieve vehicle positions", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	nearby := realtime.WithinRadius(vehicles, h.center, buffer)

	// Feeds typically update every 15-30s
	w.Header().Set("Cache-Control", "public, max-age=15, stale-while-revalidate=10")
	writeJSON(w, http.StatusOK, GetVehiclesResponse{
		Vehicles:     nearby,
		Count:        len(nearby),
		BufferMeters: buffer,
		PolledAt:     time.Now().UTC(),
	})
}
