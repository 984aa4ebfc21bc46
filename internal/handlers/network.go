package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/aston-transit/backend/internal/geo"
	"github.com/aston-transit/backend/internal/network"
	"github.com/aston-transit/backend/internal/static"
)

// NetworkSource supplies raw networks collected around the center
type NetworkSource interface {
	Load(bufferMeters float64) (network.Network, error)
}

// MaxBufferMeters bounds the radius accepted from clients
const MaxBufferMeters = 50000

// NetworkQuery holds the filter parameters of a network request
type NetworkQuery struct {
	BufferMeters   float64 `validate:"gt=0,lte=50000"`
	MinStopsInArea int     `validate:"gte=0"`
	ClipShapes     bool
}

// NetworkHandler serves the filtered network around a fixed center
type NetworkHandler struct {
	source   NetworkSource
	center   geo.Point
	defaults NetworkQuery
	validate *validator.Validate
}

// NewNetworkHandler creates a handler filtering around center with the given defaults
func NewNetworkHandler(source NetworkSource, center geo.Point, defaults NetworkQuery) *NetworkHandler {
	return &NetworkHandler{
		source:   source,
		center:   center,
		defaults: defaults,
		validate: validator.New(),
	}
}

// GetNetwork handles GET /api/network
// Query: bufferMeters (default 900), minStopsInArea (default 3), clipShapes (default true)
func (h *NetworkHandler) GetNetwork(w http.ResponseWriter, r *http.Request) {
	net, ok := h.filtered(w, r)
	if !ok {
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, net)
}

// GetNetworkGeoJSON handles GET /api/network.geojson with the same parameters
func (h *NetworkHandler) GetNetworkGeoJSON(w http.ResponseWriter, r *http.Request) {
	net, ok := h.filtered(w, r)
	if !ok {
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("Content-Type", "application/geo+json")
	writeJSON(w, http.StatusOK, network.ToGeoJSON(net))
}

func (h *NetworkHandler) filtered(w http.ResponseWriter, r *http.Request) (network.Network, bool) {
	q, err := h.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query parameters", map[string]interface{}{
			"internal": err.Error(),
		})
		return network.Network{}, false
	}

	raw, err := h.source.Load(q.BufferMeters)
	if err != nil {
		if errors.Is(err, static.ErrNoFeed) {
			writeError(w, http.StatusServiceUnavailable, "GTFS data not available, run a refresh first", map[string]interface{}{
				"internal": err.Error(),
			})
			return network.Network{}, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to build network", map[string]interface{}{
			"internal": err.Error(),
		})
		return network.Network{}, false
	}

	return network.FilterByRadius(raw, h.center, q.BufferMeters,
		network.WithMinStopsInArea(q.MinStopsInArea),
		network.WithClipShapes(q.ClipShapes),
	), true
}

func (h *NetworkHandler) parseQuery(r *http.Request) (NetworkQuery, error) {
	q := h.defaults
	values := r.URL.Query()

	if s := values.Get("bufferMeters"); s != "" {
		v, err := parseBufferMeters(s)
		if err != nil {
			return q, err
		}
		q.BufferMeters = v
	}

	if s := values.Get("minStopsInArea"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return q, errors.New("minStopsInArea must be an integer")
		}
		q.MinStopsInArea = v
	}

	if s := values.Get("clipShapes"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return q, errors.New("clipShapes must be true or false")
		}
		q.ClipShapes = v
	}

	if err := h.validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// parseBufferMeters accepts finite numbers only; ParseFloat also reads
// "Inf" and "NaN", which have no JSON encoding.
func parseBufferMeters(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("bufferMeters must be a finite number")
	}
	return v, nil
}
