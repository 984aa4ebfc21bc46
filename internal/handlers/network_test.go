package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aston-transit/backend/internal/geo"
	"github.com/aston-transit/backend/internal/network"
	"github.com/aston-transit/backend/internal/static"
)

var aston = geo.Point{Lat: 52.4975, Lng: -1.8890}

type fakeNetworks struct {
	net     network.Network
	err     error
	buffers []float64
}

func (f *fakeNetworks) Load(bufferMeters float64) (network.Network, error) {
	f.buffers = append(f.buffers, bufferMeters)
	return f.net, f.err
}

func stopNorth(id string, meters float64) network.Stop {
	p := geo.Offset(aston, 0, meters)
	return network.Stop{ID: network.ID(id), Name: id, Lat: p.Lat, Lng: p.Lng}
}

func rawNetwork() network.Network {
	far := geo.Offset(aston, 0, 3000)
	return network.Network{
		Stops: []network.Stop{
			stopNorth("a", 100),
			stopNorth("b", 300),
			stopNorth("c", 500),
			stopNorth("d", 1200),
		},
		Routes: []network.Route{
			{
				ID:      "r7",
				StopIDs: []network.ID{"a", "b", "c", "d"},
				Shape:   network.Polyline{[]float64{aston.Lat, aston.Lng}, []float64{geo.Offset(aston, 0, 400).Lat, aston.Lng}, []float64{far.Lat, far.Lng}},
				Attrs:   map[string]any{"shortName": "7"},
			},
			{ID: "r65", StopIDs: []network.ID{"a", "d"}},
		},
		Meta: map[string]any{"source": network.SourceGTFS},
	}
}

func newTestNetworkHandler(src NetworkSource) *NetworkHandler {
	return NewNetworkHandler(src, aston, NetworkQuery{BufferMeters: 900, MinStopsInArea: 3, ClipShapes: true})
}

type networkBody struct {
	Stops  []map[string]any `json:"stops"`
	Routes []map[string]any `json:"routes"`
	Meta   map[string]any   `json:"meta"`
}

func TestGetNetworkDefaults(t *testing.T) {
	src := &fakeNetworks{net: rawNetwork()}
	h := newTestNetworkHandler(src)

	rec := httptest.NewRecorder()
	h.GetNetwork(rec, httptest.NewRequest(http.MethodGet, "/api/network", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, []float64{900}, src.buffers)

	var body networkBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Stops, 3)
	require.Len(t, body.Routes, 1)
	assert.Equal(t, "r7", body.Routes[0]["id"])
	assert.Len(t, body.Routes[0]["shape"], 2, "shape is clipped to the radius")

	filter := body.Meta["filter"].(map[string]any)
	assert.Equal(t, "radius", filter["type"])
	assert.Equal(t, 900.0, filter["bufferMeters"])
	assert.Equal(t, 3.0, filter["minStopsInArea"])
	assert.Equal(t, true, filter["clipShapes"])
	assert.Equal(t, "gtfs", body.Meta["source"])
}

func TestGetNetworkQueryParameters(t *testing.T) {
	src := &fakeNetworks{net: rawNetwork()}
	h := newTestNetworkHandler(src)

	rec := httptest.NewRecorder()
	h.GetNetwork(rec, httptest.NewRequest(http.MethodGet, "/api/network?bufferMeters=1500&minStopsInArea=2&clipShapes=false", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []float64{1500}, src.buffers)

	var body networkBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Stops, 4)
	assert.Len(t, body.Routes, 2)
	assert.Len(t, body.Routes[0]["shape"], 3, "clipping disabled")
}

func TestGetNetworkRejectsBadInput(t *testing.T) {
	tests := []string{
		"bufferMeters=0",
		"bufferMeters=-5",
		"bufferMeters=abc",
		"bufferMeters=NaN",
		"bufferMeters=Inf",
		"bufferMeters=-Inf",
		"bufferMeters=1e400",
		"bufferMeters=60000",
		"minStopsInArea=-1",
		"minStopsInArea=1.5",
		"clipShapes=maybe",
	}

	for _, query := range tests {
		t.Run(query, func(t *testing.T) {
			src := &fakeNetworks{net: rawNetwork()}
			h := newTestNetworkHandler(src)

			rec := httptest.NewRecorder()
			h.GetNetwork(rec, httptest.NewRequest(http.MethodGet, "/api/network?"+query, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, src.buffers, "nothing is built for invalid input")

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "Invalid query parameters", body.Error)
		})
	}
}

func TestGetNetworkZeroThresholdKeepsAllRoutes(t *testing.T) {
	h := newTestNetworkHandler(&fakeNetworks{net: rawNetwork()})

	rec := httptest.NewRecorder()
	h.GetNetwork(rec, httptest.NewRequest(http.MethodGet, "/api/network?minStopsInArea=0", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body networkBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Routes, 2)
}

func TestGetNetworkWithoutFeed(t *testing.T) {
	src := &fakeNetworks{err: fmt.Errorf("%w: gtfs_data", static.ErrNoFeed)}
	h := newTestNetworkHandler(src)

	rec := httptest.NewRecorder()
	h.GetNetwork(rec, httptest.NewRequest(http.MethodGet, "/api/network", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetNetworkBuildFailure(t *testing.T) {
	h := newTestNetworkHandler(&fakeNetworks{err: errors.New("disk on fire")})

	rec := httptest.NewRecorder()
	h.GetNetwork(rec, httptest.NewRequest(http.MethodGet, "/api/network", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "disk on fire", body.Details["internal"])
}

func TestGetNetworkDoesNotMutateSource(t *testing.T) {
	src := &fakeNetworks{net: rawNetwork()}
	h := newTestNetworkHandler(src)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.GetNetwork(rec, httptest.NewRequest(http.MethodGet, "/api/network", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Len(t, src.net.Stops, 4)
	assert.Len(t, src.net.Routes[0].Shape, 3)
	assert.NotContains(t, src.net.Meta, "filter")
}

func TestGetNetworkGeoJSON(t *testing.T) {
	h := newTestNetworkHandler(&fakeNetworks{net: rawNetwork()})

	rec := httptest.NewRecorder()
	h.GetNetworkGeoJSON(rec, httptest.NewRequest(http.MethodGet, "/api/network.geojson", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var body struct {
		Type     string           `json:"type"`
		Features []map[string]any `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FeatureCollection", body.Type)
	// three stops and one route line
	assert.Len(t, body.Features, 4)
}
