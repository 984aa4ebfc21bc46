package network

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{`"43000"`, "43000"},
		{`43000`, "43000"},
		{`4.5`, "4.5"},
		{`null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var id ID
			require.NoError(t, json.Unmarshal([]byte(tt.in), &id))
			assert.Equal(t, tt.want, id)
		})
	}

	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{"a": 1}`), &id))
}

func TestRoutePreservesAttributes(t *testing.T) {
	in := `{"id": 9, "stopIds": [1, "2"], "shape": [[52.1, -1.9], ["x", 1]], "shortName": "8A", "type": 3}`

	var r Route
	require.NoError(t, json.Unmarshal([]byte(in), &r))

	assert.Equal(t, ID("9"), r.ID)
	assert.Equal(t, []ID{"1", "2"}, r.StopIDs)
	assert.Len(t, r.Shape, 2)
	assert.Equal(t, map[string]any{"shortName": "8A", "type": float64(3)}, r.Attrs)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "9", "stopIds": ["1", "2"], "shape": [[52.1, -1.9], ["x", 1]], "shortName": "8A", "type": 3}`, string(out))
}

func TestRouteWithoutStopIDsEncodesEmptyList(t *testing.T) {
	out, err := json.Marshal(Route{ID: "r"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "r", "stopIds": []}`, string(out))
}

func TestStopRoundTrip(t *testing.T) {
	in := `{"id": "s1", "name": "Aston Cross", "lat": "abc", "lng": -1.88, "code": "43001"}`

	var s Stop
	require.NoError(t, json.Unmarshal([]byte(in), &s))
	assert.Equal(t, "abc", s.Lat)
	_, ok := s.Point()
	assert.False(t, ok)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestNetworkKeepsUnknownTopLevelKeys(t *testing.T) {
	in := `{"stops": [], "routes": [], "meta": {"a": 1}, "generator": "v2"}`

	var n Network
	require.NoError(t, json.Unmarshal([]byte(in), &n))
	assert.Equal(t, "v2", n.Extra["generator"])

	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}
