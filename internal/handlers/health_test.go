package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestGetHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil).GetHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestGetReady(t *testing.T) {
	tests := []struct {
		name     string
		db       Pinger
		code     int
		database string
	}{
		{"no store", nil, http.StatusOK, "disabled"},
		{"connected", fakePinger{}, http.StatusOK, "connected"},
		{"down", fakePinger{err: errors.New("locked")}, http.StatusServiceUnavailable, "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.db).GetReady(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.database, body["database"])
		})
	}
}
