package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeJSON encodes v before the status line is written; a value that
// cannot be encoded is answered with a 500.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		body, _ = json.Marshal(ErrorResponse{
			Error:   "Failed to encode response",
			Details: map[string]interface{}{"internal": err.Error()},
		})
		status = http.StatusInternalServerError
		w.Header().Set("Content-Type", "application/json")
		w.Header().Del("Cache-Control")
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]interface{}) {
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
