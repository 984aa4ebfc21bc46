package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/aston-transit/backend/internal/config"
	"github.com/aston-transit/backend/internal/db"
	"github.com/aston-transit/backend/internal/static"
)

// RefreshFunc downloads and extracts the feed, returning the extracted file names
type RefreshFunc func(ctx context.Context) ([]string, error)

// GTFSHandler handles feed status and manual refreshes
type GTFSHandler struct {
	cfg       *config.Config
	store     db.Store
	refresh   RefreshFunc
	onRefresh func()
}

// NewGTFSHandler creates a handler that refreshes with static.Refresh and
// calls onRefresh after every successful refresh
func NewGTFSHandler(cfg *config.Config, store db.Store, onRefresh func()) *GTFSHandler {
	return &GTFSHandler{
		cfg:   cfg,
		store: store,
		refresh: func(ctx context.Context) ([]string, error) {
			return static.Refresh(ctx, cfg, store)
		},
		onRefresh: onRefresh,
	}
}

// RefreshResponse is the JSON response for a successful POST /api/gtfs/refresh
type RefreshResponse struct {
	OK    bool     `json:"ok"`
	Files []string `json:"files"`
}

// RefreshErrorResponse is returned when a refresh could not run or failed
type RefreshErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// GetStatus handles GET /api/gtfs/status
func (h *GTFSHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, static.Status(r.Context(), h.cfg, h.store))
}

// PostRefresh handles POST /api/gtfs/refresh
// Missing credentials are reported with ok=false rather than an error status
func (h *GTFSHandler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	files, err := h.refresh(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, static.ErrMissingCredentials):
			writeJSON(w, http.StatusOK, RefreshErrorResponse{Error: static.MissingCredentialsMessage})
		case errors.Is(err, static.ErrDownloadFailed):
			log.Error().Err(err).Msg("GTFS refresh failed")
			writeJSON(w, http.StatusBadGateway, RefreshErrorResponse{Error: err.Error()})
		default:
			log.Error().Err(err).Msg("GTFS refresh failed")
			writeJSON(w, http.StatusInternalServerError, RefreshErrorResponse{Error: err.Error()})
		}
		return
	}

	if h.onRefresh != nil {
		h.onRefresh()
	}

	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, RefreshResponse{OK: true, Files: files})
}
