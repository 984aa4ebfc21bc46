package static

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aston-transit/backend/internal/config"
	"github.com/aston-transit/backend/internal/db"
	"github.com/aston-transit/backend/internal/gtfs"
)

// MissingCredentialsMessage is shown to API clients when no TfWM keys are configured
const MissingCredentialsMessage = "Missing TFWM_APP_ID/TFWM_APP_KEY in backend/.env"

var (
	// ErrMissingCredentials is returned when TFWM_APP_ID or TFWM_APP_KEY is empty
	ErrMissingCredentials = errors.New("missing TFWM_APP_ID/TFWM_APP_KEY")

	// ErrDownloadFailed wraps any failure fetching the feed archive
	ErrDownloadFailed = errors.New("GTFS download failed")
)

// refreshMu serializes refreshes from the API, the CLI and the daily check
var refreshMu sync.Mutex

// Manifest represents the manifest.json structure
type Manifest struct {
	UpdatedAt string   `json:"updated_at"`
	SourceURL string   `json:"source_url"`
	Files     []string `json:"files"`
}

// Refresh downloads the feed, extracts it into the GTFS directory and
// records the attempt. It returns the extracted .txt file names.
func Refresh(ctx context.Context, cfg *config.Config, store db.Store) ([]string, error) {
	if !cfg.HasKeys() {
		return nil, ErrMissingCredentials
	}

	refreshMu.Lock()
	defer refreshMu.Unlock()

	rec := db.NewRefresh(cfg.TFWMGTFSURL, time.Now())
	files, err := refresh(ctx, cfg)
	if err != nil {
		rec.Fail(err, time.Now())
	} else {
		rec.Succeed(len(files), time.Now())
	}

	if store != nil {
		if recErr := store.RecordRefresh(ctx, rec); recErr != nil {
			log.Warn().Err(recErr).Msg("Failed to record GTFS refresh")
		}
	}

	if err != nil {
		return nil, err
	}

	log.Info().Int("files", len(files)).Str("dir", cfg.GTFSDir).Msg("GTFS refreshed")
	return files, nil
}

func refresh(ctx context.Context, cfg *config.Config) ([]string, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	zipPath := cfg.ZipPath()
	if err := gtfs.DownloadWithAuth(ctx, client, cfg.TFWMGTFSURL, zipPath, cfg.TFWMAppID, cfg.TFWMAppKey); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	if err := gtfs.Extract(zipPath, cfg.GTFSDir); err != nil {
		return nil, err
	}

	files, err := gtfs.ListFeedFiles(cfg.GTFSDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list GTFS files: %w", err)
	}

	manifest := Manifest{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		SourceURL: cfg.TFWMGTFSURL,
		Files:     files,
	}
	if err := writeManifest(cfg.ManifestPath(), manifest); err != nil {
		return nil, err
	}

	return files, nil
}

// RefreshIfStale refreshes when the manifest is missing, unreadable or older
// than the configured number of days. It reports whether a refresh ran.
func RefreshIfStale(ctx context.Context, cfg *config.Config, store db.Store) (bool, error) {
	if !isStaleOrMissing(cfg.ManifestPath(), cfg.GTFSRefreshDays) {
		log.Info().Msg("GTFS data is fresh, skipping refresh")
		return false, nil
	}

	if !cfg.HasKeys() {
		log.Warn().Msg("TfWM API credentials not configured, skipping GTFS refresh")
		return false, nil
	}

	log.Info().Msg("Refreshing GTFS static data...")
	if _, err := Refresh(ctx, cfg, store); err != nil {
		return true, err
	}
	return true, nil
}

// ReadManifest loads the manifest written by the last successful refresh
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &manifest, nil
}

// FeedVersion identifies the data currently in the GTFS directory. Feeds
// placed there by hand, without a manifest, share one version.
func FeedVersion(cfg *config.Config) string {
	manifest, err := ReadManifest(cfg.ManifestPath())
	if err != nil || manifest.UpdatedAt == "" {
		return "local"
	}
	return manifest.UpdatedAt
}

func writeManifest(path string, manifest Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func isStaleOrMissing(manifestPath string, maxAgeDays int) bool {
	manifest, err := ReadManifest(manifestPath)
	if err != nil {
		return true
	}

	updatedAt, err := time.Parse(time.RFC3339, manifest.UpdatedAt)
	if err != nil {
		return true
	}

	maxAge := time.Duration(maxAgeDays) * 24 * time.Hour
	return time.Since(updatedAt) > maxAge
}
