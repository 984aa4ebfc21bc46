package static

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/aston-transit/backend/internal/config"
	"github.com/aston-transit/backend/internal/db"
)

// StatusReport describes the local copy of the feed
type StatusReport struct {
	HasKeys        bool        `json:"has_keys"`
	CacheZipExists bool        `json:"cache_zip_exists"`
	GTFSDirExists  bool        `json:"gtfs_dir_exists"`
	UpdatedAt      string      `json:"updated_at,omitempty"`
	LastRefresh    *db.Refresh `json:"last_refresh,omitempty"`
}

// Status reports whether credentials, the cached zip and the extracted feed
// are present. A failing store only drops last_refresh from the report.
func Status(ctx context.Context, cfg *config.Config, store db.Store) StatusReport {
	report := StatusReport{
		HasKeys:        cfg.HasKeys(),
		CacheZipExists: isFile(cfg.ZipPath()),
		GTFSDirExists:  isDir(cfg.GTFSDir),
	}

	if manifest, err := ReadManifest(cfg.ManifestPath()); err == nil {
		report.UpdatedAt = manifest.UpdatedAt
	}

	if store != nil {
		last, err := store.LastRefresh(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read last GTFS refresh")
		} else {
			report.LastRefresh = last
		}
	}

	return report
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
