package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/aston-transit/backend/internal/config"
	"github.com/aston-transit/backend/internal/db"
	"github.com/aston-transit/backend/internal/network"
	"github.com/aston-transit/backend/internal/static"
)

type options struct {
	force   bool
	status  bool
	geojson string
	buffer  float64
}

func main() {
	// Command line flags
	force := flag.Bool("force", false, "Download the feed even if the local copy is fresh")
	status := flag.Bool("status", false, "Print the local feed status as JSON and exit")
	geojson := flag.String("geojson", "", "If set, write the filtered network around the configured center to this file")
	buffer := flag.Float64("buffer", 0, "Radius in meters for -geojson (defaults to DEFAULT_BUFFER_METERS)")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	cfg.InitializeLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open refresh log database")
	}
	defer store.Close()

	opts := options{force: *force, status: *status, geojson: *geojson, buffer: *buffer}
	if err := run(ctx, cfg, store, opts, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("GTFS refresh failed")
	}
}

func run(ctx context.Context, cfg *config.Config, store db.Store, opts options, out io.Writer) error {
	if opts.status {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(static.Status(ctx, cfg, store))
	}

	if opts.force {
		files, err := static.Refresh(ctx, cfg, store)
		if err != nil {
			return err
		}
		log.Info().Strs("files", files).Msg("Refresh complete")
	} else {
		ran, err := static.RefreshIfStale(ctx, cfg, store)
		if err != nil {
			return err
		}
		if !ran {
			log.Info().Str("manifest", cfg.ManifestPath()).Msg("Local feed is fresh, nothing to do")
		}
	}

	if opts.geojson != "" {
		buffer := opts.buffer
		if buffer <= 0 {
			buffer = cfg.DefaultBufferMeters
		}
		if err := exportGeoJSON(cfg, buffer, opts.geojson); err != nil {
			return err
		}
	}

	return nil
}

func exportGeoJSON(cfg *config.Config, bufferMeters float64, path string) error {
	networks, err := static.NewNetworks(cfg)
	if err != nil {
		return err
	}
	raw, err := networks.Load(bufferMeters)
	if err != nil {
		return err
	}

	filtered := network.FilterByRadius(raw, cfg.Center(), bufferMeters,
		network.WithMinStopsInArea(cfg.DefaultMinStopsInArea),
		network.WithClipShapes(true),
	)

	body, err := json.Marshal(network.ToGeoJSON(filtered))
	if err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("failed to write GeoJSON: %w", err)
	}

	log.Info().
		Str("path", path).
		Int("stops", len(filtered.Stops)).
		Int("routes", len(filtered.Routes)).
		Msg("GeoJSON written")
	return nil
}
