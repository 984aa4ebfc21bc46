package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/aston-transit/backend/internal/config"
	"github.com/aston-transit/backend/internal/db"
	"github.com/aston-transit/backend/internal/handlers"
	"github.com/aston-transit/backend/internal/realtime"
	"github.com/aston-transit/backend/internal/static"
)

func main() {
	// Load base .env first, then .env.local (which overrides for local development)
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	cfg.InitializeLogging()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.Open(ctx, cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize refresh log database")
	}
	defer store.Close()

	networks, err := static.NewNetworks(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create network cache")
	}

	// Startup refresh; existing data is used if this fails
	if ran, err := static.RefreshIfStale(ctx, cfg, store); err != nil {
		log.Warn().Err(err).Msg("GTFS refresh failed, continuing with existing data")
	} else if ran {
		networks.Invalidate()
	}

	deps := routerDeps{
		network: handlers.NewNetworkHandler(networks, cfg.Center(), handlers.NetworkQuery{
			BufferMeters:   cfg.DefaultBufferMeters,
			MinStopsInArea: cfg.DefaultMinStopsInArea,
			ClipShapes:     true,
		}),
		gtfs:   handlers.NewGTFSHandler(cfg, store, networks.Invalidate),
		health: handlers.NewHealthHandler(store),
	}
	if cfg.GTFSRTVehiclesURL != "" {
		client := realtime.NewClient(cfg.GTFSRTVehiclesURL, 15*time.Second)
		deps.vehicles = handlers.NewVehicleHandler(client, cfg.Center(), cfg.DefaultBufferMeters)
	}

	// Daily static data freshness check
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				log.Info().Msg("Running daily GTFS freshness check...")
				ran, err := static.RefreshIfStale(ctx, cfg, store)
				if err != nil {
					log.Error().Err(err).Msg("Daily GTFS refresh failed")
				} else if ran {
					networks.Invalidate()
				}
				if _, err := store.PruneRefreshes(ctx, 90*24*time.Hour); err != nil {
					log.Warn().Err(err).Msg("Failed to prune refresh log")
				}
			case <-ctx.Done():
				log.Info().Msg("GTFS refresh loop stopped")
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("gtfs_dir", cfg.GTFSDir).
			Float64("center_lat", cfg.CenterLat).
			Float64("center_lng", cfg.CenterLng).
			Bool("vehicles", deps.vehicles != nil).
			Msg("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Goodbye!")
}
