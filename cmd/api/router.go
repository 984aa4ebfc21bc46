package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aston-transit/backend/internal/config"
	"github.com/aston-transit/backend/internal/handlers"
)

type routerDeps struct {
	network  *handlers.NetworkHandler
	gtfs     *handlers.GTFSHandler
	health   *handlers.HealthHandler
	vehicles *handlers.VehicleHandler // nil when no realtime feed is configured
}

func newRouter(cfg *config.Config, deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/api/health", deps.health.GetHealth)
	r.Get("/api/health/ready", deps.health.GetReady)

	r.Get("/api/network", deps.network.GetNetwork)
	r.Get("/api/network.geojson", deps.network.GetNetworkGeoJSON)

	r.Get("/api/gtfs/status", deps.gtfs.GetStatus)
	r.Post("/api/gtfs/refresh", deps.gtfs.PostRefresh)

	if deps.vehicles != nil {
		r.Get("/api/vehicles", deps.vehicles.GetVehicles)
	}

	// Static file serving (if configured)
	if cfg.StaticDir != "" {
		fs := http.FileServer(http.Dir(cfg.StaticDir))
		r.Handle("/*", fs)
	}

	return r
}
