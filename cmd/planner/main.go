package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/parade-planner/internal/adapter/geocache"
	"github.com/couchcryptid/parade-planner/internal/adapter/geoprovider"
	httpadapter "github.com/couchcryptid/parade-planner/internal/adapter/http"
	"github.com/couchcryptid/parade-planner/internal/adapter/weatherapi"
	"github.com/couchcryptid/parade-planner/internal/config"
	"github.com/couchcryptid/parade-planner/internal/domain"
	"github.com/couchcryptid/parade-planner/internal/observability"
	"github.com/couchcryptid/parade-planner/internal/picker"
	"github.com/couchcryptid/parade-planner/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	geocoder := geoprovider.New(cfg, metrics, logger.With("component", "geocode"))
	weather := weatherapi.NewClient(cfg.WeatherAPIURL, cfg.WeatherAPITimeout, metrics, logger.With("component", "weatherapi"))

	registry := session.NewRegistry(newSessionFactory(cfg, geocoder, weather, metrics, logger), nil, metrics, logger)

	reaper := session.NewReaper(registry, cfg.SessionIdleTTL, cfg.SessionSweepInterval, logger)
	if err := reaper.Start(); err != nil {
		logger.Error("failed to start session reaper", "error", err)
		os.Exit(1)
	}

	api := httpadapter.NewSessionAPI(registry, weather, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, registry, api, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	registry.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	reaper.Stop()

	logger.Info("shutdown complete")
}

// newSessionFactory builds each session with its own picker and geocode
// cache, so lookups are never answered from another session's clicks.
func newSessionFactory(cfg *config.Config, geocoder domain.Geocoder, weather session.WeatherClient, metrics *observability.Metrics, logger *slog.Logger) session.Factory {
	center := domain.LatLng{Lat: cfg.MapDefaultLat, Lng: cfg.MapDefaultLng}
	return func(id string) *session.Session {
		cached := geocache.Wrap(geocoder, cfg.GeocoderCacheSize, metrics)
		resolver := domain.NewResolver(cached, logger.With("component", "geocode", "session", id))
		p := picker.New(resolver, center, metrics, logger.With("component", "picker", "session", id))
		return session.New(id, weather, metrics, logger, session.WithPicker(p))
	}
}
