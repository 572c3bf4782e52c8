// Package geoprovider builds the reverse-geocoding client named by
// GEOCODER_PROVIDER.
package geoprovider

import (
	"log/slog"

	"github.com/couchcryptid/parade-planner/internal/adapter/mapbox"
	"github.com/couchcryptid/parade-planner/internal/adapter/nominatim"
	"github.com/couchcryptid/parade-planner/internal/config"
	"github.com/couchcryptid/parade-planner/internal/domain"
	"github.com/couchcryptid/parade-planner/internal/observability"
)

// New returns the configured provider client. The client keeps no answers
// between calls, so one instance can back every session.
func New(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) domain.Geocoder {
	logger.Info("reverse geocoding configured",
		"provider", cfg.GeocoderProvider,
		"cache_size", cfg.GeocoderCacheSize,
		"timeout", cfg.GeocoderTimeout,
	)
	switch cfg.GeocoderProvider {
	case config.GeocoderMapbox:
		return mapbox.NewClient(cfg.MapboxToken, cfg.GeocoderURL, cfg.GeocoderTimeout, metrics, logger)
	default:
		return nominatim.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, metrics, logger)
	}
}
