package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Resolver produces a display name for a coordinate pair and never fails.
type Resolver struct {
	geocoder Geocoder
	logger   *slog.Logger
}

// NewResolver creates a Resolver. A nil geocoder always yields the coordinate
// fallback.
func NewResolver(geocoder Geocoder, logger *slog.Logger) *Resolver {
	return &Resolver{geocoder: geocoder, logger: logger}
}

// Resolve returns the best available place name for (lat, lng).
func (r *Resolver) Resolve(ctx context.Context, lat, lng float64) string {
	return ResolvePlaceName(ctx, r.geocoder, lat, lng, r.logger)
}

// ResolvePlaceName walks city → town → village → first display-name segment
// and falls back to the formatted coordinates when all are empty or the
// geocoder fails.
func ResolvePlaceName(ctx context.Context, geocoder Geocoder, lat, lng float64, logger *slog.Logger) string {
	if geocoder == nil {
		return CoordinateName(lat, lng)
	}

	addr, err := geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		logger.Warn("reverse geocoding failed, using coordinates",
			"lat", lat,
			"lng", lng,
			"error", err,
		)
		return CoordinateName(lat, lng)
	}

	for _, candidate := range []string{addr.City, addr.Town, addr.Village, firstSegment(addr.DisplayName)} {
		if name := strings.TrimSpace(candidate); name != "" {
			return name
		}
	}
	return CoordinateName(lat, lng)
}

// CoordinateName formats a coordinate pair to four decimal places.
func CoordinateName(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}

func firstSegment(displayName string) string {
	first, _, _ := strings.Cut(displayName, ",")
	return first
}
