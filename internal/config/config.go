package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Geocoder providers.
const (
	GeocoderNominatim = "nominatim"
	GeocoderMapbox    = "mapbox"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Remote weather service.
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	// Reverse geocoding configuration.
	GeocoderProvider  string
	GeocoderURL       string
	GeocoderUserAgent string
	GeocoderTimeout   time.Duration // zero leaves the transport default
	GeocoderCacheSize int           // zero disables the cache
	MapboxToken       string

	// Location picker.
	MapDefaultLat float64
	MapDefaultLng float64

	// Session lifecycle.
	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration

	// Export targets. ExportBucket switches from the local directory to an
	// S3-compatible bucket.
	ExportDir    string
	ExportBucket string
	ExportPrefix string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Region     string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	weatherTimeout, err := parsePositiveDuration("WEATHER_API_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	geocoderTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("GEOCODER_TIMEOUT", "0s"))
	if err != nil || geocoderTimeout < 0 {
		return nil, errors.New("invalid GEOCODER_TIMEOUT")
	}

	idleTTL, err := parsePositiveDuration("SESSION_IDLE_TTL", "30m")
	if err != nil {
		return nil, err
	}
	sweepInterval, err := parsePositiveDuration("SESSION_SWEEP_INTERVAL", "1m")
	if err != nil {
		return nil, err
	}

	mapLat, err := parseFloat("MAP_DEFAULT_LAT", 40)
	if err != nil {
		return nil, err
	}
	mapLng, err := parseFloat("MAP_DEFAULT_LNG", -95)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		WeatherAPIURL:     strings.TrimRight(sharedcfg.EnvOrDefault("WEATHER_API_URL", "http://localhost:8000/api"), "/"),
		WeatherAPITimeout: weatherTimeout,

		GeocoderProvider:  strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER_PROVIDER", GeocoderNominatim)),
		GeocoderURL:       os.Getenv("GEOCODER_URL"),
		GeocoderUserAgent: sharedcfg.EnvOrDefault("GEOCODER_USER_AGENT", "parade-planner/1.0"),
		GeocoderTimeout:   geocoderTimeout,
		GeocoderCacheSize: parseCacheSize(),
		MapboxToken:       os.Getenv("MAPBOX_TOKEN"),

		MapDefaultLat: mapLat,
		MapDefaultLng: mapLng,

		SessionIdleTTL:       idleTTL,
		SessionSweepInterval: sweepInterval,

		ExportDir:    sharedcfg.EnvOrDefault("EXPORT_DIR", "."),
		ExportBucket: os.Getenv("EXPORT_BUCKET"),
		ExportPrefix: os.Getenv("EXPORT_PREFIX"),
		S3Endpoint:   os.Getenv("S3_ENDPOINT"),
		S3AccessKey:  os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:  os.Getenv("S3_SECRET_KEY"),
		S3Region:     sharedcfg.EnvOrDefault("S3_REGION", "auto"),
	}

	if u, err := url.Parse(cfg.WeatherAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("WEATHER_API_URL must be an absolute URL")
	}
	switch cfg.GeocoderProvider {
	case GeocoderNominatim:
	case GeocoderMapbox:
		if cfg.MapboxToken == "" {
			return nil, errors.New("GEOCODER_PROVIDER is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return nil, fmt.Errorf("invalid GEOCODER_PROVIDER %q (allowed: nominatim, mapbox)", cfg.GeocoderProvider)
	}
	if cfg.MapDefaultLat < -90 || cfg.MapDefaultLat > 90 {
		return nil, errors.New("MAP_DEFAULT_LAT must be within [-90, 90]")
	}
	if cfg.MapDefaultLng < -180 || cfg.MapDefaultLng > 180 {
		return nil, errors.New("MAP_DEFAULT_LNG must be within [-180, 180]")
	}
	if cfg.ExportBucket != "" && cfg.S3Endpoint == "" {
		return nil, errors.New("EXPORT_BUCKET is set but S3_ENDPOINT is not")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEOCODER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return 256
}
