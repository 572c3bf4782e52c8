// Package nominatim reverse-geocodes map clicks through an OpenStreetMap
// Nominatim server.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/parade-planner/internal/domain"
	"github.com/couchcryptid/parade-planner/internal/observability"
)

// DefaultBaseURL is the public OpenStreetMap instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Client implements domain.Geocoder against the Nominatim reverse endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. Nominatim's usage policy requires an
// identifying User-Agent on every request.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// ReverseGeocode looks up the address nearest to the coordinates.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Address, error) {
	params := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(lon, 'f', -1, 64)},
		"format": {"json"},
	}

	start := time.Now()
	addr, err := c.doRequest(ctx, c.baseURL+"/reverse?"+params.Encode())
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		c.logger.Debug("nominatim reverse geocode failed", "lat", lat, "lon", lon, "error", err)
	case addr == (domain.Address{}):
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	return addr, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Address{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Address{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Address{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return domain.Address{}, fmt.Errorf("decode response: %w", err)
	}
	if r.Error != "" {
		c.logger.Debug("nominatim returned no address", "reason", r.Error)
	}

	return domain.Address{
		City:        r.Address.City,
		Town:        r.Address.Town,
		Village:     r.Address.Village,
		DisplayName: r.DisplayName,
	}, nil
}

// Nominatim API response types. Points in open water come back with an
// "error" field and no address.

type response struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
	} `json:"address"`
	Error string `json:"error"`
}
