// Package mapbox reverse-geocodes map clicks through the Mapbox Geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/parade-planner/internal/domain"
	"github.com/couchcryptid/parade-planner/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client. An empty baseURL selects the
// public endpoint; a zero timeout leaves the transport default.
func NewClient(token, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode converts coordinates to an address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Address, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"types":        {"place,locality,neighborhood,address"},
	}

	start := time.Now()
	addr, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		c.logger.Debug("mapbox reverse geocode failed", "lat", lat, "lon", lon, "error", err)
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

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Address{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Address{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.Address{}, fmt.Errorf("decode response: %w", err)
	}

	return mapboxResp.address(), nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	PlaceType []string `json:"place_type"`
	PlaceName string   `json:"place_name"`
	Text      string   `json:"text"`
	Context   []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"context"`
}

// address folds the feature list into the city/town/village shape the
// resolver walks. Features arrive most specific first, and each carries its
// enclosing places in context with ids like "place.123".
func (r response) address() domain.Address {
	if len(r.Features) == 0 {
		return domain.Address{}
	}
	addr := domain.Address{DisplayName: r.Features[0].PlaceName}
	for _, f := range r.Features {
		for _, t := range f.PlaceType {
			assignPlace(&addr, t, f.Text)
		}
		for _, ctxPart := range f.Context {
			kind, _, _ := strings.Cut(ctxPart.ID, ".")
			assignPlace(&addr, kind, ctxPart.Text)
		}
	}
	return addr
}

func assignPlace(addr *domain.Address, kind, text string) {
	switch kind {
	case "place":
		if addr.City == "" {
			addr.City = text
		}
	case "locality":
		if addr.Town == "" {
			addr.Town = text
		}
	case "neighborhood":
		if addr.Village == "" {
			addr.Village = text
		}
	}
}
