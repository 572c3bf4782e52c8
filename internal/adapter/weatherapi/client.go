// Package weatherapi is the typed client for the remote scoring service. It is
// stateless: no retries, no caching. Every non-2xx answer or transport failure
// surfaces as a *domain.RemoteError.
package weatherapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

// Operation names used in errors, logs and metric labels.
const (
	OpCheck   = "check"
	OpTrends  = "trends"
	OpCompare = "compare"
	OpExport  = "export"
)

// maxErrorBody caps how much of a failed response body ends up in an error.
const maxErrorBody = 512

// Client calls the remote weather service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a client rooted at baseURL (for example
// "http://localhost:8000/api").
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Check scores one location/date/activity.
func (c *Client) Check(ctx context.Context, req domain.CheckRequest) (domain.CheckResult, error) {
	var result domain.CheckResult
	err := c.doJSON(ctx, OpCheck, http.MethodPost, "/check", req, &result)
	return result, err
}

// Trends fetches the climate-trend series for a location. Zero years are left
// for the service to default.
func (c *Client) Trends(ctx context.Context, location string, years domain.YearRange) (domain.TrendResult, error) {
	path := "/trends/" + url.PathEscape(location)
	params := url.Values{}
	if years.Start != 0 {
		params.Set("start_year", strconv.Itoa(years.Start))
	}
	if years.End != 0 {
		params.Set("end_year", strconv.Itoa(years.End))
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var result domain.TrendResult
	err := c.doJSON(ctx, OpTrends, http.MethodGet, path, nil, &result)
	return result, err
}

// Compare scores several locations for the same date and activity. The
// request is validated locally so a short list never reaches the network.
func (c *Client) Compare(ctx context.Context, req domain.CompareRequest) (domain.ComparisonResult, error) {
	req.Locations = domain.CleanLocations(req.Locations)
	if err := req.Validate(); err != nil {
		return domain.ComparisonResult{}, err
	}

	var result domain.ComparisonResult
	if err := c.doJSON(ctx, OpCompare, http.MethodPost, "/compare", req, &result); err != nil {
		return domain.ComparisonResult{}, err
	}
	if len(result.Entries) == 0 {
		return domain.ComparisonResult{}, &domain.RemoteError{Op: OpCompare, Err: errors.New("response contains no locations")}
	}
	if result.BestLocation == "" || !result.Contains(result.BestLocation) {
		derived := domain.BestLocation(result.Entries)
		c.logger.Debug("deriving best location from scores",
			"reported", result.BestLocation,
			"derived", derived,
		)
		result.BestLocation = derived
	}
	return result, nil
}

// Export downloads the check result for req in the requested format.
func (c *Client) Export(ctx context.Context, req domain.CheckRequest, format domain.ExportFormat) (domain.ExportFile, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.ExportFile{}, fmt.Errorf("encode export request: %w", err)
	}

	resp, err := c.do(ctx, OpExport, http.MethodPost, "/export/"+string(format), body)
	if err != nil {
		return domain.ExportFile{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ExportFile{}, c.fail(OpExport, &domain.RemoteError{Op: OpExport, Err: fmt.Errorf("read body: %w", err)})
	}

	c.metrics.RemoteRequests.WithLabelValues(OpExport, "success").Inc()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = format.ContentType()
	}
	return domain.ExportFile{Data: data, ContentType: contentType}, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
	}

	resp, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.fail(op, &domain.RemoteError{Op: op, Err: fmt.Errorf("decode response: %w", err)})
	}
	c.metrics.RemoteRequests.WithLabelValues(op, "success").Inc()
	return nil
}

// do sends the request and returns the response only for 2xx statuses. The
// caller owns the body and records the outcome once it has been read.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RemoteDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.fail(op, &domain.RemoteError{Op: op, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, c.fail(op, &domain.RemoteError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(remoteDetail(msg, resp.Status)),
		})
	}

	return resp, nil
}

func (c *Client) fail(op string, err *domain.RemoteError) error {
	c.metrics.RemoteRequests.WithLabelValues(op, "error").Inc()
	c.logger.Warn("remote weather request failed",
		"op", op,
		"status", err.StatusCode,
		"error", err.Err,
	)
	return err
}

// remoteDetail extracts the service's {"detail": "..."} message when present.
func remoteDetail(body []byte, status string) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return status
}
