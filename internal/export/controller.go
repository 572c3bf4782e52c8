// Package export downloads the last submitted check in CSV or JSON form and
// hands the bytes to a Saver. It never touches session state: a failed export
// is logged and returned, nothing else.
package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/parade-planner/internal/domain"
	"github.com/couchcryptid/parade-planner/internal/observability"
)

// Client fetches an export file from the remote weather service.
type Client interface {
	Export(ctx context.Context, req domain.CheckRequest, format domain.ExportFormat) (domain.ExportFile, error)
}

// RequestSource supplies the last submitted check request, or nil.
type RequestSource interface {
	LastRequest() *domain.CheckRequest
}

// Saver delivers an exported file to its destination.
type Saver interface {
	Save(ctx context.Context, name, contentType string, data []byte) error
}

// Controller runs export actions for one request source.
type Controller struct {
	client  Client
	source  RequestSource
	saver   Saver
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewController creates an export controller.
func NewController(client Client, source RequestSource, saver Saver, metrics *observability.Metrics, logger *slog.Logger) *Controller {
	return &Controller{
		client:  client,
		source:  source,
		saver:   saver,
		metrics: metrics,
		logger:  logger,
	}
}

// ExportCSV saves the last request's result as CSV.
func (c *Controller) ExportCSV(ctx context.Context) (string, error) {
	return c.Export(ctx, domain.FormatCSV)
}

// ExportJSON saves the last request's result as JSON.
func (c *Controller) ExportJSON(ctx context.Context) (string, error) {
	return c.Export(ctx, domain.FormatJSON)
}

// Export saves the last request's result in format and returns the file name.
// Without a last request it does nothing and returns "".
func (c *Controller) Export(ctx context.Context, format domain.ExportFormat) (string, error) {
	req := c.source.LastRequest()
	if req == nil {
		c.metrics.Exports.WithLabelValues(string(format), "skipped").Inc()
		return "", nil
	}

	file, err := c.client.Export(ctx, *req, format)
	if err != nil {
		return "", c.fail(format, "fetch export", err)
	}

	name := domain.ExportFilename(*req, format)
	if err := c.saver.Save(ctx, name, file.ContentType, file.Data); err != nil {
		return "", c.fail(format, "save export "+name, err)
	}

	c.metrics.Exports.WithLabelValues(string(format), "success").Inc()
	c.logger.Info("export saved", "file", name, "bytes", len(file.Data))
	return name, nil
}

func (c *Controller) fail(format domain.ExportFormat, step string, err error) error {
	c.metrics.Exports.WithLabelValues(string(format), "error").Inc()
	c.logger.Error("export failed", "format", format, "step", step, "error", err)
	return fmt.Errorf("%s: %w", step, err)
}
