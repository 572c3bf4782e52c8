package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/parade-planner/internal/domain"
	"github.com/couchcryptid/parade-planner/internal/observability"
)

// --- fakes ---

type staticSource struct{ req *domain.CheckRequest }

func (s staticSource) LastRequest() *domain.CheckRequest { return s.req }

type fakeClient struct {
	calls  int
	format domain.ExportFormat
	file   domain.ExportFile
	err    error
}

func (f *fakeClient) Export(_ context.Context, _ domain.CheckRequest, format domain.ExportFormat) (domain.ExportFile, error) {
	f.calls++
	f.format = format
	return f.file, f.err
}

type memorySaver struct {
	name        string
	contentType string
	data        []byte
	err         error
}

func (m *memorySaver) Save(_ context.Context, name, contentType string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.name, m.contentType, m.data = name, contentType, data
	return nil
}

func newTestController(client Client, source RequestSource, saver Saver) *Controller {
	return NewController(client, source, saver, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var paris = &domain.CheckRequest{Location: "Paris", Date: "2025-07-04", Activity: "Hiking"}

// --- tests ---

func TestController_ExportCSV(t *testing.T) {
	client := &fakeClient{file: domain.ExportFile{Data: []byte("a,b\n"), ContentType: "text/csv"}}
	saver := &memorySaver{}
	c := newTestController(client, staticSource{req: paris}, saver)

	name, err := c.ExportCSV(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "weather_Paris_2025-07-04.csv", name)
	assert.Equal(t, domain.FormatCSV, client.format)
	assert.Equal(t, name, saver.name)
	assert.Equal(t, "text/csv", saver.contentType)
	assert.Equal(t, []byte("a,b\n"), saver.data)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.Exports.WithLabelValues("csv", "success")))
}

func TestController_ExportJSON_SanitisesName(t *testing.T) {
	client := &fakeClient{file: domain.ExportFile{Data: []byte(`{}`), ContentType: "application/json"}}
	saver := &memorySaver{}
	req := &domain.CheckRequest{Location: "New York, NY", Date: "2025-07-04", Activity: "Picnic"}
	c := newTestController(client, staticSource{req: req}, saver)

	name, err := c.ExportJSON(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "weather_New_York_NY_2025-07-04.json", name)
}

func TestController_NoLastRequestIsNoop(t *testing.T) {
	client := &fakeClient{}
	saver := &memorySaver{}
	c := newTestController(client, staticSource{}, saver)

	name, err := c.ExportCSV(context.Background())
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Zero(t, client.calls)
	assert.Empty(t, saver.name)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.Exports.WithLabelValues("csv", "skipped")))
}

func TestController_RemoteFailure(t *testing.T) {
	remote := &domain.RemoteError{Op: "export", StatusCode: 500, Err: errors.New("boom")}
	saver := &memorySaver{}
	c := newTestController(&fakeClient{err: remote}, staticSource{req: paris}, saver)

	_, err := c.ExportJSON(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsRemote(err))
	assert.Empty(t, saver.name, "nothing is saved after a failed download")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.Exports.WithLabelValues("json", "error")))
}

func TestController_SaveFailure(t *testing.T) {
	client := &fakeClient{file: domain.ExportFile{Data: []byte("x")}}
	c := newTestController(client, staticSource{req: paris}, &memorySaver{err: errors.New("disk full")})

	_, err := c.ExportCSV(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
