package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/parade-planner/internal/adapter/http"
	"github.com/couchcryptid/parade-planner/internal/domain"
	"github.com/couchcryptid/parade-planner/internal/observability"
	"github.com/couchcryptid/parade-planner/internal/picker"
	"github.com/couchcryptid/parade-planner/internal/session"
)

// --- fakes ---

type fakeWeather struct {
	checkErr    error
	exportErr   error
	exportCalls atomic.Int32
}

func (f *fakeWeather) Check(_ context.Context, req domain.CheckRequest) (domain.CheckResult, error) {
	if f.checkErr != nil {
		return domain.CheckResult{}, f.checkErr
	}
	return domain.CheckResult{Score: 5, Classification: "Excellent", Justification: req.Location}, nil
}

func (f *fakeWeather) Trends(context.Context, string, domain.YearRange) (domain.TrendResult, error) {
	return domain.TrendResult{Direction: "stable"}, nil
}

func (f *fakeWeather) Compare(_ context.Context, req domain.CompareRequest) (domain.ComparisonResult, error) {
	entries := make([]domain.LocationScore, len(req.Locations))
	for i, loc := range req.Locations {
		entries[i] = domain.LocationScore{Location: loc, Score: 5 - i}
	}
	return domain.ComparisonResult{BestLocation: req.Locations[0], Entries: entries}, nil
}

func (f *fakeWeather) Export(_ context.Context, _ domain.CheckRequest, format domain.ExportFormat) (domain.ExportFile, error) {
	f.exportCalls.Add(1)
	if f.exportErr != nil {
		return domain.ExportFile{}, f.exportErr
	}
	return domain.ExportFile{Data: []byte("metric,value\n"), ContentType: format.ContentType()}, nil
}

type namedResolver struct{}

func (namedResolver) Resolve(_ context.Context, lat, lng float64) string {
	return domain.CoordinateName(lat, lng)
}

// --- harness ---

type harness struct {
	t       *testing.T
	srv     *httpadapter.Server
	weather *fakeWeather
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	weather := &fakeWeather{}
	registry := session.NewRegistry(func(id string) *session.Session {
		p := picker.New(namedResolver{}, domain.LatLng{Lat: 40, Lng: -95}, metrics, logger)
		return session.New(id, weather, metrics, logger, session.WithPicker(p))
	}, nil, metrics, logger)

	api := httpadapter.NewSessionAPI(registry, weather, metrics, logger)
	return &harness{
		t:       t,
		srv:     httpadapter.NewServer(":0", registry, api, logger),
		weather: weather,
	}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(b)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

type view struct {
	ID    string `json:"id"`
	State struct {
		Version     uint64               `json:"version"`
		LastRequest *domain.CheckRequest `json:"last_request"`
		Loading     bool                 `json:"loading"`
		Error       *session.StateError  `json:"error"`
		Check       *domain.CheckResult  `json:"check"`
		ActiveTab   string               `json:"active_tab"`
		Comparison  struct {
			Ran    bool                     `json:"ran"`
			Result *domain.ComparisonResult `json:"result"`
		} `json:"comparison"`
	} `json:"state"`
	Panel                 string   `json:"panel"`
	Tabs                  []string `json:"tabs"`
	ShowComparisonResults bool     `json:"show_comparison_results"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (h *harness) createSession() string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/sessions", nil)
	require.Equal(h.t, http.StatusCreated, rec.Code)
	v := decode[view](h.t, rec)
	require.NotEmpty(h.t, v.ID)
	assert.Equal(h.t, "empty", v.Panel)
	return v.ID
}

var checkBody = map[string]string{"location": "Paris", "date": "2025-07-04", "activity": "Hiking"}

// --- tests ---

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/sessions/"+id, nil).Code)
}

func TestCheck_Success(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()

	rec := h.do(http.MethodPost, "/sessions/"+id+"/check", checkBody)
	require.Equal(t, http.StatusOK, rec.Code)

	v := decode[view](t, rec)
	assert.Equal(t, "dashboard", v.Panel)
	assert.Equal(t, []string{"dashboard", "trends", "compare"}, v.Tabs)
	require.NotNil(t, v.State.Check)
	assert.Equal(t, 5, v.State.Check.Score)
	assert.Equal(t, "Paris", v.State.LastRequest.Location)
}

func TestCheck_ValidationIs422(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()

	rec := h.do(http.MethodPost, "/sessions/"+id+"/check",
		map[string]string{"location": "Paris", "date": "2024-01-01", "activity": "Hiking"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "date", decode[map[string]string](t, rec)["field"])
}

func TestCheck_RemoteFailureReturnsState(t *testing.T) {
	h := newHarness(t)
	h.weather.checkErr = &domain.RemoteError{Op: "check", StatusCode: 503, Err: errors.New("down")}
	id := h.createSession()

	rec := h.do(http.MethodPost, "/sessions/"+id+"/check", checkBody)
	require.Equal(t, http.StatusOK, rec.Code)

	v := decode[view](t, rec)
	assert.Equal(t, "error", v.Panel)
	require.NotNil(t, v.State.Error)
	assert.Equal(t, session.FetchFailedMessage, v.State.Error.Message)
	assert.Nil(t, v.State.Check)
}

func TestCheck_UsesPickerTextWhenLocationOmitted(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()

	require.Equal(t, http.StatusOK, h.do(http.MethodPut, "/sessions/"+id+"/picker/text", map[string]string{"text": "Lisbon"}).Code)
	rec := h.do(http.MethodPost, "/sessions/"+id+"/check", map[string]string{"date": "2025-07-04", "activity": "Cycling"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lisbon", decode[view](t, rec).State.LastRequest.Location)
}

func TestTab(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/sessions/"+id+"/check", checkBody).Code)

	rec := h.do(http.MethodPut, "/sessions/"+id+"/tab", map[string]string{"tab": "trends"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trends", decode[view](t, rec).Panel)

	rec = h.do(http.MethodPut, "/sessions/"+id+"/tab", map[string]string{"tab": "weather"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCompare(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/sessions/"+id+"/check", checkBody).Code)

	rec := h.do(http.MethodPost, "/sessions/"+id+"/compare", map[string][]string{"locations": {"NYC", "", ""}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(http.MethodPost, "/sessions/"+id+"/compare", map[string][]string{"locations": {"Oslo", "Rome", ""}})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[view](t, rec)
	assert.True(t, v.ShowComparisonResults)
	require.NotNil(t, v.State.Comparison.Result)
	assert.Equal(t, "Oslo", v.State.Comparison.Result.BestLocation)
}

func TestExport_Download(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/sessions/"+id+"/check", checkBody).Code)

	rec := h.do(http.MethodPost, "/sessions/"+id+"/export/csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="weather_Paris_2025-07-04.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "metric,value\n", rec.Body.String())
}

func TestExport_NoRequestYet(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()

	rec := h.do(http.MethodPost, "/sessions/"+id+"/export/json", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, h.weather.exportCalls.Load())
}

func TestExport_FailureLeavesStateAlone(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/sessions/"+id+"/check", checkBody).Code)
	before := decode[view](t, h.do(http.MethodGet, "/sessions/"+id, nil))

	h.weather.exportErr = &domain.RemoteError{Op: "export", StatusCode: 500, Err: errors.New("boom")}
	rec := h.do(http.MethodPost, "/sessions/"+id+"/export/json", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	after := decode[view](t, h.do(http.MethodGet, "/sessions/"+id, nil))
	assert.Equal(t, before.State.Version, after.State.Version)
	assert.Nil(t, after.State.Error)
}

func TestExport_UnknownFormat(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodPost, "/sessions/"+id+"/export/xml", nil).Code)
}

func TestPickerFlow(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()
	base := "/sessions/" + id + "/picker"

	// Clicking before entering picking mode is rejected.
	rec := h.do(http.MethodPost, base+"/click", map[string]float64{"lat": 48.8566, "lng": 2.3522})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, base+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "picking", decode[map[string]any](t, rec)["mode"])

	rec = h.do(http.MethodPost, base+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "nothing to confirm yet")

	rec = h.do(http.MethodPost, base+"/click", map[string]float64{"lat": 48.8566, "lng": 2.3522})
	require.Equal(t, http.StatusOK, rec.Code)
	click := decode[map[string]any](t, rec)
	assert.Equal(t, true, click["applied"])
	assert.Equal(t, true, click["can_confirm"])

	rec = h.do(http.MethodPost, base+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	confirmed := decode[map[string]any](t, rec)
	assert.Equal(t, "idle", confirmed["mode"])
	assert.Equal(t, "48.8566, 2.3522", confirmed["text"])
}

func TestPickerClick_ValidatesCoordinates(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()
	base := "/sessions/" + id + "/picker"
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/toggle", nil).Code)

	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodPost, base+"/click", map[string]float64{"lat": 95, "lng": 0}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodPost, base+"/click", map[string]float64{"lng": 0}).Code)

	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, base+"/click", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPickerLocate(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()
	base := "/sessions/" + id + "/picker"

	rec := h.do(http.MethodPost, base+"/locate", map[string]string{"error": "User denied Geolocation"})
	require.Equal(t, http.StatusOK, rec.Code)
	center := decode[map[string]any](t, rec)["center"].(map[string]any)
	assert.Equal(t, 40.0, center["lat"])
	assert.Equal(t, -95.0, center["lng"])

	rec = h.do(http.MethodPost, base+"/locate", map[string]float64{"lat": 51.5, "lng": -0.12})
	require.Equal(t, http.StatusOK, rec.Code)
	center = decode[map[string]any](t, rec)["center"].(map[string]any)
	assert.Equal(t, 51.5, center["lat"])
}

func TestUnknownSessionIs404(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/sessions/nope/check", checkBody).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/sessions/nope/picker", nil).Code)
}

// --- event stream ---

type stateEvent struct {
	id   uint64
	view view
}

func readEvent(t *testing.T, r *bufio.Reader) stateEvent {
	t.Helper()
	var ev stateEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return ev
		case strings.HasPrefix(line, "id: "):
			id, err := strconv.ParseUint(strings.TrimPrefix(line, "id: "), 10, 64)
			require.NoError(t, err)
			ev.id = id
		case strings.HasPrefix(line, "event: "):
			assert.Equal(t, "event: state", line)
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.view))
		}
	}
}

func (h *harness) openEvents(id string) (*bufio.Reader, *http.Response) {
	h.t.Helper()
	ts := httptest.NewServer(h.srv)
	h.t.Cleanup(ts.Close)
	ctx, cancel := context.WithCancel(context.Background())
	h.t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sessions/"+id+"/events", nil)
	require.NoError(h.t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { resp.Body.Close() })
	return bufio.NewReader(resp.Body), resp
}

func TestEvents_StreamsStateChanges(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()

	r, resp := h.openEvents(id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	first := readEvent(t, r)
	assert.Equal(t, uint64(0), first.id)
	assert.Equal(t, id, first.view.ID)
	assert.Equal(t, "empty", first.view.Panel)

	require.Equal(t, http.StatusOK, h.do(http.MethodPut, "/sessions/"+id+"/tab", map[string]string{"tab": "trends"}).Code)
	ev := readEvent(t, r)
	assert.Equal(t, uint64(1), ev.id)
	assert.Equal(t, "trends", ev.view.State.ActiveTab)

	// A submission commits twice (loading, then results); the stream may
	// skip the first but never goes backwards.
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/sessions/"+id+"/check", checkBody).Code)
	last := ev.id
	for {
		ev = readEvent(t, r)
		require.Greater(t, ev.id, last)
		last = ev.id
		if !ev.view.State.Loading {
			break
		}
	}
	assert.Equal(t, uint64(3), ev.id)
	require.NotNil(t, ev.view.State.Check)
	assert.Equal(t, "dashboard", ev.view.Panel)
}

func TestEvents_ClosedOnShutdown(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()

	r, _ := h.openEvents(id)
	readEvent(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.srv.Shutdown(ctx))

	_, err := io.ReadAll(r)
	assert.NoError(t, err, "the stream ends cleanly")
}

func TestEvents_UnknownSession(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/sessions/missing/events", nil).Code)
}
