package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/parade-planner/internal/domain"
	"github.com/couchcryptid/parade-planner/internal/export"
	"github.com/couchcryptid/parade-planner/internal/observability"
	"github.com/couchcryptid/parade-planner/internal/picker"
	"github.com/couchcryptid/parade-planner/internal/session"
)

const maxBodyBytes = 64 << 10

var bodyValidator = validator.New()

// SessionAPI serves the per-visit session routes.
type SessionAPI struct {
	registry *session.Registry
	exporter export.Client
	metrics  *observability.Metrics
	logger   *slog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewSessionAPI creates the session routes. exporter fetches download files
// from the remote service.
func NewSessionAPI(registry *session.Registry, exporter export.Client, metrics *observability.Metrics, logger *slog.Logger) *SessionAPI {
	return &SessionAPI{
		registry: registry,
		exporter: exporter,
		metrics:  metrics,
		logger:   logger.With("component", "http.sessions"),
		closing:  make(chan struct{}),
	}
}

// closeStreams ends every open event stream so server shutdown is not held
// up by long-lived subscribers.
func (a *SessionAPI) closeStreams() {
	a.closeOnce.Do(func() { close(a.closing) })
}

func (a *SessionAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions", a.handleCreate)
	mux.HandleFunc("GET /sessions/{id}", a.withSession(a.handleGet))
	mux.HandleFunc("DELETE /sessions/{id}", a.handleDelete)
	mux.HandleFunc("GET /sessions/{id}/events", a.withSession(a.handleEvents))
	mux.HandleFunc("POST /sessions/{id}/check", a.withSession(a.handleCheck))
	mux.HandleFunc("PUT /sessions/{id}/tab", a.withSession(a.handleTab))
	mux.HandleFunc("POST /sessions/{id}/compare", a.withSession(a.handleCompare))
	mux.HandleFunc("POST /sessions/{id}/export/{format}", a.withSession(a.handleExport))

	mux.HandleFunc("GET /sessions/{id}/picker", a.withPicker(a.handlePickerGet))
	mux.HandleFunc("PUT /sessions/{id}/picker/text", a.withPicker(a.handlePickerText))
	mux.HandleFunc("POST /sessions/{id}/picker/toggle", a.withPicker(a.handlePickerToggle))
	mux.HandleFunc("POST /sessions/{id}/picker/click", a.withPicker(a.handlePickerClick))
	mux.HandleFunc("POST /sessions/{id}/picker/confirm", a.withPicker(a.handlePickerConfirm))
	mux.HandleFunc("POST /sessions/{id}/picker/cancel", a.withPicker(a.handlePickerCancel))
	mux.HandleFunc("POST /sessions/{id}/picker/locate", a.withPicker(a.handlePickerLocate))
}

// stateView is the JSON shape of a session snapshot plus the derived view.
type stateView struct {
	ID                    string        `json:"id"`
	State                 session.State `json:"state"`
	Panel                 session.Panel `json:"panel"`
	Tabs                  []session.Tab `json:"tabs"`
	ShowComparisonResults bool          `json:"show_comparison_results"`
}

func viewOf(id string, st session.State) stateView {
	return stateView{
		ID:                    id,
		State:                 st,
		Panel:                 session.VisiblePanel(st),
		Tabs:                  session.AvailableTabs(st),
		ShowComparisonResults: session.ShowComparisonResults(st),
	}
}

type pickerView struct {
	picker.Snapshot
	CanConfirm bool `json:"can_confirm"`
}

func pickerViewOf(s picker.Snapshot) pickerView {
	return pickerView{Snapshot: s, CanConfirm: s.CanConfirm()}
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

func (a *SessionAPI) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := a.registry.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h(w, r, sess)
	}
}

type pickerHandler func(w http.ResponseWriter, r *http.Request, p *picker.Picker)

func (a *SessionAPI) withPicker(h pickerHandler) http.HandlerFunc {
	return a.withSession(func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		p := sess.Picker()
		if p == nil {
			writeError(w, http.StatusNotFound, errors.New("session has no location picker"))
			return
		}
		h(w, r, p)
	})
}

func (a *SessionAPI) handleCreate(w http.ResponseWriter, _ *http.Request) {
	sess := a.registry.Create()
	sharedobs.WriteJSON(w, http.StatusCreated, viewOf(sess.ID(), sess.State()))
}

func (a *SessionAPI) handleGet(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	sharedobs.WriteJSON(w, http.StatusOK, viewOf(sess.ID(), sess.State()))
}

func (a *SessionAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.registry.Delete(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams the session state as server-sent events: the current
// snapshot first, then one event per change the subscription observes.
// Versions only increase; a slow reader sees the newest state and skips the
// ones in between.
func (a *SessionAPI) handleEvents(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	rc := http.NewResponseController(w)

	updates := make(chan session.State, 1)
	unsubscribe := sess.Subscribe(func(st session.State) {
		// Keep only the newest pending snapshot. Subscriber calls are
		// serialised, so this is the only sender.
		select {
		case <-updates:
		default:
		}
		updates <- st
	})
	defer unsubscribe()

	// The stream lives longer than the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		a.logger.Debug("clear write deadline", "session", sess.ID(), "error", err)
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	last := sess.State()
	if err := a.writeEvent(w, rc, sess.ID(), last); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-a.closing:
			return
		case st := <-updates:
			if st.Version <= last.Version {
				continue
			}
			last = st
			if err := a.writeEvent(w, rc, sess.ID(), st); err != nil {
				return
			}
		}
	}
}

func (a *SessionAPI) writeEvent(w http.ResponseWriter, rc *http.ResponseController, id string, st session.State) error {
	data, err := json.Marshal(viewOf(id, st))
	if err != nil {
		a.logger.Error("encode state event", "session", id, "error", err)
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", st.Version, data); err != nil {
		return err
	}
	return rc.Flush()
}

type checkBody struct {
	Location string `json:"location"`
	Date     string `json:"date"`
	Activity string `json:"activity"`
}

func (a *SessionAPI) handleCheck(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var body checkBody
	if !decodeBody(w, r, &body) {
		return
	}
	// An omitted location means "use what the location field currently holds".
	if body.Location == "" && sess.Picker() != nil {
		body.Location = sess.Picker().Text()
	}

	// The fetch outlives a dropped connection so the session still settles.
	ctx := context.WithoutCancel(r.Context())
	st, err := sess.Submit(ctx, body.Location, body.Date, body.Activity)
	a.writeState(w, sess.ID(), st, err)
}

type tabBody struct {
	Tab string `json:"tab" validate:"required"`
}

func (a *SessionAPI) handleTab(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var body tabBody
	if !decodeBody(w, r, &body) {
		return
	}
	st, err := sess.SelectTab(session.Tab(body.Tab))
	if errors.Is(err, session.ErrUnknownTab) {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("%w: %q", err, body.Tab))
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, viewOf(sess.ID(), st))
}

type compareBody struct {
	Locations []string `json:"locations"`
}

func (a *SessionAPI) handleCompare(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var body compareBody
	if !decodeBody(w, r, &body) {
		return
	}
	st, err := sess.Compare(context.WithoutCancel(r.Context()), body.Locations)
	a.writeState(w, sess.ID(), st, err)
}

// writeState maps orchestrator outcomes onto HTTP. Remote failures and
// superseded results still answer 200 with the current state, which carries
// whatever the user should see.
func (a *SessionAPI) writeState(w http.ResponseWriter, id string, st session.State, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		sharedobs.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": verr.Error(),
			"field": verr.Field,
		})
	case err != nil && !domain.IsRemote(err) && !errors.Is(err, session.ErrSuperseded):
		a.logger.Error("unexpected session error", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, err)
	default:
		sharedobs.WriteJSON(w, http.StatusOK, viewOf(id, st))
	}
}

func (a *SessionAPI) handleExport(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	format, ok := domain.ParseExportFormat(r.PathValue("format"))
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("unsupported export format %q", r.PathValue("format")))
		return
	}

	saver := &downloadSaver{w: w}
	ctrl := export.NewController(a.exporter, sess, saver, a.metrics, a.logger.With("session", sess.ID()))
	name, err := ctrl.Export(r.Context(), format)
	switch {
	case err != nil && !saver.written:
		writeError(w, http.StatusBadGateway, err)
	case name == "":
		w.WriteHeader(http.StatusNoContent)
	}
}

// downloadSaver streams the export back as an attachment.
type downloadSaver struct {
	w       http.ResponseWriter
	written bool
}

func (d *downloadSaver) Save(_ context.Context, name, contentType string, data []byte) error {
	d.written = true
	d.w.Header().Set("Content-Type", contentType)
	d.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	d.w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	d.w.WriteHeader(http.StatusOK)
	_, err := d.w.Write(data)
	return err
}

func (a *SessionAPI) handlePickerGet(w http.ResponseWriter, _ *http.Request, p *picker.Picker) {
	sharedobs.WriteJSON(w, http.StatusOK, pickerViewOf(p.Snapshot()))
}

type textBody struct {
	Text string `json:"text"`
}

func (a *SessionAPI) handlePickerText(w http.ResponseWriter, r *http.Request, p *picker.Picker) {
	var body textBody
	if !decodeBody(w, r, &body) {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, pickerViewOf(p.SetText(body.Text)))
}

func (a *SessionAPI) handlePickerToggle(w http.ResponseWriter, _ *http.Request, p *picker.Picker) {
	sharedobs.WriteJSON(w, http.StatusOK, pickerViewOf(p.ToggleMode()))
}

type coordinateBody struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

func (a *SessionAPI) handlePickerClick(w http.ResponseWriter, r *http.Request, p *picker.Picker) {
	var body coordinateBody
	if !decodeBody(w, r, &body) {
		return
	}
	applied, err := p.Click(r.Context(), *body.Lat, *body.Lng)
	if errors.Is(err, picker.ErrNotPicking) {
		writeError(w, http.StatusConflict, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, struct {
		pickerView
		Applied bool `json:"applied"`
	}{pickerViewOf(p.Snapshot()), applied})
}

func (a *SessionAPI) handlePickerConfirm(w http.ResponseWriter, _ *http.Request, p *picker.Picker) {
	snap, err := p.Confirm()
	if errors.Is(err, picker.ErrNothingPending) {
		writeError(w, http.StatusConflict, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, pickerViewOf(snap))
}

func (a *SessionAPI) handlePickerCancel(w http.ResponseWriter, _ *http.Request, p *picker.Picker) {
	sharedobs.WriteJSON(w, http.StatusOK, pickerViewOf(p.Cancel()))
}

// locateBody is the browser's geolocation outcome: a position, or the error
// it reported (for example a denied permission).
type locateBody struct {
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Error string   `json:"error"`
}

func (a *SessionAPI) handlePickerLocate(w http.ResponseWriter, r *http.Request, p *picker.Picker) {
	var body locateBody
	if !decodeBody(w, r, &body) {
		return
	}
	locator := picker.LocatorFunc(func(context.Context) (domain.LatLng, error) {
		if body.Error != "" || body.Lat == nil || body.Lng == nil {
			return domain.LatLng{}, fmt.Errorf("geolocation unavailable: %s", body.Error)
		}
		return domain.LatLng{Lat: *body.Lat, Lng: *body.Lng}, nil
	})
	sharedobs.WriteJSON(w, http.StatusOK, pickerViewOf(p.CenterOnUser(r.Context(), locator)))
}

// decodeBody reads a JSON body into v and validates its struct tags. It
// writes the error response and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return false
	}
	if err := bodyValidator.Struct(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
