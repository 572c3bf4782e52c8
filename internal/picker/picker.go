// Package picker holds the location-entry state machine: free-text entry in
// Idle mode, map clicks with a confirm/cancel step in Picking mode.
package picker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/couchcryptid/parade-planner/internal/domain"
	"github.com/couchcryptid/parade-planner/internal/observability"
)

// Mode is the picker's top-level state.
type Mode string

const (
	ModeIdle    Mode = "idle"
	ModePicking Mode = "picking"
)

var (
	// ErrNothingPending is returned by Confirm when no click has resolved yet.
	ErrNothingPending = errors.New("no map selection to confirm")
	// ErrNotPicking is returned by Click outside Picking mode.
	ErrNotPicking = errors.New("map picking is not active")
)

// Resolver turns a clicked coordinate into a display name. It never fails.
type Resolver interface {
	Resolve(ctx context.Context, lat, lng float64) string
}

// Locator reports the user's current position.
type Locator interface {
	Locate(ctx context.Context) (domain.LatLng, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (domain.LatLng, error)

func (f LocatorFunc) Locate(ctx context.Context) (domain.LatLng, error) { return f(ctx) }

// Snapshot is a read-only copy of the picker state.
type Snapshot struct {
	Mode      Mode                   `json:"mode"`
	Text      string                 `json:"text"`
	Pending   *domain.PickedLocation `json:"pending,omitempty"`
	Marker    *domain.LatLng         `json:"marker,omitempty"`
	Resolving bool                   `json:"resolving"`
	Center    domain.LatLng          `json:"center"`
}

// CanConfirm reports whether the confirm action is enabled.
func (s Snapshot) CanConfirm() bool {
	return s.Mode == ModePicking && s.Pending != nil
}

// Picker is safe for concurrent use. Clicks race each other through the
// resolver; only the newest click's answer is applied.
type Picker struct {
	resolver Resolver
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu        sync.Mutex
	mode      Mode
	text      string
	pending   *domain.PickedLocation
	marker    *domain.LatLng
	center    domain.LatLng
	token     uint64
	resolving bool
}

// New creates an idle picker centered on the fallback coordinates.
func New(resolver Resolver, center domain.LatLng, metrics *observability.Metrics, logger *slog.Logger) *Picker {
	return &Picker{
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
		mode:     ModeIdle,
		center:   center,
	}
}

// Snapshot returns the current state.
func (p *Picker) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Picker) snapshotLocked() Snapshot {
	s := Snapshot{
		Mode:      p.mode,
		Text:      p.text,
		Resolving: p.resolving,
		Center:    p.center,
	}
	if p.pending != nil {
		pending := *p.pending
		s.Pending = &pending
	}
	if p.marker != nil {
		marker := *p.marker
		s.Marker = &marker
	}
	return s
}

// Text returns the committed location text.
func (p *Picker) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text
}

// SetText replaces the location text with manual input.
func (p *Picker) SetText(text string) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = text
	return p.snapshotLocked()
}

// ToggleMode switches between Idle and Picking. Leaving Picking discards any
// pending selection and any click still resolving.
func (p *Picker) ToggleMode() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == ModeIdle {
		p.mode = ModePicking
	} else {
		p.resetLocked()
	}
	return p.snapshotLocked()
}

// Cancel discards the pending selection without committing it and returns to
// Idle. The text is left as it was.
func (p *Picker) Cancel() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return p.snapshotLocked()
}

// Confirm commits the pending selection's name as the location text.
func (p *Picker) Confirm() (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != ModePicking || p.pending == nil {
		return p.snapshotLocked(), ErrNothingPending
	}
	p.text = p.pending.Name
	p.resetLocked()
	return p.snapshotLocked(), nil
}

func (p *Picker) resetLocked() {
	p.mode = ModeIdle
	p.pending = nil
	p.marker = nil
	p.resolving = false
	p.token++
}

// Click records a map click and resolves its name. It reports whether the
// resolved selection was applied; false means a newer click, a cancel, or a
// mode toggle superseded it while the name was resolving.
func (p *Picker) Click(ctx context.Context, lat, lng float64) (bool, error) {
	p.mu.Lock()
	if p.mode != ModePicking {
		p.mu.Unlock()
		return false, ErrNotPicking
	}
	p.token++
	token := p.token
	p.marker = &domain.LatLng{Lat: lat, Lng: lng}
	p.resolving = true
	p.mu.Unlock()

	name := p.resolver.Resolve(ctx, lat, lng)

	p.mu.Lock()
	defer p.mu.Unlock()
	if token != p.token {
		p.metrics.StaleResults.WithLabelValues("picker").Inc()
		p.logger.Debug("discarding stale map click", "lat", lat, "lng", lng, "name", name)
		return false, nil
	}
	p.pending = &domain.PickedLocation{Lat: lat, Lng: lng, Name: name}
	p.resolving = false
	return true, nil
}

// CenterOnUser moves the map center to the user's position. Any failure,
// including a denied permission, keeps the fallback center.
func (p *Picker) CenterOnUser(ctx context.Context, locator Locator) Snapshot {
	if locator != nil {
		pos, err := locator.Locate(ctx)
		if err != nil {
			p.logger.Debug("geolocation unavailable, keeping fallback center", "error", err)
		} else if validCoordinate(pos) {
			p.mu.Lock()
			p.center = pos
			p.mu.Unlock()
		} else {
			p.logger.Debug("ignoring out-of-range position", "lat", pos.Lat, "lng", pos.Lng)
		}
	}
	return p.Snapshot()
}

func validCoordinate(c domain.LatLng) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}
