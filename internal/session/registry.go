package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/parade-planner/internal/observability"
)

// ErrNotFound is returned for unknown or already removed session ids.
var ErrNotFound = errors.New("session not found")

// Factory builds a new session for the given id.
type Factory func(id string) *Session

type registryEntry struct {
	session  *Session
	lastSeen time.Time
}

// Registry holds the live sessions of this process. Nothing is persisted; a
// restart forgets every session.
type Registry struct {
	factory Factory
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*registryEntry
	closed   bool
}

// NewRegistry creates an empty registry. A nil clock uses the real clock.
func NewRegistry(factory Factory, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		factory:  factory,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
		sessions: make(map[string]*registryEntry),
	}
}

// Create starts a new session, typically on page load.
func (r *Registry) Create() *Session {
	id := uuid.NewString()
	sess := r.factory(id)

	r.mu.Lock()
	r.sessions[id] = &registryEntry{session: sess, lastSeen: r.clock.Now()}
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.ActiveSessions.Set(float64(n))
	r.logger.Debug("session created", "session", id)
	return sess
}

// Get returns the session and marks it as recently used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastSeen = r.clock.Now()
	return e.session, nil
}

// Delete drops the session, typically when the user navigates away. Results
// still in flight for it are discarded with the session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	r.metrics.ActiveSessions.Set(float64(n))
	r.logger.Debug("session deleted", "session", id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ReapIdle removes sessions not used within ttl and returns how many were
// removed.
func (r *Registry) ReapIdle(ttl time.Duration) int {
	cutoff := r.clock.Now().Add(-ttl)

	r.mu.Lock()
	var reaped []string
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			reaped = append(reaped, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if len(reaped) > 0 {
		r.metrics.ActiveSessions.Set(float64(n))
		r.metrics.ReapedSessions.Add(float64(len(reaped)))
		r.logger.Info("reaped idle sessions", "count", len(reaped), "remaining", n)
	}
	return len(reaped)
}

// Close drops every session and makes the registry report not ready.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	clear(r.sessions)
	r.mu.Unlock()
	r.metrics.ActiveSessions.Set(0)
}

// CheckReadiness implements the HTTP readiness check.
func (r *Registry) CheckReadiness(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("session registry closed")
	}
	return nil
}
