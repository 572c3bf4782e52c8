// Package session owns the per-visit state machine: the primary weather check,
// the location comparison, and the active result tab. Every async completion
// carries a token and is dropped if a newer action of the same flow started
// after it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/parade-planner/internal/domain"
	"github.com/couchcryptid/parade-planner/internal/observability"
	"github.com/couchcryptid/parade-planner/internal/picker"
)

// ErrSuperseded is returned when a newer action of the same flow started
// before this one completed. Its result was discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// WeatherClient is the remote weather service as the session uses it.
type WeatherClient interface {
	Check(ctx context.Context, req domain.CheckRequest) (domain.CheckResult, error)
	Trends(ctx context.Context, location string, years domain.YearRange) (domain.TrendResult, error)
	Compare(ctx context.Context, req domain.CompareRequest) (domain.ComparisonResult, error)
}

// Option configures a Session.
type Option func(*Session)

// WithTrendYears bounds the trend series requested on every submission.
func WithTrendYears(years domain.YearRange) Option {
	return func(s *Session) { s.years = years }
}

// WithPicker attaches a location picker to the session.
func WithPicker(p *picker.Picker) Option {
	return func(s *Session) { s.picker = p }
}

type subscriber struct {
	id int
	fn func(State)
}

// Session is one page visit's state. It is safe for concurrent use.
type Session struct {
	id      string
	client  WeatherClient
	picker  *picker.Picker
	years   domain.YearRange
	metrics *observability.Metrics
	logger  *slog.Logger

	mu           sync.Mutex
	state        State
	submitToken  uint64
	compareToken uint64
	subs         []subscriber
	nextSubID    int
	notifyMu     sync.Mutex
	lastNotified uint64
}

// New creates an empty session.
func New(id string, client WeatherClient, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		id:      id,
		client:  client,
		metrics: metrics,
		logger:  logger.With("session", id),
		state:   State{ActiveTab: TabDashboard},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Picker returns the session's location picker, or nil when none is attached.
func (s *Session) Picker() *picker.Picker { return s.picker }

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastRequest returns the most recent validated submission, or nil.
func (s *Session) LastRequest() *domain.CheckRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastRequest
}

// Subscribe registers fn to be called after every state change with the
// newest snapshot. Calls are serialised and never go backwards in Version;
// intermediate versions may be skipped. fn must not block for long and must
// not call Subscribe. The returned func removes the subscription.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
	}
}

// commitLocked publishes next as the new state. Callers hold mu.
func (s *Session) commitLocked(next State) State {
	next.Version = s.state.Version + 1
	s.state = next
	return next
}

func (s *Session) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	st := s.state
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	if st.Version <= s.lastNotified {
		return
	}
	s.lastNotified = st.Version
	for _, sub := range subs {
		sub.fn(st)
	}
}

// Submit validates the form input, then fetches the check result and the
// trend series concurrently and applies both together. A validation failure
// returns a *domain.ValidationError and leaves the state untouched. A remote
// failure records KindFetchFailed in the state and returns the remote error.
// If another Submit started in the meantime, the outcome is discarded and
// ErrSuperseded is returned.
func (s *Session) Submit(ctx context.Context, location, date, activity string) (State, error) {
	req, err := domain.NewCheckRequest(location, date, activity)
	if err != nil {
		s.metrics.Submissions.WithLabelValues("invalid").Inc()
		return s.State(), err
	}

	s.mu.Lock()
	s.submitToken++
	token := s.submitToken
	next := s.state
	next.LastRequest = &req
	next.Loading = true
	next.Err = nil
	next.Check = nil
	next.Trends = nil
	s.commitLocked(next)
	s.mu.Unlock()
	s.notify()

	s.logger.Info("weather check submitted",
		"location", req.Location,
		"date", req.Date,
		"activity", req.Activity,
	)

	var (
		check  domain.CheckResult
		trends domain.TrendResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		check, err = s.client.Check(gctx, req)
		return err
	})
	g.Go(func() error {
		var err error
		trends, err = s.client.Trends(gctx, req.Location, s.years)
		return err
	})
	fetchErr := g.Wait()

	s.mu.Lock()
	if token != s.submitToken {
		st := s.state
		s.mu.Unlock()
		s.metrics.StaleResults.WithLabelValues("submit").Inc()
		s.metrics.Submissions.WithLabelValues("superseded").Inc()
		s.logger.Debug("discarding superseded weather check", "location", req.Location)
		return st, ErrSuperseded
	}
	next = s.state
	next.Loading = false
	if fetchErr != nil {
		next.Err = &StateError{Kind: KindFetchFailed, Message: FetchFailedMessage}
	} else {
		next.Check = &check
		next.Trends = &trends
		next.ActiveTab = TabDashboard
	}
	st := s.commitLocked(next)
	s.mu.Unlock()
	s.notify()

	if fetchErr != nil {
		s.metrics.Submissions.WithLabelValues("failed").Inc()
		s.logger.Warn("weather check failed", "location", req.Location, "error", fetchErr)
		return st, fetchErr
	}
	s.metrics.Submissions.WithLabelValues("success").Inc()
	return st, nil
}

// SelectTab changes the active tab. It never touches results or the network.
func (s *Session) SelectTab(tab Tab) (State, error) {
	if _, err := ParseTab(string(tab)); err != nil {
		return s.State(), err
	}
	s.mu.Lock()
	next := s.state
	next.ActiveTab = tab
	st := s.commitLocked(next)
	s.mu.Unlock()
	s.notify()
	return st, nil
}

// Compare scores locations for the last submission's date and activity.
// Blank entries are dropped; fewer than two remaining fail validation without
// a network call. A remote failure is recorded inline in the comparison state
// and also returned.
func (s *Session) Compare(ctx context.Context, locations []string) (State, error) {
	last := s.LastRequest()
	if last == nil {
		s.metrics.Comparisons.WithLabelValues("invalid").Inc()
		return s.State(), &domain.ValidationError{Field: "request", Reason: "check the weather for a location before comparing"}
	}
	req, err := domain.NewCompareRequest(locations, last.Date, last.Activity)
	if err != nil {
		s.metrics.Comparisons.WithLabelValues("invalid").Inc()
		return s.State(), err
	}

	s.mu.Lock()
	s.compareToken++
	token := s.compareToken
	next := s.state
	next.Comparison = ComparisonState{
		Ran:       true,
		Loading:   true,
		Locations: slices.Clone(req.Locations),
	}
	s.commitLocked(next)
	s.mu.Unlock()
	s.notify()

	result, cmpErr := s.client.Compare(ctx, req)

	s.mu.Lock()
	if token != s.compareToken {
		st := s.state
		s.mu.Unlock()
		s.metrics.StaleResults.WithLabelValues("compare").Inc()
		s.metrics.Comparisons.WithLabelValues("superseded").Inc()
		return st, ErrSuperseded
	}
	next = s.state
	next.Comparison.Loading = false
	if cmpErr != nil {
		next.Comparison.Err = &StateError{Kind: KindCompareFailed, Message: CompareFailedMessage}
	} else {
		next.Comparison.Result = &result
	}
	st := s.commitLocked(next)
	s.mu.Unlock()
	s.notify()

	if cmpErr != nil {
		s.metrics.Comparisons.WithLabelValues("failed").Inc()
		s.logger.Warn("location comparison failed", "locations", req.Locations, "error", cmpErr)
		return st, cmpErr
	}
	s.metrics.Comparisons.WithLabelValues("success").Inc()
	return st, nil
}
