package session

import (
	"errors"

	"github.com/couchcryptid/parade-planner/internal/domain"
)

// Tab names a result view.
type Tab string

const (
	TabDashboard Tab = "dashboard"
	TabTrends    Tab = "trends"
	TabCompare   Tab = "compare"
)

// ErrUnknownTab is returned by SelectTab for names outside the tab set.
var ErrUnknownTab = errors.New("unknown tab")

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, error) {
	switch t := Tab(s); t {
	case TabDashboard, TabTrends, TabCompare:
		return t, nil
	default:
		return "", ErrUnknownTab
	}
}

// Panel is what the view should render for a given state.
type Panel string

const (
	PanelEmpty     Panel = "empty"
	PanelLoading   Panel = "loading"
	PanelError     Panel = "error"
	PanelDashboard Panel = "dashboard"
	PanelTrends    Panel = "trends"
	PanelCompare   Panel = "compare"
)

// Error kinds carried in State.
const (
	KindFetchFailed   = "fetch_failed"
	KindCompareFailed = "compare_failed"
)

// User-facing messages for failed remote calls.
const (
	FetchFailedMessage   = "Failed to fetch weather data. Please try again."
	CompareFailedMessage = "Failed to compare locations. Please try again."
)

// StateError is the user-facing failure recorded in a State.
type StateError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ComparisonState is the comparison panel's own slice of the session.
type ComparisonState struct {
	Ran       bool                     `json:"ran"`
	Loading   bool                     `json:"loading"`
	Locations []string                 `json:"locations,omitempty"`
	Err       *StateError              `json:"error,omitempty"`
	Result    *domain.ComparisonResult `json:"result,omitempty"`
}

// State is an immutable snapshot of one session. The pointed-to values are
// never modified after they are published; a change always produces a new
// State with a higher Version.
type State struct {
	Version     uint64               `json:"version"`
	LastRequest *domain.CheckRequest `json:"last_request,omitempty"`
	Loading     bool                 `json:"loading"`
	Err         *StateError          `json:"error,omitempty"`
	Check       *domain.CheckResult  `json:"check,omitempty"`
	Trends      *domain.TrendResult  `json:"trends,omitempty"`
	ActiveTab   Tab                  `json:"active_tab"`
	Comparison  ComparisonState      `json:"comparison"`
}

// VisiblePanel selects the panel to render. Without a check result the view
// shows progress, the failure, or nothing. With one, the active tab decides,
// and a trends tab without trend data falls back to the dashboard.
func VisiblePanel(s State) Panel {
	if s.Check == nil {
		switch {
		case s.Loading:
			return PanelLoading
		case s.Err != nil:
			return PanelError
		default:
			return PanelEmpty
		}
	}
	switch s.ActiveTab {
	case TabTrends:
		if s.Trends != nil {
			return PanelTrends
		}
	case TabCompare:
		return PanelCompare
	}
	return PanelDashboard
}

// ShowComparisonResults reports whether the comparison results area should be
// shown, which is only after the user has run a comparison.
func ShowComparisonResults(s State) bool {
	return s.Comparison.Ran
}

// AvailableTabs lists the tabs that have something to show.
func AvailableTabs(s State) []Tab {
	if s.Check == nil {
		return nil
	}
	tabs := []Tab{TabDashboard}
	if s.Trends != nil {
		tabs = append(tabs, TabTrends)
	}
	return append(tabs, TabCompare)
}
