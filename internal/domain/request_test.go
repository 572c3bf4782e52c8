package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezeClock(t *testing.T) {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.June, 1, 15, 30, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })
}

func TestNewCheckRequest_Valid(t *testing.T) {
	freezeClock(t)

	req, err := NewCheckRequest("  Paris ", "2025-07-04", "Hiking")
	require.NoError(t, err)

	assert.Equal(t, CheckRequest{Location: "Paris", Date: "2025-07-04", Activity: "Hiking"}, req)
}

func TestCheckRequest_Validate(t *testing.T) {
	freezeClock(t)

	tests := []struct {
		name  string
		req   CheckRequest
		field string
	}{
		{"blank location", CheckRequest{Location: "   ", Date: "2025-07-04", Activity: "Hiking"}, "location"},
		{"missing date", CheckRequest{Location: "Paris", Activity: "Hiking"}, "date"},
		{"malformed date", CheckRequest{Location: "Paris", Date: "07/04/2025", Activity: "Hiking"}, "date"},
		{"past date", CheckRequest{Location: "Paris", Date: "2025-05-31", Activity: "Hiking"}, "date"},
		{"more than a year out", CheckRequest{Location: "Paris", Date: "2026-06-02", Activity: "Hiking"}, "date"},
		{"missing activity", CheckRequest{Location: "Paris", Date: "2025-07-04"}, "activity"},
		{"unknown activity", CheckRequest{Location: "Paris", Date: "2025-07-04", Activity: "Skydiving"}, "activity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.True(t, IsValidation(err))
			assert.False(t, IsRemote(err))
		})
	}
}

func TestCheckRequest_DateWindowBoundaries(t *testing.T) {
	freezeClock(t)

	for _, date := range []string{"2025-06-01", "2026-06-01"} {
		req := CheckRequest{Location: "Paris", Date: date, Activity: "Picnic"}
		assert.NoError(t, req.Validate(), date)
	}
}

func TestCheckRequest_AllActivitiesAccepted(t *testing.T) {
	freezeClock(t)

	for _, activity := range Activities {
		req := CheckRequest{Location: "Denver", Date: "2025-08-15", Activity: activity}
		assert.NoError(t, req.Validate(), activity)
	}
	assert.Equal(t, "Hiking", DefaultActivity)
}

func TestNewCompareRequest_FiltersBlanks(t *testing.T) {
	req, err := NewCompareRequest([]string{" Boston ", "", "Denver", "  "}, "2025-07-04", "Cycling")
	require.NoError(t, err)
	assert.Equal(t, []string{"Boston", "Denver"}, req.Locations)
}

func TestNewCompareRequest_TooFewLocations(t *testing.T) {
	_, err := NewCompareRequest([]string{"NYC", "", ""}, "2025-07-04", "Hiking")
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "locations", verr.Field)
}

func TestNewCompareRequest_InvalidActivity(t *testing.T) {
	_, err := NewCompareRequest([]string{"NYC", "LA"}, "2025-07-04", "Bowling")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestRemoteError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &RemoteError{Op: "check", StatusCode: 502, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "check: remote status 502: boom", err.Error())
	assert.True(t, IsRemote(err))

	transport := &RemoteError{Op: "trends", Err: inner}
	assert.Equal(t, "trends: boom", transport.Error())
}
