package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the ISO calendar date format used on the wire.
const DateLayout = "2006-01-02"

// Activities lists the outdoor activities the scoring service understands,
// in the order a form presents them. The first entry is the form default.
var Activities = []string{
	"Hiking",
	"Cycling",
	"Picnic",
	"Running / Outdoor Sports",
	"Outdoor Market",
}

// DefaultActivity is preselected when a form is first rendered.
var DefaultActivity = Activities[0]

// CheckRequest is one submission of the weather check form.
type CheckRequest struct {
	Location string `json:"location" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Activity string `json:"activity" validate:"required,activity"`
}

// CompareRequest asks the service to score several locations for the same
// date and activity.
type CompareRequest struct {
	Locations []string `json:"locations" validate:"min=2,dive,required"`
	Date      string   `json:"date" validate:"required,datetime=2006-01-02"`
	Activity  string   `json:"activity" validate:"required,activity"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Activity names contain spaces and slashes, which the built-in oneof tag
	// cannot express.
	if err := v.RegisterValidation("activity", func(fl validator.FieldLevel) bool {
		return IsActivity(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register activity validation: %v", err))
	}
	return v
}

// IsActivity reports whether name is one of the supported activities.
func IsActivity(name string) bool {
	return slices.Contains(Activities, name)
}

// NewCheckRequest trims the user-entered fields and validates the result.
func NewCheckRequest(location, date, activity string) (CheckRequest, error) {
	req := CheckRequest{
		Location: strings.TrimSpace(location),
		Date:     strings.TrimSpace(date),
		Activity: strings.TrimSpace(activity),
	}
	if err := req.Validate(); err != nil {
		return CheckRequest{}, err
	}
	return req, nil
}

// Validate checks field presence, the activity set, and the date window
// [today, today+1 year].
func (r CheckRequest) Validate() error {
	if strings.TrimSpace(r.Location) == "" {
		return &ValidationError{Field: "location", Reason: "location is required"}
	}
	if err := validate.Struct(r); err != nil {
		return translateValidation(err)
	}
	return validateDateWindow(r.Date)
}

// CleanLocations drops blank entries and trims the rest, preserving order.
func CleanLocations(locations []string) []string {
	out := make([]string, 0, len(locations))
	for _, loc := range locations {
		if trimmed := strings.TrimSpace(loc); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// NewCompareRequest filters blank locations and requires at least two of the
// remaining ones.
func NewCompareRequest(locations []string, date, activity string) (CompareRequest, error) {
	req := CompareRequest{
		Locations: CleanLocations(locations),
		Date:      date,
		Activity:  activity,
	}
	if err := req.Validate(); err != nil {
		return CompareRequest{}, err
	}
	return req, nil
}

// Validate requires at least two non-blank locations plus a valid date and
// activity.
func (r CompareRequest) Validate() error {
	if len(CleanLocations(r.Locations)) < 2 {
		return &ValidationError{Field: "locations", Reason: "enter at least 2 locations to compare"}
	}
	if err := validate.Struct(r); err != nil {
		return translateValidation(err)
	}
	return nil
}

func validateDateWindow(date string) error {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return &ValidationError{Field: "date", Reason: "date must be formatted as YYYY-MM-DD"}
	}
	now := clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.Before(today) {
		return &ValidationError{Field: "date", Reason: "date must not be in the past"}
	}
	if d.After(today.AddDate(1, 0, 0)) {
		return &ValidationError{Field: "date", Reason: "date must be within one year"}
	}
	return nil
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Reason: field + " is required"}
	case "datetime":
		return &ValidationError{Field: field, Reason: "date must be formatted as YYYY-MM-DD"}
	case "activity":
		return &ValidationError{Field: field, Reason: fmt.Sprintf("unsupported activity %q", fe.Value())}
	case "min":
		return &ValidationError{Field: field, Reason: "enter at least " + fe.Param() + " " + field}
	default:
		return &ValidationError{Field: field, Reason: fe.Error()}
	}
}
