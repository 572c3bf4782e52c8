package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or incomplete request caught before any
// network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RemoteError reports a non-2xx response or transport failure from the remote
// weather service. StatusCode is zero for transport failures.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsRemote reports whether err is, or wraps, a *RemoteError.
func IsRemote(err error) bool {
	var r *RemoteError
	return errors.As(err, &r)
}
