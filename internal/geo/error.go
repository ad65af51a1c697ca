package geo

import (
	"context"
	"errors"
	"fmt"
)

type Reason string

const (
	ReasonPermissionDenied    Reason = "permission_denied"
	ReasonPositionUnavailable Reason = "position_unavailable"
	ReasonTimeout             Reason = "timeout"
	ReasonProvider            Reason = "provider_error"
)

// Sentinel errors locator implementations return for device-level
// failures. normalizeErr folds them into tagged *Error values.
var (
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
)

// Error is the single failure type the resolver's callers see. Every
// device or provider failure is folded into one of the Reason tags so
// the UI can branch (prompt for manual entry, retry, etc.) without
// inspecting transport details.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("geo: %s", e.Reason)
	}
	return fmt.Sprintf("geo: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the reason tag, defaulting to provider_error for
// anything that was not normalized.
func ReasonOf(err error) Reason {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Reason
	}
	return ReasonProvider
}

func normalizeErr(err error, fallback Reason) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return &Error{Reason: ReasonPermissionDenied, Err: err}
	case errors.Is(err, ErrPositionUnavailable):
		return &Error{Reason: ReasonPositionUnavailable, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Reason: ReasonTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Reason: ReasonTimeout, Err: err}
	default:
		return &Error{Reason: fallback, Err: err}
	}
}
