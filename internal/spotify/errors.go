package spotify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	zmb3 "github.com/zmb3/spotify/v2"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnauthorized   = errors.New("webapi: token rejected or expired")
	ErrRestricted     = errors.New("webapi: operation not allowed for this account or device")
	ErrNoActiveDevice = errors.New("webapi: no active playback device")
	ErrRateLimited    = errors.New("webapi: rate limit exceeded")
	ErrServerError    = errors.New("webapi: upstream internal error (5xx)")
	ErrBadResponse    = errors.New("webapi: invalid response format or malformed request")
	ErrUnavailable    = errors.New("webapi: host unreachable or transport failure")
)

// APIError is a rich error type that wraps the sentinel errors with context.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Message   string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("spotify: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Sentinel
}

// classify maps a raw client error onto the package sentinels. A 404 from
// the player endpoints means Spotify has no record of the device, so it is
// reported as ErrNoActiveDevice rather than a generic not-found.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var se zmb3.Error
	if errors.As(err, &se) {
		return &APIError{
			Sentinel:  sentinelForStatus(se.Status),
			Operation: op,
			Status:    se.Status,
			Message:   se.Message,
			Err:       err,
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return &APIError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return &APIError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}

	// Anything else is a response we could not make sense of.
	return &APIError{Sentinel: ErrBadResponse, Operation: op, Err: err}
}

func sentinelForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrRestricted
	case status == http.StatusNotFound:
		return ErrNoActiveDevice
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrServerError
	default:
		return ErrBadResponse
	}
}
