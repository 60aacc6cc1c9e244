package fxclient

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a call ends 401 after the refresh
	// path has had its one chance.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired is the hard authentication failure: no refresh
	// credential existed or the refresh call failed, and the session has
	// been cleared. Callers should route to their login entry point.
	ErrSessionExpired = errors.New("session expired")
	// ErrForbidden is returned on 403; the credential is fresh but lacks
	// permission, so no refresh is attempted.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is returned on 422 with the backend's most specific
	// field message attached.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned on 404.
	ErrNotFound = errors.New("not found")
	// ErrServer is returned on 5xx responses.
	ErrServer = errors.New("server error")
	// ErrNetwork covers DNS failures, resets, and timeouts.
	ErrNetwork = errors.New("network error")
	// ErrDecode is returned when a success response carries no readable
	// envelope.
	ErrDecode = errors.New("undecodable response")
	// ErrRequestFailed covers remaining non-2xx statuses outside the
	// taxonomy above (400, 409, ...).
	ErrRequestFailed = errors.New("request failed")
	// ErrNotAuthenticated is returned by operations that require a session
	// when the client is anonymous.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidRequest is returned when client-side payload validation
	// rejects a request before any network I/O.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrBuilderUsed is returned when Build is called twice on one Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrClientClosed is returned by operations on a closed client.
	ErrClientClosed = errors.New("client closed")
)

// ResultError carries the raw failure alongside the mapped sentinel, for
// callers that need the status code or the backend's message verbatim.
type ResultError struct {
	// Kind is one of the package sentinel errors.
	Kind error
	// Status is the HTTP status, 0 for network-level failures.
	Status int
	// Message is the surfaced failure message, possibly empty.
	Message string
	// Operation names the call that failed.
	Operation string
}

// Error implements the error interface.
func (e *ResultError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Operation, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Operation, e.Kind, e.Status)
}

// Unwrap exposes the sentinel so errors.Is works on the taxonomy.
func (e *ResultError) Unwrap() error {
	return e.Kind
}
