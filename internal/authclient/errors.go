package authclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRefreshRejected means the session could not be refreshed and has been
	// cleared. Callers must log in again.
	ErrRefreshRejected = errors.New("refresh rejected")
	ErrNoRefreshToken  = errors.New("no refresh token stored")
	// ErrRetryExhausted means the request was already replayed once after a
	// refresh and was rejected again.
	ErrRetryExhausted     = errors.New("authorization failed after retry")
	ErrNetwork            = errors.New("network error")
	ErrSessionReset       = errors.New("session reset while waiting for refresh")
	ErrClientClosed       = errors.New("client closed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMalformedResponse  = errors.New("malformed token response")
)

// AuthError is a terminal authorization failure surfaced to the caller.
type AuthError struct {
	Kind       error
	StatusCode int
	RequestID  string
	Body       []byte

	resp *http.Response
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("request %s: status %d: %v", e.RequestID, e.StatusCode, e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Kind }

// StatusError is returned by the JSON helpers for non-2xx responses that are
// not authorization failures.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, truncate(e.Body, 200))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
