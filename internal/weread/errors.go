package weread

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Upstream error codes that mean the session cookie is no longer accepted.
const (
	CodeSessionExpired = -2012
	CodeLoginRequired  = -2010
)

// APIError is a non-zero error code reported inside a response body.
type APIError struct {
	Path    string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("weread %s: %s (code %d)", e.Path, msg, e.Code)
}

// SessionExpired reports whether the code means the cookie must be re-resolved.
func (e *APIError) SessionExpired() bool {
	return e.Code == CodeSessionExpired || e.Code == CodeLoginRequired
}

// NetworkError is a transport failure or an error status without a usable body.
type NetworkError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("weread %s: status %d: %v", e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("weread %s: %v", e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MalformedResponseError is a response that matched no known shape.
type MalformedResponseError struct {
	Path string
	Body string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("weread %s: unexpected response: %v (body: %s)", e.Path, e.Err, truncate(e.Body, 200))
	}
	return fmt.Sprintf("weread %s: unexpected response (body: %s)", e.Path, truncate(e.Body, 200))
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ValidationError rejects a call before any request is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsSessionExpired reports whether err carries a session-expiry code.
func IsSessionExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.SessionExpired()
}

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var (
		apiErr   *APIError
		malErr   *MalformedResponseError
		validErr *ValidationError
	)
	switch {
	case errors.As(err, &apiErr):
		return !apiErr.SessionExpired()
	case errors.As(err, &malErr), errors.As(err, &validErr):
		return false
	}
	return true
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
