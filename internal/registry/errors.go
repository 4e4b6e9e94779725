package registry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/containerd/errdefs"
)

var (
	ErrAuth             = fmt.Errorf("registry authentication failed: %w", errdefs.ErrUnauthenticated)
	ErrNotFound         = fmt.Errorf("not found in registry: %w", errdefs.ErrNotFound)
	ErrPlatformNotFound = fmt.Errorf("no manifest for platform: %w", errdefs.ErrNotFound)
	ErrTransport        = fmt.Errorf("registry request failed: %w", errdefs.ErrUnavailable)
	ErrDecode           = fmt.Errorf("malformed registry response: %w", errdefs.ErrDataLoss)
	ErrDigestMismatch   = fmt.Errorf("content digest mismatch: %w", errdefs.ErrDataLoss)
)

// Describes a failed pull step.
//
// Both Kind and Err participate in errors.Is, so callers can test for the
// sentinel kinds above, the errdefs classes they wrap, or the underlying
// cause.
type Error struct {
	Step string // e.g. "token", "manifest", "config", "layer sha256:..."
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func stepError(step string, kind, err error) *Error {
	return &Error{Step: step, Kind: kind, Err: err}
}

// Non-200 registry response.
type statusError struct {
	Code   int
	Status string
}

func (e *statusError) Error() string {
	return "unexpected status " + e.Status
}

// Whether the status is worth retrying: 429 and 5xx.
func (e *statusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Maps a token endpoint failure to an error kind. Rejections are auth
// failures; an unreachable or overloaded endpoint is a transport failure.
func classifyToken(err error) error {
	var se *statusError
	if !errors.As(err, &se) || se.retryable() {
		return ErrTransport
	}
	return ErrAuth
}

// Maps a request failure to an error kind.
func classify(err error) error {
	var se *statusError
	if !errors.As(err, &se) {
		return ErrTransport
	}
	switch se.Code {
	case 401, 403:
		return ErrAuth
	case 404:
		return ErrNotFound
	default:
		return ErrTransport
	}
}
