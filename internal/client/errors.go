package client

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

var (
	ErrUnavailable = fmt.Errorf("daemon not reachable: %w", errdefs.ErrUnavailable)
	ErrDaemon      = errors.New("daemon error")
	ErrProtocol    = errors.New("unexpected daemon response")
)

// Failure reported by the daemon. Matches [ErrDaemon].
type DaemonError struct {
	Message string
	BuildID string // Set for builds that failed after FROM.
	Dir     string // Directory of the failed build, kept for inspection.
}

func (e *DaemonError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDaemon, e.Message)
}

func (e *DaemonError) Unwrap() error {
	return ErrDaemon
}
