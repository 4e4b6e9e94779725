package runtime

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/containerd/errdefs"
)

var (
	ErrPrivilegeDenied = fmt.Errorf("insufficient privilege for isolation: %w", errdefs.ErrPermissionDenied)
	ErrUnsupported     = fmt.Errorf("isolation not supported: %w", errdefs.ErrNotImplemented)
	ErrExec            = fmt.Errorf("cannot execute program: %w", errdefs.ErrFailedPrecondition)
	ErrSetup           = fmt.Errorf("container setup failed: %w", errdefs.ErrInternal)
)

// Maps a setup errno to an error kind.
func classify(err error) error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return ErrSetup
	}
	switch errno {
	case syscall.EPERM, syscall.EACCES:
		return ErrPrivilegeDenied
	case syscall.EINVAL, syscall.ENOSYS, syscall.EOPNOTSUPP:
		return ErrUnsupported
	default:
		return ErrSetup
	}
}

// Error kinds as sent over the setup error pipe.
var kinds = map[string]error{
	"privilege":   ErrPrivilegeDenied,
	"unsupported": ErrUnsupported,
	"exec":        ErrExec,
	"setup":       ErrSetup,
}

func kindName(err error) string {
	for name, kind := range kinds {
		if errors.Is(err, kind) {
			return name
		}
	}
	return "setup"
}
