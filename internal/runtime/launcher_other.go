//go:build !linux

package runtime

import (
	"context"
	"fmt"
	goruntime "runtime"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Always fails: namespaces are Linux-only.
func (l *Launcher) Run(ctx context.Context, spec *specs.Spec, stdio Stdio) (int, error) {
	if err := validate(spec); err != nil {
		return -1, err
	}
	return -1, fmt.Errorf("%w: %s", ErrUnsupported, goruntime.GOOS)
}

// No-op outside Linux.
func MaybeInit() {}
