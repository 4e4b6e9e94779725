package build

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/tugbuild/tug/internal/runtime"
)

// A RUN instruction ready for execution.
type RunRequest struct {
	Context Context
	Shell   string
	Command string
	Env     []string
	Stdout  io.Writer
	Stderr  io.Writer
}

// Executes RUN commands.
//
// Implementations return the command's exit status. A non-nil error means
// the command could not be started or waited on.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (int, error)
}

// Runs commands on the host, with the working directory set inside the
// rootfs. The host environment is inherited and overlaid with the build
// environment.
type HostRunner struct{}

func (HostRunner) Run(ctx context.Context, req RunRequest) (int, error) {
	cmd := exec.CommandContext(ctx, req.Shell, "-c", req.Command)
	cmd.Dir = req.Context.Workdir
	cmd.Env = append(os.Environ(), req.Env...)
	cmd.Stdout = req.Stdout
	cmd.Stderr = req.Stderr

	err := cmd.Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}

// Runs commands inside new namespaces rooted at the rootfs. The network
// namespace is shared with the host.
type IsolatedRunner struct {
	Launcher *runtime.Launcher
}

func (r IsolatedRunner) Run(ctx context.Context, req RunRequest) (int, error) {
	cfg := ocispec.ImageConfig{
		Env:        req.Env,
		WorkingDir: req.Context.ContainerPath(req.Context.Workdir),
	}

	spec := runtime.NewSpec(cfg, req.Context.Rootfs, []string{req.Shell, "-c", req.Command}, nil)
	spec.Linux.Namespaces = runtime.Namespaces(false)

	return r.Launcher.Run(ctx, spec, runtime.Stdio{
		Stdout: req.Stdout,
		Stderr: req.Stderr,
	})
}

// Keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
