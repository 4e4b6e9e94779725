package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// argv[0] marking a re-executed init process.
const initArg0 = "tug-init"

// Time between SIGTERM and SIGKILL when the context is cancelled.
//
// The program runs as PID 1 of its namespace, where the kernel drops
// signals that have no handler installed. A program without a SIGTERM
// handler (a plain shell, sleep) therefore keeps running for the whole
// grace period and is then killed.
const DefaultGracePeriod = 10 * time.Second

// Standard streams of a launched process. Nil streams are connected to the
// null device.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Starts isolated processes.
type Launcher struct {
	InitPath    string        // Binary re-executed as init. Defaults to /proc/self/exe.
	GracePeriod time.Duration // Defaults to DefaultGracePeriod. See its note on PID 1.
}

func (l *Launcher) initPath() string {
	if l.InitPath != "" {
		return l.InitPath
	}
	return "/proc/self/exe"
}

func (l *Launcher) gracePeriod() time.Duration {
	if l.GracePeriod > 0 {
		return l.GracePeriod
	}
	return DefaultGracePeriod
}

// Runs program with args in all namespaces, rooted at rootfs, attached to
// the current process's standard streams. Returns the exit status.
func Launch(ctx context.Context, program string, args []string, rootfs string) (int, error) {
	spec := NewSpec(ocispec.ImageConfig{}, rootfs, append([]string{program}, args...), nil)
	return (&Launcher{}).Run(ctx, spec, Stdio{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
}

func validate(spec *specs.Spec) error {
	if spec.Process == nil || len(spec.Process.Args) == 0 {
		return fmt.Errorf("%w: no program to run", ErrSetup)
	}
	if spec.Root == nil || spec.Root.Path == "" {
		return fmt.Errorf("%w: no root filesystem", ErrSetup)
	}
	info, err := os.Stat(spec.Root.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrSetup, spec.Root.Path)
	}
	return nil
}
