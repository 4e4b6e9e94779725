package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"
)

var cloneFlags = map[specs.LinuxNamespaceType]uintptr{
	specs.UTSNamespace:     unix.CLONE_NEWUTS,
	specs.PIDNamespace:     unix.CLONE_NEWPID,
	specs.MountNamespace:   unix.CLONE_NEWNS,
	specs.NetworkNamespace: unix.CLONE_NEWNET,
	specs.IPCNamespace:     unix.CLONE_NEWIPC,
	specs.CgroupNamespace:  unix.CLONE_NEWCGROUP,
}

// Runs the process described by spec and waits for it.
//
// Returns the process's exit code, or 128+N when it was killed by signal N.
// An error means the process never reached its program: namespace creation
// or filesystem setup failed, or the program could not be executed.
//
// Cancelling ctx sends SIGTERM to the process, then SIGKILL once the grace
// period has passed.
func (l *Launcher) Run(ctx context.Context, spec *specs.Spec, stdio Stdio) (int, error) {
	if err := validate(spec); err != nil {
		return -1, err
	}

	root, err := filepath.Abs(spec.Root.Path)
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	spec.Root.Path = root

	var flags uintptr
	if spec.Linux != nil {
		for _, ns := range spec.Linux.Namespaces {
			flag, ok := cloneFlags[ns.Type]
			if !ok {
				return -1, fmt.Errorf("%w: namespace %q", ErrUnsupported, ns.Type)
			}
			flags |= flag
		}
	}
	if flags&unix.CLONE_NEWNS == 0 {
		return -1, fmt.Errorf("%w: a mount namespace is required", ErrSetup)
	}

	data, err := json.Marshal(spec)
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrSetup, err)
	}

	specR, specW, err := os.Pipe()
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	defer specW.Close()

	errR, errW, err := os.Pipe()
	if err != nil {
		specR.Close()
		return -1, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	defer errR.Close()

	cmd := exec.CommandContext(ctx, l.initPath())
	cmd.Args = []string{initArg0}
	cmd.Env = []string{}
	cmd.Stdin = stdio.Stdin
	cmd.Stdout = stdio.Stdout
	cmd.Stderr = stdio.Stderr
	cmd.ExtraFiles = []*os.File{specR, errW} // fd 3, fd 4
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: flags,
		Pdeathsig:  syscall.SIGKILL,
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = l.gracePeriod()

	slog.Debug("launching", "args", spec.Process.Args, "rootfs", root, "hostname", spec.Hostname)

	startErr := cmd.Start()
	specR.Close()
	errW.Close()
	if startErr != nil {
		return -1, fmt.Errorf("%w: %w", classify(startErr), startErr)
	}

	if _, err := specW.Write(data); err != nil {
		slog.Debug("writing spec to init failed", "error", err)
	}
	specW.Close()

	report, _ := io.ReadAll(errR)
	waitErr := cmd.Wait()

	if len(report) > 0 {
		return -1, decodeReport(report)
	}

	code, err := exitStatus(cmd.ProcessState, waitErr)
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	if ctx.Err() != nil {
		return code, ctx.Err()
	}
	return code, nil
}

// Converts a finished process state into an exit code.
func exitStatus(state *os.ProcessState, waitErr error) (int, error) {
	if state == nil {
		return -1, waitErr
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), nil
	}
	return state.ExitCode(), nil
}

// Setup failure reported by init before exec.
type initReport struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func decodeReport(data []byte) error {
	var r initReport
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("%w: malformed init report: %q", ErrSetup, data)
	}

	kind, ok := kinds[r.Kind]
	if !ok {
		kind = ErrSetup
	}
	return fmt.Errorf("%w: %s", kind, r.Message)
}
