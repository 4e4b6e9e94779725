package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"
)

const (
	specFD   = 3
	reportFD = 4

	// Exit status of an init that failed before exec.
	initFailed = 125

	// Where the old root sits between pivot_root and unmount.
	oldRootDir = ".oldroot"
)

// Runs the container init if this process was started by a [Launcher], and
// never returns in that case. Otherwise it returns immediately.
func MaybeInit() {
	if len(os.Args) == 0 || os.Args[0] != initArg0 {
		return
	}

	report := os.NewFile(reportFD, "report")
	unix.CloseOnExec(reportFD)

	err := initContainer()

	json.NewEncoder(report).Encode(initReport{Kind: kindName(err), Message: err.Error()})
	report.Close()
	os.Exit(initFailed)
}

// Sets up the container and execs its program. Returns only on failure.
func initContainer() error {
	spec, err := readSpec()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}

	if hasNamespace(spec, specs.UTSNamespace) && spec.Hostname != "" {
		if err := unix.Sethostname([]byte(spec.Hostname)); err != nil {
			return fmt.Errorf("%w: sethostname: %w", classify(err), err)
		}
	}

	if err := pivotRoot(spec.Root.Path, hasNamespace(spec, specs.PIDNamespace)); err != nil {
		return fmt.Errorf("%w: %w", classify(err), err)
	}

	os.Clearenv()
	for _, kv := range spec.Process.Env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			os.Setenv(k, v)
		}
	}

	cwd := spec.Process.Cwd
	if cwd == "" {
		cwd = "/"
	}
	if err := os.MkdirAll(cwd, 0755); err != nil {
		return fmt.Errorf("%w: create working directory: %w", ErrSetup, err)
	}
	if err := os.Chdir(cwd); err != nil {
		return fmt.Errorf("%w: chdir %s: %w", ErrSetup, cwd, err)
	}

	args := spec.Process.Args
	path, err := exec.LookPath(args[0])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExec, err)
	}

	err = unix.Exec(path, args, spec.Process.Env)
	return fmt.Errorf("%w: exec %s: %w", ErrExec, path, err)
}

func readSpec() (*specs.Spec, error) {
	f := os.NewFile(specFD, "spec")
	defer f.Close()

	var spec specs.Spec
	if err := json.NewDecoder(f).Decode(&spec); err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	if spec.Process == nil || len(spec.Process.Args) == 0 || spec.Root == nil {
		return nil, fmt.Errorf("incomplete spec")
	}
	return &spec, nil
}

// Makes root the filesystem root of the mount namespace.
//
// Mount propagation is made private first so nothing leaks back to the
// host. root is bind-mounted onto itself because pivot_root requires a
// mount point. A fresh /proc is mounted when the process has its own PID
// namespace. The old root is detached and removed.
func pivotRoot(root string, mountProc bool) error {
	if err := unix.Mount("", "/", "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("make mounts private: %w", err)
	}

	if err := unix.Mount(root, root, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("bind mount rootfs: %w", err)
	}

	oldRoot := filepath.Join(root, oldRootDir)
	if err := os.MkdirAll(oldRoot, 0700); err != nil {
		return fmt.Errorf("create old root dir: %w", err)
	}

	if err := unix.PivotRoot(root, oldRoot); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}
	if err := unix.Chdir("/"); err != nil {
		return fmt.Errorf("chdir to new root: %w", err)
	}

	if mountProc {
		if err := os.MkdirAll("/proc", 0555); err != nil {
			return fmt.Errorf("create /proc: %w", err)
		}
		if err := unix.Mount("proc", "/proc", "proc", unix.MS_NOSUID|unix.MS_NODEV|unix.MS_NOEXEC, ""); err != nil {
			return fmt.Errorf("mount /proc: %w", err)
		}
	}

	pivotDir := "/" + oldRootDir
	if err := unix.Unmount(pivotDir, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("unmount old root: %w", err)
	}
	if err := os.Remove(pivotDir); err != nil {
		return fmt.Errorf("remove old root dir: %w", err)
	}

	return nil
}
