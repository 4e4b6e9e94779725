// Package runtime launches processes isolated inside a build's rootfs.
//
// A [Launcher] starts the target program in new UTS, PID, mount, network
// and IPC namespaces with the rootfs as its filesystem root. Go cannot run
// arbitrary code between clone and exec, so the launcher re-executes its own
// binary with the namespace clone flags set; the re-executed process
// recognizes itself in [MaybeInit], reads the process spec from an inherited
// pipe, sets the hostname, pivots into the rootfs, mounts /proc and execs the
// target. Setup failures travel back to the parent over a second
// close-on-exec pipe, so the parent can tell "could not start" from "ran and
// exited non-zero".
//
// Binaries that use the launcher must call [MaybeInit] first thing in main
// (and in TestMain for tests that launch processes).
//
// Namespaces require root (or CAP_SYS_ADMIN). Unprivileged attempts fail with
// [ErrPrivilegeDenied]; non-Linux platforms fail with [ErrUnsupported].
//
// Example usage:
//
//	code, err := runtime.Launch(ctx, "/bin/sh", []string{"-c", "hostname"}, rootfs)
//	if err != nil {
//	    return err
//	}
//	os.Exit(code)
package runtime
