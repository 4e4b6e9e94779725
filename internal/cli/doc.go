// Parses flags, configures logging and dispatches tug's commands.
//
// Global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output (timestamps and callers).
//	-d, --debug     Enable debug output.
//	-s, --socket    Daemon socket path.
//
// Commands:
//
//	build     Build a root filesystem from a Tugfile, locally or on the daemon.
//	pull      Extract an image's layers into a directory.
//	run       Run a process isolated inside a build.
//	parse     Print a Tugfile's instructions as JSON.
//	daemon    Serve builds on a Unix socket.
//	status    Query the daemon.
//	stop      Ask the daemon to shut down.
//	version   Show version information.
//
// Flags override build-time defaults set via linker flags and the
// environment configuration. After parsing, the global logger is
// reconfigured to reflect the final level and verbosity.
package cli
