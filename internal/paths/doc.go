// Provides platform-appropriate paths for tug.
//
// Runtime files (the daemon socket and PID file) follow XDG conventions. Build
// staging lives under the XDG data directory for regular users and under
// /var/lib/tug when running as root, matching where a system daemon keeps
// its state.
package paths
