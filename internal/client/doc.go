// Package client sends commands to a running tug daemon.
//
// Each call dials the daemon socket, writes one request envelope, and
// reads one response. Cancelling the call's context closes the
// connection, which the daemon observes as a disconnect and uses to
// cancel the command.
package client
