// Package protocol defines the messages exchanged between the tug CLI and
// the daemon.
//
// Every message is a single JSON envelope terminated by a newline:
//
//	{"command":"build","payload":{"instructions":[...],"context_dir":"/src"}}
//
// A connection carries exactly one request and one response. Successful
// responses use [CmdOK]; failures use [CmdError] with an [ErrorResult]
// payload.
package protocol
