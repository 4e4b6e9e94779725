// Package server implements the tug daemon.
//
// The daemon listens on a Unix domain socket for JSON-encoded commands
// from the tug CLI. Each connection carries a single request-response
// exchange: the client sends a newline-delimited JSON envelope, the
// server dispatches the command, and writes the result back before
// closing the connection. If the client disconnects early, the command's
// context is cancelled.
//
// Supported commands are build, pull, status and shutdown. Builds are
// delegated to the build package; at most MaxBuilds run at once and
// further requests wait for a slot.
//
// Example usage:
//
//	srv, err := server.New(server.Config{
//	    StagingRoot: cfg.StagingRoot(),
//	    Puller:      registry.New(opts),
//	    MaxBuilds:   cfg.MaxBuilds,
//	})
//	if err != nil {
//	    return err
//	}
//
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Stop()
//
//	<-srv.Done()
package server
