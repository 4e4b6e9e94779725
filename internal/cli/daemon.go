package cli

import (
	"context"
	"log/slog"

	"github.com/tugbuild/tug/internal/config"
	"github.com/tugbuild/tug/internal/server"
)

// Represents the 'tug daemon' command.
type DaemonCmd struct{}

// Executes the daemon command.
//
// Starts the server on a Unix domain socket and blocks until the context
// is cancelled (e.g. via SIGINT or SIGTERM) or a client requests shutdown.
func (c *DaemonCmd) Run(ctx context.Context, cfg *config.Config) error {
	srv, err := server.New(server.Config{
		SocketPath:  cfg.SocketPath,
		StagingRoot: cfg.StagingRoot(),
		Puller:      newPuller(cfg),
		Runner:      newRunner(cfg),
		Strict:      cfg.Strict,
		MaxBuilds:   cfg.MaxBuilds,
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	slog.Info("tug daemon is running", "builds", cfg.MaxBuilds, "staging", cfg.StagingRoot())

	select {
	case <-ctx.Done():
	case <-srv.Done():
	}

	slog.Info("shutting down")
	return srv.Stop()
}
