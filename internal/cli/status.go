package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tugbuild/tug/internal/client"
	"github.com/tugbuild/tug/internal/config"
)

// Represents the 'tug status' command.
type StatusCmd struct{}

// Executes the status command.
func (c *StatusCmd) Run(ctx context.Context, cfg *config.Config) error {
	status, err := client.New(cfg.SocketPath).Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("version: %s\n", status.Version)
	fmt.Printf("pid:     %d\n", status.Pid)
	fmt.Printf("uptime:  %s\n", status.Uptime)
	fmt.Printf("builds:  %d completed, %d active\n", status.Builds, status.Active)
	return nil
}

// Represents the 'tug stop' command.
type StopCmd struct{}

// Executes the stop command.
func (c *StopCmd) Run(ctx context.Context, cfg *config.Config) error {
	if err := client.New(cfg.SocketPath).Shutdown(ctx); err != nil {
		return err
	}
	slog.Info("shutdown requested")
	return nil
}
