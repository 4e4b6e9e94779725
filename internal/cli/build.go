package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tugbuild/tug/internal/build"
	"github.com/tugbuild/tug/internal/client"
	"github.com/tugbuild/tug/internal/config"
	"github.com/tugbuild/tug/internal/protocol"
	"github.com/tugbuild/tug/internal/tugfile"
)

// Represents the 'tug build' command.
type BuildCmd struct {
	File    string `short:"f" default:"Tugfile" type:"path" help:"Tugfile to build."`
	Context string `short:"C" default:"." type:"path" help:"Directory COPY and ADD sources are resolved against."`
	Strict  bool   `help:"Fail on malformed lines and on instructions before FROM."`
	Remote  bool   `help:"Send the build to the running daemon."`
}

// Executes the build command.
//
// Prints the build directory on stdout so it can be passed to 'tug run'.
// RUN output goes to stderr.
func (c *BuildCmd) Run(ctx context.Context, cfg *config.Config) error {
	strict := c.Strict || cfg.Strict

	instructions, err := readTugfile(c.File, strict)
	if err != nil {
		return err
	}

	if c.Remote {
		return c.runRemote(ctx, cfg, instructions)
	}

	result, err := build.Run(ctx, build.Options{
		Instructions: instructions,
		StagingRoot:  cfg.StagingRoot(),
		ContextDir:   c.Context,
		Puller:       newPuller(cfg),
		Runner:       newRunner(cfg),
		Strict:       strict,
		Stdout:       os.Stderr,
		Stderr:       os.Stderr,
	})
	if err != nil {
		if result != nil && result.Dir != "" {
			slog.Warn("failed build kept for inspection", "dir", result.Dir)
		}
		return err
	}

	if result.Dir != "" {
		fmt.Println(result.Dir)
	}
	return nil
}

func (c *BuildCmd) runRemote(ctx context.Context, cfg *config.Config, instructions tugfile.List) error {
	result, err := client.New(cfg.SocketPath).Build(ctx, &protocol.BuildRequest{
		Instructions: instructions,
		ContextDir:   c.Context,
		Strict:       c.Strict || cfg.Strict,
	})
	if err != nil {
		var daemonErr *client.DaemonError
		if errors.As(err, &daemonErr) && daemonErr.Dir != "" {
			slog.Warn("failed build kept for inspection", "dir", daemonErr.Dir)
		}
		return err
	}

	for _, w := range result.Warnings {
		slog.Warn("skipped instruction", "detail", w)
	}
	slog.Info("build complete", "id", result.BuildID)

	if result.Dir != "" {
		fmt.Println(result.Dir)
	}
	return nil
}
