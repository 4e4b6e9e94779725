package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/tugbuild/tug/internal/client"
	"github.com/tugbuild/tug/internal/config"
	"github.com/tugbuild/tug/internal/image"
	"github.com/tugbuild/tug/internal/paths"
	"github.com/tugbuild/tug/internal/protocol"
)

// Represents the 'tug pull' command.
type PullCmd struct {
	Image  string `arg:"" help:"Image reference, e.g. alpine:3.19."`
	Dest   string `arg:"" type:"path" help:"Directory the layers are extracted into."`
	Remote bool   `help:"Pull through the running daemon."`
}

// Executes the pull command. Prints the manifest digest.
func (c *PullCmd) Run(ctx context.Context, cfg *config.Config) error {
	if c.Remote {
		result, err := client.New(cfg.SocketPath).Pull(ctx, &protocol.PullRequest{Image: c.Image, Dest: c.Dest})
		if err != nil {
			return err
		}
		fmt.Println(result.Digest)
		return nil
	}

	if err := os.MkdirAll(c.Dest, paths.DefaultDirMode); err != nil {
		return err
	}

	result, err := newPuller(cfg).Pull(ctx, image.ParseReference(c.Image), c.Dest)
	if err != nil {
		return err
	}

	fmt.Println(result.Digest)
	return nil
}
