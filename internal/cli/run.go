package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/tugbuild/tug/internal/config"
	"github.com/tugbuild/tug/internal/image"
	"github.com/tugbuild/tug/internal/runtime"
)

// Program started when neither the arguments nor the image name one.
const defaultShell = "/bin/sh"

// Represents the 'tug run' command.
type RunCmd struct {
	Bundle string   `arg:"" type:"existingdir" help:"Build directory, or a bare root filesystem."`
	Args   []string `arg:"" optional:"" passthrough:"" help:"Program and arguments. Defaults to the image's entrypoint and command."`
}

// Executes the run command.
//
// A build directory contributes its image config: entrypoint, command,
// environment and working directory. Any other directory is used as the
// root filesystem directly. The program's exit status becomes tug's.
func (c *RunCmd) Run(ctx context.Context, cfg *config.Config) error {
	bundle := image.Bundle{Dir: c.Bundle}

	imgCfg, err := bundle.LoadConfig()
	if errors.Is(err, image.ErrNoConfig) {
		return c.runRootfs(ctx)
	}
	if err != nil {
		return err
	}

	spec := runtime.NewSpec(imgCfg.Config, bundle.Rootfs(), c.Args, nil)
	if len(spec.Process.Args) == 0 {
		spec.Process.Args = []string{defaultShell}
	}

	slog.Debug("running bundle", "dir", bundle.Dir, "args", spec.Process.Args)

	code, err := (&runtime.Launcher{}).Run(ctx, spec, runtime.Stdio{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	return exitResult(code, err)
}

func (c *RunCmd) runRootfs(ctx context.Context) error {
	program, args := defaultShell, []string(nil)
	if len(c.Args) > 0 {
		program, args = c.Args[0], c.Args[1:]
	}

	slog.Debug("running root filesystem", "dir", c.Bundle, "program", program)

	code, err := runtime.Launch(ctx, program, args, c.Bundle)
	return exitResult(code, err)
}

func exitResult(code int, err error) error {
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
