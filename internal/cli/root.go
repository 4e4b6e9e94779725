package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/tugbuild/tug/internal"
	"github.com/tugbuild/tug/internal/config"
)

// Represents the root command.
var RootCmd struct {
	Quiet   bool       `short:"q" help:"Suppress informational output."`
	Verbose bool       `short:"v" help:"Enable verbose output."`
	Debug   bool       `short:"d" help:"Enable debug output."`
	Socket  string     `short:"s" help:"Override the daemon socket path." placeholder:"PATH"`
	Build   BuildCmd   `cmd:"" help:"Build a root filesystem from a Tugfile."`
	Pull    PullCmd    `cmd:"" help:"Extract an image's layers into a directory."`
	Run     RunCmd     `cmd:"" help:"Run a process isolated inside a build."`
	Parse   ParseCmd   `cmd:"" help:"Print a Tugfile's instructions as JSON."`
	Daemon  DaemonCmd  `cmd:"" help:"Serve builds on a Unix socket."`
	Status  StatusCmd  `cmd:"" help:"Show daemon status."`
	Stop    StopCmd    `cmd:"" help:"Stop the daemon."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("A minimal container build-and-run engine.\n\nBuilds root filesystems from Tugfiles and runs processes isolated inside them."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(cfg),
	)

	if RootCmd.Socket != "" {
		cfg.SocketPath = RootCmd.Socket
	}

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	debug := RootCmd.Debug || internal.IsDebug()
	quiet := RootCmd.Quiet || internal.IsQuiet()
	verbose := RootCmd.Verbose || internal.IsVerbose()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	} else if quiet {
		level = slog.LevelWarn
	}

	slog.SetDefault(NewLogger(os.Stderr, level, verbose))
}
