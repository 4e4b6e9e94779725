package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/tugbuild/tug/internal"
	"github.com/tugbuild/tug/internal/cli"
	"github.com/tugbuild/tug/internal/runtime"
)

// The entry point for tug.
//
// A process re-executed as container init is handed off before anything
// else runs. Otherwise logging is initialized and the root command
// executed. A program started by 'tug run' passes its exit status through;
// any other error exits with 1.
func main() {
	runtime.MaybeInit()

	slog.SetDefault(cli.NewLogger(os.Stderr, logLevel(), internal.IsVerbose()))

	slog.Debug("build", "version", internal.VersionString())

	slog.Debug("tug is running",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	if err := cli.Execute(); err != nil {
		var exit *cli.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// Returns the log level derived from build-time linker flags.
func logLevel() slog.Level {
	if internal.IsDebug() {
		return slog.LevelDebug
	}
	if internal.IsQuiet() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Returns the current working directory or "(unknown)".
func cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return cwd
}
