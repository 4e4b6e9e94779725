package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tugbuild/tug/internal/build"
	"github.com/tugbuild/tug/internal/config"
	"github.com/tugbuild/tug/internal/registry"
	"github.com/tugbuild/tug/internal/runtime"
	"github.com/tugbuild/tug/internal/tugfile"
)

// Exit status of a program started by 'tug run'. Returned as an error so
// main can exit with the same code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Creates a registry client from the configuration.
func newPuller(cfg *config.Config) *registry.Client {
	return registry.New(registry.Options{
		BaseURL:     cfg.RegistryURL,
		AuthURL:     cfg.AuthURL,
		Service:     cfg.AuthService,
		Platform:    cfg.Platform,
		Retries:     cfg.PullRetries,
		Concurrency: cfg.PullConcurrency,
	})
}

// Returns the runner for RUN instructions selected by the run mode.
func newRunner(cfg *config.Config) build.Runner {
	if cfg.Isolated() {
		slog.Debug("RUN instructions execute isolated")
		return build.IsolatedRunner{Launcher: &runtime.Launcher{}}
	}
	slog.Debug("RUN instructions execute on the host")
	return build.HostRunner{}
}

// Reads and parses a Tugfile. In strict mode any rejected line fails the
// whole file.
func readTugfile(path string, strict bool) (tugfile.List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !strict {
		return tugfile.Parse(string(data)), nil
	}

	instructions, err := tugfile.ParseStrict(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return instructions, nil
}
