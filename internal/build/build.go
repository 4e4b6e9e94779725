package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tugbuild/tug/internal/image"
	"github.com/tugbuild/tug/internal/paths"
	"github.com/tugbuild/tug/internal/registry"
	"github.com/tugbuild/tug/internal/tugfile"
)

// Fetches a base image into a directory.
type Puller interface {
	Pull(ctx context.Context, ref image.Reference, dest string) (*registry.PullResult, error)
}

// Controls build execution.
type Options struct {
	Instructions []tugfile.Instruction // Instructions to execute, in order.
	StagingRoot  string                // Parent directory of build directories.
	ContextDir   string                // Root for COPY and ADD sources. Defaults to ".".
	Puller       Puller                // Source of base images.
	Runner       Runner                // Executes RUN. Defaults to [HostRunner].
	Strict       bool                  // Fail on instructions before FROM instead of skipping them.
	HTTPClient   *http.Client          // Used by ADD for URL sources.
	Stdout       io.Writer             // RUN output. Nil discards.
	Stderr       io.Writer
}

// Returned after successful build execution.
type Result struct {
	Success  bool      // False when an instruction failed.
	BuildID  string    // Empty if the instructions contained no FROM.
	Dir      string    // Build directory holding rootfs/ and config.json.
	Rootfs   string    // Materialized root filesystem.
	Warnings []Warning // Instructions skipped for lack of a context.
}

// Executes the instructions in order.
//
// Execution stops at the first failing instruction, returning a
// [*StepError] together with a result whose Success is false. The failed
// build's directory is left in place for inspection and named in that
// result. Errors raised before any instruction runs return a nil result.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Puller == nil {
		return nil, fmt.Errorf("%w: no image puller configured", ErrBuild)
	}
	if opts.Runner == nil {
		opts.Runner = HostRunner{}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.ContextDir == "" {
		opts.ContextDir = "."
	}

	contextDir, err := filepath.Abs(opts.ContextDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	opts.ContextDir = contextDir

	slog.Info("executing build",
		"instructions", len(opts.Instructions),
		"staging", opts.StagingRoot,
		"context", opts.ContextDir,
	)

	if err := os.MkdirAll(opts.StagingRoot, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	e := newExecutor(ctx, opts)
	err = e.execute(opts.Instructions)

	result := &Result{
		Success:  err == nil,
		BuildID:  e.buildID,
		Dir:      e.bundle.Dir,
		Warnings: e.warnings,
	}
	if e.bundle.Dir != "" {
		result.Rootfs = e.bundle.Rootfs()
	}
	if err != nil {
		return result, err
	}

	slog.Info("build complete", "id", result.BuildID, "warnings", len(result.Warnings))

	return result, nil
}
