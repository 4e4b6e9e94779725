package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/tugbuild/tug/internal/image"
	"github.com/tugbuild/tug/internal/paths"
	"github.com/tugbuild/tug/internal/tugfile"
)

// Bytes of RUN stderr kept for error reports.
const stderrTail = 2048

// Applies instructions to the build. One executor serves one build.
type executor struct {
	ctx  context.Context
	opts Options

	buildID  string
	bundle   image.Bundle
	context  *Context
	state    *stepState
	config   *ocispec.Image
	cmdSet   bool // CMD given since the last FROM.
	warnings []Warning
}

var _ tugfile.Visitor = (*executor)(nil)

func newExecutor(ctx context.Context, opts Options) *executor {
	return &executor{ctx: ctx, opts: opts}
}

// Executes instructions in order, stopping at the first failure.
func (e *executor) execute(instructions []tugfile.Instruction) error {
	for i, inst := range instructions {
		if err := e.ctx.Err(); err != nil {
			return &StepError{Index: i, Keyword: inst.Keyword(), Err: err}
		}

		if e.context == nil && inst.Keyword() != tugfile.KeywordFrom {
			if e.opts.Strict {
				return &StepError{Index: i, Keyword: inst.Keyword(), Err: ErrContextMissing}
			}
			w := Warning{Index: i, Keyword: inst.Keyword(), Err: ErrContextMissing}
			slog.Warn("skipping instruction", "step", i+1, "instruction", inst.String(), "reason", ErrContextMissing)
			e.warnings = append(e.warnings, w)
			continue
		}

		slog.Info(fmt.Sprintf("step %d/%d: %s", i+1, len(instructions), inst))

		if err := inst.Accept(e); err != nil {
			return &StepError{Index: i, Keyword: inst.Keyword(), Err: err}
		}
	}
	return nil
}

// Starts a new context from a freshly pulled base image, discarding the
// directory of any earlier FROM in this build.
func (e *executor) VisitFrom(in tugfile.From) error {
	if e.bundle.Dir != "" {
		slog.Debug("discarding previous build directory", "dir", e.bundle.Dir)
		if err := os.RemoveAll(e.bundle.Dir); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
		e.context = nil
		e.bundle = image.Bundle{}
		e.buildID = ""
	}

	id := uuid.NewString()
	bundle := image.Bundle{Dir: paths.Build(e.opts.StagingRoot, id)}

	// Mkdir, not MkdirAll: the directory must be new.
	if err := os.Mkdir(bundle.Dir, paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	e.buildID = id
	e.bundle = bundle

	ref := image.ParseReference(in.Image)
	slog.Info("pulling base image", "image", ref.String(), "build", id)

	res, err := e.opts.Puller.Pull(e.ctx, ref, bundle.Rootfs())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPull, ref, err)
	}

	cfg := res.Config
	e.config = &cfg
	e.state = newStepState(cfg.Config.Env)
	e.config.Config.Env = e.state.environ()
	e.cmdSet = false
	e.context = &Context{Rootfs: bundle.Rootfs(), Workdir: bundle.Rootfs()}

	if wd := cfg.Config.WorkingDir; wd != "" {
		dir, err := e.context.Resolve(wd)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
		e.context.Workdir = dir
	}

	return e.saveConfig()
}

func (e *executor) VisitRun(in tugfile.Run) error {
	tail := &tailBuffer{max: stderrTail}

	req := RunRequest{
		Context: *e.context,
		Shell:   e.state.shell,
		Command: in.Command,
		Env:     e.state.environ(),
		Stdout:  e.opts.Stdout,
		Stderr:  io.MultiWriter(e.opts.Stderr, tail),
	}

	slog.Debug("run", "command", in.Command, "workdir", e.context.ContainerPath(e.context.Workdir))

	code, err := e.opts.Runner.Run(e.ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommandFailed, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: exit code %d: %s", ErrCommandFailed, code, strings.TrimSpace(tail.String()))
	}
	return nil
}

func (e *executor) VisitCopy(in tugfile.Copy) error {
	src, dest, err := e.expandPair(in.Src, in.Dest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}
	return e.copyLocal(src, dest)
}

func (e *executor) VisitAdd(in tugfile.Add) error {
	src, dest, err := e.expandPair(in.Src, in.Dest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}
	return e.add(src, dest)
}

func (e *executor) VisitCmd(in tugfile.Cmd) error {
	e.config.Config.Cmd = commandForm(in.Command)
	e.cmdSet = true
	return e.saveConfig()
}

// Sets the entrypoint. A CMD inherited from the base image is cleared, since
// it was written for the base image's entrypoint.
func (e *executor) VisitEntrypoint(in tugfile.Entrypoint) error {
	e.config.Config.Entrypoint = commandForm(in.Command)
	if !e.cmdSet {
		e.config.Config.Cmd = nil
	}
	return e.saveConfig()
}

func (e *executor) VisitWorkdir(in tugfile.Workdir) error {
	p, err := e.state.expand(in.Path)
	if err != nil {
		return err
	}

	dir, err := e.context.Resolve(p)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	e.context.Workdir = dir
	e.config.Config.WorkingDir = e.context.ContainerPath(dir)
	return e.saveConfig()
}

func (e *executor) VisitExpose(in tugfile.Expose) error {
	if e.config.Config.ExposedPorts == nil {
		e.config.Config.ExposedPorts = make(map[string]struct{})
	}
	e.config.Config.ExposedPorts[strconv.Itoa(int(in.Port))+"/tcp"] = struct{}{}
	return e.saveConfig()
}

func (e *executor) VisitEnv(in tugfile.Env) error {
	value, err := e.state.expand(in.Value)
	if err != nil {
		return err
	}

	e.state.set(in.Key, value)
	e.config.Config.Env = e.state.environ()
	return e.saveConfig()
}

func (e *executor) saveConfig() error {
	if err := e.bundle.SaveConfig(e.config); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

func (e *executor) expandPair(a, b string) (string, string, error) {
	x, err := e.state.expand(a)
	if err != nil {
		return "", "", err
	}
	y, err := e.state.expand(b)
	if err != nil {
		return "", "", err
	}
	return x, y, nil
}

// Parses a CMD or ENTRYPOINT payload. A JSON string array is used as the
// argument vector as-is; anything else runs through the shell.
func commandForm(s string) []string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var argv []string
		if err := json.Unmarshal([]byte(s), &argv); err == nil {
			return argv
		}
	}
	return []string{defaultShell, "-c", s}
}
