package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tugbuild/tug/internal/client"
	"github.com/tugbuild/tug/internal/image"
	"github.com/tugbuild/tug/internal/protocol"
	"github.com/tugbuild/tug/internal/registry"
	"github.com/tugbuild/tug/internal/tugfile"
)

// Writes a marker file into every pull destination. When gate is set, each
// pull signals entered and then blocks until gate is closed.
type fakePuller struct {
	err     error
	gate    chan struct{}
	entered chan struct{}

	mu    sync.Mutex
	pulls int
}

func (p *fakePuller) Pull(ctx context.Context, ref image.Reference, dest string) (*registry.PullResult, error) {
	p.mu.Lock()
	p.pulls++
	p.mu.Unlock()

	if p.gate != nil {
		p.entered <- struct{}{}
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dest, "marker"), []byte(ref.String()), 0644); err != nil {
		return nil, err
	}

	cfg := ocispec.Image{}
	cfg.Config.Env = []string{"PATH=/bin"}
	return &registry.PullResult{Digest: "sha256:abc", Config: cfg}, nil
}

func (p *fakePuller) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pulls
}

func startServer(t *testing.T, puller *fakePuller, maxBuilds int) (*Server, *client.Client) {
	t.Helper()

	dir := t.TempDir()
	srv, err := New(Config{
		SocketPath:  filepath.Join(dir, "tug.sock"),
		PIDFile:     filepath.Join(dir, "tug.pid"),
		StagingRoot: filepath.Join(dir, "builds"),
		Puller:      puller,
		MaxBuilds:   maxBuilds,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })

	return srv, client.New(srv.socketPath)
}

func TestNewRequiresPuller(t *testing.T) {
	_, err := New(Config{StagingRoot: t.TempDir()})
	require.ErrorIs(t, err, ErrServer)
}

func TestStartWritesPIDFile(t *testing.T) {
	srv, _ := startServer(t, &fakePuller{}, 1)

	data, err := os.ReadFile(srv.pidFile)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	require.NoError(t, srv.Stop())
	assert.NoFileExists(t, srv.pidFile)
	assert.NoFileExists(t, srv.socketPath)
}

func TestStatus(t *testing.T) {
	_, c := startServer(t, &fakePuller{}, 1)

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.Pid)
	assert.Zero(t, status.Builds)
}

func TestBuild(t *testing.T) {
	_, c := startServer(t, &fakePuller{}, 1)

	result, err := c.Build(context.Background(), &protocol.BuildRequest{
		Instructions: tugfile.List{
			tugfile.Copy{Src: "a", Dest: "b"},
			tugfile.From{Image: "alpine"},
			tugfile.Env{Key: "MODE", Value: "prod"},
			tugfile.Workdir{Path: "/app"},
		},
		ContextDir: t.TempDir(),
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.BuildID)
	assert.FileExists(t, filepath.Join(result.Rootfs, "marker"))
	assert.DirExists(t, filepath.Join(result.Rootfs, "app"))
	assert.FileExists(t, filepath.Join(result.Dir, "config.json"))
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "COPY")

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Builds)
}

func TestBuildFailure(t *testing.T) {
	_, c := startServer(t, &fakePuller{err: errors.New("registry down")}, 1)

	_, err := c.Build(context.Background(), &protocol.BuildRequest{
		Instructions: tugfile.List{tugfile.From{Image: "alpine"}},
		ContextDir:   t.TempDir(),
	})
	require.ErrorIs(t, err, client.ErrDaemon)
	assert.Contains(t, err.Error(), "step 1 (FROM)")
	assert.Contains(t, err.Error(), "registry down")

	var daemonErr *client.DaemonError
	require.ErrorAs(t, err, &daemonErr)
	assert.NotEmpty(t, daemonErr.BuildID)
	assert.DirExists(t, daemonErr.Dir)
}

func TestBuildRejectsRelativeContext(t *testing.T) {
	puller := &fakePuller{}
	_, c := startServer(t, puller, 1)

	_, err := c.Build(context.Background(), &protocol.BuildRequest{
		Instructions: tugfile.List{tugfile.From{Image: "alpine"}},
		ContextDir:   "relative/dir",
	})
	require.ErrorIs(t, err, client.ErrDaemon)
	assert.Contains(t, err.Error(), "absolute")
	assert.Zero(t, puller.count())
}

func TestBuildWaitsForSlot(t *testing.T) {
	puller := &fakePuller{gate: make(chan struct{}), entered: make(chan struct{}, 2)}
	_, c := startServer(t, puller, 1)

	req := &protocol.BuildRequest{
		Instructions: tugfile.List{tugfile.From{Image: "alpine"}},
		ContextDir:   t.TempDir(),
	}

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := c.Build(context.Background(), req)
			errs <- err
		}()
	}

	<-puller.entered
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, puller.count(), "second build should wait for a slot")

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Active)

	close(puller.gate)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Equal(t, 2, puller.count())
}

func TestPull(t *testing.T) {
	_, c := startServer(t, &fakePuller{}, 1)
	dest := filepath.Join(t.TempDir(), "rootfs")

	result, err := c.Pull(context.Background(), &protocol.PullRequest{Image: "alpine:3.19", Dest: dest})
	require.NoError(t, err)
	assert.Equal(t, "sha256:abc", result.Digest)
	assert.Equal(t, dest, result.Dest)
	assert.FileExists(t, filepath.Join(dest, "marker"))
}

func TestPullRejectsRelativeDest(t *testing.T) {
	_, c := startServer(t, &fakePuller{}, 1)

	_, err := c.Pull(context.Background(), &protocol.PullRequest{Image: "alpine", Dest: "rootfs"})
	require.ErrorIs(t, err, client.ErrDaemon)
}

func TestUnknownCommand(t *testing.T) {
	srv, _ := startServer(t, &fakePuller{}, 1)

	conn, err := net.Dial("unix", srv.socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"command":"explode"}` + "\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	env, payload, err := protocol.Decode(line)
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdError, env.Command)

	msg, err := protocol.DecodePayload[protocol.ErrorResult](payload)
	require.NoError(t, err)
	assert.Contains(t, msg.Message, "unknown command")
}

func TestShutdown(t *testing.T) {
	srv, c := startServer(t, &fakePuller{}, 1)

	require.NoError(t, c.Shutdown(context.Background()))

	select {
	case <-srv.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err := c.Status(context.Background())
	require.ErrorIs(t, err, client.ErrUnavailable)
}

func TestContextWithDisconnect(t *testing.T) {
	r, w := io.Pipe()

	ctx, cancel := contextWithDisconnect(context.Background(), r)
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before disconnect")
	default:
	}

	w.Close()

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled after disconnect")
	}
}
