package cli

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tugbuild/tug/internal/build"
	"github.com/tugbuild/tug/internal/config"
	"github.com/tugbuild/tug/internal/tugfile"
)

func writeTugfile(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Tugfile")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestReadTugfile(t *testing.T) {
	path := writeTugfile(t, "FROM alpine\nBOGUS line\nEXPOSE 8080\n")

	got, err := readTugfile(path, false)
	require.NoError(t, err)
	assert.Equal(t, tugfile.List{tugfile.From{Image: "alpine"}, tugfile.Expose{Port: 8080}}, got)

	_, err = readTugfile(path, true)
	var lineErr *tugfile.LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 2, lineErr.Line)
}

func TestReadTugfileMissing(t *testing.T) {
	_, err := readTugfile(filepath.Join(t.TempDir(), "Tugfile"), false)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewRunner(t *testing.T) {
	_, ok := newRunner(&config.Config{RunMode: config.RunModeHost}).(build.HostRunner)
	assert.True(t, ok)

	runner, ok := newRunner(&config.Config{RunMode: config.RunModeIsolated}).(build.IsolatedRunner)
	require.True(t, ok)
	assert.NotNil(t, runner.Launcher)
}

func TestExitResult(t *testing.T) {
	assert.NoError(t, exitResult(0, nil))

	var exit *ExitError
	require.ErrorAs(t, exitResult(3, nil), &exit)
	assert.Equal(t, 3, exit.Code)

	setup := errors.New("setup failed")
	assert.Equal(t, setup, exitResult(-1, setup))
}

func TestCommandLine(t *testing.T) {
	parser, err := kong.New(&RootCmd, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"-q", "build", "-f", "app.tug", "--strict"})
	require.NoError(t, err)
	assert.Equal(t, "build", ctx.Command())
	assert.True(t, RootCmd.Quiet)
	assert.True(t, RootCmd.Build.Strict)
	assert.True(t, filepath.IsAbs(RootCmd.Build.File))
	assert.Equal(t, "app.tug", filepath.Base(RootCmd.Build.File))

	ctx, err = parser.Parse([]string{"run", t.TempDir(), "ls", "-l"})
	require.NoError(t, err)
	assert.Contains(t, ctx.Command(), "run")
	assert.Equal(t, []string{"ls", "-l"}, RootCmd.Run.Args)
}

func TestNewLogger(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)
	defer f.Close()

	logger := NewLogger(f, slog.LevelWarn, false)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.False(t, bytes.Contains(data, []byte("hidden")))
	assert.Contains(t, string(data), "shown")
	assert.Contains(t, string(data), "key=value")
}
