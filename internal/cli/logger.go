package cli

import (
	"log/slog"
	"os"

	"github.com/charmbracelet/log"

	"github.com/tugbuild/tug/internal"
)

// Creates a logger writing to f. Output is human-readable text when f is a
// terminal and logfmt otherwise. Verbose output adds timestamps and the
// calling source location.
func NewLogger(f *os.File, level slog.Level, verbose bool) *slog.Logger {
	formatter := log.LogfmtFormatter
	if isatty(f) {
		formatter = log.TextFormatter
	}

	handler := log.NewWithOptions(f, log.Options{
		Level:           log.Level(level),
		Prefix:          internal.Name,
		Formatter:       formatter,
		ReportTimestamp: verbose,
		ReportCaller:    verbose,
	})
	return slog.New(handler)
}

// Whether the given file is an interactive terminal.
func isatty(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
