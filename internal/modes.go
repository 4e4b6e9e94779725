package internal

import (
	"strconv"
	"sync/atomic"
)

// Linker defaults for the output modes. CLI flags can only turn them on.
var (
	rawQuiet   = "false"
	rawDebug   = "false"
	rawVerbose = "false"
)

var quiet, debug, verbose atomic.Bool

func init() {
	for _, m := range []struct {
		raw  string
		mode *atomic.Bool
	}{
		{rawQuiet, &quiet},
		{rawDebug, &debug},
		{rawVerbose, &verbose},
	} {
		if v, err := strconv.ParseBool(m.raw); err == nil {
			m.mode.Store(v)
		}
	}
}

// Enables or disables quiet mode.
func SetQuiet(enabled bool) { quiet.Store(enabled) }

// Returns true if quiet mode is enabled.
func IsQuiet() bool { return quiet.Load() }

// Enables or disables debug logging.
func SetDebug(enabled bool) { debug.Store(enabled) }

// Returns true if debug logging is enabled.
func IsDebug() bool { return debug.Load() }

// Enables or disables verbose logging.
func SetVerbose(enabled bool) { verbose.Store(enabled) }

// Returns true if verbose logging is enabled.
func IsVerbose() bool { return verbose.Load() }
