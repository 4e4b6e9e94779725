package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	appName = "tug"

	// State directory used when running as root.
	systemDataDir = "/var/lib/tug"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory for runtime files (sockets, PIDs).
//
//	Linux:   $XDG_RUNTIME_DIR/tug or /run/user/<uid>/tug
//	macOS:   ~/Library/Caches/tug/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, appName)
	}
	return filepath.Join(xdg.CacheHome, appName, "run")
}

// Default path to the Unix domain socket for CLI-to-daemon communication.
func Socket() string {
	return filepath.Join(Runtime(), "tugd.sock")
}

// Default path to the daemon PID file.
func PIDFile() string {
	return filepath.Join(Runtime(), "tugd.pid")
}

// Root of tug's persistent state.
//
//	root:    /var/lib/tug
//	others:  $XDG_DATA_HOME/tug
func Data() string {
	if os.Geteuid() == 0 {
		return systemDataDir
	}
	return filepath.Join(xdg.DataHome, appName)
}

// Staging root for builds under the given data directory. Each build
// creates its own subdirectory named by its build identifier.
func Builds(dataDir string) string {
	return filepath.Join(dataDir, "builds")
}

// Directory of a single build under a staging root.
func Build(stagingRoot, id string) string {
	return filepath.Join(stagingRoot, id)
}
