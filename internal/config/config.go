// Package config loads tug's settings from the environment.
//
// A .env file in the working directory is read first if present; real
// environment variables take precedence over it. CLI flags override the
// loaded values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/containerd/platforms"
	"github.com/joho/godotenv"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/tugbuild/tug/internal/paths"
)

// Ways of executing RUN instructions.
const (
	RunModeHost     = "host"     // Run on the host with cwd inside the rootfs.
	RunModeIsolated = "isolated" // Run inside new namespaces rooted at the rootfs.
	RunModeAuto     = "auto"     // Isolated when running as root, host otherwise.
)

type Config struct {
	DataDir         string           // Root of persistent state; builds stage under DataDir/builds.
	SocketPath      string           // Daemon socket.
	RegistryURL     string           // Registry API base URL.
	AuthURL         string           // Bearer token endpoint. Empty (TUG_AUTH_URL=none) disables authentication.
	AuthService     string           // Service parameter sent to the token endpoint.
	Platform        ocispec.Platform // Platform selected from manifest lists.
	PullRetries     uint             // Attempts per manifest/blob request; 0 and 1 both mean a single attempt.
	PullConcurrency int              // Parallel layer downloads.
	Strict          bool             // Fail builds on malformed lines and instructions before FROM.
	RunMode         string           // One of the RunMode constants.
	MaxBuilds       int              // Concurrent builds accepted by the daemon.
}

// Load loads configuration from environment variables.
// Automatically loads .env file if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	platform, err := platforms.Parse(getEnv("TUG_PLATFORM", "linux/amd64"))
	if err != nil {
		return nil, fmt.Errorf("TUG_PLATFORM: %w", err)
	}

	retries, err := getUint("TUG_PULL_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	concurrency, err := getUint("TUG_PULL_CONCURRENCY", 3)
	if err != nil {
		return nil, err
	}
	maxBuilds, err := getUint("TUG_MAX_BUILDS", 2)
	if err != nil {
		return nil, err
	}
	strict, err := strconv.ParseBool(getEnv("TUG_STRICT", "false"))
	if err != nil {
		return nil, fmt.Errorf("TUG_STRICT: %w", err)
	}

	runMode := getEnv("TUG_RUN_MODE", RunModeAuto)
	switch runMode {
	case RunModeHost, RunModeIsolated, RunModeAuto:
	default:
		return nil, fmt.Errorf("TUG_RUN_MODE: unknown mode %q", runMode)
	}

	authURL := getEnv("TUG_AUTH_URL", "https://auth.docker.io/token")
	if authURL == "none" {
		authURL = ""
	}

	return &Config{
		DataDir:         getEnv("TUG_DATA_DIR", paths.Data()),
		SocketPath:      getEnv("TUG_SOCKET", paths.Socket()),
		RegistryURL:     getEnv("TUG_REGISTRY_URL", "https://registry-1.docker.io"),
		AuthURL:         authURL,
		AuthService:     getEnv("TUG_AUTH_SERVICE", "registry.docker.io"),
		Platform:        platforms.Normalize(platform),
		PullRetries:     uint(retries),
		PullConcurrency: int(max(concurrency, 1)),
		Strict:          strict,
		RunMode:         runMode,
		MaxBuilds:       int(max(maxBuilds, 1)),
	}, nil
}

// Staging root for build directories.
func (c *Config) StagingRoot() string {
	return paths.Builds(c.DataDir)
}

// Reports whether RUN instructions should go through the isolation
// launcher.
func (c *Config) Isolated() bool {
	switch c.RunMode {
	case RunModeIsolated:
		return true
	case RunModeHost:
		return false
	default:
		return os.Geteuid() == 0
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getUint(key string, defaultValue uint64) (uint64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
