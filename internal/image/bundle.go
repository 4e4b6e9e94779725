package image

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	rootfsDir  = "rootfs"
	configFile = "config.json"
)

// A build directory holding a rootfs and its image config.
type Bundle struct {
	Dir string
}

// Directory the image filesystem is materialized in.
func (b Bundle) Rootfs() string {
	return filepath.Join(b.Dir, rootfsDir)
}

// Path of the persisted image config.
func (b Bundle) ConfigPath() string {
	return filepath.Join(b.Dir, configFile)
}

// Writes the image config atomically using a temp file and rename.
func (b Bundle) SaveConfig(cfg *ocispec.Image) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := b.ConfigPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmp, b.ConfigPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename config: %w", err)
	}

	return nil
}

// Reads the image config.
func (b Bundle) LoadConfig() (*ocispec.Image, error) {
	data, err := os.ReadFile(b.ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoConfig, b.Dir)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg ocispec.Image
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
