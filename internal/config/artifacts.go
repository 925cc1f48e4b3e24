package config

import (
	"fmt"
	"os"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/storage"
)

const EnvArtifactsDir = "ANALYSER_ARTIFACTS_DIR"

var storageEnv = &storage.Env{
	ContainerName:    "ANALYSER_STORAGE_CONTAINER_NAME",
	ConnectionString: "ANALYSER_STORAGE_CONNECTION_STRING",
	Prefix:           "ANALYSER_STORAGE_PREFIX",
}

// ArtifactsConfig locates the local staging directory and the optional blob mirror.
type ArtifactsConfig struct {
	Dir     string         `toml:"dir"`
	Storage storage.Config `toml:"storage"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ArtifactsConfig) Finalize() error {
	if c.Dir == "" {
		c.Dir = "data"
	}
	if v := os.Getenv(EnvArtifactsDir); v != "" {
		c.Dir = v
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *ArtifactsConfig) Merge(overlay *ArtifactsConfig) {
	if overlay.Dir != "" {
		c.Dir = overlay.Dir
	}
	c.Storage.Merge(&overlay.Storage)
}
