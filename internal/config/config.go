// Package config loads the analyser's configuration from TOML files and
// ANALYSER_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/pelletier/go-toml/v2"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/database"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/telemetry"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvAnalyserEnv             = "ANALYSER_ENV"
	EnvAnalyserShutdownTimeout = "ANALYSER_SHUTDOWN_TIMEOUT"
	EnvAnalyserVersion         = "ANALYSER_VERSION"
)

var databaseEnv = &database.Env{
	Driver:          "ANALYSER_DB_DRIVER",
	DSN:             "ANALYSER_DB_DSN",
	MaxOpenConns:    "ANALYSER_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "ANALYSER_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "ANALYSER_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "ANALYSER_DB_CONN_TIMEOUT",
}

var telemetryEnv = &telemetry.Env{
	Endpoint:       "ANALYSER_OTEL_ENDPOINT",
	ServiceName:    "ANALYSER_OTEL_SERVICE_NAME",
	Insecure:       "ANALYSER_OTEL_INSECURE",
	ExportInterval: "ANALYSER_OTEL_EXPORT_INTERVAL",
}

// Config is the root configuration shared by the server, worker, and migrate commands.
type Config struct {
	Server          ServerConfig         `toml:"server"`
	Database        database.Config      `toml:"database"`
	Queue           QueueConfig          `toml:"queue"`
	Artifacts       ArtifactsConfig      `toml:"artifacts"`
	API             APIConfig            `toml:"api"`
	Agent           gaconfig.AgentConfig `toml:"agent"`
	Pipeline        PipelineConfig       `toml:"pipeline"`
	Search          SearchConfig         `toml:"search"`
	Telemetry       telemetry.Config     `toml:"telemetry"`
	User            UserConfig           `toml:"user"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// Env returns the ANALYSER_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvAnalyserEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Queue.Merge(&overlay.Queue)
	c.Artifacts.Merge(&overlay.Artifacts)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Search.Merge(&overlay.Search)
	c.Telemetry.Merge(&overlay.Telemetry)
	c.User.Merge(&overlay.User)
}

// Finalize applies defaults, environment overrides, and validation to every section.
// The queue database inherits the persistence database unless configured separately.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Queue.Finalize(&c.Database); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if err := c.Artifacts.Finalize(); err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := FinalizeAgent(&c.Agent); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Pipeline.Finalize(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Search.Finalize(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Telemetry.Finalize(telemetryEnv); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := c.User.Finalize(); err != nil {
		return fmt.Errorf("user: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvAnalyserShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvAnalyserVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvAnalyserEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
