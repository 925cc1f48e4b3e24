package telemetry

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds OTLP export settings. An empty endpoint disables export.
type Config struct {
	Endpoint       string `toml:"endpoint"`
	ServiceName    string `toml:"service_name"`
	Insecure       bool   `toml:"insecure"`
	ExportInterval string `toml:"export_interval"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Endpoint       string
	ServiceName    string
	Insecure       string
	ExportInterval string
}

// Enabled reports whether spans and metrics are exported.
func (c *Config) Enabled() bool {
	return c.Endpoint != ""
}

// ExportIntervalDuration returns ExportInterval as a time.Duration.
func (c *Config) ExportIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.ExportInterval)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.ServiceName != "" {
		c.ServiceName = overlay.ServiceName
	}
	if overlay.Insecure {
		c.Insecure = true
	}
	if overlay.ExportInterval != "" {
		c.ExportInterval = overlay.ExportInterval
	}
}

func (c *Config) loadDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "blood-test-analyser"
	}
	if c.ExportInterval == "" {
		c.ExportInterval = "15s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Endpoint != "" {
		if v := os.Getenv(env.Endpoint); v != "" {
			c.Endpoint = v
		}
	}
	if env.ServiceName != "" {
		if v := os.Getenv(env.ServiceName); v != "" {
			c.ServiceName = v
		}
	}
	if env.Insecure != "" {
		if v := os.Getenv(env.Insecure); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Insecure = b
			}
		}
	}
	if env.ExportInterval != "" {
		if v := os.Getenv(env.ExportInterval); v != "" {
			c.ExportInterval = v
		}
	}
}

func (c *Config) validate() error {
	d, err := time.ParseDuration(c.ExportInterval)
	if err != nil {
		return fmt.Errorf("invalid export_interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("export_interval must be positive")
	}
	return nil
}
