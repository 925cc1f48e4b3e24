package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvPipelineAgentTimeout       = "ANALYSER_PIPELINE_AGENT_TIMEOUT"
	EnvPipelineRetries            = "ANALYSER_PIPELINE_RETRIES"
	EnvPipelineMaxDelegationDepth = "ANALYSER_PIPELINE_MAX_DELEGATION_DEPTH"
)

// PipelineConfig bounds each specialist consultation.
// Retries counts extra inference attempts after the first; a nil pointer means unset.
type PipelineConfig struct {
	AgentTimeout       string `toml:"agent_timeout"`
	Retries            *int   `toml:"retries"`
	MaxDelegationDepth *int   `toml:"max_delegation_depth"`
}

// AgentTimeoutDuration returns AgentTimeout as a time.Duration.
func (c *PipelineConfig) AgentTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.AgentTimeout)
	return d
}

// RetryCount returns the configured retries.
func (c *PipelineConfig) RetryCount() int {
	if c.Retries == nil {
		return 0
	}
	return *c.Retries
}

// DelegationDepth returns the configured maximum delegation depth.
func (c *PipelineConfig) DelegationDepth() int {
	if c.MaxDelegationDepth == nil {
		return 0
	}
	return *c.MaxDelegationDepth
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites set fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.AgentTimeout != "" {
		c.AgentTimeout = overlay.AgentTimeout
	}
	if overlay.Retries != nil {
		c.Retries = overlay.Retries
	}
	if overlay.MaxDelegationDepth != nil {
		c.MaxDelegationDepth = overlay.MaxDelegationDepth
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.AgentTimeout == "" {
		c.AgentTimeout = "90s"
	}
	if c.Retries == nil {
		n := 1
		c.Retries = &n
	}
	if c.MaxDelegationDepth == nil {
		n := 1
		c.MaxDelegationDepth = &n
	}
}

func (c *PipelineConfig) loadEnv() {
	if v := os.Getenv(EnvPipelineAgentTimeout); v != "" {
		c.AgentTimeout = v
	}
	if v := os.Getenv(EnvPipelineRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retries = &n
		}
	}
	if v := os.Getenv(EnvPipelineMaxDelegationDepth); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxDelegationDepth = &n
		}
	}
}

func (c *PipelineConfig) validate() error {
	d, err := time.ParseDuration(c.AgentTimeout)
	if err != nil {
		return fmt.Errorf("invalid agent_timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("agent_timeout must be positive")
	}
	if *c.Retries < 0 {
		return fmt.Errorf("retries cannot be negative")
	}
	if *c.MaxDelegationDepth < 0 {
		return fmt.Errorf("max_delegation_depth cannot be negative")
	}
	return nil
}
