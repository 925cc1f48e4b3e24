package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

const (
	EnvSearchAPIKey     = "ANALYSER_SEARCH_API_KEY"
	EnvSearchEndpoint   = "ANALYSER_SEARCH_ENDPOINT"
	EnvSearchMaxResults = "ANALYSER_SEARCH_MAX_RESULTS"
	EnvSearchTimeout    = "ANALYSER_SEARCH_TIMEOUT"
)

// SearchConfig configures the web search capability. An empty API key disables it.
type SearchConfig struct {
	APIKey     string `toml:"api_key"`
	Endpoint   string `toml:"endpoint"`
	MaxResults int    `toml:"max_results"`
	Timeout    string `toml:"timeout"`
}

// Enabled reports whether web search lookups can be made.
func (c *SearchConfig) Enabled() bool {
	return c.APIKey != ""
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *SearchConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *SearchConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *SearchConfig) Merge(overlay *SearchConfig) {
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.MaxResults != 0 {
		c.MaxResults = overlay.MaxResults
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *SearchConfig) loadDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "https://google.serper.dev/search"
	}
	if c.MaxResults == 0 {
		c.MaxResults = 5
	}
	if c.Timeout == "" {
		c.Timeout = "10s"
	}
}

func (c *SearchConfig) loadEnv() {
	if v := os.Getenv(EnvSearchAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvSearchEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv(EnvSearchMaxResults); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxResults = n
		}
	}
	if v := os.Getenv(EnvSearchTimeout); v != "" {
		c.Timeout = v
	}
}

func (c *SearchConfig) validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid endpoint: %q", c.Endpoint)
	}
	if c.MaxResults < 1 {
		return fmt.Errorf("max_results must be positive")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
