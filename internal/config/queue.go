package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/database"
)

const (
	EnvQueueName              = "ANALYSER_QUEUE_NAME"
	EnvQueuePollInterval      = "ANALYSER_QUEUE_POLL_INTERVAL"
	EnvQueueVisibilityTimeout = "ANALYSER_QUEUE_VISIBILITY_TIMEOUT"
	EnvQueueMaxAttempts       = "ANALYSER_QUEUE_MAX_ATTEMPTS"
	EnvQueueConcurrency       = "ANALYSER_QUEUE_CONCURRENCY"
)

var queueDatabaseEnv = &database.Env{
	Driver: "ANALYSER_QUEUE_DRIVER",
	DSN:    "ANALYSER_QUEUE_DSN",
}

// QueueConfig holds the job queue's connection and worker settings.
// VisibilityTimeout is the lease a worker holds on a claimed job; an
// expired lease makes the job claimable again.
type QueueConfig struct {
	Name              string          `toml:"name"`
	Database          database.Config `toml:"database"`
	PollInterval      string          `toml:"poll_interval"`
	VisibilityTimeout string          `toml:"visibility_timeout"`
	MaxAttempts       int             `toml:"max_attempts"`
	Concurrency       int             `toml:"concurrency"`
}

// PollIntervalDuration returns PollInterval as a time.Duration.
func (c *QueueConfig) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// VisibilityTimeoutDuration returns VisibilityTimeout as a time.Duration.
func (c *QueueConfig) VisibilityTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.VisibilityTimeout)
	return d
}

// Shared reports whether the queue lives in the persistence database.
func (c *QueueConfig) Shared(persistence *database.Config) bool {
	return c.Database.Driver == persistence.Driver && c.Database.DSN == persistence.DSN
}

// Finalize applies defaults, environment variable overrides, and validation.
// Unset connection fields are inherited from persistence.
func (c *QueueConfig) Finalize(persistence *database.Config) error {
	c.loadDefaults()
	c.loadEnv()

	db := *persistence
	db.Merge(&c.Database)
	c.Database = db
	if err := c.Database.Finalize(queueDatabaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.Database.Driver != persistence.Driver && c.Database.DSN == persistence.DSN {
		return fmt.Errorf("database: dsn required when driver differs from persistence")
	}

	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *QueueConfig) Merge(overlay *QueueConfig) {
	if overlay.Name != "" {
		c.Name = overlay.Name
	}
	c.Database.Merge(&overlay.Database)
	if overlay.PollInterval != "" {
		c.PollInterval = overlay.PollInterval
	}
	if overlay.VisibilityTimeout != "" {
		c.VisibilityTimeout = overlay.VisibilityTimeout
	}
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
}

func (c *QueueConfig) loadDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.PollInterval == "" {
		c.PollInterval = "2s"
	}
	if c.VisibilityTimeout == "" {
		c.VisibilityTimeout = "15m"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
}

func (c *QueueConfig) loadEnv() {
	if v := os.Getenv(EnvQueueName); v != "" {
		c.Name = v
	}
	if v := os.Getenv(EnvQueuePollInterval); v != "" {
		c.PollInterval = v
	}
	if v := os.Getenv(EnvQueueVisibilityTimeout); v != "" {
		c.VisibilityTimeout = v
	}
	if v := os.Getenv(EnvQueueMaxAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAttempts = n
		}
	}
	if v := os.Getenv(EnvQueueConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Concurrency = n
		}
	}
}

func (c *QueueConfig) validate() error {
	if d, err := time.ParseDuration(c.PollInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid poll_interval: %q", c.PollInterval)
	}
	if d, err := time.ParseDuration(c.VisibilityTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid visibility_timeout: %q", c.VisibilityTimeout)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}
	return nil
}
