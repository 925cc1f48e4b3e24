package config

import (
	"fmt"
	"net/mail"
	"os"
)

const (
	EnvUserEmail    = "ANALYSER_USER_EMAIL"
	EnvUserUsername = "ANALYSER_USER_USERNAME"
)

// UserConfig is the contact results are attributed to when a request names none.
type UserConfig struct {
	Email    string `toml:"email"`
	Username string `toml:"username"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *UserConfig) Finalize() error {
	if c.Email == "" {
		c.Email = "demo@user.com"
	}
	if c.Username == "" {
		c.Username = "demo"
	}
	if v := os.Getenv(EnvUserEmail); v != "" {
		c.Email = v
	}
	if v := os.Getenv(EnvUserUsername); v != "" {
		c.Username = v
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("invalid email: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *UserConfig) Merge(overlay *UserConfig) {
	if overlay.Email != "" {
		c.Email = overlay.Email
	}
	if overlay.Username != "" {
		c.Username = overlay.Username
	}
}
