package config

import (
	"fmt"
	"os"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/formatting"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/middleware"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/openapi"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/pagination"
)

const EnvAPIMaxUploadSize = "ANALYSER_API_MAX_UPLOAD_SIZE"

var corsEnv = &middleware.CORSEnv{
	Enabled:          "ANALYSER_CORS_ENABLED",
	Origins:          "ANALYSER_CORS_ORIGINS",
	AllowedMethods:   "ANALYSER_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "ANALYSER_CORS_ALLOWED_HEADERS",
	AllowCredentials: "ANALYSER_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "ANALYSER_CORS_MAX_AGE",
}

var openAPIEnv = &openapi.ConfigEnv{
	Title:       "ANALYSER_OPENAPI_TITLE",
	Description: "ANALYSER_OPENAPI_DESCRIPTION",
}

var paginationEnv = &pagination.Env{
	DefaultPageSize: "ANALYSER_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "ANALYSER_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds upload limits, CORS, pagination, and API document settings.
type APIConfig struct {
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	OpenAPI       openapi.Config        `toml:"openapi"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes. Validation guarantees it parses.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxUploadSize)
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openAPIEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}
	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "20MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv(EnvAPIMaxUploadSize); v != "" {
		c.MaxUploadSize = v
	}
}

func (c *APIConfig) validate() error {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}
	return nil
}
