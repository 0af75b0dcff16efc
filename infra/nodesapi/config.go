package nodesapi

import (
	"fmt"
	"net/url"
	"time"
)

// DefaultBaseURL is the public demo deployment of the platform.
const DefaultBaseURL = "https://nodes-demo.azurewebsites.net/"

// Config defines how to reach the platform API.
type Config struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}

// Validate checks that the base URL is absolute.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("platform base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("platform base_url must be absolute: %q", c.BaseURL)
	}
	return nil
}

// Timeout returns the per request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
