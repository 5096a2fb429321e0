package tracker

import (
	"fmt"
	"os"
	"strings"
)

// Config holds configuration for a tracker integration.
// It wraps the config storage and provides a consistent interface
// for accessing tracker-specific settings.
type Config struct {
	// Prefix is the config key prefix for this tracker (e.g., "jira")
	Prefix string

	// Store provides access to the config storage
	Store ConfigStore
}

// ConfigStore provides read access to the jparent configuration.
type ConfigStore interface {
	GetConfig(key string) (string, error)
}

// NewConfig creates a new tracker config with the given prefix and store.
func NewConfig(prefix string, store ConfigStore) *Config {
	return &Config{
		Prefix: prefix,
		Store:  store,
	}
}

// Get retrieves a config value by key, checking both the config store
// and environment variables. The key should not include the tracker prefix.
// Example: cfg.Get("api_token") for "jira" prefix looks up "jira.api_token"
// and falls back to the "JIRA_API_TOKEN" env var.
func (c *Config) Get(key string) (string, error) {
	fullKey := c.Prefix + "." + key

	if c.Store != nil {
		value, err := c.Store.GetConfig(fullKey)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", fullKey, err)
		}
		if value != "" {
			return value, nil
		}
	}

	if value := os.Getenv(c.envVarName(key)); value != "" {
		return value, nil
	}

	return "", nil
}

// GetFirst returns the first non-empty value among keys.
func (c *Config) GetFirst(keys ...string) (string, error) {
	for _, key := range keys {
		value, err := c.Get(key)
		if err != nil {
			return "", err
		}
		if value != "" {
			return value, nil
		}
	}
	return "", nil
}

// GetRequired is like Get but returns an error if the value is empty.
func (c *Config) GetRequired(key string) (string, error) {
	value, err := c.Get(key)
	if err != nil {
		return "", err
	}
	if value == "" {
		fullKey := c.Prefix + "." + key
		return "", fmt.Errorf("%s not configured\nSet it in .jparent.yaml, pass the matching flag, or: export %s=VALUE",
			fullKey, c.envVarName(key))
	}
	return value, nil
}

// envVarName converts a config key to its environment variable name.
// Example: for prefix "jira" and key "api_token", returns "JIRA_API_TOKEN"
func (c *Config) envVarName(key string) string {
	envKey := strings.ToUpper(c.Prefix + "_" + key)
	envKey = strings.ReplaceAll(envKey, ".", "_")
	return envKey
}
