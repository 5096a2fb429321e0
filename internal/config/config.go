// Package config loads jparent configuration from flags, environment
// variables, and an optional YAML file through a viper singleton.
//
// Precedence, highest first: command-line flags, JPARENT_* environment
// variables, the config file, built-in defaults. Jira credentials may also
// come from the plain JIRA_* variables through the tracker config fallback.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable viper reads.
const EnvPrefix = "JPARENT"

// ProjectConfigName is the config file looked up in the working directory.
const ProjectConfigName = ".jparent.yaml"

var v *viper.Viper

// Initialize sets up the viper configuration singleton with defaults,
// environment binding, and the first config file found by discovery.
func Initialize() error {
	return InitializeWithFile("")
}

// InitializeWithFile is like Initialize but reads path instead of searching.
// An explicit path that does not exist is an error.
func InitializeWithFile(path string) error {
	v = viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}
		return nil
	}

	for _, candidate := range searchPaths() {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		v.SetConfigFile(candidate)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", candidate, err)
		}
		break
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("format", "text")
	v.SetDefault("delimiter", ",")
	v.SetDefault("dry-run", false)
	v.SetDefault("yes", false)
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("audit-log", "")
	v.SetDefault("jira.max_retries", 3)
	v.SetDefault("jira.timeout", "30s")
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.stdout", false)
	v.SetDefault("otel.service_name", "jparent")
	v.SetDefault("pager", "")
	v.SetDefault("no-pager", false)
}

// searchPaths lists config file candidates in priority order.
func searchPaths() []string {
	paths := []string{ProjectConfigName}
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		paths = append(paths, filepath.Join(dir, "jparent", "config.yaml"))
	}
	return paths
}

// ResetForTesting drops the singleton so the next Initialize starts clean.
func ResetForTesting() {
	v = nil
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// BindFlags binds config keys to command-line flags. bindings maps a config
// key to the flag name that overrides it.
func BindFlags(fs *pflag.FlagSet, bindings map[string]string) error {
	if v == nil {
		return errors.New("config not initialized")
	}
	for key, name := range bindings {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("unknown flag --%s for config key %s", name, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringList retrieves a list value. A YAML sequence is returned as is;
// a scalar (flag or env var) is split on commas. Entries are trimmed and
// empty entries dropped.
func GetStringList(key string) []string {
	if v == nil {
		return nil
	}
	var raw []string
	switch val := v.Get(key).(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(val, ",")
	case []string:
		raw = val
	case []interface{}:
		for _, item := range val {
			raw = append(raw, fmt.Sprint(item))
		}
	default:
		raw = strings.Split(fmt.Sprint(val), ",")
	}

	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsSet reports whether key was given by a changed flag, an environment
// variable, the config file, or Set. Flag defaults do not count.
func IsSet(key string) bool {
	if v == nil {
		return false
	}
	return v.IsSet(key)
}

// Set sets a configuration value, overriding every other source.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}
