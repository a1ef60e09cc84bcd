// Package config reads usmtool's environment-driven settings. The CLI
// surface itself is flag-driven. Neither cmd/usmtool nor internal/usm
// calls Load, so the level read here does not change what they log.
package config

import "os"

// Config holds usmtool's environment-driven settings.
type Config struct {
	// LogLevel is one of "debug", "info", "warn". The log lines that
	// Open/Demux write are written at every level; nothing consults it.
	LogLevel string
}

// Load reads Config from the environment, applying defaults for anything
// unset.
func Load() *Config {
	return &Config{
		LogLevel: getEnv("USMTOOL_LOG_LEVEL", "info"),
	}
}

// Debug reports whether LogLevel is "debug".
func (c *Config) Debug() bool { return c.LogLevel == "debug" }

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
