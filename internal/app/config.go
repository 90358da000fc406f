package app

import (
	"io"

	"keel/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Custom configuration file (optional)
	// When empty, keel.yaml in the working directory is used if present
	ConfigPath string

	// EnvFiles are .env files to load. Nil means .env if present.
	EnvFiles []string

	// Debug forces debug logging regardless of log.level.
	Debug bool

	// Quiet discards log output.
	Quiet bool

	// NoColor disables coloured log output.
	NoColor bool

	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer

	// Overrides is applied after loading, before validation. Command line
	// flags use it.
	Overrides func(*config.EngineConfig)

	// Environment replaces the process environment when loading
	// configuration.
	Environment map[string]string

	// Services injects a clock, simulator or cluster client into the engine.
	Services ServiceOptions
}

// NewConfig creates a new application configuration
func NewConfig(configPath string, debug bool) *Config {
	return &Config{
		ConfigPath: configPath,
		Debug:      debug,
	}
}
