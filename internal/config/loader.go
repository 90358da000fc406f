package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"keel/pkg/logging"
)

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// Path is the YAML config file. When empty, DefaultConfigFile is used if
	// it exists.
	Path string

	// EnvFiles are .env files whose variables apply beneath the process
	// environment. When nil, DefaultEnvFile is used if it exists.
	EnvFiles []string

	// Environment replaces the process environment. Used by tests.
	Environment map[string]string
}

// Load builds the engine configuration from defaults, the config file and the
// environment, then validates it.
func Load(opts LoadOptions) (EngineConfig, error) {
	cfg := Default()

	if err := loadFile(&cfg, opts.Path); err != nil {
		return EngineConfig{}, err
	}

	environ, err := environment(opts)
	if err != nil {
		return EngineConfig{}, err
	}
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return EngineConfig{}, fmt.Errorf("error loading config from environment: %w", err)
	}

	if errs := cfg.Validate(); errs.HasErrors() {
		return EngineConfig{}, errs
	}
	return cfg, nil
}

func loadFile(cfg *EngineConfig, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			logging.Debug("ConfigLoader", "No %s found, using defaults", path)
			return nil
		}
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return NewConfigurationErrorCollection().With(ConfigurationError{
			FilePath:  path,
			ErrorType: ErrorTypeParse,
			Message:   err.Error(),
			Suggestions: []string{
				"Check the YAML syntax",
				"Durations are written like 30s, 5m or 720h",
			},
		})
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return nil
}

// environment merges the .env files beneath the process environment so that
// variables that are already set win.
func environment(opts LoadOptions) (map[string]string, error) {
	base := opts.Environment
	if base == nil {
		base = env.ToMap(os.Environ())
	}

	files := opts.EnvFiles
	if files == nil {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return base, nil
		}
		files = []string{DefaultEnvFile}
	}
	if len(files) == 0 {
		return base, nil
	}

	fromFiles, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("error loading env files: %w", err)
	}
	merged := make(map[string]string, len(base)+len(fromFiles))
	for k, v := range fromFiles {
		merged[k] = v
	}
	for k, v := range base {
		merged[k] = v
	}
	return merged, nil
}
