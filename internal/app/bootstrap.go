package app

import (
	"fmt"
	"io"
	"os"

	"keel/internal/config"
	"keel/pkg/logging"
)

// Application represents the main application structure that bootstraps and
// runs keel. It holds the loaded engine configuration; the engine itself is
// built by each entry point (Validate, Apply, Serve) since they need
// different parts of it.
//
// Example usage:
//
//	cfg := app.NewConfig("keel.yaml", false)
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Serve(ctx)
type Application struct {
	config *Config
	engine config.EngineConfig
}

// NewApplication loads configuration and initializes logging.
//
// Configuration is layered: defaults, then the config file, then KEEL_*
// environment variables, then cfg.Overrides. The result is validated before
// anything else runs.
func NewApplication(cfg *Config) (*Application, error) {
	var logOutput io.Writer = os.Stderr
	if cfg.LogOutput != nil {
		logOutput = cfg.LogOutput
	}
	if cfg.Quiet {
		logOutput = io.Discard
	}

	bootLevel := logging.LevelInfo
	if cfg.Debug {
		bootLevel = logging.LevelDebug
	}
	logging.InitWithOptions(bootLevel, logOutput, logging.Options{NoColor: cfg.NoColor})

	engine, err := config.Load(config.LoadOptions{
		Path:        cfg.ConfigPath,
		EnvFiles:    cfg.EnvFiles,
		Environment: cfg.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load keel configuration: %w", err)
	}
	if cfg.Overrides != nil {
		cfg.Overrides(&engine)
		if errs := engine.Validate(); errs.HasErrors() {
			return nil, fmt.Errorf("invalid keel configuration: %w", errs)
		}
	}

	level, _ := logging.ParseLevel(engine.Log.Level)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.InitWithOptions(level, logOutput, logging.Options{
		Format:  logging.Format(engine.Log.Format),
		NoColor: cfg.NoColor,
	})

	return &Application{
		config: cfg,
		engine: engine,
	}, nil
}

// Engine returns the loaded engine configuration.
func (a *Application) Engine() config.EngineConfig {
	return a.engine
}
