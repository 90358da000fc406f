package cmd

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"keel/internal/app"
	"keel/internal/config"
	"keel/internal/formatting"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeInvalidManifests indicates manifests were rejected before anything was applied.
	ExitCodeInvalidManifests = 2
	// ExitCodeNotConverged indicates resources were left in a state other than Synced.
	ExitCodeNotConverged = 3
)

// Global flags shared by every command.
var (
	configPath string
	envFiles   []string
	debug      bool
	quiet      bool
	noColor    bool
)

// rootCmd represents the base command for the keel application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "keel",
	Short: "Declarative reconciliation of certificates, routing and databases",
	Long: `keel reads manifests describing issuers, certificates, gateways, routes,
reference grants, database clusters and applications, and drives the platform
until what is running matches what is declared.

Manifests are read from a directory of YAML files or from labelled ConfigMaps.
Resources are reconciled in dependency order, retried with backoff, checked
for drift and rolled up into per-application status.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "keel version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var invalid *app.ValidationFailedError
	if errors.As(err, &invalid) {
		return ExitCodeInvalidManifests
	}
	if errors.Is(err, app.ErrNotConverged) {
		return ExitCodeNotConverged
	}
	return ExitCodeError
}

// engineFlags are the configuration overrides shared by serve and apply.
type engineFlags struct {
	manifests   string
	platform    string
	statePath   string
	metricsAddr string
}

func (f *engineFlags) register(cmd *cobra.Command, withMetrics bool) {
	cmd.Flags().StringVarP(&f.manifests, "manifests", "m", "", "Manifest directory or file (overrides manifest.path)")
	cmd.Flags().StringVar(&f.platform, "platform", "", "Platform binding: memory or kube (overrides platform.kind)")
	cmd.Flags().StringVar(&f.statePath, "state", "", "Checkpoint file (overrides statePath)")
	if withMetrics {
		cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Address for /metrics, /healthz and /readyz (overrides metricsAddr)")
	}
}

func (f *engineFlags) apply(cmd *cobra.Command, c *config.EngineConfig) {
	flags := cmd.Flags()
	if flags.Changed("manifests") {
		c.Manifest.Source = config.SourceFilesystem
		c.Manifest.Path = f.manifests
	}
	if flags.Changed("platform") {
		c.Platform.Kind = f.platform
	}
	if flags.Changed("state") {
		c.StatePath = f.statePath
	}
	if flags.Changed("metrics-addr") {
		c.MetricsAddr = f.metricsAddr
	}
}

// newApplication loads configuration with the global flags and the given
// overrides.
func newApplication(overrides func(*config.EngineConfig)) (*app.Application, error) {
	cfg := app.NewConfig(configPath, debug)
	cfg.EnvFiles = envFiles
	cfg.Quiet = quiet
	cfg.NoColor = noColor
	cfg.Overrides = overrides
	return app.NewApplication(cfg)
}

// newFormatter returns the formatter for an -o value.
func newFormatter(output string) (formatting.Formatter, error) {
	format, ok := formatting.ParseFormat(output)
	if !ok {
		return nil, errors.New("unsupported output format " + output + ": use table, json or yaml")
	}
	return formatting.NewFormatter(formatting.Options{
		Format: format,
		Color:  !noColor && isTerminal(os.Stdout),
		Now:    time.Now(),
	}), nil
}

// isTerminal reports whether f is a character device.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default keel.yaml if present)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Environment files to load (default .env if present)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")

	rootCmd.AddCommand(newVersionCmd())
}
