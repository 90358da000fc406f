package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"keel/internal/app"
	"keel/internal/config"
)

var serveFlags engineFlags

// serveCmd runs the engine until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Continuously reconcile the declared manifests",
	Long: `Starts the reconciliation engine and keeps it running until interrupted.

The manifests are applied at startup and read again whenever a file below the
manifest directory (or a labelled ConfigMap) changes. A reload that fails
validation is rejected as a whole and the previous desired state stays in
effect. Drift is checked every driftInterval.

When statePath is set, the engine state is checkpointed periodically and on
shutdown, and restored at the next start. When metricsAddr is set, Prometheus
metrics and health probes are served on it. Under systemd, readiness is
reported with sd_notify.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	application, err := newApplication(func(c *config.EngineConfig) {
		serveFlags.apply(cmd, c)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Serve(ctx, app.ServeOptions{})
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveFlags.register(serveCmd, true)
}
