package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"keel/internal/app"
	"keel/internal/config"
)

var (
	applyFlags   engineFlags
	applyTimeout time.Duration
	applyOutput  string
)

// applyCmd converges the declared manifests once.
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Reconcile the manifests once and report the result",
	Long: `Loads the manifests, reconciles every resource until nothing is left to do
or the timeout expires, writes a checkpoint and prints the resulting status.

Exit codes:
  0  every resource is Synced
  1  keel could not run
  2  the manifests are invalid; nothing was applied
  3  resources were left Degraded, in Error or still reconciling`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

func runApply(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter(applyOutput)
	if err != nil {
		return err
	}
	application, err := newApplication(func(c *config.EngineConfig) {
		applyFlags.apply(cmd, c)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := app.ApplyOptions{Timeout: applyTimeout}
	stopSpinner := func() {}
	if !quiet && isTerminal(os.Stderr) {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " Reconciling..."
		s.Start()
		stopSpinner = s.Stop
		opts.Progress = func(p app.ApplyProgress) {
			s.Lock()
			s.Suffix = fmt.Sprintf(" Reconciling: %d/%d resources synced", p.Synced, p.Total)
			s.Unlock()
		}
	}

	report, err := application.Apply(ctx, opts)
	stopSpinner()

	var invalid *app.ValidationFailedError
	if errors.As(err, &invalid) {
		if ferr := formatter.FormatValidation(cmd.OutOrStdout(), invalid.Report); ferr != nil {
			return ferr
		}
		return err
	}
	if report.Resources == nil {
		// Apply failed before anything was reconciled.
		return err
	}
	if ferr := formatter.FormatReport(cmd.OutOrStdout(), report); ferr != nil {
		return ferr
	}
	return err
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyFlags.register(applyCmd, false)
	applyCmd.Flags().DurationVar(&applyTimeout, "timeout", 5*time.Minute, "How long to wait for convergence (0 waits forever)")
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "table", "Output format: table, json or yaml")
}
