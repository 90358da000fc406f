package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"keel/internal/config"
	"keel/internal/events"
	"keel/internal/formatting"
	"keel/internal/resource"
	"keel/internal/status"
)

var (
	statusState  string
	statusOutput string
	statusEvents bool
)

// statusCmd prints the state recorded in the checkpoint.
var statusCmd = &cobra.Command{
	Use:   "status [Kind/namespace/name]",
	Short: "Show the state of every resource",
	Long: `Prints resources, applications and their sync state from the checkpoint
written by keel apply or keel serve.

With a resource reference, only that resource is shown together with its
observed platform state. Kind/name uses the configured default namespace.`,
	Example: `  keel status
  keel status --events
  keel status DatabaseCluster/shop/orders -o yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter(statusOutput)
	if err != nil {
		return err
	}
	application, err := newApplication(func(c *config.EngineConfig) {
		if cmd.Flags().Changed("state") {
			c.StatePath = statusState
		}
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	report, err := application.Status()
	if err != nil {
		return err
	}
	if !statusEvents && len(args) == 0 {
		report.Events = nil
	}

	var observed *resource.Observed
	if len(args) == 1 {
		id, err := resource.ParseID(args[0], application.Engine().Manifest.DefaultNamespace)
		if err != nil {
			return err
		}
		report, observed, err = selectResource(report, id)
		if err != nil {
			return err
		}
	}

	if err := formatter.FormatReport(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if format, _ := formatting.ParseFormat(statusOutput); format == formatting.FormatTable && observed != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "\nObserved:\n%s\n", formatting.PrettyJSON(observed))
	}
	return nil
}

// selectResource narrows report to id and its events.
func selectResource(report formatting.Report, id resource.ID) (formatting.Report, *resource.Observed, error) {
	out := formatting.Report{SavedAt: report.SavedAt}

	for _, v := range report.Resources {
		if v.ID == id {
			out.Resources = append(out.Resources, v)
		}
	}
	if len(out.Resources) == 0 {
		return formatting.Report{}, nil, fmt.Errorf("resource %s not found", id)
	}
	out.Summary = status.Summary{out.Resources[0].SyncState: 1}

	for _, a := range report.Applications {
		if a.Application == id {
			out.Applications = append(out.Applications, a)
		}
	}
	out.Events = filterEvents(report.Events, id)
	return out, out.Resources[0].Observed, nil
}

func filterEvents(evs []events.Event, id resource.ID) []events.Event {
	var out []events.Event
	for _, ev := range evs {
		if ev.Object == id {
			out = append(out, ev)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusState, "state", "", "Checkpoint file (overrides statePath)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format: table, json or yaml")
	statusCmd.Flags().BoolVar(&statusEvents, "events", false, "Include recent events")
}
