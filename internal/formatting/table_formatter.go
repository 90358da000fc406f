package formatting

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"keel/internal/resource"
)

const maxMessageWidth = 80

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{
		options: options,
	}
}

// FormatReport renders the summary, applications, resources and, when
// present, events and reconcile counters.
func (f *TableFormatter) FormatReport(w io.Writer, r Report) error {
	now := f.options.now()

	fmt.Fprintln(w, f.formatSummary(r))
	if r.SavedAt != nil {
		fmt.Fprintf(w, "%s %s ago\n", f.paint(text.FgHiBlack, "Checkpoint written"), Age(r.SavedAt, now))
	}

	if len(r.Resources) == 0 {
		fmt.Fprintln(w, f.formatEmptyMessage("📋", "No resources found"))
		return nil
	}

	if len(r.Applications) > 0 {
		t := f.createTable("APPLICATION", "STATE", "WORST RESOURCE", "MEMBERS", "SINCE")
		for _, app := range r.Applications {
			worst := "-"
			if !app.WorstResource.IsZero() {
				worst = app.WorstResource.String()
			}
			since := app.LastTransitionTime
			t.AppendRow(table.Row{
				f.paint(text.FgHiCyan, app.Application.Namespace+"/"+app.Application.Name),
				f.formatState(app.SyncState),
				worst,
				len(app.Members),
				Age(&since, now),
			})
		}
		fmt.Fprintln(w, t.Render())
	}

	t := f.createTable("KIND", "NAMESPACE", "NAME", "STATE", "GEN", "ATTEMPTS", "SINCE", "MESSAGE")
	for _, res := range r.Resources {
		state := f.formatState(res.SyncState)
		switch {
		case res.Finalizing:
			state += " (finalizing)"
		case res.Blocked:
			state += " (blocked)"
		}
		gen := fmt.Sprintf("%d", res.Generation)
		if res.ObservedGeneration != res.Generation {
			gen = fmt.Sprintf("%d/%d", res.ObservedGeneration, res.Generation)
		}
		t.AppendRow(table.Row{
			string(res.ID.Kind),
			res.ID.Namespace,
			f.paint(text.FgHiCyan, res.ID.Name),
			state,
			gen,
			res.Attempts,
			Age(res.LastTransitionTime, now),
			Truncate(res.Message, maxMessageWidth),
		})
	}
	fmt.Fprintln(w, t.Render())

	if len(r.Events) > 0 {
		t := f.createTable("AGE", "TYPE", "REASON", "OBJECT", "MESSAGE")
		for _, ev := range r.Events {
			at := ev.Time
			typ := string(ev.Type)
			if typ == "Warning" {
				typ = f.paint(text.FgYellow, typ)
			}
			t.AppendRow(table.Row{
				Age(&at, now),
				typ,
				string(ev.Reason),
				ev.Object.String(),
				Truncate(ev.Message, maxMessageWidth),
			})
		}
		fmt.Fprintln(w, t.Render())
	}

	if r.Metrics != nil && len(r.Metrics.PerKind) > 0 {
		t := f.createTable("KIND", "RECONCILES", "SUCCESSES", "FAILURES", "DRIFTS")
		for _, km := range r.Metrics.PerKind {
			t.AppendRow(table.Row{string(km.Kind), km.Reconciles, km.Successes, km.Failures, km.Drifts})
		}
		t.AppendFooter(table.Row{"TOTAL", r.Metrics.TotalReconciles, "", r.Metrics.TotalFailures, r.Metrics.TotalDrifts})
		fmt.Fprintln(w, t.Render())
	}
	return nil
}

// FormatValidation renders the validation result.
func (f *TableFormatter) FormatValidation(w io.Writer, r ValidationReport) error {
	if r.Valid {
		fmt.Fprintf(w, "%s %d resources in %d documents are valid\n",
			f.paint(text.FgGreen, "✓"), r.Resources, r.Documents)
		return nil
	}

	t := f.createTable("LOCATION", "OBJECT", "ERROR")
	for _, issue := range r.Issues {
		obj := "-"
		if issue.Object != nil && !issue.Object.IsZero() {
			obj = issue.Object.String()
		}
		loc := issue.Location
		if loc == "" {
			loc = "-"
		}
		t.AppendRow(table.Row{loc, obj, issue.Message})
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%s %d problems found\n", f.paint(text.FgRed, "✗"), len(r.Issues))
	return nil
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable(headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = f.paint(text.FgHiCyan, h)
	}
	t.AppendHeader(row)
	return t
}

// formatSummary renders "6 resources: 5 Synced, 1 Degraded".
func (f *TableFormatter) formatSummary(r Report) string {
	states := make([]resource.SyncState, 0, len(r.Summary))
	for s := range r.Summary {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Severity() > states[j].Severity() })

	parts := make([]string, 0, len(states))
	for _, s := range states {
		parts = append(parts, fmt.Sprintf("%d %s", r.Summary[s], f.formatState(s)))
	}
	head := fmt.Sprintf("%d resources", len(r.Resources))
	if len(parts) == 0 {
		return f.paint(text.FgHiBlue, head)
	}
	return fmt.Sprintf("%s: %s", f.paint(text.FgHiBlue, head), strings.Join(parts, ", "))
}

// formatState colours a sync state by severity.
func (f *TableFormatter) formatState(s resource.SyncState) string {
	switch s {
	case resource.StateSynced:
		return f.paint(text.FgGreen, string(s))
	case resource.StateSyncing, resource.StateOutOfSync:
		return f.paint(text.FgYellow, string(s))
	case resource.StateDegraded:
		return f.paint(text.FgHiYellow, string(s))
	case resource.StateError:
		return f.paint(text.FgRed, string(s))
	default:
		return string(s)
	}
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(icon, message string) string {
	return fmt.Sprintf("%s %s", f.paint(text.FgYellow, icon), f.paint(text.FgYellow, message))
}

func (f *TableFormatter) paint(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}
