package app

import (
	"context"
	"fmt"
	"strings"

	"keel/internal/config"
	"keel/internal/dependency"
	"keel/internal/formatting"
	"keel/internal/manifest"
	"keel/internal/resource"
)

// ValidationFailedError reports manifests that were rejected before anything
// was applied.
type ValidationFailedError struct {
	Report formatting.ValidationReport
}

func (e *ValidationFailedError) Error() string {
	if len(e.Report.Issues) == 1 {
		issue := e.Report.Issues[0]
		if issue.Location != "" {
			return fmt.Sprintf("manifest validation failed: %s: %s", issue.Location, issue.Message)
		}
		return "manifest validation failed: " + issue.Message
	}
	return fmt.Sprintf("manifest validation failed with %d problems", len(e.Report.Issues))
}

// Validate reads and checks the manifests without touching the platform.
// Invalid manifests return the report together with a
// *ValidationFailedError.
func (a *Application) Validate(ctx context.Context) (formatting.ValidationReport, error) {
	source, err := a.source()
	if err != nil {
		return formatting.ValidationReport{}, err
	}
	docs, err := source.ReadTree(ctx)
	if err != nil {
		return formatting.ValidationReport{}, err
	}
	report, _ := validateDocuments(docs, manifestOptions(a.engine))
	if !report.Valid {
		return report, &ValidationFailedError{Report: report}
	}
	return report, nil
}

// source returns the manifest source without building the rest of the
// engine.
func (a *Application) source() (manifest.Source, error) {
	if a.config.Services.Kube != nil || a.engine.Manifest.Source != config.SourceConfigMap {
		return NewSource(a.engine, a.config.Services.Kube)
	}
	_, c, err := connectCluster(a.engine)
	if err != nil {
		return nil, err
	}
	return NewSource(a.engine, c)
}

// validateDocuments loads docs and resolves their dependencies. The graph is
// returned only when the report is valid.
func validateDocuments(docs []manifest.Document, opts manifest.Options) (formatting.ValidationReport, *resource.Graph) {
	report := formatting.ValidationReport{Documents: len(docs)}

	g, errs := manifest.Load(docs, opts)
	for _, e := range errs {
		prefix := e.Location()
		issue := formatting.ValidationIssue{Location: e.Location()}
		if !e.ID.IsZero() {
			id := e.ID
			issue.Object = &id
			prefix += " " + id.String()
		}
		issue.Message = strings.TrimPrefix(e.Error(), prefix+": ")
		report.Issues = append(report.Issues, issue)
	}
	if g == nil {
		return report, nil
	}

	report.Resources = g.Len()
	if _, cycles := dependency.Resolve(g); len(cycles) > 0 {
		for _, c := range cycles {
			issue := formatting.ValidationIssue{Message: c.Error()}
			if len(c.Path) > 0 {
				id := c.Path[0]
				issue.Object = &id
				if r, ok := g.Get(id); ok {
					issue.Location = r.Source
				}
			}
			report.Issues = append(report.Issues, issue)
		}
		return report, nil
	}

	report.Valid = true
	return report, g
}

func manifestOptions(cfg config.EngineConfig) manifest.Options {
	return manifest.Options{
		DefaultNamespace: cfg.Manifest.DefaultNamespace,
		Values:           cfg.Manifest.Values,
	}
}
