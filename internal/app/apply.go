package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"keel/internal/formatting"
	"keel/internal/resource"
	"keel/pkg/logging"
)

// ErrNotConverged is returned by Apply when resources are left in a state
// other than Synced.
var ErrNotConverged = errors.New("resources did not converge")

// DefaultApplyPollInterval is how often Apply checks for convergence.
const DefaultApplyPollInterval = 200 * time.Millisecond

// ApplyProgress is passed to ApplyOptions.Progress on every poll.
type ApplyProgress struct {
	Total   int
	Synced  int
	Pending int
}

// ApplyOptions controls a one-shot apply.
type ApplyOptions struct {
	// Timeout bounds the wait for convergence. Zero waits until ctx ends.
	Timeout time.Duration

	// PollInterval defaults to DefaultApplyPollInterval.
	PollInterval time.Duration

	// Progress, when set, is called on every poll.
	Progress func(ApplyProgress)
}

// Apply loads the manifests once, reconciles until nothing is left to do
// and writes a checkpoint.
//
// Invalid manifests return a *ValidationFailedError and touch nothing.
// Otherwise the report is always returned; the error wraps ErrNotConverged
// when the timeout expired or resources ended in Degraded or Error.
func (a *Application) Apply(ctx context.Context, opts ApplyOptions) (formatting.Report, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultApplyPollInterval
	}

	s, err := InitializeServices(a.engine, a.config.Services)
	if err != nil {
		return formatting.Report{}, err
	}

	docs, err := s.Source.ReadTree(ctx)
	if err != nil {
		return formatting.Report{}, err
	}
	validation, g := validateDocuments(docs, manifestOptions(a.engine))
	if !validation.Valid {
		return formatting.Report{}, &ValidationFailedError{Report: validation}
	}

	if err := s.Manager.Start(ctx); err != nil {
		return formatting.Report{}, fmt.Errorf("failed to start reconcile manager: %w", err)
	}
	if err := s.Manager.Apply(g); err != nil {
		_ = s.Manager.Stop()
		return formatting.Report{}, fmt.Errorf("failed to apply manifests: %w", err)
	}
	logging.Info("Apply", "Applied %d resources from %d documents", validation.Resources, validation.Documents)

	waitErr := waitForSettled(ctx, s, opts)
	_ = s.Manager.Stop()

	report := s.Report()
	if err := s.Checkpoint(); err != nil {
		return report, fmt.Errorf("failed to write checkpoint: %w", err)
	}

	switch {
	case waitErr != nil && ctx.Err() != nil:
		return report, ctx.Err()
	case waitErr != nil:
		return report, fmt.Errorf("%w: still reconciling after %s", ErrNotConverged, opts.Timeout)
	case !s.Manager.Converged():
		return report, fmt.Errorf("%w: %d of %d resources are not Synced",
			ErrNotConverged, len(report.Resources)-report.Summary[resource.StateSynced], len(report.Resources))
	}
	return report, nil
}

func waitForSettled(ctx context.Context, s *Services, opts ApplyOptions) error {
	condition := func(context.Context) (bool, error) {
		settled := s.Manager.Settled()
		if opts.Progress != nil {
			opts.Progress(progressOf(s.Manager.Resources()))
		}
		return settled, nil
	}
	if opts.Timeout <= 0 {
		return wait.PollUntilContextCancel(ctx, opts.PollInterval, true, condition)
	}
	return wait.PollUntilContextTimeout(ctx, opts.PollInterval, opts.Timeout, true, condition)
}

func progressOf(rs []*resource.Resource) ApplyProgress {
	p := ApplyProgress{Total: len(rs)}
	for _, r := range rs {
		if r.Ready() {
			p.Synced++
		} else {
			p.Pending++
		}
	}
	return p
}
