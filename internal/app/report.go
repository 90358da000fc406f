package app

import (
	"errors"
	"fmt"

	"keel/internal/dependency"
	"keel/internal/formatting"
	"keel/internal/resource"
	"keel/internal/state"
	"keel/internal/status"
)

// Report builds the status report of the running engine.
func (s *Services) Report() formatting.Report {
	rs := s.Manager.Resources()

	var apps []status.AggregateStatus
	for _, r := range rs {
		if r.ID.Kind != resource.KindApplication || r.Status.Finalizing {
			continue
		}
		if st, err := s.Manager.Status(r.ID); err == nil {
			apps = append(apps, st)
		}
	}

	report := formatting.NewReport(rs, apps)
	report.Events = s.Recorder.List(resource.ID{})
	summary := s.Manager.Metrics().Summary()
	report.Metrics = &summary
	return report
}

// snapshotView serves status aggregation over a checkpoint.
type snapshotView struct {
	records map[resource.ID]*resource.Resource
	plan    *dependency.Plan
}

func (v snapshotView) Get(id resource.ID) (*resource.Resource, bool) {
	r, ok := v.records[id]
	return r, ok
}

func (v snapshotView) Closure(id resource.ID) []resource.ID {
	if v.plan == nil {
		return nil
	}
	return v.plan.Closure(id)
}

// ReportFromSnapshot builds a status report from a checkpoint, for use when
// no engine is running in this process.
func ReportFromSnapshot(snap *state.Snapshot) (formatting.Report, error) {
	g := resource.NewGraph()
	view := snapshotView{records: make(map[resource.ID]*resource.Resource, len(snap.Resources))}
	for _, r := range snap.Resources {
		if err := g.Add(r); err != nil {
			return formatting.Report{}, fmt.Errorf("invalid checkpoint: %w", err)
		}
		view.records[r.ID] = r
	}
	view.plan, _ = dependency.Resolve(g)

	var apps []status.AggregateStatus
	for _, id := range g.IDs() {
		if id.Kind != resource.KindApplication {
			continue
		}
		if st, err := status.Aggregate(view, id); err == nil {
			apps = append(apps, st)
		}
	}

	report := formatting.NewReport(g.List(), apps)
	savedAt := snap.SavedAt
	report.SavedAt = &savedAt
	report.Events = snap.Events
	return report, nil
}

// ErrNoCheckpoint is returned by Status when there is no checkpoint to read.
var ErrNoCheckpoint = errors.New("no checkpoint found")

// Status reports the engine state recorded in the checkpoint. It works while
// keel serve is running in another process, up to the checkpoint interval.
func (a *Application) Status() (formatting.Report, error) {
	if a.engine.StatePath == "" {
		return formatting.Report{}, fmt.Errorf("%w: statePath is not configured", ErrNoCheckpoint)
	}
	snap, err := loadCheckpoint(a.engine.StatePath)
	if err != nil {
		return formatting.Report{}, err
	}
	if snap == nil {
		return formatting.Report{}, fmt.Errorf("%w at %s: run keel apply or keel serve first", ErrNoCheckpoint, a.engine.StatePath)
	}
	return ReportFromSnapshot(snap)
}
