package reconciler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"keel/internal/events"
	"keel/internal/resource"
	"keel/pkg/logging"
)

// driftOptions ignore bookkeeping the platform does not report, so only
// externally visible changes count as drift.
var driftOptions = []cmp.Option{
	cmpopts.EquateEmpty(),
	cmpopts.EquateApproxTime(time.Second),
	cmpopts.IgnoreFields(resource.CertificateStatus{}, "ChallengeID", "ChallengeDeadline", "IssuanceAttempts"),
	cmpopts.IgnoreFields(resource.DatabaseStatus{}, "Failovers", "LastFailover"),
}

// driftLoop runs ScanDrift every interval until the manager stops.
func (m *Manager) driftLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C():
			found, err := m.ScanDrift(m.ctx)
			if err != nil {
				logging.Warn("DriftDetector", "Drift scan incomplete: %v", err)
			}
			if len(found) > 0 {
				logging.Info("DriftDetector", "Drift scan found %d drifted resources", len(found))
			}
		}
	}
}

type driftCandidate struct {
	res      *resource.Resource
	observer Observer
}

// ScanDrift compares the committed observed state of every Synced resource
// with a fresh observation and moves drifted resources back to OutOfSync.
// Observation failures are aggregated into the returned error; they never
// change resource state.
func (m *Manager) ScanDrift(ctx context.Context) ([]DriftEvent, error) {
	var candidates []driftCandidate
	for _, r := range m.store.List() {
		if r.Status.SyncState != resource.StateSynced {
			continue
		}
		rec := m.reconcilerFor(r.ID.Kind)
		if _, ok := rec.(Aggregator); ok {
			continue
		}
		obs, ok := rec.(Observer)
		if !ok || !m.IsKindEnabled(r.ID.Kind) {
			continue
		}
		candidates = append(candidates, driftCandidate{res: r, observer: obs})
	}

	var (
		mu    sync.Mutex
		found []DriftEvent
		errs  []error
		g     errgroup.Group
	)
	g.SetLimit(m.config.DriftConcurrency)

	for _, c := range candidates {
		g.Go(func() error {
			ev, drifted, err := m.checkDrift(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("observing %s: %w", c.res.ID, err))
				return nil
			}
			if drifted {
				found = append(found, ev)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(found, func(i, j int) bool { return found[i].ID.Less(found[j].ID) })
	for _, ev := range found {
		m.markDrifted(ev)
	}
	return found, utilerrors.NewAggregate(errs)
}

func (m *Manager) checkDrift(ctx context.Context, c driftCandidate) (DriftEvent, bool, error) {
	r := c.res
	if r.Generation != r.Status.ObservedGeneration {
		return DriftEvent{ID: r.ID, Cause: CauseSpecChange, Generation: r.Generation}, true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.ReconcileTimeout)
	defer cancel()

	actual, err := c.observer.Observe(ctx, Request{Resource: r, Attempt: 1, View: m.view()})
	if err != nil {
		return DriftEvent{}, false, err
	}

	diff := cmp.Diff(r.Status.Observed, actual, driftOptions...)
	if diff == "" {
		return DriftEvent{}, false, nil
	}
	return DriftEvent{
		ID:         r.ID,
		Cause:      CauseExternalMutation,
		Generation: r.Generation,
		Diff:       diff,
	}, true, nil
}

// markDrifted moves a resource back to OutOfSync when it is still Synced at
// the generation the drift was detected for. The committed observed state is
// kept so the next reconcile can compare against it.
func (m *Manager) markDrifted(ev DriftEvent) {
	updated, ok := m.store.Update(ev.ID, func(r *resource.Resource) bool {
		if r.Generation != ev.Generation || r.Status.SyncState != resource.StateSynced {
			return false
		}
		m.store.SetState(r, resource.StateOutOfSync)
		r.Status.Message = fmt.Sprintf("drift detected (%s)", ev.Cause)
		return true
	})
	if !ok {
		return
	}

	logging.Info("DriftDetector", "%s drifted (%s)", ev.ID, ev.Cause)
	m.recorder.Record(ev.ID, events.ReasonDrift, events.EventData{
		Generation: ev.Generation,
		Cause:      string(ev.Cause),
		Detail:     ev.Diff,
	})
	m.metrics.ObserveDrift(ev.ID.Kind, ev.Cause)
	m.queue.Add(ev.ID)
	m.published(updated)
}
