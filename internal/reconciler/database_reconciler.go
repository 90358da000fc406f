package reconciler

import (
	"context"
	"fmt"
	"time"

	"k8s.io/utils/clock"
	"k8s.io/utils/ptr"

	"keel/internal/events"
	"keel/internal/platform"
	"keel/internal/resource"
	"keel/pkg/logging"
)

// DefaultRepairInterval is how often a Degraded cluster is reconciled again.
const DefaultRepairInterval = 30 * time.Second

// DatabaseReconciler converges DatabaseCluster topologies and enforces
// quorum: a cluster with fewer running instances than
// floor(instances/2)+1 is Degraded, never Synced.
type DatabaseReconciler struct {
	db             platform.DatabaseOrchestrator
	clock          clock.PassiveClock
	repairInterval time.Duration
	recorder       events.Recorder
}

// NewDatabaseReconciler creates a new DatabaseCluster reconciler.
func NewDatabaseReconciler(db platform.DatabaseOrchestrator, clk clock.PassiveClock, repairInterval time.Duration, recorder events.Recorder) *DatabaseReconciler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if repairInterval <= 0 {
		repairInterval = DefaultRepairInterval
	}
	if recorder == nil {
		recorder = events.Discard
	}
	return &DatabaseReconciler{db: db, clock: clk, repairInterval: repairInterval, recorder: recorder}
}

// Kind returns the resource kind this reconciler handles.
func (r *DatabaseReconciler) Kind() resource.Kind {
	return resource.KindDatabaseCluster
}

// Reconcile converges the topology and checks quorum.
func (r *DatabaseReconciler) Reconcile(ctx context.Context, req Request) Result {
	res := req.Resource
	spec := res.Spec.DatabaseCluster
	if spec == nil {
		return Result{Err: Fatalf("%s has no database spec", res.ID)}
	}

	topo, err := r.db.ReconcileTopology(ctx, res.ID, *spec)
	if err != nil {
		return Result{Err: Classify(err)}
	}
	health, err := r.db.GetHealth(ctx, res.ID)
	if err != nil {
		return Result{Err: Classify(err)}
	}

	threshold := spec.QuorumThreshold()
	st := &resource.DatabaseStatus{
		ObservedInstances: topo.Instances,
		Primary:           topo.Primary,
		QuorumThreshold:   threshold,
		QuorumOK:          health.QuorumOK && topo.Instances >= threshold,
	}
	if prev := res.Status.Observed.Database; prev != nil {
		st.Failovers = prev.Failovers
		st.LastFailover = prev.LastFailover
		if prev.Primary != nil && topo.Primary != nil && *prev.Primary != *topo.Primary {
			st.Failovers++
			st.LastFailover = r.clock.Now()
			logging.Info("DatabaseReconciler", "%s primary moved from %s to %s", res.ID, *prev.Primary, *topo.Primary)
			r.recorder.Record(res.ID, events.ReasonFailover, events.EventData{
				Generation: res.Generation,
				Detail:     *topo.Primary,
			})
		}
	}
	obs := resource.Observed{Database: st}

	if !st.QuorumOK {
		msg := health.Message
		if msg == "" {
			msg = fmt.Sprintf("%d/%d instances running, quorum needs %d", topo.Instances, spec.Instances, threshold)
		}
		return Result{
			Observed:     obs,
			State:        resource.StateDegraded,
			Message:      msg,
			RequeueAfter: r.repairInterval,
		}
	}

	return Result{
		Observed: obs,
		State:    resource.StateSynced,
		Message:  fmt.Sprintf("%d/%d instances, primary %s", topo.Instances, spec.Instances, ptr.Deref(topo.Primary, "none")),
	}
}

// Observe reads topology and health without changing anything.
func (r *DatabaseReconciler) Observe(ctx context.Context, req Request) (resource.Observed, error) {
	st := resource.DatabaseStatus{}
	if cur := req.Resource.Status.Observed.Database; cur != nil {
		st = *cur
	}

	topo, err := r.db.GetTopology(ctx, req.ID())
	if platform.IsNotFound(err) {
		st.ObservedInstances = 0
		st.Primary = nil
		st.QuorumOK = false
		return resource.Observed{Database: &st}, nil
	}
	if err != nil {
		return resource.Observed{}, err
	}
	health, err := r.db.GetHealth(ctx, req.ID())
	if err != nil {
		return resource.Observed{}, err
	}

	st.ObservedInstances = topo.Instances
	st.Primary = topo.Primary
	st.QuorumOK = health.QuorumOK && topo.Instances >= st.QuorumThreshold
	return resource.Observed{Database: &st}, nil
}

// Finalize deletes the cluster.
func (r *DatabaseReconciler) Finalize(ctx context.Context, req Request) error {
	return r.db.Delete(ctx, req.ID())
}
