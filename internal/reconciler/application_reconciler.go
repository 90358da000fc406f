package reconciler

import (
	"context"
	"fmt"

	"keel/internal/resource"
	"keel/internal/status"
)

// ApplicationReconciler projects the state of an Application's dependency
// closure onto the Application. It never touches the platform and is
// dispatched without dependency gating.
type ApplicationReconciler struct{}

// NewApplicationReconciler creates a new Application reconciler.
func NewApplicationReconciler() *ApplicationReconciler {
	return &ApplicationReconciler{}
}

// Kind returns the resource kind this reconciler handles.
func (r *ApplicationReconciler) Kind() resource.Kind {
	return resource.KindApplication
}

// Aggregates marks the reconciler as an aggregator.
func (r *ApplicationReconciler) Aggregates() bool {
	return true
}

// Reconcile recomputes the aggregate.
func (r *ApplicationReconciler) Reconcile(_ context.Context, req Request) Result {
	agg, err := status.Aggregate(req.View, req.ID())
	if err != nil {
		return Result{Err: Transient(err)}
	}

	st := &resource.ApplicationStatus{Members: len(agg.Members)}
	msg := fmt.Sprintf("all %d members synced", len(agg.Members))
	if !agg.WorstResource.IsZero() {
		st.WorstResource = agg.WorstResource.String()
		msg = fmt.Sprintf("%s is %s", agg.WorstResource, agg.SyncState)
	}
	return Result{
		Observed: resource.Observed{Application: st},
		State:    agg.SyncState,
		Message:  msg,
	}
}
