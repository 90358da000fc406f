package reconciler

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"keel/internal/events"
	"keel/internal/resource"
	"keel/internal/state"
	"keel/internal/status"
)

// View is the read-only projection of the live graph handed to reconcilers.
type View = status.View

// Request asks a reconciler to converge one resource.
type Request struct {
	// Resource is a private copy of the record at dispatch time. Its status
	// holds the last committed observed state.
	Resource *resource.Resource

	// Attempt is the current attempt number (starts at 1).
	Attempt int

	// View exposes other resources for reconcilers that aggregate.
	View View
}

// ID returns the identity of the requested resource.
func (r Request) ID() resource.ID {
	return r.Resource.ID
}

// Result is what a reconcile returns. The scheduler commits it; reconcilers
// never write resource state themselves.
type Result struct {
	// Observed is the fresh observed state. A zero value keeps the committed
	// one.
	Observed resource.Observed

	// State is the resulting sync state when Err is nil. Empty means Synced.
	State resource.SyncState

	// Message is a short human readable note stored on the status.
	Message string

	// RequeueAfter schedules another reconcile even on success, e.g. to poll
	// a pending challenge or to renew a certificate.
	RequeueAfter time.Duration

	// Err is a classified failure: BlockedError, TransientError or
	// FatalError. Unclassified errors are treated as transient.
	Err error
}

// Reconciler is the interface that kind-specific reconcilers must implement.
type Reconciler interface {
	// Reconcile converges one resource and reports the outcome. It must be
	// idempotent: reconciling a Synced resource whose spec and external state
	// are unchanged performs no external mutation.
	Reconcile(ctx context.Context, req Request) Result

	// Kind returns the resource kind this reconciler handles.
	Kind() resource.Kind
}

// Finalizer is implemented by reconcilers that clean up external state when
// a resource leaves the desired state.
type Finalizer interface {
	Finalize(ctx context.Context, req Request) error
}

// Observer is implemented by reconcilers whose external state can be read
// without mutating it. The drift detector compares the returned value with
// the committed observed state.
type Observer interface {
	Observe(ctx context.Context, req Request) (resource.Observed, error)
}

// Aggregator is implemented by reconcilers that only project the state of
// other resources. They are dispatched without dependency gating.
type Aggregator interface {
	Aggregates() bool
}

// Waker is implemented by reconcilers that need a future reconcile of a
// Synced resource, e.g. certificate renewal. The scheduler asks it when a
// Synced resource is loaded without a pending timer.
type Waker interface {
	NextWake(r *resource.Resource, now time.Time) (time.Duration, bool)
}

// ReconcileQueue is a work queue keyed by resource identity.
type ReconcileQueue interface {
	// Add enqueues id. An id that is already pending is not added twice; an
	// id that is being processed is re-queued once processing is done.
	Add(id resource.ID)

	// Get retrieves the next id, blocking until one is available or the
	// context is cancelled.
	Get(ctx context.Context) (resource.ID, bool)

	// Done marks id as processed.
	Done(id resource.ID)

	// Len returns the number of pending ids.
	Len() int

	// InFlight returns the number of ids being processed.
	InFlight() int

	// Shutdown signals the queue to stop accepting new items.
	Shutdown()
}

// ManagerConfig holds configuration for the Manager.
type ManagerConfig struct {
	// Workers is the number of concurrent reconcile workers.
	// Defaults to 4 if not specified.
	Workers int

	// MaxAttempts is the number of consecutive transient failures after
	// which a resource is failed permanently. Defaults to 5.
	MaxAttempts int

	// Backoff controls retry delays.
	Backoff Backoff

	// ReconcileTimeout bounds every reconcile and finalize call.
	// Defaults to 30 seconds.
	ReconcileTimeout time.Duration

	// DriftInterval is the period of the drift scan. Zero disables the
	// periodic scan; ScanDrift can still be called directly.
	DriftInterval time.Duration

	// DriftConcurrency bounds concurrent observations during a drift scan.
	// Defaults to 4.
	DriftConcurrency int

	// FinalizeAttempts is the attempt budget of a finalization pass.
	// Defaults to 3.
	FinalizeAttempts int

	// DisabledKinds is a set of kinds that are loaded but not reconciled.
	DisabledKinds map[resource.Kind]bool

	// Clock drives timers and timestamps. Defaults to the real clock.
	Clock clock.WithTickerAndDelayedExecution

	// Store holds the live records. Defaults to a new empty store.
	Store *state.Store

	// Recorder receives lifecycle events. Defaults to events.Discard.
	Recorder events.Recorder

	// Metrics receives reconcile metrics. Defaults to unregistered
	// collectors.
	Metrics *Metrics
}

// DriftCause distinguishes why a resource drifted.
type DriftCause string

const (
	// CauseExternalMutation means the live state changed while the desired
	// generation did not.
	CauseExternalMutation DriftCause = "ExternalMutation"

	// CauseSpecChange means the desired generation moved since the last
	// commit.
	CauseSpecChange DriftCause = "SpecChange"
)

// DriftEvent describes one detected divergence.
type DriftEvent struct {
	ID         resource.ID
	Cause      DriftCause
	Generation int64
	Diff       string
}
