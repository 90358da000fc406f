// Package reconciler drives declared resources towards their desired state.
//
// # Overview
//
// The Manager owns the live view of every declared resource. A new desired
// state is loaded with Apply; the manager resolves the dependency plan,
// synchronises the state store and queues every resource that needs work.
// Workers take identities from the queue and hand them to the Reconciler
// registered for their kind.
//
// # Architecture
//
//   - Manager: coordinates the queue, the workers, the dependency plan and
//     the readiness board
//   - Reconciler: kind-specific convergence logic against the platform
//   - Observer: read-only comparison used by the drift detector
//   - Finalizer: cleanup for resources removed from the desired state
//   - Waker: scheduled re-reconciliation, e.g. certificate renewal
//
// A resource is only reconciled once every resource it depends on is Ready.
// When a producer changes readiness, its consumers are queued again; nothing
// polls the board.
//
// # Failure handling
//
// Reconcile errors are classified as transient, blocked or fatal. Transient
// errors are retried with exponential backoff until MaxAttempts; blocked
// resources wait for the plan or a producer to change; fatal resources stay
// in Error until their spec changes.
//
// Results computed for a generation that is no longer current are discarded.
//
// # Usage
//
//	manager := reconciler.NewManager(config)
//	if err := reconciler.RegisterAll(manager, reconciler.DefaultReconcilers(p, nil, rec, opts)); err != nil {
//	    return err
//	}
//	if err := manager.Start(ctx); err != nil {
//	    return fmt.Errorf("failed to start reconciliation: %w", err)
//	}
//	defer manager.Stop()
//
//	if err := manager.Apply(graph); err != nil {
//	    return err
//	}
package reconciler
