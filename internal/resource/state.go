package resource

// SyncState is the convergence state of a single resource.
type SyncState string

const (
	// StateOutOfSync means desired and observed state differ and no reconcile
	// is in progress. Resources waiting on producers stay here.
	StateOutOfSync SyncState = "OutOfSync"

	// StateSyncing means a reconcile is in progress or an external operation
	// (such as a certificate challenge) is pending.
	StateSyncing SyncState = "Syncing"

	// StateSynced means observed state matches desired state.
	StateSynced SyncState = "Synced"

	// StateDegraded means the resource exists but is not healthy.
	StateDegraded SyncState = "Degraded"

	// StateError means the last reconcile failed.
	StateError SyncState = "Error"
)

// Severity ranks states for aggregation: Error > Degraded > Syncing >
// OutOfSync > Synced.
func (s SyncState) Severity() int {
	switch s {
	case StateSynced:
		return 0
	case StateOutOfSync:
		return 1
	case StateSyncing:
		return 2
	case StateDegraded:
		return 3
	case StateError:
		return 4
	default:
		// An unset state has not been reconciled yet.
		return 1
	}
}

// Worst returns the most severe of the given states. With no arguments it
// returns StateSynced.
func Worst(states ...SyncState) SyncState {
	worst := StateSynced
	for _, s := range states {
		if s == "" {
			s = StateOutOfSync
		}
		if s.Severity() > worst.Severity() {
			worst = s
		}
	}
	return worst
}

// Ready reports whether a producer in this state lets consumers proceed.
// Degraded is deliberately not ready.
func (s SyncState) Ready() bool {
	return s == StateSynced
}
