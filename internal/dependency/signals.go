package dependency

import (
	"sync"
	"sync/atomic"

	"keel/internal/resource"
)

// Signal is what a producer publishes to its consumers.
type Signal struct {
	// Generation is the producer's current desired generation.
	Generation int64
	// ObservedGeneration is the generation State was reached for.
	ObservedGeneration int64
	State              resource.SyncState
	// Fatal marks an Error that will not be retried.
	Fatal bool
	// Blocked marks a producer that is itself waiting on a missing requirement.
	Blocked bool
}

// Ready reports whether consumers may proceed.
func (s Signal) Ready() bool {
	return s.State.Ready() && s.ObservedGeneration == s.Generation
}

// Snapshot is an immutable view of the signal table.
type Snapshot struct {
	signals map[resource.ID]Signal
}

// Get returns the last signal published for id.
func (s Snapshot) Get(id resource.ID) (Signal, bool) {
	sig, ok := s.signals[id]
	return sig, ok
}

// Len returns the number of identities with a signal.
func (s Snapshot) Len() int {
	return len(s.signals)
}

// Board is the producer signal table. Readers take lock-free snapshots;
// writers publish a fresh copy.
type Board struct {
	mu      sync.Mutex // serialises writers
	current atomic.Pointer[map[resource.ID]Signal]
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	b := &Board{}
	empty := make(map[resource.ID]Signal)
	b.current.Store(&empty)
	return b
}

// Snapshot returns the current table without locking.
func (b *Board) Snapshot() Snapshot {
	return Snapshot{signals: *b.current.Load()}
}

// Publish records sig for id and reports whether it differs from the
// previous signal.
func (b *Board) Publish(id resource.ID, sig Signal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := *b.current.Load()
	if prev, ok := old[id]; ok && prev == sig {
		return false
	}

	next := make(map[resource.ID]Signal, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[id] = sig
	b.current.Store(&next)
	return true
}

// Remove drops id from the table.
func (b *Board) Remove(id resource.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := *b.current.Load()
	if _, ok := old[id]; !ok {
		return
	}
	next := make(map[resource.ID]Signal, len(old))
	for k, v := range old {
		if k != id {
			next[k] = v
		}
	}
	b.current.Store(&next)
}
