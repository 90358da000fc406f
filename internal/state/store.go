package state

import (
	"sync"

	"k8s.io/utils/clock"

	"keel/internal/resource"
)

// entry owns one resource record. Its mutex serialises commits for that
// identity only.
type entry struct {
	mu  sync.Mutex
	res *resource.Resource
}

// Store holds the live resource records. The store-level lock guards
// membership; each record is guarded by its own lock, so commits for
// different identities never contend.
type Store struct {
	mu      sync.RWMutex
	entries map[resource.ID]*entry
	clock   clock.PassiveClock
}

// NewStore creates an empty store. A nil clock uses the real clock.
func NewStore(clk clock.PassiveClock) *Store {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{
		entries: make(map[resource.ID]*entry),
		clock:   clk,
	}
}

func (s *Store) lookup(id resource.ID) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Get returns a copy of the record for id.
func (s *Store) Get(id resource.ID) (*resource.Resource, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.res.DeepCopy(), true
}

// Has reports whether id is stored.
func (s *Store) Has(id resource.ID) bool {
	_, ok := s.lookup(id)
	return ok
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// IDs returns all stored identities in deterministic order.
func (s *Store) IDs() []resource.ID {
	s.mu.RLock()
	ids := make([]resource.ID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	resource.SortIDs(ids)
	return ids
}

// List returns copies of all records in deterministic order.
func (s *Store) List() []*resource.Resource {
	ids := s.IDs()
	out := make([]*resource.Resource, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.Get(id); ok {
			out = append(out, r)
		}
	}
	return out
}

// Put inserts or replaces the record for r.ID.
func (s *Store) Put(r *resource.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[r.ID]; ok {
		e.mu.Lock()
		e.res = r.DeepCopy()
		e.mu.Unlock()
		return
	}
	s.entries[r.ID] = &entry{res: r.DeepCopy()}
}

// Admit inserts r as a fresh record at generation 1 in OutOfSync. It does
// nothing and returns false when id is already stored.
func (s *Store) Admit(r *resource.Resource) (*resource.Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[r.ID]; ok {
		return nil, false
	}
	fresh := r.DeepCopy()
	fresh.Generation = 1
	fresh.Status = resource.Status{
		SyncState:          resource.StateOutOfSync,
		LastTransitionTime: s.clock.Now(),
	}
	s.entries[r.ID] = &entry{res: fresh}
	return fresh.DeepCopy(), true
}

// Delete removes id and returns the last record.
func (s *Store) Delete(id resource.ID) (*resource.Resource, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.res.DeepCopy(), true
}

// Update runs fn on the live record for id under its lock. fn reports whether
// it changed anything; when it returns false any modification is discarded.
// Update returns a copy of the record after fn and whether fn committed.
func (s *Store) Update(id resource.ID, fn func(r *resource.Resource) bool) (*resource.Resource, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	work := e.res.DeepCopy()
	if !fn(work) {
		return e.res.DeepCopy(), false
	}
	e.res = work
	return e.res.DeepCopy(), true
}

// SetState moves r to state, stamping LastTransitionTime when the state
// actually changes.
func (s *Store) SetState(r *resource.Resource, state resource.SyncState) {
	if r.Status.SyncState != state {
		r.Status.SyncState = state
		r.Status.LastTransitionTime = s.clock.Now()
	}
}

// Changes describes what a Sync did.
type Changes struct {
	Added     []resource.ID
	Updated   []resource.ID
	Unchanged []resource.ID
	// Resynced lists updated resources that were Synced before the change.
	Resynced []resource.ID
	// Removed holds the last record of every identity absent from the new
	// desired set.
	Removed []*resource.Resource
}

// Sync replaces the desired half of the store with desired.
//
// A resource whose spec and explicit dependencies are semantically equal to
// the stored ones keeps its generation and status. Any other change bumps the
// generation, resets the resource to OutOfSync and clears retry bookkeeping;
// the last observed state is kept so reconcilers can compare against it.
// Resources missing from desired are removed and returned for finalization.
func (s *Store) Sync(desired []*resource.Resource) Changes {
	now := s.clock.Now()
	var ch Changes

	s.mu.Lock()
	seen := make(map[resource.ID]bool, len(desired))
	for _, want := range desired {
		seen[want.ID] = true

		e, ok := s.entries[want.ID]
		if !ok {
			r := want.DeepCopy()
			r.Generation = 1
			r.Status = resource.Status{
				SyncState:          resource.StateOutOfSync,
				LastTransitionTime: now,
			}
			s.entries[want.ID] = &entry{res: r}
			ch.Added = append(ch.Added, want.ID)
			continue
		}

		e.mu.Lock()
		cur := e.res
		if resource.DesiredEqual(cur, want) {
			cur.Labels = want.DeepCopy().Labels
			cur.Source = want.Source
			e.mu.Unlock()
			ch.Unchanged = append(ch.Unchanged, want.ID)
			continue
		}

		if cur.Status.SyncState == resource.StateSynced {
			ch.Resynced = append(ch.Resynced, want.ID)
		}
		next := want.DeepCopy()
		next.Generation = cur.Generation + 1
		next.Status = resource.Status{
			SyncState:          resource.StateOutOfSync,
			Observed:           cur.Status.Observed.DeepCopy(),
			ObservedGeneration: cur.Status.ObservedGeneration,
			LastTransitionTime: now,
			LastSyncedTime:     cur.Status.LastSyncedTime,
		}
		e.res = next
		e.mu.Unlock()
		ch.Updated = append(ch.Updated, want.ID)
	}

	for id, e := range s.entries {
		if seen[id] {
			continue
		}
		e.mu.Lock()
		ch.Removed = append(ch.Removed, e.res.DeepCopy())
		e.mu.Unlock()
		delete(s.entries, id)
	}
	s.mu.Unlock()

	for _, ids := range [][]resource.ID{ch.Added, ch.Updated, ch.Unchanged, ch.Resynced} {
		resource.SortIDs(ids)
	}
	sortResources(ch.Removed)
	return ch
}

func sortResources(rs []*resource.Resource) {
	ids := make([]resource.ID, len(rs))
	byID := make(map[resource.ID]*resource.Resource, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
		byID[r.ID] = r
	}
	resource.SortIDs(ids)
	for i, id := range ids {
		rs[i] = byID[id]
	}
}
