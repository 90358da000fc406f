package status

import (
	"fmt"
	"time"

	"keel/internal/resource"
)

// View is the read-only projection the aggregator works on. Get returns the
// current record for an identity; Closure returns the transitive producers
// of an identity.
type View interface {
	Get(id resource.ID) (*resource.Resource, bool)
	Closure(id resource.ID) []resource.ID
}

// Member is one resource in an Application's dependency closure.
type Member struct {
	ID        resource.ID        `json:"id" yaml:"id"`
	SyncState resource.SyncState `json:"syncState" yaml:"syncState"`
	Blocked   bool               `json:"blocked,omitempty" yaml:"blocked,omitempty"`
	Message   string             `json:"message,omitempty" yaml:"message,omitempty"`
	Since     time.Time          `json:"since,omitempty" yaml:"since,omitempty"`
}

// AggregateStatus is the rolled-up state of an Application.
type AggregateStatus struct {
	Application resource.ID        `json:"application" yaml:"application"`
	SyncState   resource.SyncState `json:"syncState" yaml:"syncState"`
	// WorstResource is the member that determined SyncState. It is zero when
	// every member is Synced.
	WorstResource      resource.ID `json:"worstResource,omitempty" yaml:"worstResource,omitempty"`
	LastTransitionTime time.Time   `json:"lastTransitionTime,omitempty" yaml:"lastTransitionTime,omitempty"`
	Members            []Member    `json:"members" yaml:"members"`
}

// Aggregate computes the status of the Application app from v. It never
// modifies anything.
//
// The result is the worst state over the closure, ordered Error > Degraded >
// Syncing > OutOfSync > Synced. Members that are missing from v count as
// OutOfSync, and a Synced member whose status belongs to an older generation
// is not yet Synced either. Ties keep the first member in closure order.
func Aggregate(v View, app resource.ID) (AggregateStatus, error) {
	if app.Kind != resource.KindApplication {
		return AggregateStatus{}, fmt.Errorf("%s is not an Application", app)
	}
	if _, ok := v.Get(app); !ok {
		return AggregateStatus{}, fmt.Errorf("application %s not found", app)
	}

	out := AggregateStatus{Application: app, SyncState: resource.StateSynced}
	for _, id := range v.Closure(app) {
		m := Member{ID: id, SyncState: resource.StateOutOfSync, Message: "not yet admitted"}
		if r, ok := v.Get(id); ok {
			m = memberOf(r)
		}
		out.Members = append(out.Members, m)

		if m.SyncState.Severity() > out.SyncState.Severity() {
			out.SyncState = m.SyncState
			out.WorstResource = id
		}
		if m.Since.After(out.LastTransitionTime) {
			out.LastTransitionTime = m.Since
		}
	}
	return out, nil
}

func memberOf(r *resource.Resource) Member {
	st := r.Status.SyncState
	if st == "" || (st == resource.StateSynced && r.Status.ObservedGeneration != r.Generation) {
		st = resource.StateOutOfSync
	}
	msg := r.Status.Message
	if r.Status.Blocked {
		msg = r.Status.BlockedReason
	}
	return Member{
		ID:        r.ID,
		SyncState: st,
		Blocked:   r.Status.Blocked,
		Message:   msg,
		Since:     r.Status.LastTransitionTime,
	}
}

// Summary counts resources per sync state.
type Summary map[resource.SyncState]int

// Summarize counts the states of rs.
func Summarize(rs []*resource.Resource) Summary {
	s := make(Summary)
	for _, r := range rs {
		s[memberOf(r).SyncState]++
	}
	return s
}
