package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/internal/resource"
)

type fakeView struct {
	records map[resource.ID]*resource.Resource
	closure map[resource.ID][]resource.ID
}

func (v *fakeView) Get(id resource.ID) (*resource.Resource, bool) {
	r, ok := v.records[id]
	return r, ok
}

func (v *fakeView) Closure(id resource.ID) []resource.ID {
	return v.closure[id]
}

var (
	app    = resource.NewID(resource.KindApplication, "shop", "storefront")
	issuer = resource.NewID(resource.KindIssuer, "shop", "le")
	cert   = resource.NewID(resource.KindCertificate, "shop", "web")
	orders = resource.NewID(resource.KindDatabaseCluster, "shop", "orders")
)

func rec(id resource.ID, state resource.SyncState, since time.Time) *resource.Resource {
	return &resource.Resource{
		ID:         id,
		Generation: 1,
		Status: resource.Status{
			SyncState:          state,
			ObservedGeneration: 1,
			LastTransitionTime: since,
		},
	}
}

func newView(members ...*resource.Resource) *fakeView {
	v := &fakeView{
		records: map[resource.ID]*resource.Resource{app: rec(app, resource.StateSynced, time.Time{})},
		closure: map[resource.ID][]resource.ID{},
	}
	for _, m := range members {
		v.records[m.ID] = m
		v.closure[app] = append(v.closure[app], m.ID)
	}
	return v
}

func TestAggregate(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		members   []*resource.Resource
		wantState resource.SyncState
		wantWorst resource.ID
	}{
		{
			name:      "all synced",
			members:   []*resource.Resource{rec(issuer, resource.StateSynced, t0), rec(cert, resource.StateSynced, t0)},
			wantState: resource.StateSynced,
		},
		{
			name:      "degraded database",
			members:   []*resource.Resource{rec(issuer, resource.StateSynced, t0), rec(orders, resource.StateDegraded, t0)},
			wantState: resource.StateDegraded,
			wantWorst: orders,
		},
		{
			name: "error beats degraded",
			members: []*resource.Resource{
				rec(issuer, resource.StateError, t0),
				rec(cert, resource.StateSyncing, t0),
				rec(orders, resource.StateDegraded, t0),
			},
			wantState: resource.StateError,
			wantWorst: issuer,
		},
		{
			name:      "syncing beats out of sync",
			members:   []*resource.Resource{rec(issuer, resource.StateOutOfSync, t0), rec(cert, resource.StateSyncing, t0)},
			wantState: resource.StateSyncing,
			wantWorst: cert,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Aggregate(newView(tt.members...), app)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, got.SyncState)
			assert.Equal(t, tt.wantWorst, got.WorstResource)
			assert.Len(t, got.Members, len(tt.members))
		})
	}
}

func TestAggregateStaleGenerationIsNotSynced(t *testing.T) {
	r := rec(cert, resource.StateSynced, time.Time{})
	r.Generation = 2

	got, err := Aggregate(newView(r), app)
	require.NoError(t, err)
	assert.Equal(t, resource.StateOutOfSync, got.SyncState)
}

func TestAggregateBlockedMemberCountsAsOutOfSync(t *testing.T) {
	r := rec(cert, resource.StateOutOfSync, time.Time{})
	r.Status.Blocked = true
	r.Status.BlockedReason = "Issuer shop/le is not declared"

	got, err := Aggregate(newView(r, rec(issuer, resource.StateSynced, time.Time{})), app)
	require.NoError(t, err)
	assert.Equal(t, resource.StateOutOfSync, got.SyncState)
	require.Len(t, got.Members, 2)
	assert.True(t, got.Members[0].Blocked)
	assert.Equal(t, "Issuer shop/le is not declared", got.Members[0].Message)
}

func TestAggregateLastTransitionTime(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	got, err := Aggregate(newView(
		rec(issuer, resource.StateSynced, t0),
		rec(cert, resource.StateSynced, t0.Add(time.Minute)),
	), app)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), got.LastTransitionTime)
}

func TestAggregateDoesNotMutate(t *testing.T) {
	r := rec(cert, resource.StateError, time.Time{})
	v := newView(r)
	_, err := Aggregate(v, app)
	require.NoError(t, err)
	assert.Equal(t, resource.StateError, v.records[cert].Status.SyncState)
	assert.Equal(t, resource.StateSynced, v.records[app].Status.SyncState)
}

func TestAggregateRejectsNonApplications(t *testing.T) {
	_, err := Aggregate(newView(), cert)
	assert.Error(t, err)

	_, err = Aggregate(newView(), resource.NewID(resource.KindApplication, "shop", "absent"))
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	stale := rec(cert, resource.StateSynced, time.Time{})
	stale.Generation = 3
	s := Summarize([]*resource.Resource{
		rec(issuer, resource.StateSynced, time.Time{}),
		stale,
		rec(orders, resource.StateDegraded, time.Time{}),
	})
	assert.Equal(t, Summary{resource.StateSynced: 1, resource.StateOutOfSync: 1, resource.StateDegraded: 1}, s)
}
