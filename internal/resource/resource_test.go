package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindPriorityOrder(t *testing.T) {
	want := []Kind{
		KindIssuer,
		KindCertificate,
		KindReferenceGrant,
		KindGateway,
		KindHTTPRoute,
		KindDatabaseCluster,
		KindApplication,
	}
	assert.Equal(t, want, Kinds())
	assert.Equal(t, len(want), Kind("Unknown").Priority())
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("Certificate")
	assert.True(t, ok)
	assert.Equal(t, KindCertificate, k)

	_, ok = ParseKind("certificate")
	assert.False(t, ok, "kind matching is case sensitive")

	_, ok = ParseKind("VirtualMachine")
	assert.False(t, ok)
}

func TestIDLess(t *testing.T) {
	ids := []ID{
		NewID(KindApplication, "a", "shop"),
		NewID(KindCertificate, "b", "web"),
		NewID(KindCertificate, "a", "zeta"),
		NewID(KindCertificate, "a", "alpha"),
		NewID(KindIssuer, "z", "le"),
	}
	SortIDs(ids)

	assert.Equal(t, []ID{
		NewID(KindIssuer, "z", "le"),
		NewID(KindCertificate, "a", "alpha"),
		NewID(KindCertificate, "a", "zeta"),
		NewID(KindCertificate, "b", "web"),
		NewID(KindApplication, "a", "shop"),
	}, ids)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ID
		wantErr bool
	}{
		{name: "full", in: "Gateway/infra/public", want: NewID(KindGateway, "infra", "public")},
		{name: "default namespace", in: "Issuer/letsencrypt", want: NewID(KindIssuer, "default", "letsencrypt")},
		{name: "unknown kind", in: "Pod/default/x", wantErr: true},
		{name: "too many parts", in: "Issuer/a/b/c", wantErr: true},
		{name: "empty name", in: "Issuer/default/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.in, "default")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestWorst(t *testing.T) {
	tests := []struct {
		name   string
		states []SyncState
		want   SyncState
	}{
		{name: "empty", want: StateSynced},
		{name: "all synced", states: []SyncState{StateSynced, StateSynced}, want: StateSynced},
		{name: "out of sync beats synced", states: []SyncState{StateSynced, StateOutOfSync}, want: StateOutOfSync},
		{name: "syncing beats out of sync", states: []SyncState{StateOutOfSync, StateSyncing}, want: StateSyncing},
		{name: "degraded beats syncing", states: []SyncState{StateSyncing, StateDegraded}, want: StateDegraded},
		{name: "error beats everything", states: []SyncState{StateDegraded, StateError, StateSynced}, want: StateError},
		{name: "unset counts as out of sync", states: []SyncState{StateSynced, ""}, want: StateOutOfSync},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Worst(tt.states...))
		})
	}
}

func TestQuorumThreshold(t *testing.T) {
	tests := []struct {
		instances int32
		want      int32
	}{
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
		{5, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DatabaseClusterSpec{Instances: tt.instances}.QuorumThreshold(), "instances=%d", tt.instances)
	}
}

func TestReferenceGrantAllows(t *testing.T) {
	grant := &ReferenceGrantSpec{
		From: []GrantFrom{{Kind: "HTTPRoute", Namespace: "shop"}},
		To:   []GrantTo{{Kind: "Gateway"}, {Kind: "Service", Name: "api"}},
	}

	assert.True(t, grant.Allows("HTTPRoute", "shop", "Gateway", "public"))
	assert.True(t, grant.Allows("HTTPRoute", "shop", "Service", "api"))
	assert.False(t, grant.Allows("HTTPRoute", "shop", "Service", "db"))
	assert.False(t, grant.Allows("HTTPRoute", "blog", "Gateway", "public"))

	var none *ReferenceGrantSpec
	assert.False(t, none.Allows("HTTPRoute", "shop", "Gateway", "public"))
}

func TestGraphAddDuplicate(t *testing.T) {
	g := NewGraph()
	r := &Resource{ID: NewID(KindIssuer, "default", "le"), Spec: Spec{Issuer: &IssuerSpec{Server: "https://acme"}}}

	require.NoError(t, g.Add(r))
	err := g.Add(r.DeepCopy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Issuer/default/le")
	assert.Equal(t, 1, g.Len())
}

func TestGraphListIsSorted(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add(&Resource{ID: NewID(KindApplication, "shop", "app")}))
	require.NoError(t, g.Add(&Resource{ID: NewID(KindIssuer, "shop", "le")}))
	require.NoError(t, g.Add(&Resource{ID: NewID(KindGateway, "infra", "gw")}))

	var got []Kind
	for _, r := range g.List() {
		got = append(got, r.ID.Kind)
	}
	assert.Equal(t, []Kind{KindIssuer, KindGateway, KindApplication}, got)
	assert.Equal(t, []string{"infra", "shop"}, g.Namespaces())
}

func TestSpecEqual(t *testing.T) {
	a := Spec{Gateway: &GatewaySpec{ClassName: "eg", Listeners: []Listener{{Name: "http", Port: 80, Protocol: "HTTP"}}}}
	b := Spec{Gateway: &GatewaySpec{ClassName: "eg", Listeners: []Listener{{Name: "http", Port: 80, Protocol: "HTTP"}}}}
	assert.True(t, SpecEqual(a, b))
	assert.Empty(t, SpecDiff(a, b))
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	b.Gateway.Listeners[0].Port = 8080
	assert.False(t, SpecEqual(a, b))
	assert.NotEmpty(t, SpecDiff(a, b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))

	// nil and empty slices are the same declaration
	c := Spec{HTTPRoute: &HTTPRouteSpec{ParentRef: ParentRef{Name: "gw"}}}
	d := Spec{HTTPRoute: &HTTPRouteSpec{ParentRef: ParentRef{Name: "gw"}, Hostnames: []string{}}}
	assert.True(t, SpecEqual(c, d))
}

func TestDeepCopyIsIndependent(t *testing.T) {
	primary := "db-1"
	r := &Resource{
		ID:     NewID(KindDatabaseCluster, "shop", "db"),
		Labels: map[string]string{"team": "a"},
		Status: Status{
			SyncState: StateSynced,
			Observed:  Observed{Database: &DatabaseStatus{ObservedInstances: 3, Primary: &primary}},
		},
	}

	cp := r.DeepCopy()
	cp.Labels["team"] = "b"
	cp.Status.SyncState = StateDegraded
	cp.Status.Observed.Database.ObservedInstances = 1
	*cp.Status.Observed.Database.Primary = "db-2"

	assert.Equal(t, "a", r.Labels["team"])
	assert.Equal(t, StateSynced, r.Status.SyncState)
	assert.Equal(t, int32(3), r.Status.Observed.Database.ObservedInstances)
	assert.Equal(t, "db-1", *r.Status.Observed.Database.Primary)
}

func TestResourceReady(t *testing.T) {
	r := &Resource{Generation: 2, Status: Status{SyncState: StateSynced, ObservedGeneration: 1}}
	assert.False(t, r.Ready(), "synced at an older generation is not ready")

	r.Status.ObservedGeneration = 2
	assert.True(t, r.Ready())

	r.Status.SyncState = StateDegraded
	assert.False(t, r.Ready())
}
