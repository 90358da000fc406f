package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/internal/resource"
)

func mustGraph(t *testing.T, resources ...*resource.Resource) *resource.Graph {
	t.Helper()
	g := resource.NewGraph()
	for _, r := range resources {
		require.NoError(t, g.Add(r))
	}
	return g
}

func issuerRes(ns, name string) *resource.Resource {
	return &resource.Resource{
		ID:   resource.NewID(resource.KindIssuer, ns, name),
		Spec: resource.Spec{Issuer: &resource.IssuerSpec{Server: "https://acme.test/directory", Email: "ops@example.com"}},
	}
}

func certRes(ns, name, issuer string) *resource.Resource {
	return &resource.Resource{
		ID: resource.NewID(resource.KindCertificate, ns, name),
		Spec: resource.Spec{Certificate: &resource.CertificateSpec{
			IssuerRef: resource.ObjectRef{Name: issuer},
			Domains:   []string{name + ".example.com"},
		}},
	}
}

func gatewayRes(ns, name, certRef string) *resource.Resource {
	return &resource.Resource{
		ID: resource.NewID(resource.KindGateway, ns, name),
		Spec: resource.Spec{Gateway: &resource.GatewaySpec{
			ClassName: "eg",
			Listeners: []resource.Listener{{Name: "https", Port: 443, Protocol: "HTTPS", CertificateRef: certRef}},
		}},
	}
}

func routeRes(ns, name, parentNS, parent string, backends ...resource.BackendRef) *resource.Resource {
	return &resource.Resource{
		ID: resource.NewID(resource.KindHTTPRoute, ns, name),
		Spec: resource.Spec{HTTPRoute: &resource.HTTPRouteSpec{
			ParentRef: resource.ParentRef{Name: parent, Namespace: parentNS},
			Rules:     []resource.RouteRule{{PathPrefix: "/", BackendRefs: backends}},
		}},
	}
}

func grantRes(ns, name, fromNS, toKind string) *resource.Resource {
	return &resource.Resource{
		ID: resource.NewID(resource.KindReferenceGrant, ns, name),
		Spec: resource.Spec{ReferenceGrant: &resource.ReferenceGrantSpec{
			From: []resource.GrantFrom{{Kind: "HTTPRoute", Namespace: fromNS}},
			To:   []resource.GrantTo{{Kind: toKind}},
		}},
	}
}

func dbRes(ns, name string, instances int32) *resource.Resource {
	return &resource.Resource{
		ID:   resource.NewID(resource.KindDatabaseCluster, ns, name),
		Spec: resource.Spec{DatabaseCluster: &resource.DatabaseClusterSpec{Instances: instances}},
	}
}

func appRes(ns, name string, extra ...string) *resource.Resource {
	return &resource.Resource{
		ID:   resource.NewID(resource.KindApplication, ns, name),
		Spec: resource.Spec{Application: &resource.ApplicationSpec{Namespaces: extra}},
	}
}

func TestResolveOrdersProducersFirst(t *testing.T) {
	g := mustGraph(t,
		appRes("shop", "store", "infra"),
		routeRes("shop", "web", "infra", "public"),
		grantRes("infra", "from-shop", "shop", "Gateway"),
		gatewayRes("infra", "public", "tls"),
		certRes("infra", "tls", "le"),
		issuerRes("infra", "le"),
		dbRes("shop", "orders", 3),
	)

	plan, cycles := Resolve(g)
	require.Empty(t, cycles)
	require.NotNil(t, plan)

	order := plan.Order()
	require.Len(t, order, 7)

	for _, e := range plan.Edges() {
		assert.Less(t, plan.Position(e.Producer), plan.Position(e.Consumer),
			"%s must come before %s (%s)", e.Producer, e.Consumer, e.Reason)
	}

	// Application is last: it depends on everything in shop and infra.
	assert.Equal(t, resource.NewID(resource.KindApplication, "shop", "store"), order[len(order)-1])
}

func TestResolveIsDeterministic(t *testing.T) {
	build := func() *resource.Graph {
		return mustGraph(t,
			issuerRes("b", "le"),
			issuerRes("a", "le"),
			dbRes("a", "db", 1),
			certRes("a", "web", "le"),
		)
	}

	first, cycles := Resolve(build())
	require.Empty(t, cycles)
	for i := 0; i < 10; i++ {
		again, cycles := Resolve(build())
		require.Empty(t, cycles)
		assert.Equal(t, first.Order(), again.Order())
	}

	assert.Equal(t, []resource.ID{
		resource.NewID(resource.KindIssuer, "a", "le"),
		resource.NewID(resource.KindIssuer, "b", "le"),
		resource.NewID(resource.KindCertificate, "a", "web"),
		resource.NewID(resource.KindDatabaseCluster, "a", "db"),
	}, first.Order())
}

func TestResolveDetectsCycle(t *testing.T) {
	issuer := issuerRes("default", "b")
	issuer.DependsOn = []resource.ID{resource.NewID(resource.KindCertificate, "default", "a")}
	cert := certRes("default", "a", "b")

	plan, cycles := Resolve(mustGraph(t, issuer, cert))
	assert.Nil(t, plan)
	require.Len(t, cycles, 1)

	msg := cycles[0].Error()
	assert.Contains(t, msg, "Certificate/default/a")
	assert.Contains(t, msg, "Issuer/default/b")
	assert.Equal(t, cycles[0].Path[0], cycles[0].Path[len(cycles[0].Path)-1])
}

func TestResolveSelfDependencyIsACycle(t *testing.T) {
	db := dbRes("default", "db", 1)
	db.DependsOn = []resource.ID{db.ID}

	_, cycles := Resolve(mustGraph(t, db))
	require.Len(t, cycles, 1)
	assert.Equal(t, []resource.ID{db.ID, db.ID}, cycles[0].Path)
}

func TestCrossNamespaceRouteWithoutGrantIsUnsatisfied(t *testing.T) {
	route := routeRes("shop", "web", "infra", "public")
	plan, cycles := Resolve(mustGraph(t,
		route,
		gatewayRes("infra", "public", ""),
		// grant exists but for another namespace
		grantRes("infra", "from-blog", "blog", "Gateway"),
	))
	require.Empty(t, cycles)

	unsatisfied := plan.Unsatisfied(route.ID)
	require.Len(t, unsatisfied, 1)
	assert.Contains(t, unsatisfied[0].Reason, `no ReferenceGrant in namespace "infra"`)
	assert.Equal(t, []resource.ID{resource.NewID(resource.KindGateway, "infra", "public")}, plan.Producers(route.ID))
}

func TestCrossNamespaceRouteWithGrant(t *testing.T) {
	route := routeRes("shop", "web", "infra", "public")
	grant := grantRes("infra", "from-shop", "shop", "Gateway")
	plan, cycles := Resolve(mustGraph(t, route, gatewayRes("infra", "public", ""), grant))
	require.Empty(t, cycles)

	assert.Empty(t, plan.Unsatisfied(route.ID))
	assert.Contains(t, plan.Producers(route.ID), grant.ID)
}

func TestCrossNamespaceBackendNeedsServiceGrant(t *testing.T) {
	route := routeRes("shop", "web", "", "public", resource.BackendRef{Name: "api", Namespace: "backend", Port: 80})

	plan, _ := Resolve(mustGraph(t, route, gatewayRes("shop", "public", "")))
	require.Len(t, plan.Unsatisfied(route.ID), 1)
	assert.Contains(t, plan.Unsatisfied(route.ID)[0].Reason, `Service "api"`)

	grant := grantRes("backend", "from-shop", "shop", "Service")
	plan, _ = Resolve(mustGraph(t, route, gatewayRes("shop", "public", ""), grant))
	assert.Empty(t, plan.Unsatisfied(route.ID))
	assert.Contains(t, plan.Producers(route.ID), grant.ID)
}

func TestMissingProducerIsUnsatisfiedNotAnError(t *testing.T) {
	cert := certRes("default", "web", "missing")
	plan, cycles := Resolve(mustGraph(t, cert))
	require.Empty(t, cycles)
	require.NotNil(t, plan)

	reqs := plan.Unsatisfied(cert.ID)
	require.Len(t, reqs, 1)
	assert.Equal(t, resource.NewID(resource.KindIssuer, "default", "missing"), reqs[0].Producer)
	assert.Empty(t, plan.Producers(cert.ID))
}

func TestClosure(t *testing.T) {
	app := appRes("infra", "edge")
	plan, cycles := Resolve(mustGraph(t,
		issuerRes("infra", "le"),
		certRes("infra", "tls", "le"),
		gatewayRes("infra", "public", "tls"),
		app,
		dbRes("other", "db", 3),
	))
	require.Empty(t, cycles)

	assert.Equal(t, []resource.ID{
		resource.NewID(resource.KindIssuer, "infra", "le"),
		resource.NewID(resource.KindCertificate, "infra", "tls"),
		resource.NewID(resource.KindGateway, "infra", "public"),
	}, plan.Closure(app.ID))

	gw := resource.NewID(resource.KindGateway, "infra", "public")
	assert.Equal(t, []resource.ID{
		resource.NewID(resource.KindIssuer, "infra", "le"),
		resource.NewID(resource.KindCertificate, "infra", "tls"),
	}, plan.Closure(gw))

	issuer := resource.NewID(resource.KindIssuer, "infra", "le")
	assert.Equal(t, []resource.ID{
		resource.NewID(resource.KindCertificate, "infra", "tls"),
		resource.NewID(resource.KindGateway, "infra", "public"),
		app.ID,
	}, plan.Dependents(issuer))
}
