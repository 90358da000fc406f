package dependency

import (
	"testing"

	"keel/internal/resource"
)

func id(kind resource.Kind, name string) resource.ID {
	return resource.NewID(kind, "default", name)
}

func TestNew(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("New() returned nil")
	}
	if g.nodes == nil {
		t.Fatal("nodes map not initialized")
	}
	if len(g.nodes) != 0 {
		t.Fatalf("expected empty nodes map, got %d nodes", len(g.nodes))
	}
}

func TestAddEdge(t *testing.T) {
	g := New()
	cert := id(resource.KindCertificate, "web")
	issuer := id(resource.KindIssuer, "le")

	g.AddEdge(cert, issuer, "issuerRef")
	g.AddEdge(cert, issuer, "dependsOn") // duplicate keeps the first reason

	if !g.Has(cert) || !g.Has(issuer) {
		t.Fatal("AddEdge should create both nodes")
	}

	edges := g.Edges()
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d: %v", len(edges), edges)
	}
	if edges[0].Reason != "issuerRef" {
		t.Errorf("expected reason issuerRef, got %q", edges[0].Reason)
	}
}

func TestDependencies(t *testing.T) {
	g := New()

	if deps := g.Dependencies(id(resource.KindGateway, "nonexistent")); len(deps) != 0 {
		t.Errorf("expected empty dependencies for non-existent node, got %v", deps)
	}

	issuer := id(resource.KindIssuer, "le")
	cert := id(resource.KindCertificate, "web")
	gw := id(resource.KindGateway, "public")
	route := id(resource.KindHTTPRoute, "shop")

	g.AddEdge(cert, issuer, "issuerRef")
	g.AddEdge(gw, cert, "certificateRef")
	g.AddEdge(route, gw, "parentRef")
	g.AddEdge(route, cert, "dependsOn")

	tests := []struct {
		node     resource.ID
		expected []resource.ID
	}{
		{issuer, nil},
		{cert, []resource.ID{issuer}},
		{gw, []resource.ID{cert}},
		{route, []resource.ID{cert, gw}},
	}

	for _, tt := range tests {
		t.Run(tt.node.String(), func(t *testing.T) {
			deps := g.Dependencies(tt.node)
			if len(deps) != len(tt.expected) {
				t.Fatalf("expected %d dependencies, got %d: %v", len(tt.expected), len(deps), deps)
			}
			for i := range deps {
				if deps[i] != tt.expected[i] {
					t.Errorf("dependency %d: expected %s, got %s", i, tt.expected[i], deps[i])
				}
			}
		})
	}
}

func TestDependents(t *testing.T) {
	g := New()

	issuer := id(resource.KindIssuer, "le")
	certA := id(resource.KindCertificate, "a")
	certB := id(resource.KindCertificate, "b")
	gw := id(resource.KindGateway, "public")

	g.AddEdge(certA, issuer, "issuerRef")
	g.AddEdge(certB, issuer, "issuerRef")
	g.AddEdge(gw, certA, "certificateRef")

	tests := []struct {
		node     resource.ID
		expected []resource.ID
	}{
		{issuer, []resource.ID{certA, certB}},
		{certA, []resource.ID{gw}},
		{certB, nil},
		{gw, nil},
	}

	for _, tt := range tests {
		t.Run(tt.node.String(), func(t *testing.T) {
			deps := g.Dependents(tt.node)
			if len(deps) != len(tt.expected) {
				t.Fatalf("expected %d dependents, got %d: %v", len(tt.expected), len(deps), deps)
			}
			for i := range deps {
				if deps[i] != tt.expected[i] {
					t.Errorf("dependent %d: expected %s, got %s", i, tt.expected[i], deps[i])
				}
			}
		})
	}
}
