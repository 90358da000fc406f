package dependency

import (
	"fmt"

	"keel/internal/resource"
)

// Requirement is a dependency on something the graph does not (yet) contain:
// a producer that was never declared, or a ReferenceGrant that would permit a
// cross-namespace reference. Consumers with requirements are Blocked until a
// later load satisfies them.
type Requirement struct {
	Consumer resource.ID
	// Producer is the missing resource, zero when the requirement is a grant.
	Producer resource.ID
	Reason   string
}

func (r Requirement) String() string {
	return r.Reason
}

// builder applies the static dependency rules to a resource graph.
type builder struct {
	resources   *resource.Graph
	graph       *Graph
	unsatisfied map[resource.ID][]Requirement
}

func newBuilder(g *resource.Graph) *builder {
	b := &builder{
		resources:   g,
		graph:       New(),
		unsatisfied: make(map[resource.ID][]Requirement),
	}
	for _, id := range g.IDs() {
		b.graph.AddNode(id)
	}
	return b
}

func (b *builder) build() {
	for _, r := range b.resources.List() {
		switch r.ID.Kind {
		case resource.KindCertificate:
			b.certificateRules(r)
		case resource.KindGateway:
			b.gatewayRules(r)
		case resource.KindHTTPRoute:
			b.routeRules(r)
		case resource.KindApplication:
			b.applicationRules(r)
		}

		for _, dep := range r.DependsOn {
			b.require(r.ID, dep, "dependsOn")
		}
	}
}

// require adds an edge when producer exists and a Requirement otherwise.
func (b *builder) require(consumer, producer resource.ID, reason string) {
	if b.resources.Has(producer) {
		b.graph.AddEdge(consumer, producer, reason)
		return
	}
	b.unsatisfied[consumer] = append(b.unsatisfied[consumer], Requirement{
		Consumer: consumer,
		Producer: producer,
		Reason:   fmt.Sprintf("%s %s is not declared", reason, producer),
	})
}

func (b *builder) certificateRules(r *resource.Resource) {
	spec := r.Spec.Certificate
	if spec == nil {
		return
	}
	issuer := resource.NewID(resource.KindIssuer, spec.IssuerRef.Resolve(r.ID.Namespace), spec.IssuerRef.Name)
	b.require(r.ID, issuer, "issuerRef")
}

func (b *builder) gatewayRules(r *resource.Resource) {
	spec := r.Spec.Gateway
	if spec == nil {
		return
	}
	for _, l := range spec.Listeners {
		if l.CertificateRef == "" {
			continue
		}
		cert := resource.NewID(resource.KindCertificate, r.ID.Namespace, l.CertificateRef)
		b.require(r.ID, cert, fmt.Sprintf("listener %q certificateRef", l.Name))
	}
}

func (b *builder) routeRules(r *resource.Resource) {
	spec := r.Spec.HTTPRoute
	if spec == nil {
		return
	}

	parentNS := spec.ParentRef.Namespace
	if parentNS == "" {
		parentNS = r.ID.Namespace
	}
	gateway := resource.NewID(resource.KindGateway, parentNS, spec.ParentRef.Name)
	b.require(r.ID, gateway, "parentRef")

	if parentNS != r.ID.Namespace {
		b.requireGrant(r.ID, parentNS, string(resource.KindGateway), spec.ParentRef.Name)
	}

	for _, rule := range spec.Rules {
		for _, backend := range rule.BackendRefs {
			if backend.Namespace == "" || backend.Namespace == r.ID.Namespace {
				continue
			}
			b.requireGrant(r.ID, backend.Namespace, "Service", backend.Name)
		}
	}
}

// requireGrant makes route depend on the first ReferenceGrant in targetNS
// that lets HTTPRoutes from the route's namespace reference the target.
func (b *builder) requireGrant(route resource.ID, targetNS, targetKind, targetName string) {
	for _, g := range b.resources.Select(func(c *resource.Resource) bool {
		return c.ID.Kind == resource.KindReferenceGrant && c.ID.Namespace == targetNS
	}) {
		if g.Spec.ReferenceGrant.Allows(string(resource.KindHTTPRoute), route.Namespace, targetKind, targetName) {
			b.graph.AddEdge(route, g.ID, fmt.Sprintf("grant for %s %s/%s", targetKind, targetNS, targetName))
			return
		}
	}

	b.unsatisfied[route] = append(b.unsatisfied[route], Requirement{
		Consumer: route,
		Reason: fmt.Sprintf("no ReferenceGrant in namespace %q allows HTTPRoute from %q to %s %q",
			targetNS, route.Namespace, targetKind, targetName),
	})
}

func (b *builder) applicationRules(r *resource.Resource) {
	namespaces := map[string]struct{}{r.ID.Namespace: {}}
	if r.Spec.Application != nil {
		for _, ns := range r.Spec.Application.Namespaces {
			namespaces[ns] = struct{}{}
		}
	}

	for _, member := range b.resources.Select(func(c *resource.Resource) bool {
		_, ok := namespaces[c.ID.Namespace]
		return ok && c.ID.Kind != resource.KindApplication
	}) {
		b.graph.AddEdge(r.ID, member.ID, "application member")
	}
}
