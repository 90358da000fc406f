package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"
)

// Graph is a set of resources keyed by identity. It carries no edges; the
// dependency package derives them.
type Graph struct {
	resources map[ID]*Resource
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{resources: make(map[ID]*Resource)}
}

// Add inserts r. Identities are unique within a graph.
func (g *Graph) Add(r *Resource) error {
	if _, exists := g.resources[r.ID]; exists {
		return fmt.Errorf("duplicate resource %s", r.ID)
	}
	g.resources[r.ID] = r
	return nil
}

// Get returns the resource with the given identity.
func (g *Graph) Get(id ID) (*Resource, bool) {
	r, ok := g.resources[id]
	return r, ok
}

// Has reports whether id is in the graph.
func (g *Graph) Has(id ID) bool {
	_, ok := g.resources[id]
	return ok
}

// Len returns the number of resources.
func (g *Graph) Len() int {
	return len(g.resources)
}

// IDs returns all identities in deterministic order.
func (g *Graph) IDs() []ID {
	ids := make([]ID, 0, len(g.resources))
	for id := range g.resources {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// List returns all resources in deterministic order.
func (g *Graph) List() []*Resource {
	ids := g.IDs()
	out := make([]*Resource, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.resources[id])
	}
	return out
}

// Select returns the resources matching keep, in deterministic order.
func (g *Graph) Select(keep func(*Resource) bool) []*Resource {
	var out []*Resource
	for _, r := range g.List() {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Namespaces returns the distinct namespaces in the graph, sorted.
func (g *Graph) Namespaces() []string {
	seen := make(map[string]struct{})
	for id := range g.resources {
		seen[id.Namespace] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

var specCompareOpts = []cmp.Option{cmpopts.EquateEmpty()}

// SpecEqual reports whether a and b declare the same desired state. Nil and
// empty slices compare equal.
func SpecEqual(a, b Spec) bool {
	return cmp.Equal(a, b, specCompareOpts...)
}

// DesiredEqual reports whether two resources with the same identity declare
// the same desired state, including explicit dependencies.
func DesiredEqual(a, b *Resource) bool {
	return SpecEqual(a.Spec, b.Spec) && cmp.Equal(a.DependsOn, b.DependsOn, cmpopts.EquateEmpty())
}

// SpecDiff returns a human readable diff between two specs, or "" when equal.
func SpecDiff(a, b Spec) string {
	return cmp.Diff(a, b, specCompareOpts...)
}

// Fingerprint returns a short stable hash of a spec.
func Fingerprint(s Spec) string {
	data, err := yaml.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
