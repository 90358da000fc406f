package dependency

import (
	"keel/internal/resource"
)

// Edge is a directed dependency: Consumer may not start until Producer is
// Synced at its current generation.
type Edge struct {
	Consumer resource.ID
	Producer resource.ID
	// Reason names the rule that produced the edge.
	Reason string
}

// node is one resource inside the adjacency structure together with its
// outgoing (producer) edges.
type node struct {
	id        resource.ID
	dependsOn []resource.ID
	reasons   map[resource.ID]string
}

// Graph is an adjacency structure over stable resource identities. It is not
// safe for concurrent writes; Resolve builds one and freezes it into a Plan.
type Graph struct {
	nodes map[resource.ID]*node
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[resource.ID]*node)}
}

// AddNode registers id. Adding an existing node is a no-op.
func (g *Graph) AddNode(id resource.ID) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{id: id, reasons: make(map[resource.ID]string)}
}

// AddEdge records that consumer depends on producer. Both nodes are created
// if missing; duplicate edges keep the first reason.
func (g *Graph) AddEdge(consumer, producer resource.ID, reason string) {
	g.AddNode(consumer)
	g.AddNode(producer)

	n := g.nodes[consumer]
	if _, dup := n.reasons[producer]; dup {
		return
	}
	n.dependsOn = append(n.dependsOn, producer)
	n.reasons[producer] = reason
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id resource.ID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Dependencies returns the immediate producers of id in deterministic order.
func (g *Graph) Dependencies(id resource.ID) []resource.ID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	deps := make([]resource.ID, len(n.dependsOn))
	copy(deps, n.dependsOn)
	resource.SortIDs(deps)
	return deps
}

// Dependents returns all nodes with a direct dependency on id, sorted.
// This is an O(n) walk.
func (g *Graph) Dependents(id resource.ID) []resource.ID {
	var res []resource.ID
	for _, n := range g.nodes {
		if _, ok := n.reasons[id]; ok {
			res = append(res, n.id)
		}
	}
	resource.SortIDs(res)
	return res
}

// Edges returns every edge, sorted by consumer then producer.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, id := range g.ids() {
		for _, p := range g.Dependencies(id) {
			out = append(out, Edge{Consumer: id, Producer: p, Reason: g.nodes[id].reasons[p]})
		}
	}
	return out
}

func (g *Graph) ids() []resource.ID {
	ids := make([]resource.ID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	resource.SortIDs(ids)
	return ids
}
