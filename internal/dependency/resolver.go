package dependency

import (
	"strings"

	"keel/internal/resource"
)

// CycleError reports a dependency cycle. Path starts and ends with the same
// identity.
type CycleError struct {
	Path []resource.ID
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = id.String()
	}
	return "dependency cycle: " + strings.Join(parts, " -> ")
}

// Plan is the resolved, read-only dependency structure for one graph.
type Plan struct {
	graph       *Graph
	order       []resource.ID
	position    map[resource.ID]int
	unsatisfied map[resource.ID][]Requirement
}

// Resolve derives dependency edges from g and orders them depth-first so that
// producers come before consumers. Any cycle fails the whole resolution and
// the returned plan is nil.
func Resolve(g *resource.Graph) (*Plan, []*CycleError) {
	b := newBuilder(g)
	b.build()

	order, cycles := topoSort(b.graph)
	if len(cycles) > 0 {
		return nil, cycles
	}

	p := &Plan{
		graph:       b.graph,
		order:       order,
		position:    make(map[resource.ID]int, len(order)),
		unsatisfied: b.unsatisfied,
	}
	for i, id := range order {
		p.position[id] = i
	}
	return p, nil
}

const (
	white = iota
	grey
	black
)

// topoSort runs a depth-first post-order walk. Roots and producers are
// visited in resource.ID order, which makes the output deterministic.
func topoSort(g *Graph) ([]resource.ID, []*CycleError) {
	color := make(map[resource.ID]int, len(g.nodes))
	var (
		order  []resource.ID
		stack  []resource.ID
		cycles []*CycleError
	)

	var visit func(id resource.ID)
	visit = func(id resource.ID) {
		color[id] = grey
		stack = append(stack, id)

		for _, p := range g.Dependencies(id) {
			switch color[p] {
			case white:
				visit(p)
			case grey:
				cycles = append(cycles, &CycleError{Path: cyclePath(stack, p)})
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
		order = append(order, id)
	}

	for _, id := range g.ids() {
		if color[id] == white {
			visit(id)
		}
	}
	return order, cycles
}

// cyclePath extracts the cycle closed by the back-edge to target, rendered
// in consumer -> producer direction.
func cyclePath(stack []resource.ID, target resource.ID) []resource.ID {
	start := 0
	for i, id := range stack {
		if id == target {
			start = i
			break
		}
	}
	path := append([]resource.ID(nil), stack[start:]...)
	return append(path, target)
}

// Order returns every identity with producers before consumers.
func (p *Plan) Order() []resource.ID {
	return append([]resource.ID(nil), p.order...)
}

// Position returns the index of id in Order, or -1.
func (p *Plan) Position(id resource.ID) int {
	if i, ok := p.position[id]; ok {
		return i
	}
	return -1
}

// Producers returns the direct producers of id.
func (p *Plan) Producers(id resource.ID) []resource.ID {
	return p.graph.Dependencies(id)
}

// Consumers returns the direct consumers of id.
func (p *Plan) Consumers(id resource.ID) []resource.ID {
	return p.graph.Dependents(id)
}

// Unsatisfied returns the requirements of id that the graph cannot meet.
func (p *Plan) Unsatisfied(id resource.ID) []Requirement {
	return append([]Requirement(nil), p.unsatisfied[id]...)
}

// Edges returns every resolved edge.
func (p *Plan) Edges() []Edge {
	return p.graph.Edges()
}

// Closure returns the transitive producers of id in plan order, excluding id.
func (p *Plan) Closure(id resource.ID) []resource.ID {
	seen := map[resource.ID]bool{id: true}
	queue := p.Producers(id)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		queue = append(queue, p.Producers(next)...)
	}
	delete(seen, id)

	out := make([]resource.ID, 0, len(seen))
	for _, cid := range p.order {
		if seen[cid] {
			out = append(out, cid)
		}
	}
	return out
}

// Dependents returns every identity whose closure contains id.
func (p *Plan) Dependents(id resource.ID) []resource.ID {
	seen := map[resource.ID]bool{id: true}
	queue := p.Consumers(id)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		queue = append(queue, p.Consumers(next)...)
	}
	delete(seen, id)

	out := make([]resource.ID, 0, len(seen))
	for _, cid := range p.order {
		if seen[cid] {
			out = append(out, cid)
		}
	}
	return out
}
