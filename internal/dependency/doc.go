// Package dependency computes the partial order in which keel reconciles
// resources.
//
// # Rules
//
// Edges are derived from the resource graph by static rules plus explicit
// metadata.dependsOn declarations:
//
//	Certificate     -> Issuer          (spec.issuerRef)
//	Gateway         -> Certificate     (listener certificateRef)
//	HTTPRoute       -> Gateway         (spec.parentRef)
//	HTTPRoute       -> ReferenceGrant  (parent or backend in another namespace)
//	Application     -> every non-Application resource in its namespaces
//
// A reference to something that is not declared does not fail resolution. It
// becomes a Requirement and the scheduler keeps the consumer Blocked until a
// later load provides it. Cycles do fail resolution: Resolve walks the graph
// depth-first and every back-edge is reported as a CycleError naming the
// path.
//
// # Ordering
//
// Roots and producers are visited in resource.ID order (kind priority, then
// namespace, then name), so Plan.Order is reproducible for a given graph.
//
// # Signals
//
// Board holds the last (generation, state) each producer published. Workers
// read it through lock-free snapshots when deciding whether a consumer may be
// dispatched; writers replace the whole table.
package dependency
