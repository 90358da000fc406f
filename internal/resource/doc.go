// Package resource defines the typed model the engine reconciles.
//
// A Resource is identified by (kind, namespace, name). Its desired state is a
// Spec, a one-of union with one variant per kind, and its engine-owned state
// is a Status holding the committed Observed union plus scheduling
// bookkeeping (attempts, next eligible time, blocked reason).
//
// Generation increases whenever the desired spec changes. A resource is
// considered ready for its consumers only when it is Synced at its current
// generation.
//
// Graph is a plain identity-keyed set of resources; dependency edges are
// computed separately by the dependency package.
package resource
