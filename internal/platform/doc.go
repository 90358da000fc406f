// Package platform declares the external capabilities keel drives: a
// certificate authority, a routing platform and a database orchestrator.
//
// Implementations live in sub-packages. memory is an in-process simulator
// with fault injection used by tests and `keel --platform=memory`; kube binds
// the capabilities to cert-manager, Gateway API and CloudNativePG objects in
// a Kubernetes cluster.
//
// Errors crossing this boundary are classified by the reconcilers:
// ErrNotFound and PermanentError carry meaning, anything else is treated as
// transient.
package platform
