package reconciler

import (
	"context"
	"fmt"

	"keel/internal/platform"
	"keel/internal/resource"
)

// RoutingReconciler converges Gateways, HTTPRoutes and ReferenceGrants on
// the routing platform. One instance handles one kind.
type RoutingReconciler struct {
	kind     resource.Kind
	platform platform.RoutingPlatform
}

// NewRoutingReconciler creates a reconciler for kind, which must be one of
// the routing kinds.
func NewRoutingReconciler(kind resource.Kind, rp platform.RoutingPlatform) (*RoutingReconciler, error) {
	switch kind {
	case resource.KindGateway, resource.KindHTTPRoute, resource.KindReferenceGrant:
	default:
		return nil, fmt.Errorf("%s is not a routing kind", kind)
	}
	return &RoutingReconciler{kind: kind, platform: rp}, nil
}

// Kind returns the resource kind this reconciler handles.
func (r *RoutingReconciler) Kind() resource.Kind {
	return r.kind
}

// Reconcile creates or updates the object. The platform treats an unchanged
// spec as a no-op.
func (r *RoutingReconciler) Reconcile(ctx context.Context, req Request) Result {
	res := req.Resource
	if res.Spec.Kind() != r.kind {
		return Result{Err: Fatalf("%s has no %s spec", res.ID, r.kind)}
	}

	if route := res.Spec.HTTPRoute; route != nil {
		parent := resource.NewID(resource.KindGateway, route.ParentRef.Namespace, route.ParentRef.Name)
		if parent.Namespace == "" {
			parent.Namespace = res.ID.Namespace
		}
		if _, err := r.platform.Get(ctx, parent); err != nil {
			if platform.IsNotFound(err) {
				return Result{Err: Blocked("parent %s is not present on the routing platform", parent)}
			}
			return Result{Err: Classify(err)}
		}
	}

	st, err := r.platform.CreateOrUpdate(ctx, res.ID, res.Spec)
	if err != nil {
		return Result{Err: Classify(err)}
	}

	obs := resource.Observed{Routing: routingStatus(st)}
	if !st.Accepted {
		msg := st.Message
		if msg == "" {
			msg = "waiting for the controller"
		}
		return Result{Observed: obs, Err: Transientf("%s not accepted: %s", res.ID, msg)}
	}
	return Result{Observed: obs, Message: "accepted"}
}

// Observe reads the object without changing it. A missing object is
// reported as not present.
func (r *RoutingReconciler) Observe(ctx context.Context, req Request) (resource.Observed, error) {
	st, err := r.platform.Get(ctx, req.ID())
	if platform.IsNotFound(err) {
		return resource.Observed{Routing: &resource.RoutingStatus{}}, nil
	}
	if err != nil {
		return resource.Observed{}, err
	}
	return resource.Observed{Routing: routingStatus(st)}, nil
}

// Finalize deletes the object.
func (r *RoutingReconciler) Finalize(ctx context.Context, req Request) error {
	return r.platform.Delete(ctx, req.ID())
}

func routingStatus(st platform.RoutingState) *resource.RoutingStatus {
	return &resource.RoutingStatus{
		Present:     true,
		Accepted:    st.Accepted,
		Addresses:   append([]string(nil), st.Addresses...),
		Fingerprint: resource.Fingerprint(st.Spec),
	}
}
