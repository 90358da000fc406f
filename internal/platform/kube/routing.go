package kube

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"keel/internal/platform"
	"keel/internal/resource"
)

// GatewayAPI implements platform.RoutingPlatform on Gateway API objects.
type GatewayAPI struct {
	client client.Client
}

// NewGatewayAPI creates the routing binding.
func NewGatewayAPI(c client.Client) *GatewayAPI {
	return &GatewayAPI{client: c}
}

func (g *GatewayAPI) CreateOrUpdate(ctx context.Context, id resource.ID, spec resource.Spec) (platform.RoutingState, error) {
	u, err := newObject(id)
	if err != nil {
		return platform.RoutingState{}, err
	}
	desired, err := routingSpecToUnstructured(spec)
	if err != nil {
		return platform.RoutingState{}, fmt.Errorf("render %s: %w", id, err)
	}

	_, err = controllerutil.CreateOrUpdate(ctx, g.client, u, func() error {
		markManaged(u, id)
		return unstructured.SetNestedMap(u.Object, desired, "spec")
	})
	if err != nil {
		return platform.RoutingState{}, classify(id, "apply", err)
	}
	return stateOf(id, u)
}

func (g *GatewayAPI) Get(ctx context.Context, id resource.ID) (platform.RoutingState, error) {
	u, err := newObject(id)
	if err != nil {
		return platform.RoutingState{}, err
	}
	if err := g.client.Get(ctx, client.ObjectKeyFromObject(u), u); err != nil {
		return platform.RoutingState{}, classify(id, "get", err)
	}
	return stateOf(id, u)
}

func (g *GatewayAPI) Delete(ctx context.Context, id resource.ID) error {
	u, err := newObject(id)
	if err != nil {
		return err
	}
	return classify(id, "delete", client.IgnoreNotFound(g.client.Delete(ctx, u)))
}

// stateOf reads the managed spec and acceptance back from a live object.
func stateOf(id resource.ID, u *unstructured.Unstructured) (platform.RoutingState, error) {
	specMap, _, _ := unstructured.NestedMap(u.Object, "spec")
	spec, err := routingSpecFromUnstructured(id.Kind, specMap)
	if err != nil {
		return platform.RoutingState{}, fmt.Errorf("decode %s: %w", id, err)
	}

	st := platform.RoutingState{Spec: spec}
	switch id.Kind {
	case resource.KindGateway:
		status, _, message, _ := condition(u, "Accepted", "status", "conditions")
		st.Accepted = status == "True"
		st.Message = message
		addrs, _, _ := unstructured.NestedSlice(u.Object, "status", "addresses")
		for _, a := range addrs {
			if m, ok := a.(map[string]interface{}); ok {
				if v, ok := m["value"].(string); ok {
					st.Addresses = append(st.Addresses, v)
				}
			}
		}

	case resource.KindHTTPRoute:
		parents, _, _ := unstructured.NestedSlice(u.Object, "status", "parents")
		for _, p := range parents {
			pm, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			status, _, message, _ := condition(&unstructured.Unstructured{Object: pm}, "Accepted", "conditions")
			if status == "True" {
				st.Accepted = true
				st.Message = ""
				break
			}
			st.Message = message
		}
		if !st.Accepted && st.Message == "" {
			st.Message = "waiting for the gateway controller to accept the route"
		}

	default:
		// ReferenceGrants carry no status.
		st.Accepted = true
	}
	return st, nil
}
