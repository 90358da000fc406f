package memory

import (
	"context"
	"fmt"
	"sync"

	"keel/internal/platform"
	"keel/internal/resource"
)

// Routing simulates a Gateway API implementation.
type Routing struct {
	Faults

	mu        sync.Mutex
	objects   map[resource.ID]*platform.RoutingState
	rejected  map[resource.ID]string
	addrSeq   int
	mutations int
}

// NewRouting creates an empty routing platform.
func NewRouting() *Routing {
	return &Routing{
		objects:  make(map[resource.ID]*platform.RoutingState),
		rejected: make(map[resource.ID]string),
	}
}

// Reject makes the platform report Accepted=false for id.
func (r *Routing) Reject(id resource.ID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reason == "" {
		delete(r.rejected, id)
		return
	}
	r.rejected[id] = reason
}

// Mutate edits a stored object out of band.
func (r *Routing) Mutate(id resource.ID, fn func(*platform.RoutingState)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.objects[id]
	if !ok {
		return false
	}
	fn(st)
	return true
}

// RemoveExternally deletes a stored object out of band.
func (r *Routing) RemoveExternally(id resource.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.objects, id)
}

// Mutations counts state-changing calls made by the engine.
func (r *Routing) Mutations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutations
}

func (r *Routing) CreateOrUpdate(ctx context.Context, id resource.ID, spec resource.Spec) (platform.RoutingState, error) {
	if err := r.check(ctx, "CreateOrUpdate"); err != nil {
		return platform.RoutingState{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	accepted, message := r.admission(id, spec)

	existing, ok := r.objects[id]
	if ok && resource.SpecEqual(existing.Spec, spec) && existing.Accepted == accepted {
		return copyState(existing), nil
	}

	st := &platform.RoutingState{Spec: spec, Accepted: accepted, Message: message}
	if ok {
		st.Addresses = existing.Addresses
	} else if id.Kind == resource.KindGateway {
		r.addrSeq++
		st.Addresses = []string{fmt.Sprintf("10.0.0.%d", r.addrSeq)}
	}
	r.objects[id] = st
	r.mutations++
	return copyState(st), nil
}

// admission decides whether the platform accepts an object. Routes are only
// accepted while their parent Gateway exists. Caller holds r.mu.
func (r *Routing) admission(id resource.ID, spec resource.Spec) (bool, string) {
	if reason, ok := r.rejected[id]; ok {
		return false, reason
	}
	if spec.HTTPRoute != nil {
		ns := spec.HTTPRoute.ParentRef.Namespace
		if ns == "" {
			ns = id.Namespace
		}
		parent := resource.NewID(resource.KindGateway, ns, spec.HTTPRoute.ParentRef.Name)
		if _, ok := r.objects[parent]; !ok {
			return false, fmt.Sprintf("parent %s not found", parent)
		}
	}
	return true, ""
}

func (r *Routing) Get(ctx context.Context, id resource.ID) (platform.RoutingState, error) {
	if err := r.check(ctx, "Get"); err != nil {
		return platform.RoutingState{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.objects[id]
	if !ok {
		return platform.RoutingState{}, fmt.Errorf("%s: %w", id, platform.ErrNotFound)
	}
	return copyState(st), nil
}

func (r *Routing) Delete(ctx context.Context, id resource.ID) error {
	if err := r.check(ctx, "Delete"); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.objects[id]; !ok {
		return nil
	}
	delete(r.objects, id)
	r.mutations++
	return nil
}

func copyState(st *platform.RoutingState) platform.RoutingState {
	out := *st
	out.Addresses = append([]string(nil), st.Addresses...)
	return out
}
