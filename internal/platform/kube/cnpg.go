package kube

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"keel/internal/platform"
	"keel/internal/resource"
)

const (
	defaultStorageSize = "1Gi"
	postgresImage      = "ghcr.io/cloudnative-pg/postgresql"
)

// CNPG implements platform.DatabaseOrchestrator on CloudNativePG Clusters.
type CNPG struct {
	client client.Client
}

// NewCNPG creates the database binding.
func NewCNPG(c client.Client) *CNPG {
	return &CNPG{client: c}
}

func (d *CNPG) ReconcileTopology(ctx context.Context, id resource.ID, spec resource.DatabaseClusterSpec) (platform.Topology, error) {
	u, err := newObject(id)
	if err != nil {
		return platform.Topology{}, err
	}

	size := spec.StorageSize
	if size == "" {
		size = defaultStorageSize
	}

	_, err = controllerutil.CreateOrUpdate(ctx, d.client, u, func() error {
		markManaged(u, id)
		if err := unstructured.SetNestedField(u.Object, int64(spec.Instances), "spec", "instances"); err != nil {
			return err
		}
		if spec.Version != "" {
			if err := unstructured.SetNestedField(u.Object, postgresImage+":"+spec.Version, "spec", "imageName"); err != nil {
				return err
			}
		}
		return unstructured.SetNestedField(u.Object, size, "spec", "storage", "size")
	})
	if err != nil {
		return platform.Topology{}, classify(id, "apply", err)
	}
	return topologyFrom(u), nil
}

func (d *CNPG) GetTopology(ctx context.Context, id resource.ID) (platform.Topology, error) {
	u, err := d.get(ctx, id)
	if err != nil {
		return platform.Topology{}, err
	}
	return topologyFrom(u), nil
}

func (d *CNPG) GetHealth(ctx context.Context, id resource.ID) (platform.Health, error) {
	u, err := d.get(ctx, id)
	if err != nil {
		return platform.Health{}, err
	}

	desired, _, _ := unstructured.NestedInt64(u.Object, "spec", "instances")
	ready, _, _ := unstructured.NestedInt64(u.Object, "status", "readyInstances")
	phase, _, _ := unstructured.NestedString(u.Object, "status", "phase")

	threshold := resource.DatabaseClusterSpec{Instances: int32(desired)}.QuorumThreshold()
	return platform.Health{QuorumOK: int32(ready) >= threshold, Message: phase}, nil
}

func (d *CNPG) Delete(ctx context.Context, id resource.ID) error {
	u, err := newObject(id)
	if err != nil {
		return err
	}
	return classify(id, "delete", client.IgnoreNotFound(d.client.Delete(ctx, u)))
}

func (d *CNPG) get(ctx context.Context, id resource.ID) (*unstructured.Unstructured, error) {
	u, err := newObject(id)
	if err != nil {
		return nil, err
	}
	if err := d.client.Get(ctx, client.ObjectKeyFromObject(u), u); err != nil {
		return nil, classify(id, "get", err)
	}
	return u, nil
}

func topologyFrom(u *unstructured.Unstructured) platform.Topology {
	ready, _, _ := unstructured.NestedInt64(u.Object, "status", "readyInstances")
	t := platform.Topology{Instances: int32(ready)}
	if primary, ok, _ := unstructured.NestedString(u.Object, "status", "currentPrimary"); ok && primary != "" {
		t.Primary = ptr.To(primary)
	}
	return t
}
