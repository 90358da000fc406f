package memory

import (
	"context"
	"fmt"
	"sync"

	"k8s.io/utils/ptr"

	"keel/internal/platform"
	"keel/internal/resource"
)

type cluster struct {
	desired  int32
	running  int32
	capacity int32 // negative means unlimited
	primary  *string
}

// Database simulates a database operator.
type Database struct {
	Faults

	mu        sync.Mutex
	clusters  map[resource.ID]*cluster
	mutations int
}

// NewDatabase creates an empty orchestrator.
func NewDatabase() *Database {
	return &Database{clusters: make(map[resource.ID]*cluster)}
}

// LoseInstances drops n running instances out of band. Losing every instance
// also loses the primary.
func (d *Database) LoseInstances(id resource.ID, n int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clusters[id]
	if !ok {
		return
	}
	c.running -= n
	if c.running <= 0 {
		c.running = 0
		c.primary = nil
	}
}

// LimitCapacity caps how many instances repair can bring back. Negative
// removes the cap.
func (d *Database) LimitCapacity(id resource.ID, n int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clusters[id]; ok {
		c.capacity = n
	}
}

// Failover promotes another instance out of band.
func (d *Database) Failover(id resource.ID, newPrimary string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clusters[id]; ok {
		c.primary = ptr.To(newPrimary)
	}
}

// Mutations counts state-changing calls made by the engine.
func (d *Database) Mutations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mutations
}

func (d *Database) ReconcileTopology(ctx context.Context, id resource.ID, spec resource.DatabaseClusterSpec) (platform.Topology, error) {
	if err := d.check(ctx, "ReconcileTopology"); err != nil {
		return platform.Topology{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.clusters[id]
	if !ok {
		c = &cluster{capacity: -1}
		d.clusters[id] = c
	}

	target := spec.Instances
	if c.capacity >= 0 && target > c.capacity {
		target = c.capacity
	}

	changed := !ok || c.desired != spec.Instances || c.running != target
	c.desired = spec.Instances
	c.running = target
	if c.primary == nil && c.running > 0 {
		c.primary = ptr.To(fmt.Sprintf("%s-1", id.Name))
		changed = true
	}
	if changed {
		d.mutations++
	}
	return topologyOf(c), nil
}

func (d *Database) GetTopology(ctx context.Context, id resource.ID) (platform.Topology, error) {
	if err := d.check(ctx, "GetTopology"); err != nil {
		return platform.Topology{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.clusters[id]
	if !ok {
		return platform.Topology{}, fmt.Errorf("%s: %w", id, platform.ErrNotFound)
	}
	return topologyOf(c), nil
}

func (d *Database) GetHealth(ctx context.Context, id resource.ID) (platform.Health, error) {
	if err := d.check(ctx, "GetHealth"); err != nil {
		return platform.Health{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.clusters[id]
	if !ok {
		return platform.Health{}, fmt.Errorf("%s: %w", id, platform.ErrNotFound)
	}
	threshold := c.desired/2 + 1
	if c.running < threshold {
		return platform.Health{Message: fmt.Sprintf("%d/%d instances running, quorum needs %d", c.running, c.desired, threshold)}, nil
	}
	return platform.Health{QuorumOK: true}, nil
}

func (d *Database) Delete(ctx context.Context, id resource.ID) error {
	if err := d.check(ctx, "Delete"); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.clusters[id]; !ok {
		return nil
	}
	delete(d.clusters, id)
	d.mutations++
	return nil
}

func topologyOf(c *cluster) platform.Topology {
	t := platform.Topology{Instances: c.running}
	if c.primary != nil {
		t.Primary = ptr.To(*c.primary)
	}
	return t
}
