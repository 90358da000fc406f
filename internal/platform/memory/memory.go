// Package memory is an in-process simulation of the platform capabilities.
//
// Every simulator counts the state-changing calls the engine makes so tests
// can assert idempotence, and embeds Faults so tests can inject errors and
// latency per operation. Methods named *Externally or Mutate/Failover/
// LoseInstances change state out of band, the way another actor on a live
// platform would.
package memory

import (
	"k8s.io/utils/clock"

	"keel/internal/platform"
)

// Simulator groups the three simulated capabilities.
type Simulator struct {
	CA       *CA
	Routing  *Routing
	Database *Database
}

// New creates a simulator. A nil clock uses the real clock.
func New(clk clock.PassiveClock) *Simulator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Simulator{
		CA:       NewCA(clk),
		Routing:  NewRouting(),
		Database: NewDatabase(),
	}
}

// Platform exposes the simulator through the capability interfaces.
func (s *Simulator) Platform() platform.Platform {
	return platform.Platform{CA: s.CA, Routing: s.Routing, Database: s.Database}
}

// Mutations sums the engine-driven mutations across all capabilities.
func (s *Simulator) Mutations() int {
	return s.CA.Mutations() + s.Routing.Mutations() + s.Database.Mutations()
}
