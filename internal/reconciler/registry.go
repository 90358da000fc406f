package reconciler

import (
	"time"

	"k8s.io/utils/clock"

	"keel/internal/events"
	"keel/internal/platform"
	"keel/internal/resource"
)

// Options configures the built-in reconcilers.
type Options struct {
	Certificate    CertificateOptions
	RepairInterval time.Duration
}

// DefaultReconcilers returns one reconciler per managed kind, backed by p.
func DefaultReconcilers(p platform.Platform, clk clock.PassiveClock, recorder events.Recorder, opts Options) []Reconciler {
	out := []Reconciler{
		NewIssuerReconciler(p.CA),
		NewCertificateReconciler(p.CA, clk, opts.Certificate, recorder),
	}
	for _, k := range []resource.Kind{resource.KindReferenceGrant, resource.KindGateway, resource.KindHTTPRoute} {
		// The kinds above are always valid routing kinds.
		rr, _ := NewRoutingReconciler(k, p.Routing)
		out = append(out, rr)
	}
	return append(out,
		NewDatabaseReconciler(p.Database, clk, opts.RepairInterval, recorder),
		NewApplicationReconciler(),
	)
}

// RegisterAll registers every reconciler in rs with m.
func RegisterAll(m *Manager, rs []Reconciler) error {
	for _, r := range rs {
		if err := m.RegisterReconciler(r); err != nil {
			return err
		}
	}
	return nil
}
