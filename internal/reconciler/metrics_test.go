package reconciler

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"keel/internal/resource"
)

func TestMetrics_ObserveReconcile(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	metrics.ObserveReconcile(resource.KindIssuer, "success", 10*time.Millisecond, now)
	metrics.ObserveReconcile(resource.KindIssuer, "transient", 5*time.Millisecond, now)
	metrics.ObserveReconcile(resource.KindCertificate, "success", time.Millisecond, now)

	if got := testutil.ToFloat64(metrics.reconcileTotal.WithLabelValues("Issuer", "success")); got != 1 {
		t.Errorf("expected 1 Issuer success, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.reconcileTotal.WithLabelValues("Issuer", "transient")); got != 1 {
		t.Errorf("expected 1 Issuer transient failure, got %v", got)
	}
	if got := testutil.CollectAndCount(metrics.reconcileDuration); got != 2 {
		t.Errorf("expected duration series for 2 kinds, got %d", got)
	}

	summary := metrics.Summary()
	if summary.TotalReconciles != 3 {
		t.Errorf("expected TotalReconciles=3, got %d", summary.TotalReconciles)
	}
	if summary.TotalFailures != 1 {
		t.Errorf("expected TotalFailures=1, got %d", summary.TotalFailures)
	}
	if len(summary.PerKind) != 2 || summary.PerKind[0].Kind != resource.KindIssuer {
		t.Fatalf("expected per-kind view ordered by priority, got %+v", summary.PerKind)
	}
	if summary.PerKind[0].LastFailureAt != now {
		t.Errorf("expected LastFailureAt to be recorded")
	}
}

func TestMetrics_ObserveDrift(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	metrics.ObserveDrift(resource.KindCertificate, CauseExternalMutation)
	metrics.ObserveDrift(resource.KindCertificate, CauseExternalMutation)
	metrics.ObserveDrift(resource.KindGateway, CauseSpecChange)

	expected := `
# HELP keel_drift_total Detected drift by kind and cause.
# TYPE keel_drift_total counter
keel_drift_total{cause="ExternalMutation",kind="Certificate"} 2
keel_drift_total{cause="SpecChange",kind="Gateway"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "keel_drift_total"); err != nil {
		t.Error(err)
	}
	if got := metrics.Summary().TotalDrifts; got != 3 {
		t.Errorf("expected TotalDrifts=3, got %d", got)
	}
}

func TestMetrics_SetResourceStates(t *testing.T) {
	metrics := NewMetrics(nil)

	rs := []*resource.Resource{
		{ID: resource.NewID(resource.KindGateway, "edge", "a"), Status: resource.Status{SyncState: resource.StateSynced}},
		{ID: resource.NewID(resource.KindGateway, "edge", "b"), Status: resource.Status{SyncState: resource.StateSynced}},
		{ID: resource.NewID(resource.KindGateway, "edge", "c"), Status: resource.Status{SyncState: resource.StateError}},
	}
	metrics.SetResourceStates(rs)

	if got := testutil.ToFloat64(metrics.resources.WithLabelValues("Gateway", "Synced")); got != 2 {
		t.Errorf("expected 2 Synced gateways, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.resources.WithLabelValues("Gateway", "Error")); got != 1 {
		t.Errorf("expected 1 Error gateway, got %v", got)
	}

	// Recomputing replaces the previous values.
	metrics.SetResourceStates(rs[:1])
	if got := testutil.ToFloat64(metrics.resources.WithLabelValues("Gateway", "Synced")); got != 1 {
		t.Errorf("expected 1 Synced gateway after recompute, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.resources.WithLabelValues("Gateway", "Error")); got != 0 {
		t.Errorf("expected 0 Error gateways after recompute, got %v", got)
	}
}

func TestMetrics_QueueDepth(t *testing.T) {
	metrics := NewMetrics(nil)
	metrics.SetQueueDepth(7)

	if got := testutil.ToFloat64(metrics.queueDepth); got != 7 {
		t.Errorf("expected queue depth 7, got %v", got)
	}
}

func TestMetrics_RegisterTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	NewMetrics(reg)
}

func TestMetrics_FailureRate(t *testing.T) {
	metrics := NewMetrics(nil)
	now := time.Now()

	metrics.ObserveReconcile(resource.KindDatabaseCluster, "success", 0, now)
	metrics.ObserveReconcile(resource.KindDatabaseCluster, "fatal", 0, now)
	metrics.ObserveReconcile(resource.KindDatabaseCluster, "blocked", 0, now)
	metrics.ObserveReconcile(resource.KindDatabaseCluster, "degraded", 0, now)

	summary := metrics.Summary()
	if summary.ReconcileFailureRate != 0.5 {
		t.Errorf("expected failure rate 0.5, got %v", summary.ReconcileFailureRate)
	}
}
