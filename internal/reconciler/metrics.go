package reconciler

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"keel/internal/resource"
	"keel/pkg/logging"
)

const metricsNamespace = "keel"

// Metrics tracks reconciliation metrics for monitoring and alerting.
//
// Prometheus collectors are registered on the registerer passed to
// NewMetrics. Per-kind summary counters are kept alongside them for the
// status command, which has no scrape endpoint to read from.
type Metrics struct {
	reconcileTotal    *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	driftTotal        *prometheus.CounterVec
	resources         *prometheus.GaugeVec
	queueDepth        prometheus.Gauge
	finalizations     *prometheus.CounterVec

	mu      sync.RWMutex
	perKind map[resource.Kind]*kindMetrics
}

// kindMetrics holds reconciliation counters for a specific kind.
type kindMetrics struct {
	Reconciles      int64
	Successes       int64
	Failures        int64
	Drifts          int64
	LastReconcileAt time.Time
	LastSuccessAt   time.Time
	LastFailureAt   time.Time
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconcile_total",
			Help:      "Reconcile attempts by kind and result.",
		}, []string{"kind", "result"}),
		reconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of reconcile calls by kind.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"kind"}),
		driftTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "drift_total",
			Help:      "Detected drift by kind and cause.",
		}, []string{"kind", "cause"}),
		resources: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "resources",
			Help:      "Resources by kind and sync state.",
		}, []string{"kind", "state"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_depth",
			Help:      "Identities waiting in the reconcile queue.",
		}),
		finalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "finalizations_total",
			Help:      "Finalization passes by kind and result.",
		}, []string{"kind", "result"}),
		perKind: make(map[resource.Kind]*kindMetrics),
	}

	if reg != nil {
		reg.MustRegister(
			m.reconcileTotal,
			m.reconcileDuration,
			m.driftTotal,
			m.resources,
			m.queueDepth,
			m.finalizations,
		)
	}
	return m
}

func (m *Metrics) kind(k resource.Kind) *kindMetrics {
	km, ok := m.perKind[k]
	if !ok {
		km = &kindMetrics{}
		m.perKind[k] = km
	}
	return km
}

// ObserveReconcile records one reconcile call.
func (m *Metrics) ObserveReconcile(kind resource.Kind, result string, d time.Duration, at time.Time) {
	m.reconcileTotal.WithLabelValues(string(kind), result).Inc()
	m.reconcileDuration.WithLabelValues(string(kind)).Observe(d.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	km := m.kind(kind)
	km.Reconciles++
	km.LastReconcileAt = at
	switch result {
	case "transient", "fatal", "blocked":
		km.Failures++
		km.LastFailureAt = at
	default:
		km.Successes++
		km.LastSuccessAt = at
	}
}

// ObserveDrift records a detected drift.
func (m *Metrics) ObserveDrift(kind resource.Kind, cause DriftCause) {
	m.driftTotal.WithLabelValues(string(kind), string(cause)).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.kind(kind).Drifts++

	logging.Debug("ReconcilerMetrics", "Drift recorded for %s (%s)", kind, cause)
}

// ObserveFinalization records the end of a finalization pass.
func (m *Metrics) ObserveFinalization(kind resource.Kind, result string) {
	m.finalizations.WithLabelValues(string(kind), result).Inc()
}

// SetResourceStates recomputes the per-state resource gauge from rs.
func (m *Metrics) SetResourceStates(rs []*resource.Resource) {
	m.resources.Reset()
	for _, k := range resource.Kinds() {
		for _, st := range []resource.SyncState{
			resource.StateOutOfSync, resource.StateSyncing, resource.StateSynced,
			resource.StateDegraded, resource.StateError,
		} {
			m.resources.WithLabelValues(string(k), string(st)).Set(0)
		}
	}
	for _, r := range rs {
		m.resources.WithLabelValues(string(r.ID.Kind), string(r.Status.SyncState)).Inc()
	}
}

// SetQueueDepth records the current queue length.
func (m *Metrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// MetricsSummary provides a summary of reconciliation metrics.
type MetricsSummary struct {
	TotalReconciles      int64            `json:"total_reconciles" yaml:"totalReconciles"`
	TotalFailures        int64            `json:"total_failures" yaml:"totalFailures"`
	TotalDrifts          int64            `json:"total_drifts" yaml:"totalDrifts"`
	ReconcileFailureRate float64          `json:"reconcile_failure_rate" yaml:"reconcileFailureRate"`
	PerKind              []KindMetricView `json:"per_kind" yaml:"perKind"`
}

// KindMetricView is a read-only view of kind-specific metrics.
type KindMetricView struct {
	Kind            resource.Kind `json:"kind" yaml:"kind"`
	Reconciles      int64         `json:"reconciles" yaml:"reconciles"`
	Successes       int64         `json:"successes" yaml:"successes"`
	Failures        int64         `json:"failures" yaml:"failures"`
	Drifts          int64         `json:"drifts" yaml:"drifts"`
	LastReconcileAt time.Time     `json:"last_reconcile_at,omitempty" yaml:"lastReconcileAt,omitempty"`
	LastSuccessAt   time.Time     `json:"last_success_at,omitempty" yaml:"lastSuccessAt,omitempty"`
	LastFailureAt   time.Time     `json:"last_failure_at,omitempty" yaml:"lastFailureAt,omitempty"`
}

// Summary returns the per-kind counters, ordered by kind priority.
func (m *Metrics) Summary() MetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s MetricsSummary
	for k, km := range m.perKind {
		s.TotalReconciles += km.Reconciles
		s.TotalFailures += km.Failures
		s.TotalDrifts += km.Drifts
		s.PerKind = append(s.PerKind, KindMetricView{
			Kind:            k,
			Reconciles:      km.Reconciles,
			Successes:       km.Successes,
			Failures:        km.Failures,
			Drifts:          km.Drifts,
			LastReconcileAt: km.LastReconcileAt,
			LastSuccessAt:   km.LastSuccessAt,
			LastFailureAt:   km.LastFailureAt,
		})
	}
	sort.Slice(s.PerKind, func(i, j int) bool {
		return s.PerKind[i].Kind.Priority() < s.PerKind[j].Kind.Priority()
	})
	if s.TotalReconciles > 0 {
		s.ReconcileFailureRate = float64(s.TotalFailures) / float64(s.TotalReconciles)
	}
	return s
}
