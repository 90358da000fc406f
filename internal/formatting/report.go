package formatting

import (
	"time"

	"keel/internal/events"
	"keel/internal/reconciler"
	"keel/internal/resource"
	"keel/internal/status"
)

// Report is the view rendered by keel status and keel apply.
type Report struct {
	// SavedAt is when the underlying checkpoint was written, if the report
	// comes from one.
	SavedAt      *time.Time                 `json:"savedAt,omitempty"`
	Summary      status.Summary             `json:"summary"`
	Applications []status.AggregateStatus   `json:"applications,omitempty"`
	Resources    []ResourceView             `json:"resources"`
	Events       []events.Event             `json:"events,omitempty"`
	Metrics      *reconciler.MetricsSummary `json:"metrics,omitempty"`
}

// ResourceView is the reported form of one resource.
type ResourceView struct {
	ID                 resource.ID        `json:"id"`
	SyncState          resource.SyncState `json:"syncState"`
	Generation         int64              `json:"generation"`
	ObservedGeneration int64              `json:"observedGeneration"`
	Attempts           int                `json:"attempts,omitempty"`
	Blocked            bool               `json:"blocked,omitempty"`
	Fatal              bool               `json:"fatal,omitempty"`
	Finalizing         bool               `json:"finalizing,omitempty"`
	Message            string             `json:"message,omitempty"`
	LastTransitionTime *time.Time         `json:"lastTransitionTime,omitempty"`
	Observed           *resource.Observed `json:"observed,omitempty"`
}

// NewResourceView projects r for output.
func NewResourceView(r *resource.Resource) ResourceView {
	v := ResourceView{
		ID:                 r.ID,
		SyncState:          r.Status.SyncState,
		Generation:         r.Generation,
		ObservedGeneration: r.Status.ObservedGeneration,
		Attempts:           r.Status.Attempts,
		Blocked:            r.Status.Blocked,
		Fatal:              r.Status.Fatal,
		Finalizing:         r.Status.Finalizing,
		Message:            r.Status.Message,
	}
	if r.Status.Blocked && v.Message == "" {
		v.Message = r.Status.BlockedReason
	}
	if !r.Status.LastTransitionTime.IsZero() {
		t := r.Status.LastTransitionTime
		v.LastTransitionTime = &t
	}
	if !r.Status.Observed.IsZero() {
		o := r.Status.Observed.DeepCopy()
		v.Observed = &o
	}
	return v
}

// NewReport builds a report over rs. Applications are the aggregated
// statuses to include, usually one per Application in rs.
func NewReport(rs []*resource.Resource, apps []status.AggregateStatus) Report {
	r := Report{
		Summary:      status.Summarize(rs),
		Applications: apps,
		Resources:    make([]ResourceView, 0, len(rs)),
	}
	for _, res := range rs {
		r.Resources = append(r.Resources, NewResourceView(res))
	}
	return r
}

// ValidationReport is the result of keel validate.
type ValidationReport struct {
	Documents int               `json:"documents"`
	Resources int               `json:"resources"`
	Valid     bool              `json:"valid"`
	Issues    []ValidationIssue `json:"issues,omitempty"`
}

// ValidationIssue is one problem found in the manifests.
type ValidationIssue struct {
	Location string       `json:"location,omitempty"`
	Object   *resource.ID `json:"object,omitempty"`
	Message  string       `json:"message"`
}
