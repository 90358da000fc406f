package events

import (
	"time"

	"keel/internal/resource"
)

// EventType represents the severity of an event.
type EventType string

const (
	// EventTypeNormal indicates normal, non-problematic events.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning indicates events that may require attention.
	EventTypeWarning EventType = "Warning"
)

// EventReason represents the reason code for an event.
type EventReason string

// Lifecycle event reasons
const (
	// ReasonAdmitted indicates a resource entered the desired state.
	ReasonAdmitted EventReason = "Admitted"

	// ReasonSpecChanged indicates a reload changed a resource's spec.
	ReasonSpecChanged EventReason = "SpecChanged"

	// ReasonRemoved indicates a resource left the desired state and was
	// finalized.
	ReasonRemoved EventReason = "Removed"

	// ReasonFinalizationAbandoned indicates finalization gave up after its
	// attempt budget.
	ReasonFinalizationAbandoned EventReason = "FinalizationAbandoned"

	// ReasonParked indicates a resource was declared again while its previous
	// incarnation was still being finalized.
	ReasonParked EventReason = "Parked"
)

// Reconcile event reasons
const (
	// ReasonSynced indicates a resource converged.
	ReasonSynced EventReason = "Synced"

	// ReasonDegraded indicates a resource is running below its desired state.
	ReasonDegraded EventReason = "Degraded"

	// ReasonBlocked indicates a resource waits on a topology change.
	ReasonBlocked EventReason = "Blocked"

	// ReasonRetrying indicates a transient failure that will be retried.
	ReasonRetrying EventReason = "Retrying"

	// ReasonFailed indicates a fatal failure. The resource is not retried
	// until its spec changes.
	ReasonFailed EventReason = "Failed"
)

// Observation event reasons
const (
	// ReasonDrift indicates the live state diverged from the committed state.
	ReasonDrift EventReason = "Drift"

	// ReasonFailover indicates a database primary changed without being
	// commanded.
	ReasonFailover EventReason = "Failover"

	// ReasonRenewal indicates a certificate entered its renewal window.
	ReasonRenewal EventReason = "Renewal"
)

// EventData holds contextual information for event message templating.
type EventData struct {
	// Generation is the resource generation involved.
	Generation int64

	// Attempt is the attempt number for retry events.
	Attempt int

	// Cause is a short classification, e.g. the drift cause.
	Cause string

	// Error contains error information for failure events.
	Error string

	// Detail is free-form context such as a diff or a new primary.
	Detail string

	// Delay is the time until the next attempt.
	Delay time.Duration
}

// Event is one recorded occurrence.
type Event struct {
	ID      string      `json:"id" yaml:"id"`
	Time    time.Time   `json:"time" yaml:"time"`
	Type    EventType   `json:"type" yaml:"type"`
	Reason  EventReason `json:"reason" yaml:"reason"`
	Object  resource.ID `json:"object" yaml:"object"`
	Message string      `json:"message" yaml:"message"`
	Detail  string      `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// getEventType returns the appropriate EventType for a given EventReason.
func getEventType(reason EventReason) EventType {
	switch reason {
	case ReasonFinalizationAbandoned,
		ReasonDegraded,
		ReasonBlocked,
		ReasonRetrying,
		ReasonFailed,
		ReasonDrift,
		ReasonFailover:
		return EventTypeWarning
	default:
		return EventTypeNormal
	}
}
