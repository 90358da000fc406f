package manifest

import (
	"context"
	"time"
)

// ChangeOperation is the kind of change a detector observed.
type ChangeOperation string

const (
	OperationCreate ChangeOperation = "Create"
	OperationUpdate ChangeOperation = "Update"
	OperationDelete ChangeOperation = "Delete"
)

// ChangeSource identifies where a change came from.
type ChangeSource string

const (
	SourceFilesystem ChangeSource = "Filesystem"
	SourceKubernetes ChangeSource = "Kubernetes"
)

// ChangeEvent reports that part of the manifest tree changed. Consumers read
// the whole tree again; the event only says what triggered the reload.
type ChangeEvent struct {
	Source    ChangeSource
	Operation ChangeOperation
	// Path is the changed file for filesystem sources.
	Path string
	// Namespace and Name identify the changed ConfigMap for Kubernetes sources.
	Namespace string
	Name      string
	Timestamp time.Time
}

// String renders the changed object for logs.
func (e ChangeEvent) String() string {
	if e.Path != "" {
		return string(e.Operation) + " " + e.Path
	}
	return string(e.Operation) + " configmap/" + e.Namespace + "/" + e.Name
}

// ChangeDetector watches a manifest source.
type ChangeDetector interface {
	// Start begins watching and sends events to changes until ctx ends or
	// Stop is called. Sends never block; events are dropped when changes is
	// full.
	Start(ctx context.Context, changes chan<- ChangeEvent) error
	Stop() error
	GetSource() ChangeSource
}
