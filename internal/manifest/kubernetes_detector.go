package manifest

import (
	"context"
	"fmt"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	toolscache "k8s.io/client-go/tools/cache"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"keel/pkg/logging"
)

// KubernetesDetector implements ChangeDetector using a controller-runtime
// informer on manifest ConfigMaps.
//
// Only ConfigMaps labelled keel.dev/manifest=true are watched. The informer
// cache is scoped to that label, so unrelated ConfigMaps are never held in
// memory.
type KubernetesDetector struct {
	mu sync.RWMutex

	// restConfig is the Kubernetes REST configuration
	restConfig *rest.Config

	// namespace is the Kubernetes namespace to watch (empty for all namespaces)
	namespace string

	// cache is the controller-runtime cache backing the informer
	cache cache.Cache

	// scheme is the runtime scheme with registered types
	scheme *runtime.Scheme

	// changeChan is the channel to send change events to
	changeChan chan<- ChangeEvent

	// ctx is the detector's context
	ctx context.Context

	// cancelFunc cancels the detector's context
	cancelFunc context.CancelFunc

	// running indicates if the detector is active
	running bool

	// registration is the informer event handler registration
	registration toolscache.ResourceEventHandlerRegistration
}

// NewKubernetesDetector creates a new Kubernetes change detector.
//
// Args:
//   - restConfig: Kubernetes REST configuration for API access
//   - namespace: Namespace to watch (empty string watches all namespaces)
func NewKubernetesDetector(restConfig *rest.Config, namespace string) (*KubernetesDetector, error) {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	return &KubernetesDetector{
		restConfig: restConfig,
		namespace:  namespace,
		scheme:     scheme,
	}, nil
}

// Start begins watching manifest ConfigMaps.
func (d *KubernetesDetector) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	if d.restConfig == nil {
		d.mu.Unlock()
		return fmt.Errorf("kubernetes detector requires a REST config")
	}

	d.ctx, d.cancelFunc = context.WithCancel(ctx)
	d.changeChan = changes
	d.running = true
	d.mu.Unlock()

	cacheOpts := cache.Options{
		Scheme:               d.scheme,
		DefaultLabelSelector: labels.SelectorFromSet(labels.Set{ManifestLabel: "true"}),
	}
	if d.namespace != "" {
		cacheOpts.DefaultNamespaces = map[string]cache.Config{
			d.namespace: {},
		}
	}

	c, err := cache.New(d.restConfig, cacheOpts)
	if err != nil {
		d.abort()
		return fmt.Errorf("failed to create cache: %w", err)
	}

	d.mu.Lock()
	d.cache = c
	d.mu.Unlock()

	informer, err := c.GetInformer(d.ctx, &corev1.ConfigMap{})
	if err != nil {
		d.abort()
		return fmt.Errorf("failed to get ConfigMap informer: %w", err)
	}
	registration, err := informer.AddEventHandler(d.createEventHandler())
	if err != nil {
		d.abort()
		return fmt.Errorf("failed to add ConfigMap event handler: %w", err)
	}

	d.mu.Lock()
	d.registration = registration
	d.mu.Unlock()

	go func() {
		if err := c.Start(d.ctx); err != nil {
			logging.Error("KubernetesDetector", err, "Cache stopped with error")
		}
	}()

	if !c.WaitForCacheSync(d.ctx) {
		d.abort()
		return fmt.Errorf("failed to sync cache")
	}

	logging.Info("KubernetesDetector", "Started watching manifest ConfigMaps in namespace: %s", d.namespaceDisplay())
	return nil
}

// abort undoes a partially completed Start.
func (d *KubernetesDetector) abort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	if d.cancelFunc != nil {
		d.cancelFunc()
	}
}

// createEventHandler creates the ResourceEventHandler for manifest ConfigMaps.
func (d *KubernetesDetector) createEventHandler() toolscache.ResourceEventHandler {
	return toolscache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) {
			d.handle(OperationCreate, obj)
		},
		UpdateFunc: func(oldObj, newObj interface{}) {
			if !d.dataChanged(oldObj, newObj) {
				return
			}
			d.handle(OperationUpdate, newObj)
		},
		DeleteFunc: func(obj interface{}) {
			// Handle DeletedFinalStateUnknown for objects deleted while the watch was down
			if deletedState, ok := obj.(toolscache.DeletedFinalStateUnknown); ok {
				obj = deletedState.Obj
			}
			d.handle(OperationDelete, obj)
		},
	}
}

// dataChanged filters resyncs and status-only updates.
func (d *KubernetesDetector) dataChanged(oldObj, newObj interface{}) bool {
	o, ok1 := oldObj.(client.Object)
	n, ok2 := newObj.(client.Object)
	if !ok1 || !ok2 {
		return true
	}
	return o.GetResourceVersion() != n.GetResourceVersion()
}

// handle converts an informer notification into a change event.
func (d *KubernetesDetector) handle(op ChangeOperation, obj interface{}) {
	meta, ok := obj.(client.Object)
	if !ok {
		logging.Warn("KubernetesDetector", "Failed to extract metadata from %s event", op)
		return
	}
	if meta.GetLabels()[ManifestLabel] != "true" {
		return
	}

	d.sendChangeEvent(ChangeEvent{
		Source:    SourceKubernetes,
		Operation: op,
		Namespace: meta.GetNamespace(),
		Name:      meta.GetName(),
		Timestamp: time.Now(),
	})
}

// sendChangeEvent sends a change event to the output channel.
func (d *KubernetesDetector) sendChangeEvent(event ChangeEvent) {
	d.mu.RLock()
	changeChan := d.changeChan
	running := d.running
	d.mu.RUnlock()

	if !running || changeChan == nil {
		return
	}

	select {
	case changeChan <- event:
		logging.Debug("KubernetesDetector", "Emitted change event: %s", event)
	default:
		logging.Warn("KubernetesDetector", "Change event channel full, dropping event for %s/%s",
			event.Namespace, event.Name)
	}
}

// Stop gracefully stops the Kubernetes detector.
func (d *KubernetesDetector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.running = false

	// Cancelling the context stops the cache and its informers.
	if d.cancelFunc != nil {
		d.cancelFunc()
	}
	d.registration = nil

	logging.Info("KubernetesDetector", "Stopped Kubernetes detector")
	return nil
}

// GetSource returns the change source type.
func (d *KubernetesDetector) GetSource() ChangeSource {
	return SourceKubernetes
}

// namespaceDisplay returns a display string for the namespace.
func (d *KubernetesDetector) namespaceDisplay() string {
	if d.namespace == "" {
		return "all namespaces"
	}
	return d.namespace
}
