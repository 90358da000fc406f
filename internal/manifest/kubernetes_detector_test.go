package manifest

import (
	"context"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	toolscache "k8s.io/client-go/tools/cache"
)

func TestNewKubernetesDetector(t *testing.T) {
	detector, err := NewKubernetesDetector(nil, "keel-system")
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}
	if detector.namespace != "keel-system" {
		t.Errorf("namespace = %q, want %q", detector.namespace, "keel-system")
	}
	if detector.scheme == nil {
		t.Error("scheme should be initialised")
	}
	if detector.GetSource() != SourceKubernetes {
		t.Errorf("GetSource() = %v, want %v", detector.GetSource(), SourceKubernetes)
	}
}

func TestKubernetesDetectorStartWithoutConfig(t *testing.T) {
	detector, _ := NewKubernetesDetector(nil, "default")

	if err := detector.Start(context.Background(), make(chan ChangeEvent, 1)); err == nil {
		t.Fatal("expected Start to fail without a REST config")
	}
	if detector.running {
		t.Error("detector should not be running after a failed start")
	}
}

func TestKubernetesDetectorStopWithoutStart(t *testing.T) {
	detector, _ := NewKubernetesDetector(nil, "default")

	if err := detector.Stop(); err != nil {
		t.Errorf("Stop() without Start() returned error: %v", err)
	}
}

func TestKubernetesDetectorNamespaceDisplay(t *testing.T) {
	tests := []struct {
		namespace string
		expected  string
	}{
		{"", "all namespaces"},
		{"default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			detector, _ := NewKubernetesDetector(nil, tt.namespace)
			if got := detector.namespaceDisplay(); got != tt.expected {
				t.Errorf("namespaceDisplay() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func runningDetector(t *testing.T, buffer int) (*KubernetesDetector, chan ChangeEvent) {
	t.Helper()
	detector, err := NewKubernetesDetector(nil, "default")
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}
	changeChan := make(chan ChangeEvent, buffer)
	detector.running = true
	detector.changeChan = changeChan
	return detector, changeChan
}

func configMap(name, resourceVersion string, labelled bool) *corev1.ConfigMap {
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:            name,
			Namespace:       "default",
			ResourceVersion: resourceVersion,
		},
	}
	if labelled {
		cm.Labels = map[string]string{ManifestLabel: "true"}
	}
	return cm
}

func expectEvent(t *testing.T, ch <-chan ChangeEvent, op ChangeOperation) {
	t.Helper()
	select {
	case event := <-ch:
		if event.Operation != op {
			t.Errorf("Operation = %v, want %v", event.Operation, op)
		}
		if event.Name != "shop" || event.Namespace != "default" {
			t.Errorf("event for %s/%s, want default/shop", event.Namespace, event.Name)
		}
		if event.Source != SourceKubernetes {
			t.Errorf("Source = %v, want %v", event.Source, SourceKubernetes)
		}
	case <-time.After(100 * time.Millisecond):
		t.Errorf("no %s event received", op)
	}
}

func expectNoEvent(t *testing.T, ch <-chan ChangeEvent) {
	t.Helper()
	select {
	case event := <-ch:
		t.Errorf("unexpected event %s", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestKubernetesDetectorEventHandlers(t *testing.T) {
	detector, changeChan := runningDetector(t, 10)
	handler := detector.createEventHandler()

	handler.OnAdd(configMap("shop", "1", true), false)
	expectEvent(t, changeChan, OperationCreate)

	handler.OnUpdate(configMap("shop", "1", true), configMap("shop", "2", true))
	expectEvent(t, changeChan, OperationUpdate)

	// Resyncs carry the same resource version.
	handler.OnUpdate(configMap("shop", "2", true), configMap("shop", "2", true))
	expectNoEvent(t, changeChan)

	handler.OnDelete(configMap("shop", "2", true))
	expectEvent(t, changeChan, OperationDelete)

	handler.OnDelete(toolscache.DeletedFinalStateUnknown{
		Key: "default/shop",
		Obj: configMap("shop", "2", true),
	})
	expectEvent(t, changeChan, OperationDelete)
}

func TestKubernetesDetectorIgnoresUnlabelled(t *testing.T) {
	detector, changeChan := runningDetector(t, 10)
	handler := detector.createEventHandler()

	handler.OnAdd(configMap("shop", "1", false), false)
	expectNoEvent(t, changeChan)

	handler.OnAdd("not an object", false)
	expectNoEvent(t, changeChan)
}

func TestKubernetesDetectorEventHandlersNotRunning(t *testing.T) {
	detector, changeChan := runningDetector(t, 10)
	detector.running = false

	detector.handle(OperationCreate, configMap("shop", "1", true))
	expectNoEvent(t, changeChan)
}

func TestSendChangeEventChannelFull(t *testing.T) {
	detector, changeChan := runningDetector(t, 1)
	changeChan <- ChangeEvent{Name: "filler"}

	done := make(chan bool, 1)
	go func() {
		detector.sendChangeEvent(ChangeEvent{
			Source:    SourceKubernetes,
			Operation: OperationCreate,
			Namespace: "default",
			Name:      "shop",
			Timestamp: time.Now(),
		})
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("sendChangeEvent blocked when channel was full")
	}
}

func TestChangeEventString(t *testing.T) {
	fsEvent := ChangeEvent{Operation: OperationUpdate, Path: "/srv/shop.yaml"}
	if got := fsEvent.String(); got != "Update /srv/shop.yaml" {
		t.Errorf("String() = %q", got)
	}
	cmEvent := ChangeEvent{Operation: OperationDelete, Namespace: "default", Name: "shop"}
	if got := cmEvent.String(); got != "Delete configmap/default/shop" {
		t.Errorf("String() = %q", got)
	}
}
