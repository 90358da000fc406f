package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFilesystemDetector_IsYAMLFile(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/path/to/file.yaml", true},
		{"/path/to/file.yml", true},
		{"/path/to/file.YAML", true},
		{"/path/to/file.YML", true},
		{"/path/to/file.json", false},
		{"/path/to/file.txt", false},
		{"/path/to/file", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := isYAMLFile(tt.path); got != tt.expected {
				t.Errorf("isYAMLFile(%s) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestFilesystemDetector_MergeOperations(t *testing.T) {
	tests := []struct {
		old      ChangeOperation
		new      ChangeOperation
		expected ChangeOperation
	}{
		{OperationCreate, OperationUpdate, OperationCreate},
		{OperationCreate, OperationDelete, OperationDelete},
		{OperationUpdate, OperationUpdate, OperationUpdate},
		{OperationUpdate, OperationDelete, OperationDelete},
		{OperationDelete, OperationCreate, OperationCreate},
	}

	for _, tt := range tests {
		t.Run(string(tt.old)+"_"+string(tt.new), func(t *testing.T) {
			if got := mergeOperations(tt.old, tt.new); got != tt.expected {
				t.Errorf("mergeOperations(%s, %s) = %s, want %s", tt.old, tt.new, got, tt.expected)
			}
		})
	}
}

func TestFilesystemDetector_Relevant(t *testing.T) {
	detector := NewFilesystemDetector("/srv/manifests", 100*time.Millisecond)

	tests := []struct {
		path     string
		expected bool
	}{
		{"/srv/manifests/shop.yaml", true},
		{"/srv/manifests/db/orders.yaml", true},
		{"/srv/manifests", false},
		{"/srv/other/shop.yaml", false},
		{"/etc/shop.yaml", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := detector.relevant(tt.path); got != tt.expected {
				t.Errorf("relevant(%s) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestFilesystemDetector_StartStop(t *testing.T) {
	tempDir := t.TempDir()

	detector := NewFilesystemDetector(tempDir, 100*time.Millisecond)

	changes := make(chan ChangeEvent, 10)
	if err := detector.Start(context.Background(), changes); err != nil {
		t.Fatalf("failed to start detector: %v", err)
	}

	if detector.GetSource() != SourceFilesystem {
		t.Errorf("expected source Filesystem, got %s", detector.GetSource())
	}

	if err := detector.Stop(); err != nil {
		t.Fatalf("failed to stop detector: %v", err)
	}
	// A second stop is a no-op.
	if err := detector.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
}

func TestFilesystemDetector_StartMissingDirectory(t *testing.T) {
	detector := NewFilesystemDetector(filepath.Join(t.TempDir(), "missing"), 100*time.Millisecond)

	if err := detector.Start(context.Background(), make(chan ChangeEvent, 1)); err == nil {
		t.Fatal("expected start to fail for a missing directory")
	}
}

func TestFilesystemDetector_DetectFileChange(t *testing.T) {
	tempDir := t.TempDir()

	dbDir := filepath.Join(tempDir, "databases")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	detector := NewFilesystemDetector(tempDir, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes := make(chan ChangeEvent, 10)
	if err := detector.Start(ctx, changes); err != nil {
		t.Fatalf("failed to start detector: %v", err)
	}
	defer detector.Stop()

	testFile := filepath.Join(dbDir, "orders.yaml")
	if err := os.WriteFile(testFile, []byte("kind: DatabaseCluster"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	select {
	case event := <-changes:
		if event.Path != testFile {
			t.Errorf("expected path %s, got %s", testFile, event.Path)
		}
		if event.Operation != OperationCreate {
			t.Errorf("expected operation Create, got %s", event.Operation)
		}
		if event.Source != SourceFilesystem {
			t.Errorf("expected source Filesystem, got %s", event.Source)
		}
	case <-ctx.Done():
		t.Error("timeout waiting for change event")
	}
}

func TestFilesystemDetector_IgnoresNonYAML(t *testing.T) {
	tempDir := t.TempDir()

	detector := NewFilesystemDetector(tempDir, 20*time.Millisecond)

	changes := make(chan ChangeEvent, 10)
	if err := detector.Start(context.Background(), changes); err != nil {
		t.Fatalf("failed to start detector: %v", err)
	}
	defer detector.Stop()

	if err := os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	select {
	case event := <-changes:
		t.Errorf("unexpected event %s", event)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFilesystemDetector_Debouncing(t *testing.T) {
	tempDir := t.TempDir()

	detector := NewFilesystemDetector(tempDir, 200*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes := make(chan ChangeEvent, 10)
	if err := detector.Start(ctx, changes); err != nil {
		t.Fatalf("failed to start detector: %v", err)
	}
	defer detector.Stop()

	testFile := filepath.Join(tempDir, "debounce-test.yaml")
	if err := os.WriteFile(testFile, []byte("v1"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	for i := 0; i < 5; i++ {
		time.Sleep(10 * time.Millisecond)
		if err := os.WriteFile(testFile, []byte("v"+string(rune('2'+i))), 0644); err != nil {
			t.Fatalf("failed to update test file: %v", err)
		}
	}

	eventCount := 0
	timeout := time.After(500 * time.Millisecond)
loop:
	for {
		select {
		case <-changes:
			eventCount++
		case <-timeout:
			break loop
		}
	}

	// One debounced event, or two if the timer fired between writes.
	if eventCount < 1 || eventCount > 2 {
		t.Errorf("expected 1-2 debounced events, got %d", eventCount)
	}
}

func TestFilesystemDetector_SingleFile(t *testing.T) {
	tempDir := t.TempDir()
	watched := filepath.Join(tempDir, "shop.yaml")
	other := filepath.Join(tempDir, "other.yaml")
	if err := os.WriteFile(watched, []byte("v1"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	detector := NewFilesystemDetector(watched, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes := make(chan ChangeEvent, 10)
	if err := detector.Start(ctx, changes); err != nil {
		t.Fatalf("failed to start detector: %v", err)
	}
	defer detector.Stop()

	if err := os.WriteFile(other, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create other file: %v", err)
	}
	if err := os.WriteFile(watched, []byte("v2"), 0644); err != nil {
		t.Fatalf("failed to update test file: %v", err)
	}

	select {
	case event := <-changes:
		if event.Path != watched {
			t.Errorf("expected path %s, got %s", watched, event.Path)
		}
		if event.Operation != OperationUpdate {
			t.Errorf("expected operation Update, got %s", event.Operation)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for change event")
	}

	select {
	case event := <-changes:
		t.Errorf("unexpected second event %s", event)
	case <-time.After(200 * time.Millisecond):
	}
}
