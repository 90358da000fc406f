package manifest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"keel/pkg/logging"
)

// DefaultDebounceInterval is how long the filesystem detector waits for more
// changes to the same file before emitting an event.
const DefaultDebounceInterval = 500 * time.Millisecond

// FilesystemDetector implements ChangeDetector for a manifest directory.
//
// It uses fsnotify to watch the directory and every subdirectory, and emits
// one debounced event per YAML file that was created, modified or deleted.
type FilesystemDetector struct {
	mu sync.RWMutex

	// basePath is the root directory of the manifest tree
	basePath string

	// singleFile is set when basePath names one manifest file; its parent
	// directory is watched instead.
	singleFile string

	// watcher is the fsnotify watcher instance
	watcher *fsnotify.Watcher

	// debounceInterval is how long to wait for additional changes
	debounceInterval time.Duration

	// pendingEvents tracks pending debounced events by file path
	pendingEvents map[string]*debounceEntry

	// stopCh signals shutdown
	stopCh chan struct{}

	// running indicates if the detector is active
	running bool
}

// debounceEntry tracks a pending event for debouncing.
type debounceEntry struct {
	event ChangeEvent
	timer *time.Timer
}

// NewFilesystemDetector creates a new filesystem change detector.
func NewFilesystemDetector(basePath string, debounceInterval time.Duration) *FilesystemDetector {
	if debounceInterval == 0 {
		debounceInterval = DefaultDebounceInterval
	}

	return &FilesystemDetector{
		basePath:         basePath,
		debounceInterval: debounceInterval,
		pendingEvents:    make(map[string]*debounceEntry),
		stopCh:           make(chan struct{}),
	}
}

// Start begins watching for filesystem changes.
func (d *FilesystemDetector) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.mu.Unlock()
		return err
	}

	d.watcher = watcher
	d.running = true
	d.stopCh = make(chan struct{})
	stopCh := d.stopCh
	root := d.basePath
	if info, err := os.Stat(d.basePath); err == nil && !info.IsDir() {
		d.singleFile = filepath.Clean(d.basePath)
		root = filepath.Dir(d.basePath)
	}
	d.mu.Unlock()

	if err := d.watchTree(root); err != nil {
		_ = d.Stop()
		return err
	}

	go d.processEvents(ctx, watcher, stopCh, changes)

	logging.Info("FilesystemDetector", "Started watching %s for manifest changes", d.basePath)
	return nil
}

// watchTree adds a watch for root and every directory below it.
func (d *FilesystemDetector) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		return d.addWatch(path)
	})
}

func (d *FilesystemDetector) addWatch(path string) error {
	d.mu.RLock()
	watcher := d.watcher
	d.mu.RUnlock()
	if watcher == nil {
		return nil
	}
	if err := watcher.Add(path); err != nil {
		return err
	}
	logging.Debug("FilesystemDetector", "Watching directory: %s", path)
	return nil
}

// processEvents handles filesystem events and generates change events.
func (d *FilesystemDetector) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh <-chan struct{}, changes chan<- ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			d.cleanupPendingEvents()
			return

		case <-stopCh:
			d.cleanupPendingEvents()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			d.handleFsEvent(event, changes)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("FilesystemDetector", err, "Filesystem watcher error")
		}
	}
}

// handleFsEvent processes a single filesystem event.
func (d *FilesystemDetector) handleFsEvent(event fsnotify.Event, changes chan<- ChangeEvent) {
	// New directories are watched too; files written into them before the
	// watch is in place are picked up by the next full read.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := d.watchTree(event.Name); err != nil {
				logging.Warn("FilesystemDetector", "Failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !isYAMLFile(event.Name) || !d.relevant(event.Name) {
		return
	}

	var operation ChangeOperation
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		operation = OperationCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		operation = OperationUpdate
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		operation = OperationDelete
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		// Rename is treated as delete (the new name will trigger a create)
		operation = OperationDelete
	default:
		return
	}

	d.debounceEvent(ChangeEvent{
		Source:    SourceFilesystem,
		Operation: operation,
		Path:      event.Name,
		Timestamp: time.Now(),
	}, changes)
}

// debounceEvent coalesces rapid successive changes to the same file.
func (d *FilesystemDetector) debounceEvent(event ChangeEvent, changes chan<- ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := event.Path

	if entry, ok := d.pendingEvents[key]; ok {
		entry.timer.Stop()
		event.Operation = mergeOperations(entry.event.Operation, event.Operation)
	}

	timer := time.AfterFunc(d.debounceInterval, func() {
		d.mu.Lock()
		entry, ok := d.pendingEvents[key]
		if ok {
			delete(d.pendingEvents, key)
		}
		d.mu.Unlock()

		if ok {
			select {
			case changes <- entry.event:
				logging.Debug("FilesystemDetector", "Emitted change event: %s", entry.event)
			default:
				logging.Warn("FilesystemDetector", "Change event channel full, dropping event for %s", entry.event.Path)
			}
		}
	})

	d.pendingEvents[key] = &debounceEntry{
		event: event,
		timer: timer,
	}
}

// mergeOperations merges two operations into a single logical operation.
func mergeOperations(old, new ChangeOperation) ChangeOperation {
	if old == OperationCreate {
		if new == OperationDelete {
			// Create + Delete still emits Delete so the reload drops it.
			return OperationDelete
		}
		return OperationCreate
	}

	if old == OperationUpdate && new == OperationDelete {
		return OperationDelete
	}

	return new
}

// relevant reports whether path is part of the watched manifest tree.
func (d *FilesystemDetector) relevant(path string) bool {
	d.mu.RLock()
	single := d.singleFile
	d.mu.RUnlock()
	if single != "" {
		return filepath.Clean(path) == single
	}
	rel, err := filepath.Rel(d.basePath, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}

// cleanupPendingEvents cancels all pending debounce timers.
func (d *FilesystemDetector) cleanupPendingEvents() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.pendingEvents {
		entry.timer.Stop()
	}
	d.pendingEvents = make(map[string]*debounceEntry)
}

// Stop gracefully stops the filesystem detector.
func (d *FilesystemDetector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.running = false
	close(d.stopCh)

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			logging.Error("FilesystemDetector", err, "Error closing filesystem watcher")
		}
		d.watcher = nil
	}

	logging.Info("FilesystemDetector", "Stopped filesystem detector")
	return nil
}

// GetSource returns the change source type.
func (d *FilesystemDetector) GetSource() ChangeSource {
	return SourceFilesystem
}
