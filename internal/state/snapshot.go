package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"keel/internal/events"
	"keel/internal/resource"
)

// SnapshotVersion is the current snapshot layout.
const SnapshotVersion = 1

// Snapshot is the durable form of the store: identity, spec, generation,
// observed status and bookkeeping of every resource. Events are the most
// recent lifecycle events at the time of the snapshot; Restore ignores them.
type Snapshot struct {
	Version   int                  `yaml:"version"`
	SavedAt   time.Time            `yaml:"savedAt"`
	Resources []*resource.Resource `yaml:"resources"`
	Events    []events.Event       `yaml:"events,omitempty"`
}

// Snapshot captures every record.
func (s *Store) Snapshot() *Snapshot {
	return &Snapshot{
		Version:   SnapshotVersion,
		SavedAt:   s.clock.Now(),
		Resources: s.List(),
	}
}

// Restore replaces the store contents with snap. Records keep their sync
// state, so resources that were Synced are not reconciled again unless their
// spec changes or drift is detected. In-flight states (Syncing) come back as
// OutOfSync since the work they describe died with the previous process.
func (s *Store) Restore(snap *Snapshot) {
	entries := make(map[resource.ID]*entry, len(snap.Resources))
	for _, r := range snap.Resources {
		cp := r.DeepCopy()
		if cp.Status.SyncState == resource.StateSyncing || cp.Status.SyncState == "" {
			cp.Status.SyncState = resource.StateOutOfSync
		}
		cp.Status.Finalizing = false
		entries[cp.ID] = &entry{res: cp}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

// SaveFile writes snap to path atomically: a temp file in the same directory
// is written, synced and renamed over path.
func SaveFile(path string, snap *Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a snapshot written by SaveFile. A missing file returns an
// error satisfying errors.Is(err, fs.ErrNotExist).
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot %s has unsupported version %d", path, snap.Version)
	}
	return &snap, nil
}
