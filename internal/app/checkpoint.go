package app

import (
	"errors"
	"io/fs"

	"keel/internal/resource"
	"keel/internal/state"
	"keel/pkg/logging"
)

// Checkpoint writes the live store and the recent events to statePath. It
// is a no-op when no state path is configured.
func (s *Services) Checkpoint() error {
	if s.Config.StatePath == "" {
		return nil
	}
	snap := s.Manager.Store().Snapshot()
	snap.Events = s.Recorder.List(resource.ID{})
	if err := state.SaveFile(s.Config.StatePath, snap); err != nil {
		return err
	}
	logging.Debug("Checkpoint", "Wrote %d resources to %s", len(snap.Resources), s.Config.StatePath)
	return nil
}

// loadCheckpoint reads the checkpoint at path. An empty path or a missing
// file yields nil.
func loadCheckpoint(path string) (*state.Snapshot, error) {
	if path == "" {
		return nil, nil
	}
	snap, err := state.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return snap, err
}
