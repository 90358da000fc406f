// Package logging provides the structured logging system used across keel.
//
// It is a thin layer over log/slog that keeps a subsystem-tagged, printf-style
// API so call sites stay short:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Scheduler", "Started with %d workers", n)
//	logging.Debug("Manifest", "Loaded %d documents from %s", len(docs), path)
//	logging.Warn("DriftDetector", "Drift detected on %s", id)
//	logging.Error("Store", err, "Failed to write checkpoint")
//
// # Output formats
//
// Text output is rendered by github.com/lmittmann/tint (colour can be turned
// off with Options.NoColor). JSON output uses slog.NewJSONHandler and is meant
// for log shippers:
//
//	logging.InitWithOptions(logging.LevelDebug, os.Stderr, logging.Options{Format: logging.FormatJSON})
//
// Every record carries a "subsystem" attribute and, for Error, an "error"
// attribute.
//
// # Subsystems
//
//   - Bootstrap: application wiring and startup
//   - Config: engine configuration loading
//   - Manifest: desired state loading and source watching
//   - Scheduler: work queue, dispatch, retries and commits
//   - <Kind>Reconciler: per-kind reconcilers
//   - DriftDetector: periodic re-scan
//   - Store: live state and checkpoints
//
// # Controller-Runtime Integration
//
// Initialisation also installs the handler as the controller-runtime logger,
// so informers and caches used by the Kubernetes bindings log through the
// same sink. Logr exposes the same bridge for other logr consumers.
package logging
