// Package app wires the keel engine together and runs it.
//
// It turns an EngineConfig into a running system: the platform binding, the
// reconcile manager with one reconciler per kind, the event recorder, the
// Prometheus registry, the manifest source and its change detector. The
// command line tool calls one entry point per mode.
//
// # Modes
//
//   - Validate reads the manifests, decodes and checks every document and
//     resolves dependencies. Nothing is applied.
//   - Apply loads the manifests once, reconciles until the engine settles or
//     the timeout expires, writes a checkpoint and returns a report.
//   - Serve runs until interrupted: it applies the manifests, reloads them
//     whenever the change detector fires, runs drift scans, writes periodic
//     checkpoints and serves metrics and health probes.
//
// ReportFromSnapshot renders a checkpoint without starting an engine, which
// is how keel status works against a running serve process.
//
// # Configuration
//
// NewApplication loads configuration in layers: built-in defaults, the YAML
// file, KEEL_* environment variables (with .env files underneath the process
// environment) and finally Config.Overrides, which carries command line
// flags. Logging is re-initialized from the result.
//
// # Checkpoints
//
// When statePath is set, the store is seeded from the checkpoint at startup.
// Synced resources keep their state and are only reconciled again when
// their spec changes or drift is detected.
//
// # Errors
//
// Rejected manifests surface as *ValidationFailedError, and Apply wraps
// ErrNotConverged when resources end in a state other than Synced. The
// command line maps both to distinct exit codes.
package app
