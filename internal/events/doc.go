// Package events records operator-facing events about resources: lifecycle
// changes, convergence, failures, drift and database failovers.
//
// Messages are rendered from per-reason templates that can be overridden at
// runtime:
//
//	rec := events.NewMemoryRecorder(0, nil)
//	_ = rec.Templates().SetTemplate(events.ReasonSynced, "{{.Name}} is ready")
//	rec.Record(id, events.ReasonSynced, events.EventData{Generation: 3})
//
// The in-memory recorder keeps a bounded history, served by `keel status
// --events`, and mirrors each event to the structured log.
package events
