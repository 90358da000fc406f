package events

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"

	"keel/internal/resource"
)

// templateData is what message templates see.
type templateData struct {
	EventData
	Kind      resource.Kind
	Namespace string
	Name      string
}

// MessageTemplateEngine renders event messages from per-reason templates.
type MessageTemplateEngine struct {
	mu        sync.RWMutex
	templates map[EventReason]*template.Template
}

// NewMessageTemplateEngine creates a new message template engine with default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventReason]*template.Template),
	}
	engine.loadDefaultTemplates()
	return engine
}

func (e *MessageTemplateEngine) loadDefaultTemplates() {
	defaults := map[EventReason]string{
		ReasonAdmitted:              "{{.Kind}} {{.Name}} admitted in namespace {{.Namespace}}",
		ReasonSpecChanged:           "{{.Kind}} {{.Name}} spec changed, now at generation {{.Generation}}",
		ReasonRemoved:               "{{.Kind}} {{.Name}} finalized and removed from namespace {{.Namespace}}",
		ReasonFinalizationAbandoned: "{{.Kind}} {{.Name}} removed without cleanup after {{.Attempt}} attempts{{if .Error}}: {{.Error}}{{end}}",
		ReasonParked:                "{{.Kind}} {{.Name}} declared again while finalizing, admission deferred",

		ReasonSynced:   "{{.Kind}} {{.Name}} synced at generation {{.Generation}}",
		ReasonDegraded: "{{.Kind}} {{.Name}} degraded{{if .Error}}: {{.Error}}{{end}}",
		ReasonBlocked:  "{{.Kind}} {{.Name}} blocked{{if .Error}}: {{.Error}}{{end}}",
		ReasonRetrying: "{{.Kind}} {{.Name}} attempt {{.Attempt}} failed, retrying{{if .Delay}} in {{.Delay}}{{end}}{{if .Error}}: {{.Error}}{{end}}",
		ReasonFailed:   "{{.Kind}} {{.Name}} failed permanently{{if .Error}}: {{.Error}}{{end}}",

		ReasonDrift:    "{{.Kind}} {{.Name}} drifted ({{.Cause}})",
		ReasonFailover: "{{.Kind}} {{.Name}} primary changed{{if .Detail}} to {{.Detail}}{{end}}",
		ReasonRenewal:  "{{.Kind}} {{.Name}} entered its renewal window",
	}
	for reason, text := range defaults {
		if err := e.SetTemplate(reason, text); err != nil {
			panic(err)
		}
	}
}

// Render generates a message for the given event reason and data.
func (e *MessageTemplateEngine) Render(reason EventReason, obj resource.ID, data EventData) string {
	e.mu.RLock()
	tmpl, exists := e.templates[reason]
	e.mu.RUnlock()
	if !exists {
		return fmt.Sprintf("Event: %s for %s", reason, obj)
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, templateData{
		EventData: data,
		Kind:      obj.Kind,
		Namespace: obj.Namespace,
		Name:      obj.Name,
	})
	if err != nil {
		return fmt.Sprintf("Event: %s for %s (template error: %v)", reason, obj, err)
	}
	return buf.String()
}

// SetTemplate customizes the message template for a specific event reason.
func (e *MessageTemplateEngine) SetTemplate(reason EventReason, text string) error {
	tmpl, err := template.New(string(reason)).Option("missingkey=zero").Parse(text)
	if err != nil {
		return fmt.Errorf("invalid template for %s: %w", reason, err)
	}
	e.mu.Lock()
	e.templates[reason] = tmpl
	e.mu.Unlock()
	return nil
}
