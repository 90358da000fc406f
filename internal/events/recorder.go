package events

import (
	"sync"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"keel/internal/resource"
	"keel/pkg/logging"
)

// DefaultCapacity is the number of events a MemoryRecorder keeps.
const DefaultCapacity = 512

// Recorder records operator-facing events about resources.
type Recorder interface {
	Record(obj resource.ID, reason EventReason, data EventData)
}

// Lister exposes recorded events.
type Lister interface {
	// List returns events oldest first. A zero object returns every event.
	List(obj resource.ID) []Event
}

// MemoryRecorder keeps the most recent events in a ring buffer and mirrors
// each one to the log.
type MemoryRecorder struct {
	mu        sync.Mutex
	buf       []Event
	next      int
	full      bool
	clock     clock.PassiveClock
	templates *MessageTemplateEngine
}

// NewMemoryRecorder creates a recorder that keeps the last capacity events.
// A capacity of zero or less uses DefaultCapacity; a nil clock uses the real
// clock.
func NewMemoryRecorder(capacity int, clk clock.PassiveClock) *MemoryRecorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &MemoryRecorder{
		buf:       make([]Event, capacity),
		clock:     clk,
		templates: NewMessageTemplateEngine(),
	}
}

// Templates returns the engine used to render messages.
func (r *MemoryRecorder) Templates() *MessageTemplateEngine {
	return r.templates
}

func (r *MemoryRecorder) Record(obj resource.ID, reason EventReason, data EventData) {
	ev := Event{
		ID:      uuid.NewString(),
		Time:    r.clock.Now(),
		Type:    getEventType(reason),
		Reason:  reason,
		Object:  obj,
		Message: r.templates.Render(reason, obj, data),
		Detail:  data.Detail,
	}

	if ev.Type == EventTypeWarning {
		logging.Warn("Events", "%s %s: %s", ev.Reason, obj, ev.Message)
	} else {
		logging.Info("Events", "%s %s: %s", ev.Reason, obj, ev.Message)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *MemoryRecorder) List(obj resource.ID) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []Event
	if r.full {
		ordered = append(ordered, r.buf[r.next:]...)
	}
	ordered = append(ordered, r.buf[:r.next]...)

	if obj.IsZero() {
		return ordered
	}
	out := ordered[:0:0]
	for _, ev := range ordered {
		if ev.Object == obj {
			out = append(out, ev)
		}
	}
	return out
}

// Discard is a Recorder that drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(resource.ID, EventReason, EventData) {}
