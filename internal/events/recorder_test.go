package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"keel/internal/resource"
)

var orders = resource.NewID(resource.KindDatabaseCluster, "shop", "orders")

func TestRenderDefaults(t *testing.T) {
	e := NewMessageTemplateEngine()

	tests := []struct {
		reason EventReason
		data   EventData
		want   string
	}{
		{ReasonSynced, EventData{Generation: 2}, "DatabaseCluster orders synced at generation 2"},
		{ReasonFailed, EventData{Error: "quota exceeded"}, "DatabaseCluster orders failed permanently: quota exceeded"},
		{ReasonFailed, EventData{}, "DatabaseCluster orders failed permanently"},
		{ReasonRetrying, EventData{Attempt: 2, Delay: 4 * time.Second}, "DatabaseCluster orders attempt 2 failed, retrying in 4s"},
		{ReasonFailover, EventData{Detail: "orders-2"}, "DatabaseCluster orders primary changed to orders-2"},
		{ReasonDrift, EventData{Cause: "ExternalMutation"}, "DatabaseCluster orders drifted (ExternalMutation)"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.reason, tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, e.Render(tt.reason, orders, tt.data))
		})
	}
}

func TestRenderUnknownReason(t *testing.T) {
	e := NewMessageTemplateEngine()
	assert.Equal(t, "Event: Mystery for DatabaseCluster/shop/orders", e.Render("Mystery", orders, EventData{}))
}

func TestSetTemplate(t *testing.T) {
	e := NewMessageTemplateEngine()
	require.NoError(t, e.SetTemplate(ReasonSynced, "{{.Name}} ready"))
	assert.Equal(t, "orders ready", e.Render(ReasonSynced, orders, EventData{}))

	assert.Error(t, e.SetTemplate(ReasonSynced, "{{.Name"))
}

func TestEventTypes(t *testing.T) {
	assert.Equal(t, EventTypeWarning, getEventType(ReasonDrift))
	assert.Equal(t, EventTypeWarning, getEventType(ReasonFailed))
	assert.Equal(t, EventTypeNormal, getEventType(ReasonSynced))
	assert.Equal(t, EventTypeNormal, getEventType(ReasonRemoved))
}

func TestMemoryRecorder(t *testing.T) {
	clk := clocktesting.NewFakePassiveClock(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC))
	r := NewMemoryRecorder(3, clk)
	web := resource.NewID(resource.KindCertificate, "shop", "web")

	r.Record(orders, ReasonAdmitted, EventData{})
	r.Record(web, ReasonAdmitted, EventData{})
	r.Record(orders, ReasonSynced, EventData{Generation: 1})

	all := r.List(resource.ID{})
	require.Len(t, all, 3)
	assert.Equal(t, ReasonAdmitted, all[0].Reason)
	assert.Equal(t, clk.Now(), all[0].Time)
	_, err := uuid.Parse(all[0].ID)
	assert.NoError(t, err)
	assert.NotEqual(t, all[0].ID, all[1].ID)

	assert.Len(t, r.List(orders), 2)

	// The oldest event falls out once the buffer wraps.
	r.Record(orders, ReasonDrift, EventData{Cause: "ExternalMutation"})
	all = r.List(resource.ID{})
	require.Len(t, all, 3)
	assert.Equal(t, web, all[0].Object)
	assert.Equal(t, ReasonDrift, all[2].Reason)
	assert.Equal(t, EventTypeWarning, all[2].Type)
}
