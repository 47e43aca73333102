package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/events"
)

func newTestClient(id string, buffer int) *client {
	return &client{id: id, send: make(chan []byte, buffer)}
}

func drain(t *testing.T, c *client) []ChangeMessage {
	t.Helper()
	out := []ChangeMessage{}
	for {
		select {
		case data := <-c.send:
			var msg ChangeMessage
			require.NoError(t, json.Unmarshal(data, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestBroadcastReachesEveryClientInOrder(t *testing.T) {
	hub := NewHub(nil)
	first := newTestClient("c1", 8)
	second := newTestClient("c2", 8)
	hub.add(first)
	hub.add(second)

	for i, taskID := range []string{"t1", "t2", "t3"} {
		hub.Broadcast(events.Event{
			ID:        taskID + "-event",
			Type:      events.EventTaskUpdated,
			TaskID:    taskID,
			Timestamp: time.Date(2025, 6, 1, 12, i, 0, 0, time.UTC),
		})
	}

	for _, c := range []*client{first, second} {
		msgs := drain(t, c)
		require.Len(t, msgs, 3)
		assert.Equal(t, "t1", msgs[0].TaskID)
		assert.Equal(t, "t2", msgs[1].TaskID)
		assert.Equal(t, "t3", msgs[2].TaskID)
	}
}

func TestBroadcastDropsSlowClientOnly(t *testing.T) {
	hub := NewHub(nil)
	slow := newTestClient("slow", 1)
	fast := newTestClient("fast", 8)
	hub.add(slow)
	hub.add(fast)
	require.Equal(t, 2, hub.ClientCount())

	for i := 0; i < 3; i++ {
		hub.Broadcast(events.Event{Type: events.EventTaskUpdated, TaskID: "t1"})
	}

	// the slow client fell behind and is gone; the fast one kept everything
	assert.Equal(t, 1, hub.ClientCount())
	assert.Len(t, drain(t, fast), 3)
}

func TestRemoveIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	c := newTestClient("c1", 1)
	hub.add(c)

	hub.remove(c)
	hub.remove(c)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestAttachForwardsDispatcherEvents(t *testing.T) {
	hub := NewHub(nil)
	dispatcher := events.NewInMemoryDispatcher()
	hub.Attach(dispatcher)

	c := newTestClient("c1", 8)
	hub.add(c)

	actor := "op-1"
	err := dispatcher.Publish(context.Background(), events.Event{
		ID:      "evt-1",
		Type:    events.EventSLABreach,
		TaskID:  "t9",
		ActorID: &actor,
	})
	require.NoError(t, err)

	msgs := drain(t, c)
	require.Len(t, msgs, 1)
	assert.Equal(t, "evt-1", msgs[0].EventID)
	assert.Equal(t, string(events.EventSLABreach), msgs[0].Type)
	assert.Equal(t, "t9", msgs[0].TaskID)
	require.NotNil(t, msgs[0].ActorID)
	assert.Equal(t, "op-1", *msgs[0].ActorID)
}
