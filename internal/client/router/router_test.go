package router

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/events"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/pkg/api"
)

func newTestRouter() (*Router, *SinkMock) {
	sink := &SinkMock{
		HandlePushFunc: func(push Push) {},
		HandleAckFunc:  func(ack api.MutationAck) {},
	}
	return New(sink, slog.New(slog.NewTextHandler(io.Discard, nil))), sink
}

func frame(eventType, data string) api.Frame {
	return api.Frame{Type: eventType, Data: json.RawMessage(data)}
}

func TestResolve(t *testing.T) {
	r, _ := newTestRouter()

	tests := []struct {
		eventType  string
		collection string
		action     Action
		found      bool
	}{
		{eventType: "data:create", collection: "", action: ActionUpsert, found: true},
		{eventType: "data:update", collection: "", action: ActionUpsert, found: true},
		{eventType: "data:delete", collection: "", action: ActionDelete, found: true},
		{eventType: "umzug:created", collection: "umzuege", action: ActionUpsert, found: true},
		{eventType: "umzug:updated", collection: "umzuege", action: ActionUpsert, found: true},
		{eventType: "umzug:deleted", collection: "umzuege", action: ActionDelete, found: true},
		{eventType: "umzug:status_changed", collection: "umzuege", action: ActionPatch, found: true},
		{eventType: "task:created", collection: "tasks", action: ActionUpsert, found: true},
		{eventType: "task:deleted", collection: "tasks", action: ActionDelete, found: true},
		{eventType: "task:status_changed", collection: "tasks", action: ActionPatch, found: true},
		{eventType: "notification:new", collection: "notifications", action: ActionUpsert, found: true},
		{eventType: "invoice:paid", found: false},
		{eventType: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			route, ok := r.Resolve(tt.eventType)
			assert.Equal(t, tt.found, ok)
			if !tt.found {
				return
			}
			assert.Equal(t, tt.collection, route.Collection)
			assert.Equal(t, tt.action, route.Action)
		})
	}
}

func TestResolve_ExactBeatsPrefix(t *testing.T) {
	r, _ := newTestRouter()
	r.Register("task:archived", Route{Collection: "tasks", Action: ActionDelete})
	r.RegisterPrefix("task:urgent:", Route{Collection: "urgent_tasks"})

	route, ok := r.Resolve("task:archived")
	require.True(t, ok)
	assert.Equal(t, ActionDelete, route.Action)

	route, ok = r.Resolve("task:urgent:created")
	require.True(t, ok)
	assert.Equal(t, "urgent_tasks", route.Collection)
}

func TestRoute_DataEvents(t *testing.T) {
	tests := []struct {
		name       string
		frame      api.Frame
		collection string
		id         string
		action     Action
		field      string
		value      any
	}{
		{
			name:       "flat create",
			frame:      frame("data:create", `{"collection":"tasks","id":"t1","title":"Kartons packen","_version":2}`),
			collection: "tasks", id: "t1", action: ActionUpsert, field: "title", value: "Kartons packen",
		},
		{
			name:       "wrapped update",
			frame:      frame("data:update", `{"collection":"umzuege","data":{"_id":"u7","status":"fertig"}}`),
			collection: "umzuege", id: "u7", action: ActionUpsert, field: "status", value: "fertig",
		},
		{
			name:       "entity key",
			frame:      frame("data:update", `{"collection":"fahrzeuge","entity":{"id":"f1","kennzeichen":"B-HU 1"}}`),
			collection: "fahrzeuge", id: "f1", action: ActionUpsert, field: "kennzeichen", value: "B-HU 1",
		},
		{
			name:       "delete by id",
			frame:      frame("data:delete", `{"collection":"tasks","id":"t1"}`),
			collection: "tasks", id: "t1", action: ActionDelete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, sink := newTestRouter()
			r.Route(tt.frame)

			calls := sink.HandlePushCalls()
			require.Len(t, calls, 1)
			push := calls[0].Push
			assert.Equal(t, tt.collection, push.Collection)
			assert.Equal(t, tt.id, push.ID)
			assert.Equal(t, tt.action, push.Action)

			if tt.action == ActionDelete {
				assert.Nil(t, push.Entity)
				return
			}
			require.NotNil(t, push.Entity)
			assert.Equal(t, tt.id, push.Entity.ID)
			assert.Equal(t, tt.value, push.Entity.Get(tt.field))
			assert.Nil(t, push.Entity.Get("collection"))
		})
	}
}

func TestRoute_DomainEvents(t *testing.T) {
	r, sink := newTestRouter()

	var uiEvents []string
	r.On("umzug:status_changed", func(e events.Event) { uiEvents = append(uiEvents, e.Name) })

	r.Route(frame("umzug:created", `{"_id":"u1","kunde":"Meier","_version":1}`))
	r.Route(frame("umzug:status_changed", `{"umzugId":"u1","status":"in_bearbeitung"}`))
	r.Route(frame("task:deleted", `{"id":"t9"}`))
	r.Route(frame("notification:new", `{"id":"n1","text":"Neuer Auftrag"}`))

	calls := sink.HandlePushCalls()
	require.Len(t, calls, 4)

	assert.Equal(t, "umzuege", calls[0].Push.Collection)
	assert.Equal(t, "u1", calls[0].Push.ID)
	assert.Equal(t, int64(1), calls[0].Push.Entity.Version)

	assert.Equal(t, ActionPatch, calls[1].Push.Action)
	assert.Equal(t, "u1", calls[1].Push.ID)
	assert.Equal(t, "in_bearbeitung", calls[1].Push.Entity.Get("status"))

	assert.Equal(t, "tasks", calls[2].Push.Collection)
	assert.Equal(t, ActionDelete, calls[2].Push.Action)

	assert.Equal(t, "notifications", calls[3].Push.Collection)

	assert.Equal(t, []string{"umzug:status_changed"}, uiEvents)
}

func TestRoute_Ack(t *testing.T) {
	r, sink := newTestRouter()

	r.Route(frame(api.FrameMutationAck, `{"opId":"op-1","status":"ok","entity":{"id":"u1"}}`))
	// opId на уровне кадра
	r.Route(api.Frame{Type: api.FrameMutationAck, OpID: "op-2", Data: json.RawMessage(`{"status":"error","message":"invalid"}`)})
	r.Route(frame(api.FrameMutationAck, `[]`))

	acks := sink.HandleAckCalls()
	require.Len(t, acks, 2)
	assert.Equal(t, "op-1", acks[0].Ack.OpID)
	assert.True(t, acks[0].Ack.OK())
	assert.Equal(t, "op-2", acks[1].Ack.OpID)
	assert.False(t, acks[1].Ack.OK())
	assert.Equal(t, "invalid", acks[1].Ack.Reason())
	assert.Empty(t, sink.HandlePushCalls())
}

func TestRoute_UnknownAndMalformed(t *testing.T) {
	r, sink := newTestRouter()

	var wildcard []api.Frame
	r.On(events.Wildcard, func(e events.Event) {
		var f api.Frame
		require.NoError(t, json.Unmarshal(e.Data, &f))
		wildcard = append(wildcard, f)
	})

	assert.NotPanics(t, func() {
		r.Route(frame("invoice:paid", `{"id":"r1"}`))
		r.Route(frame("data:update", `{"id":"t1"}`))           // без коллекции
		r.Route(frame("umzug:updated", `"not an object"`))     // не объект
		r.Route(frame("task:created", `{"title":"ohne id"}`)) // без id
		r.Route(frame("connect", ``))
	})

	assert.Empty(t, sink.HandlePushCalls())
	require.Len(t, wildcard, 5)
	assert.Equal(t, "invoice:paid", wildcard[0].Type)
	assert.Equal(t, "connect", wildcard[4].Type)
}
