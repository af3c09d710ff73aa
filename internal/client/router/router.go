// Package router maps inbound push frames to cache actions.
package router

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/events"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/pkg/api"
)

// Action что сделать с записью в кэше
type Action string

const (
	// ActionUpsert вставить или заменить запись
	ActionUpsert Action = "upsert"
	// ActionPatch слить поля в существующую запись (частичные события вроде status_changed)
	ActionPatch Action = "patch"
	// ActionDelete удалить запись по id
	ActionDelete Action = "delete"
)

// Route маршрут события. Пустая Collection означает, что коллекция указана в payload.
// Пустой Action выводится из суффикса типа события.
type Route struct {
	Collection string
	Action     Action
}

// Push разобранное push-событие
type Push struct {
	Entity     *models.Entity
	Type       string
	Collection string
	ID         string
	Action     Action
}

//go:generate moq -out sink_mock.go . Sink

// Sink получатель маршрутизированных событий (оркестратор)
type Sink interface {
	HandlePush(push Push)
	HandleAck(ack api.MutationAck)
}

// Router сопоставляет тип события с маршрутом
type Router struct {
	sink     Sink
	logger   *slog.Logger
	bus      *events.Bus
	routes   map[string]Route
	prefixes map[string]Route
	mu       sync.RWMutex
}

// New создает Router с маршрутами по умолчанию
func New(sink Sink, logger *slog.Logger) *Router {
	r := &Router{
		sink:     sink,
		logger:   logger,
		bus:      events.NewBus(),
		routes:   make(map[string]Route),
		prefixes: make(map[string]Route),
	}

	r.Register("data:create", Route{Action: ActionUpsert})
	r.Register("data:update", Route{Action: ActionUpsert})
	r.Register("data:delete", Route{Action: ActionDelete})

	r.Register("umzug:created", Route{Collection: "umzuege", Action: ActionUpsert})
	r.Register("umzug:updated", Route{Collection: "umzuege", Action: ActionUpsert})
	r.Register("umzug:deleted", Route{Collection: "umzuege", Action: ActionDelete})
	r.Register("umzug:status_changed", Route{Collection: "umzuege", Action: ActionPatch})

	r.RegisterPrefix("task:", Route{Collection: "tasks"})
	r.RegisterPrefix("notification:", Route{Collection: "notifications"})

	return r
}

// Register задает маршрут для точного типа события
func (r *Router) Register(eventType string, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[eventType] = route
}

// RegisterPrefix задает маршрут для всех типов с префиксом (например "task:")
func (r *Router) RegisterPrefix(prefix string, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[prefix] = route
}

// Resolve возвращает маршрут события. Точное совпадение важнее префикса,
// из нескольких префиксов выбирается самый длинный.
func (r *Router) Resolve(eventType string) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if route, ok := r.routes[eventType]; ok {
		return withAction(route, eventType), true
	}

	best := ""
	for prefix := range r.prefixes {
		if strings.HasPrefix(eventType, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return Route{}, false
	}
	return withAction(r.prefixes[best], eventType), true
}

// On подписывает UI callback на тип события; events.Wildcard получает немаршрутизируемые кадры.
func (r *Router) On(eventType string, handler events.Handler) (unsubscribe func()) {
	return r.bus.On(eventType, handler)
}

// Route обрабатывает входящий кадр. Никогда не падает на неизвестных типах.
func (r *Router) Route(frame api.Frame) {
	if frame.Type == api.FrameMutationAck {
		var ack api.MutationAck
		if err := json.Unmarshal(frame.Data, &ack); err != nil {
			r.logger.Warn("Dropping malformed ack", "error", err)
			return
		}
		if ack.OpID == "" {
			ack.OpID = frame.OpID
		}
		r.sink.HandleAck(ack)
		return
	}

	route, ok := r.Resolve(frame.Type)
	if !ok {
		raw, _ := json.Marshal(frame)
		if !r.bus.Emit(events.Wildcard, raw) {
			r.logger.Debug("Unrouted event", "type", frame.Type)
		}
		return
	}

	push, err := decodePush(frame, route)
	if err != nil {
		r.logger.Warn("Dropping unroutable push", "type", frame.Type, "error", err)
		raw, _ := json.Marshal(frame)
		r.bus.Emit(events.Wildcard, raw)
		return
	}

	r.sink.HandlePush(push)
	r.bus.Emit(frame.Type, frame.Data)
}

func withAction(route Route, eventType string) Route {
	if route.Action == "" {
		route.Action = actionFromSuffix(eventType)
	}
	return route
}

// actionFromSuffix: "...:deleted"/"...:delete"/"...:removed" удаляют, остальное upsert
func actionFromSuffix(eventType string) Action {
	suffix := eventType
	if i := strings.LastIndex(eventType, ":"); i >= 0 {
		suffix = eventType[i+1:]
	}
	switch suffix {
	case "deleted", "delete", "removed":
		return ActionDelete
	case "status_changed":
		return ActionPatch
	default:
		return ActionUpsert
	}
}

func decodePush(frame api.Frame, route Route) (Push, error) {
	push := Push{Type: frame.Type, Collection: route.Collection, Action: route.Action}

	var fields map[string]any
	if err := json.Unmarshal(frame.Data, &fields); err != nil || fields == nil {
		return push, fmt.Errorf("payload is not an object")
	}

	if push.Collection == "" {
		collection, _ := fields["collection"].(string)
		if collection == "" {
			return push, fmt.Errorf("payload does not name a collection")
		}
		push.Collection = collection
	}

	body := entityBody(fields, route.Collection == "")

	entity := models.NewEntity("", body)
	if entity.ID == "" {
		// id рядом с оберткой: {"collection":"tasks","id":"t1","data":{...}}
		entity.ID = idOf(fields)
	}
	if entity.ID == "" {
		return push, fmt.Errorf("payload has no entity id")
	}
	push.ID = entity.ID

	if push.Action != ActionDelete {
		push.Entity = entity
	}
	return push, nil
}

// entityBody достает запись из обертки "data"/"entity" или использует payload целиком
func entityBody(fields map[string]any, stripCollection bool) map[string]any {
	for _, key := range []string{"data", "entity"} {
		if inner, ok := fields[key].(map[string]any); ok {
			return inner
		}
	}
	body := make(map[string]any, len(fields))
	for k, v := range fields {
		if stripCollection && k == "collection" {
			continue
		}
		body[k] = v
	}
	return body
}

func idOf(fields map[string]any) string {
	for _, key := range []string{models.FieldID, models.FieldMongoID, "entityId", "umzugId", "taskId"} {
		switch v := fields[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
