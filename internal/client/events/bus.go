// Package events implements the local publish/subscribe registry used between
// the transport, the router and UI consumers.
package events

import (
	"encoding/json"
	"sync"
)

// Wildcard подписка на все события, для которых нет отдельного обработчика.
const Wildcard = "*"

// Локальные события соединения
const (
	Connected          = "ws:connected"
	Disconnected       = "ws:disconnected"
	Reconnecting       = "ws:reconnecting"
	ConnectError       = "ws:connect_error"
	MaxReconnectFailed = "ws:max_reconnect_failed"
	StateChanged       = "ws:state"
)

// Event событие шины: имя и необработанный JSON payload.
type Event struct {
	Name string
	Data json.RawMessage
}

// Handler обработчик события
type Handler func(Event)

// Bus типизированная шина событий: имя события -> набор обработчиков.
// Обработчики вызываются синхронно, в порядке подписки, вне блокировки.
type Bus struct {
	handlers map[string][]subscription
	mu       sync.RWMutex
	nextID   uint64
}

type subscription struct {
	handler Handler
	id      uint64
}

// NewBus создает пустую шину
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]subscription)}
}

// On подписывает handler на событие и возвращает функцию отписки.
// Повторный вызов функции отписки безопасен.
func (b *Bus) On(event string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[event] = append(b.handlers[event], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.off(event, id) })
	}
}

func (b *Bus) off(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[event]
	for i, s := range subs {
		if s.id == id {
			b.handlers[event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[event]) == 0 {
		delete(b.handlers, event)
	}
}

// Emit вызывает обработчики события. Возвращает false, если подписчиков нет.
func (b *Bus) Emit(event string, data json.RawMessage) bool {
	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[event]...)
	b.mu.RUnlock()

	evt := Event{Name: event, Data: data}
	for _, s := range subs {
		s.handler(evt)
	}
	return len(subs) > 0
}

// Clear удаляет всех подписчиков
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = make(map[string][]subscription)
}
