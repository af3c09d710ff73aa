package sync

import (
	"encoding/json"
	stdsync "sync"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/events"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

const eventSyncError = "sync:error"

// ErrorLog общий список ошибок синхронизации.
// Ошибки хранятся до явной очистки; подписчики получают каждую новую ошибку.
type ErrorLog struct {
	bus   *events.Bus
	items []models.SyncError
	mu    stdsync.Mutex
}

// NewErrorLog создает пустой список
func NewErrorLog() *ErrorLog {
	return &ErrorLog{bus: events.NewBus()}
}

// Add добавляет ошибку и уведомляет подписчиков
func (l *ErrorLog) Add(e models.SyncError) {
	l.mu.Lock()
	l.items = append(l.items, e)
	l.mu.Unlock()

	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	l.bus.Emit(eventSyncError, raw)
}

// List возвращает копию списка в порядке появления
func (l *ErrorLog) List() []models.SyncError {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.SyncError, len(l.items))
	copy(out, l.items)
	return out
}

// Len число ошибок
func (l *ErrorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Clear очищает список
func (l *ErrorLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}

// Subscribe регистрирует callback на новые ошибки
func (l *ErrorLog) Subscribe(fn func(models.SyncError)) (unsubscribe func()) {
	return l.bus.On(eventSyncError, func(evt events.Event) {
		var e models.SyncError
		if err := json.Unmarshal(evt.Data, &e); err != nil {
			return
		}
		fn(e)
	})
}
