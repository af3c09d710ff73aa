// Package cache holds the in-memory view of every synchronized collection.
package cache

import (
	"sort"
	"sync"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

// ChangeKind тип изменения коллекции
type ChangeKind string

const (
	ChangeUpsert  ChangeKind = "upsert"
	ChangeDelete  ChangeKind = "delete"
	ChangeReplace ChangeKind = "replace"
)

// Change описывает изменение, о котором уведомляются подписчики коллекции.
// Entity - копия записи после изменения (nil для delete и replace).
type Change struct {
	Entity     *models.Entity
	Collection string
	ID         string
	Kind       ChangeKind
}

// Listener callback подписчика. Вызывается синхронно до возврата из мутирующего метода.
// Listener не должен мутировать ту же коллекцию синхронно.
type Listener func(Change)

// Cache in-memory хранилище записей по коллекциям.
// Записи хранятся в порядке вставки; повторный upsert заменяет запись на месте.
type Cache struct {
	collections map[string]*collection
	mu          sync.RWMutex
}

type collection struct {
	entities      map[string]*models.Entity
	listeners     map[uint64]Listener
	order         []string
	listenerOrder []uint64
	nextID        uint64
	// notifyMu сериализует мутацию и рассылку, чтобы сохранить порядок уведомлений
	notifyMu sync.Mutex
}

// New создает пустой кэш
func New() *Cache {
	return &Cache{collections: make(map[string]*collection)}
}

func (c *Cache) collection(name string) *collection {
	c.mu.RLock()
	col, ok := c.collections[name]
	c.mu.RUnlock()
	if ok {
		return col
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok = c.collections[name]; ok {
		return col
	}
	col = &collection{
		entities:  make(map[string]*models.Entity),
		listeners: make(map[uint64]Listener),
	}
	c.collections[name] = col
	return col
}

// Get возвращает копию записи. Без побочных эффектов.
func (c *Cache) Get(collection, id string) (*models.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	col, ok := c.collections[collection]
	if !ok {
		return nil, false
	}
	e, ok := col.entities[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// GetAll возвращает копии всех записей коллекции в порядке вставки.
func (c *Cache) GetAll(collection string) []*models.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	col, ok := c.collections[collection]
	if !ok {
		return []*models.Entity{}
	}
	result := make([]*models.Entity, 0, len(col.order))
	for _, id := range col.order {
		result = append(result, col.entities[id].Clone())
	}
	return result
}

// Len количество записей в коллекции
func (c *Cache) Len(collection string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if col, ok := c.collections[collection]; ok {
		return len(col.entities)
	}
	return 0
}

// Collections возвращает отсортированные имена непустых коллекций.
func (c *Cache) Collections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.collections))
	for name, col := range c.collections {
		if len(col.entities) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Upsert вставляет или полностью заменяет запись по id.
func (c *Cache) Upsert(collection string, entity *models.Entity) {
	if entity == nil {
		return
	}
	col := c.collection(collection)
	col.notifyMu.Lock()
	defer col.notifyMu.Unlock()

	stored := entity.Clone()
	c.mu.Lock()
	if _, exists := col.entities[stored.ID]; !exists {
		col.order = append(col.order, stored.ID)
	}
	col.entities[stored.ID] = stored
	listeners := col.snapshotListeners()
	c.mu.Unlock()

	notify(listeners, Change{Collection: collection, Kind: ChangeUpsert, ID: stored.ID, Entity: stored.Clone()})
}

// Delete удаляет запись. Отсутствующая запись - не ошибка, уведомление не отправляется.
// Возвращает true, если запись была удалена.
func (c *Cache) Delete(collection, id string) bool {
	col := c.collection(collection)
	col.notifyMu.Lock()
	defer col.notifyMu.Unlock()

	c.mu.Lock()
	if _, exists := col.entities[id]; !exists {
		c.mu.Unlock()
		return false
	}
	delete(col.entities, id)
	col.removeFromOrder(id)
	listeners := col.snapshotListeners()
	c.mu.Unlock()

	notify(listeners, Change{Collection: collection, Kind: ChangeDelete, ID: id})
	return true
}

// MarkOptimistic переключает флаг _isOptimistic, не трогая остальные поля.
// Возвращает false, если записи нет.
func (c *Cache) MarkOptimistic(collection, id string, optimistic bool) bool {
	col := c.collection(collection)
	col.notifyMu.Lock()
	defer col.notifyMu.Unlock()

	c.mu.Lock()
	e, exists := col.entities[id]
	if !exists {
		c.mu.Unlock()
		return false
	}
	if e.IsOptimistic == optimistic {
		c.mu.Unlock()
		return true
	}
	e.IsOptimistic = optimistic
	snapshot := e.Clone()
	listeners := col.snapshotListeners()
	c.mu.Unlock()

	notify(listeners, Change{Collection: collection, Kind: ChangeUpsert, ID: id, Entity: snapshot})
	return true
}

// ReplaceAll заменяет содержимое коллекции целиком (гидрация из REST).
// Записи, для которых keep возвращает true, остаются в кэше как есть
// (например, записи с неподтвержденными локальными операциями).
func (c *Cache) ReplaceAll(collection string, entities []*models.Entity, keep func(id string) bool) {
	col := c.collection(collection)
	col.notifyMu.Lock()
	defer col.notifyMu.Unlock()

	c.mu.Lock()
	nextEntities := make(map[string]*models.Entity, len(entities))
	nextOrder := make([]string, 0, len(entities))

	for _, id := range col.order {
		if keep != nil && keep(id) {
			nextEntities[id] = col.entities[id]
			nextOrder = append(nextOrder, id)
		}
	}
	for _, e := range entities {
		if e == nil {
			continue
		}
		// оставленные локальные записи и дубликаты в ответе не перезаписываются
		if _, seen := nextEntities[e.ID]; seen {
			continue
		}
		nextOrder = append(nextOrder, e.ID)
		nextEntities[e.ID] = e.Clone()
	}
	col.entities = nextEntities
	col.order = nextOrder
	listeners := col.snapshotListeners()
	c.mu.Unlock()

	notify(listeners, Change{Collection: collection, Kind: ChangeReplace})
}

// Subscribe регистрирует listener для коллекции и возвращает функцию отписки.
func (c *Cache) Subscribe(collection string, listener Listener) (unsubscribe func()) {
	col := c.collection(collection)

	c.mu.Lock()
	col.nextID++
	id := col.nextID
	col.listeners[id] = listener
	col.listenerOrder = append(col.listenerOrder, id)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(col.listeners, id)
			for i, lid := range col.listenerOrder {
				if lid == id {
					col.listenerOrder = append(col.listenerOrder[:i:i], col.listenerOrder[i+1:]...)
					break
				}
			}
		})
	}
}

// Snapshot возвращает копию всех коллекций (для сохранения на диск).
func (c *Cache) Snapshot() map[string][]*models.Entity {
	c.mu.RLock()
	names := make([]string, 0, len(c.collections))
	for name := range c.collections {
		names = append(names, name)
	}
	c.mu.RUnlock()

	out := make(map[string][]*models.Entity, len(names))
	for _, name := range names {
		out[name] = c.GetAll(name)
	}
	return out
}

func (col *collection) snapshotListeners() []Listener {
	listeners := make([]Listener, 0, len(col.listenerOrder))
	for _, id := range col.listenerOrder {
		listeners = append(listeners, col.listeners[id])
	}
	return listeners
}

func (col *collection) removeFromOrder(id string) {
	for i, oid := range col.order {
		if oid == id {
			col.order = append(col.order[:i], col.order[i+1:]...)
			return
		}
	}
}

func notify(listeners []Listener, change Change) {
	for _, l := range listeners {
		l(change)
	}
}
