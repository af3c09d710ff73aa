package crdt

import (
	"sync"
)

// VersionClock выдает локальные значения _version для оптимистичных записей.
// Работает как часы Лампорта: локальная мутация увеличивает счетчик,
// версия, пришедшая с сервера, подтягивает счетчик вверх, поэтому
// оптимистичная версия всегда больше последней увиденной серверной.
type VersionClock struct {
	counter int64
	mu      sync.Mutex
}

// NewVersionClock создает часы, начинающие с заданного значения.
func NewVersionClock(start int64) *VersionClock {
	return &VersionClock{counter: start}
}

// Next увеличивает счетчик и возвращает новую версию для локальной мутации.
func (c *VersionClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counter++
	return c.counter
}

// Observe учитывает версию, полученную от сервера:
// counter = max(counter, remote). Возвращает текущее значение.
func (c *VersionClock) Observe(remote int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remote > c.counter {
		c.counter = remote
	}
	return c.counter
}

// Current возвращает текущее значение без изменения.
func (c *VersionClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counter
}
