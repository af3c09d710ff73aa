package models

import (
	"time"
)

// OpType тип мутации
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// Valid reports whether t is one of the known mutation types.
func (t OpType) Valid() bool {
	switch t {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// PendingOperation представляет мутацию, ожидающую подтверждения сервера.
// Создается оркестратором при вызове Mutate, хранится в очереди до ack,
// затем уничтожается. PreImage - неизменяемый снимок записи до мутации
// (nil для create), по нему выполняется откат.
type PendingOperation struct {
	EnqueuedAt time.Time      `json:"enqueued_at"`         // EnqueuedAt время постановки в очередь
	Payload    map[string]any `json:"payload,omitempty"`   // Payload поля мутации
	PreImage   *Entity        `json:"pre_image,omitempty"` // PreImage снимок до мутации
	OpID       string         `json:"op_id"`               // OpID клиентский идентификатор операции (уникальный)
	Type       OpType         `json:"type"`                // Type create|update|delete
	Collection string         `json:"collection"`          // Collection имя коллекции ("umzuege", "tasks" ...)
	EntityID   string         `json:"entity_id"`           // EntityID id записи (временный для create)
	TempID     string         `json:"temp_id,omitempty"`   // TempID временный id, выданный клиентом при create
	LastError  string         `json:"last_error,omitempty"`
	Seq        uint64         `json:"seq"`      // Seq порядковый номер, присвоенный хранилищем очереди
	Attempts   int            `json:"attempts"` // Attempts число неудачных попыток отправки
}

// Key returns the collection-scoped entity key used for per-entity bookkeeping.
func (op *PendingOperation) Key() string {
	return EntityKey(op.Collection, op.EntityID)
}

// Clone создает глубокую копию операции
func (op *PendingOperation) Clone() *PendingOperation {
	if op == nil {
		return nil
	}
	cp := *op
	if op.Payload != nil {
		cp.Payload = CloneFields(op.Payload)
	}
	cp.PreImage = op.PreImage.Clone()
	return &cp
}

// EntityKey builds the "collection/id" key.
func EntityKey(collection, id string) string {
	return collection + "/" + id
}
