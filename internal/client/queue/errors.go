package queue

import "errors"

var (
	// ErrDuplicateOp opId уже использовался в этой очереди
	ErrDuplicateOp = errors.New("operation id already used")

	// ErrInvalidOperation операция не прошла проверку
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotFound операция не найдена
	ErrNotFound = errors.New("operation not found")

	// ErrDeferred операция пока не может быть отправлена (ждет id от сервера)
	ErrDeferred = errors.New("operation deferred")
)
