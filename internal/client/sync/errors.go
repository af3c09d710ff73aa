package sync

import "errors"

var (
	// ErrEntityNotFound update/delete записи, которой нет в кэше
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityExists create с явным id, который уже занят
	ErrEntityExists = errors.New("entity already exists")

	// ErrClosed сервис уже закрыт
	ErrClosed = errors.New("sync service is closed")

	// ErrDispatcherBusy диспетчер не принял операцию (буфер заполнен)
	ErrDispatcherBusy = errors.New("dispatcher is busy")
)
