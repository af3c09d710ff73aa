package transport

import "errors"

var (
	// ErrNotConnected Send вызван без открытого сокета
	ErrNotConnected = errors.New("websocket not connected")

	// ErrNotReady сокет есть, но соединение еще не открыто или уже закрывается
	ErrNotReady = errors.New("websocket not ready")

	// ErrSendBufferFull исходящий буфер соединения переполнен
	ErrSendBufferFull = errors.New("websocket send buffer full")
)
