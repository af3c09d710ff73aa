package api

import (
	"encoding/json"
)

// Типы исходящих и служебных кадров
const (
	FrameMutation    = "mutation"
	FrameMutationAck = "mutation:ack"
	FrameConnect     = "connect"
	FrameDisconnect  = "disconnect"
	FrameConnectErr  = "connect_error"
)

// Статусы подтверждения мутации
const (
	AckStatusOK    = "ok"
	AckStatusError = "error"
)

// Frame конверт WebSocket кадра в обе стороны: {type, data}.
// Кадры мутаций дополнительно несут opId.
type Frame struct {
	Type string          `json:"type"`
	OpID string          `json:"opId,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MutationData тело кадра "mutation"
type MutationData struct {
	Payload    map[string]any `json:"payload,omitempty"`
	Collection string         `json:"collection"`
	Action     string         `json:"action"`
	ID         string         `json:"id,omitempty"`
}

// MutationAck ответ сервера на мутацию.
// Code повторяет HTTP семантику (400/422 validation, 409 conflict), если сервер ее передает.
type MutationAck struct {
	OpID    string          `json:"opId"`
	Status  string          `json:"status"`
	Entity  json.RawMessage `json:"entity,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Code    int             `json:"code,omitempty"`
}

// OK reports whether the server accepted the mutation.
func (a *MutationAck) OK() bool {
	return a.Status == AckStatusOK
}

// Reason возвращает текст отказа
func (a *MutationAck) Reason() string {
	if a.Message != "" {
		return a.Message
	}
	if a.Error != "" {
		return a.Error
	}
	return "mutation rejected"
}

// DataEvent тело push-событий data:create|update|delete.
// Запись может прийти в поле "data"/"entity" или плоско рядом с "collection".
type DataEvent struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Entity     json.RawMessage `json:"entity,omitempty"`
}

// Envelope обертка REST ответов {success, data}
type Envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
	Success bool            `json:"success"`
}
