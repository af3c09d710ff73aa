package models

import (
	"fmt"
	"time"
)

// ErrorKind классифицирует ошибки синхронизации
type ErrorKind string

const (
	// ErrorKindTransport connect failure or malformed frame
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindValidation server rejected the mutation (400/422), never retried
	ErrorKindValidation ErrorKind = "validation"
	// ErrorKindConflict concurrent edit (409), UI should re-fetch
	ErrorKindConflict ErrorKind = "conflict"
	// ErrorKindTimeout no acknowledgement in time, rolled back, retry is manual
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindDeadLetter operation exceeded the retry cap
	ErrorKindDeadLetter ErrorKind = "dead_letter"
)

// Recoverable reports whether the UI may offer a retry for this kind.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case ErrorKindConflict, ErrorKindTimeout, ErrorKindTransport:
		return true
	}
	return false
}

// Источники ошибок
const (
	SourceTransport = "transport"
	SourceMutation  = "mutation"
	SourceQueue     = "queue"
	SourcePush      = "push"
)

// SyncError описывает ошибку синхронизации, показываемую пользователю.
// Хранится в общем списке до явной очистки.
type SyncError struct {
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	OpID        string    `json:"op_id,omitempty"`
	Collection  string    `json:"collection,omitempty"`
	EntityID    string    `json:"entity_id,omitempty"`
	Recoverable bool      `json:"recoverable"`
}

func (e SyncError) Error() string {
	if e.OpID != "" {
		return fmt.Sprintf("%s %s error (op %s): %s", e.Source, e.Kind, e.OpID, e.Message)
	}
	return fmt.Sprintf("%s %s error: %s", e.Source, e.Kind, e.Message)
}
