package storage

import (
	"context"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

//go:generate moq -out operations_mock.go . OperationStorage

// OperationStorage defines durable storage for the pending update queue.
// Operations are returned in the order they were appended.
type OperationStorage interface {
	// AppendOperation stores a new operation at the tail and returns its sequence number
	AppendOperation(ctx context.Context, op *models.PendingOperation) (uint64, error)

	// UpdateOperation overwrites a stored operation (attempts, rewritten entity id)
	// Returns ErrOperationNotFound if the operation is not stored
	UpdateOperation(ctx context.Context, op *models.PendingOperation) error

	// DeleteOperation removes an operation; missing operations are not an error
	DeleteOperation(ctx context.Context, opID string) error

	// ListOperations returns all queued operations in enqueue order
	ListOperations(ctx context.Context) ([]*models.PendingOperation, error)

	// SaveDeadLetter moves an operation to the dead-letter list
	SaveDeadLetter(ctx context.Context, op *models.PendingOperation) error

	// ListDeadLetters returns dead-lettered operations in the order they failed
	ListDeadLetters(ctx context.Context) ([]*models.PendingOperation, error)

	// DeleteDeadLetter removes a dead-lettered operation
	DeleteDeadLetter(ctx context.Context, opID string) error
}
