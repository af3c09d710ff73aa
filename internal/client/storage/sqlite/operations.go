package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

// Compile-time check
var _ storage.OperationStorage = (*Storage)(nil)

const operationColumns = `op_id, type, collection, entity_id, temp_id, payload, pre_image, attempts, last_error, enqueued_at`

// AppendOperation inserts operation at the tail of the queue
func (s *Storage) AppendOperation(ctx context.Context, op *models.PendingOperation) (uint64, error) {
	if s.closed.Load() {
		return 0, storage.ErrStorageClosed
	}

	args, err := operationArgs(op)
	if err != nil {
		return 0, err
	}

	query := `INSERT INTO pending_operations (` + operationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert operation: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get operation seq: %w", err)
	}

	return uint64(seq), nil
}

// UpdateOperation overwrites mutable fields of a stored operation
func (s *Storage) UpdateOperation(ctx context.Context, op *models.PendingOperation) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}

	payload, preImage, err := encodeBodies(op)
	if err != nil {
		return err
	}

	query := `
		UPDATE pending_operations
		SET type = ?, collection = ?, entity_id = ?, temp_id = ?, payload = ?,
		    pre_image = ?, attempts = ?, last_error = ?
		WHERE op_id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		string(op.Type),
		op.Collection,
		op.EntityID,
		op.TempID,
		payload,
		preImage,
		op.Attempts,
		op.LastError,
		op.OpID,
	)
	if err != nil {
		return fmt.Errorf("failed to update operation: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrOperationNotFound
	}

	return nil
}

// DeleteOperation removes operation by opID
func (s *Storage) DeleteOperation(ctx context.Context, opID string) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE op_id = ?`, opID); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	return nil
}

// ListOperations returns queued operations in enqueue order
func (s *Storage) ListOperations(ctx context.Context) ([]*models.PendingOperation, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}

	query := `SELECT seq, ` + operationColumns + ` FROM pending_operations ORDER BY seq ASC`
	return s.queryOperations(ctx, query)
}

// SaveDeadLetter moves operation from the queue to dead_letters in one transaction
func (s *Storage) SaveDeadLetter(ctx context.Context, op *models.PendingOperation) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}

	args, err := operationArgs(op)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_operations WHERE op_id = ?`, op.OpID); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}

	query := `INSERT INTO dead_letters (seq, ` + operationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, append([]any{op.Seq}, args...)...); err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListDeadLetters returns dead-lettered operations
func (s *Storage) ListDeadLetters(ctx context.Context) ([]*models.PendingOperation, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}

	query := `SELECT seq, ` + operationColumns + ` FROM dead_letters ORDER BY id ASC`
	return s.queryOperations(ctx, query)
}

// DeleteDeadLetter removes dead-lettered operation by opID
func (s *Storage) DeleteDeadLetter(ctx context.Context, opID string) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE op_id = ?`, opID)
	if err != nil {
		return fmt.Errorf("failed to delete dead letter: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrOperationNotFound
	}
	return nil
}

func (s *Storage) queryOperations(ctx context.Context, query string) ([]*models.PendingOperation, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	ops := []*models.PendingOperation{}
	for rows.Next() {
		var (
			op         models.PendingOperation
			opType     string
			payload    sql.NullString
			preImage   sql.NullString
			enqueuedAt int64
			seq        int64
		)
		err := rows.Scan(
			&seq,
			&op.OpID,
			&opType,
			&op.Collection,
			&op.EntityID,
			&op.TempID,
			&payload,
			&preImage,
			&op.Attempts,
			&op.LastError,
			&enqueuedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}

		op.Seq = uint64(seq)
		op.Type = models.OpType(opType)
		op.EnqueuedAt = time.UnixMilli(enqueuedAt).UTC()

		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &op.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload of %s: %w", op.OpID, err)
			}
		}
		if preImage.Valid && preImage.String != "" {
			op.PreImage, err = models.DecodeEntity([]byte(preImage.String))
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal pre-image of %s: %w", op.OpID, err)
			}
		}

		ops = append(ops, &op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return ops, nil
}

func operationArgs(op *models.PendingOperation) ([]any, error) {
	payload, preImage, err := encodeBodies(op)
	if err != nil {
		return nil, err
	}

	return []any{
		op.OpID,
		string(op.Type),
		op.Collection,
		op.EntityID,
		op.TempID,
		payload,
		preImage,
		op.Attempts,
		op.LastError,
		op.EnqueuedAt.UnixMilli(),
	}, nil
}

func encodeBodies(op *models.PendingOperation) (payload, preImage sql.NullString, err error) {
	if op.Payload != nil {
		data, err := json.Marshal(op.Payload)
		if err != nil {
			return payload, preImage, fmt.Errorf("failed to marshal payload: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}
	if op.PreImage != nil {
		data, err := json.Marshal(op.PreImage)
		if err != nil {
			return payload, preImage, fmt.Errorf("failed to marshal pre-image: %w", err)
		}
		preImage = sql.NullString{String: string(data), Valid: true}
	}
	return payload, preImage, nil
}
