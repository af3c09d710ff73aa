package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

// Compile-time check
var _ storage.OperationStorage = (*Storage)(nil)

// AppendOperation stores operation under the next bucket sequence.
// Ключи big-endian, поэтому курсор bbolt отдает операции в порядке постановки.
func (s *Storage) AppendOperation(ctx context.Context, op *models.PendingOperation) (uint64, error) {
	var seq uint64
	err := s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOperations)
		index := tx.Bucket(bucketOperationID)
		if bucket == nil || index == nil {
			return fmt.Errorf("operations bucket not found")
		}

		if index.Get([]byte(op.OpID)) != nil {
			return fmt.Errorf("operation %s already stored", op.OpID)
		}

		next, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		seq = next

		stored := op.Clone()
		stored.Seq = seq
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal operation: %w", err)
		}

		key := seqKey(seq)
		if err := bucket.Put(key, data); err != nil {
			return fmt.Errorf("failed to save operation: %w", err)
		}
		if err := index.Put([]byte(op.OpID), key); err != nil {
			return fmt.Errorf("failed to index operation: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("append transaction failed: %w", err)
	}

	return seq, nil
}

// UpdateOperation overwrites stored operation in place (order is kept)
func (s *Storage) UpdateOperation(ctx context.Context, op *models.PendingOperation) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOperations)
		index := tx.Bucket(bucketOperationID)
		if bucket == nil || index == nil {
			return fmt.Errorf("operations bucket not found")
		}

		key := index.Get([]byte(op.OpID))
		if key == nil {
			return storage.ErrOperationNotFound
		}

		stored := op.Clone()
		stored.Seq = binary.BigEndian.Uint64(key)
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal operation: %w", err)
		}
		return bucket.Put(key, data)
	})
}

// DeleteOperation removes operation by opID
func (s *Storage) DeleteOperation(ctx context.Context, opID string) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOperations)
		index := tx.Bucket(bucketOperationID)
		if bucket == nil || index == nil {
			return fmt.Errorf("operations bucket not found")
		}

		key := index.Get([]byte(opID))
		if key == nil {
			return nil
		}
		// ключ нужно скопировать: память bbolt невалидна после Delete
		keyCopy := append([]byte(nil), key...)
		if err := index.Delete([]byte(opID)); err != nil {
			return fmt.Errorf("failed to delete operation index: %w", err)
		}
		if err := bucket.Delete(keyCopy); err != nil {
			return fmt.Errorf("failed to delete operation: %w", err)
		}
		return nil
	})
}

// ListOperations returns queued operations in enqueue order
func (s *Storage) ListOperations(ctx context.Context) ([]*models.PendingOperation, error) {
	return s.listOrdered(bucketOperations)
}

// SaveDeadLetter moves operation from the queue into the dead-letter bucket
func (s *Storage) SaveDeadLetter(ctx context.Context, op *models.PendingOperation) error {
	return s.update(func(tx *bbolt.Tx) error {
		dead := tx.Bucket(bucketDeadLetters)
		bucket := tx.Bucket(bucketOperations)
		index := tx.Bucket(bucketOperationID)
		if dead == nil || bucket == nil || index == nil {
			return fmt.Errorf("dead letters bucket not found")
		}

		// Удаляем из основной очереди, если операция там еще есть
		if key := index.Get([]byte(op.OpID)); key != nil {
			keyCopy := append([]byte(nil), key...)
			if err := index.Delete([]byte(op.OpID)); err != nil {
				return fmt.Errorf("failed to delete operation index: %w", err)
			}
			if err := bucket.Delete(keyCopy); err != nil {
				return fmt.Errorf("failed to delete operation: %w", err)
			}
		}

		seq, err := dead.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		data, err := json.Marshal(op)
		if err != nil {
			return fmt.Errorf("failed to marshal operation: %w", err)
		}
		return dead.Put(seqKey(seq), data)
	})
}

// ListDeadLetters returns dead-lettered operations
func (s *Storage) ListDeadLetters(ctx context.Context) ([]*models.PendingOperation, error) {
	return s.listOrdered(bucketDeadLetters)
}

// DeleteDeadLetter removes dead-lettered operation by opID
func (s *Storage) DeleteDeadLetter(ctx context.Context, opID string) error {
	return s.update(func(tx *bbolt.Tx) error {
		dead := tx.Bucket(bucketDeadLetters)
		if dead == nil {
			return fmt.Errorf("dead letters bucket not found")
		}

		var found []byte
		err := dead.ForEach(func(k, v []byte) error {
			var op models.PendingOperation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			if op.OpID == opID {
				found = append([]byte(nil), k...)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if found == nil {
			return storage.ErrOperationNotFound
		}
		return dead.Delete(found)
	})
}

func (s *Storage) listOrdered(name []byte) ([]*models.PendingOperation, error) {
	ops := []*models.PendingOperation{}
	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(name)
		if bucket == nil {
			// Нет bucket - возвращаем пустой список
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var op models.PendingOperation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			ops = append(ops, &op)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", name, err)
	}

	return ops, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
