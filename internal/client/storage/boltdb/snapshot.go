package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

// Compile-time check
var _ storage.SnapshotStorage = (*Storage)(nil)

// SaveSnapshot replaces stored snapshot of the collection.
// Пустой список удаляет коллекцию из снимка.
func (s *Storage) SaveSnapshot(ctx context.Context, collection string, entities []*models.Entity) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshot)
		if bucket == nil {
			return fmt.Errorf("snapshot bucket not found")
		}

		if len(entities) == 0 {
			return bucket.Delete([]byte(collection))
		}

		data, err := json.Marshal(entities)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}

		if err := bucket.Put([]byte(collection), data); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
		return nil
	})
}

// LoadSnapshot returns every stored collection
func (s *Storage) LoadSnapshot(ctx context.Context) (map[string][]*models.Entity, error) {
	result := make(map[string][]*models.Entity)
	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshot)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var entities []*models.Entity
			if err := json.Unmarshal(v, &entities); err != nil {
				return fmt.Errorf("failed to unmarshal snapshot %s: %w", k, err)
			}
			result[string(k)] = entities
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	return result, nil
}
