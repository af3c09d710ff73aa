package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage"
)

const keyLastFetchPrefix = "last_fetch:"

// Compile-time check
var _ storage.MetadataStorage = (*Storage)(nil)

// SaveLastFetch saves the time the collection was last hydrated
func (s *Storage) SaveLastFetch(ctx context.Context, collection string, at time.Time) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		// Храним unix millis как big-endian uint64
		value := make([]byte, 8)
		binary.BigEndian.PutUint64(value, uint64(at.UnixMilli()))

		if err := bucket.Put([]byte(keyLastFetchPrefix+collection), value); err != nil {
			return fmt.Errorf("failed to save last fetch time: %w", err)
		}

		return nil
	})
}

// GetLastFetch retrieves the last hydration time of the collection
// Returns zero time if the collection was never fetched
func (s *Storage) GetLastFetch(ctx context.Context, collection string) (time.Time, error) {
	var at time.Time
	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		value := bucket.Get([]byte(keyLastFetchPrefix + collection))
		if value == nil {
			return nil
		}

		at = time.UnixMilli(int64(binary.BigEndian.Uint64(value)))
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last fetch time: %w", err)
	}

	return at, nil
}
