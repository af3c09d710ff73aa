package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage"
)

// В bucket auth хранится одна сессия Umzug-бэкенда: пользователь, bearer и его срок
var sessionKey = []byte("session")

// Compile-time check
var _ storage.AuthStorage = (*Storage)(nil)

// SaveAuth replaces the stored session. Логин без пользователя или токена не сохраняется.
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	if err := auth.Validate(); err != nil {
		return err
	}

	record, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketAuth).Put(sessionKey, record); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// GetAuth returns the stored session or ErrAuthNotFound.
// Поврежденная запись считается отсутствующей: пользователь просто логинится заново.
func (s *Storage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	var auth storage.AuthData
	err := s.view(func(tx *bbolt.Tx) error {
		record := tx.Bucket(bucketAuth).Get(sessionKey)
		if record == nil {
			return storage.ErrAuthNotFound
		}
		if err := json.Unmarshal(record, &auth); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrAuthNotFound, err)
		}
		if err := auth.Validate(); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrAuthNotFound, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

// DeleteAuth drops the session on logout
func (s *Storage) DeleteAuth(ctx context.Context) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAuth)
		if bucket.Get(sessionKey) == nil {
			return storage.ErrAuthNotFound
		}
		return bucket.Delete(sessionKey)
	})
}
