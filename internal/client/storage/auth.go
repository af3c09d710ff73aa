package storage

import (
	"context"
	"fmt"
	"time"
)

//go:generate moq -out auth_mock.go . AuthStorage

// AuthStorage defines interface for storing the bearer credential on client
type AuthStorage interface {
	// SaveAuth stores authentication data as-is
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth retrieves stored authentication data
	// Returns ErrAuthNotFound if no auth data exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes stored authentication data (logout)
	DeleteAuth(ctx context.Context) error
}

// AuthData represents authentication information in storage
type AuthData struct {
	Username     string `json:"username"`
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds, 0 if unknown
}

// Validate проверяет, что сессия пригодна для подключения
func (a *AuthData) Validate() error {
	if a == nil || a.Username == "" || a.AccessToken == "" {
		return fmt.Errorf("%w: user and access token are required", ErrInvalidAuth)
	}
	if a.ExpiresAt < 0 {
		return fmt.Errorf("%w: negative expiry", ErrInvalidAuth)
	}
	return nil
}

// Expiry срок действия access token; zero, если сервер его не сообщил
func (a *AuthData) Expiry() time.Time {
	if a.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(a.ExpiresAt, 0)
}
