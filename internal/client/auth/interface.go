package auth

import (
	"context"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/pkg/api"
)

//go:generate moq -out client_mock.go . Client

// Provider выдает bearer credential для REST и WebSocket.
// Реализации: StaticProvider (токен из конфигурации) и Service (хранилище + refresh).
type Provider interface {
	// Token возвращает действующий access token
	Token(ctx context.Context) (string, error)
}

// Client - часть REST клиента, нужная для авторизации
type Client interface {
	// Login обменивает email/пароль на пару токенов
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)

	// Refresh обновляет access token по refresh token
	Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error)
}

// StaticProvider отдает заранее известный токен (UMZUG_TOKEN, тесты)
type StaticProvider string

// Token реализует Provider
func (p StaticProvider) Token(context.Context) (string, error) {
	if p == "" {
		return "", ErrNotAuthenticated
	}
	return string(p), nil
}
