// Package auth provides the bearer credential for the sync client: login,
// logout, persisted tokens and transparent refresh before expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/validation"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/pkg/api"
)

var (
	// ErrNotAuthenticated нет сохраненного токена, нужен login
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired access token истек и обновить его не удалось
	ErrSessionExpired = errors.New("session expired")
)

// DefaultRefreshSkew за сколько до истечения токен обновляется заранее
const DefaultRefreshSkew = 30 * time.Second

// Service хранит токены в AuthStorage и обновляет их через Client.
// Реализует Provider.
type Service struct {
	client Client
	store  storage.AuthStorage
	logger *slog.Logger
	now    func() time.Time
	skew   time.Duration
	// mu сериализует refresh, чтобы параллельные Token не обновляли токен дважды
	mu sync.Mutex
}

var _ Provider = (*Service)(nil)

// NewService создает сервис авторизации
func NewService(client Client, store storage.AuthStorage, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		store:  store,
		logger: logger,
		now:    time.Now,
		skew:   DefaultRefreshSkew,
	}
}

// Login выполняет аутентификацию и сохраняет токены
func (s *Service) Login(ctx context.Context, email, password string) (*storage.AuthData, error) {
	if err := validation.ValidateCredentials(email, password); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	resp, err := s.client.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if resp.Bearer() == "" {
		return nil, fmt.Errorf("login failed: server returned no token")
	}

	data := &storage.AuthData{
		Username:     email,
		AccessToken:  resp.Bearer(),
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.expiresAt(resp.Bearer(), resp.ExpiresIn),
	}
	if resp.User != nil {
		data.UserID = resp.User.ID
	}

	if err := s.store.SaveAuth(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to save auth data: %w", err)
	}

	s.logger.Info("logged in", "user", email, "expires_at", data.ExpiresAt)
	return data, nil
}

// Logout удаляет локальные токены. Отсутствие сессии - не ошибка.
func (s *Service) Logout(ctx context.Context) error {
	err := s.store.DeleteAuth(ctx)
	if err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return fmt.Errorf("failed to delete local auth data: %w", err)
	}
	return nil
}

// Current возвращает сохраненные данные авторизации без обновления
func (s *Service) Current(ctx context.Context) (*storage.AuthData, error) {
	data, err := s.store.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auth data: %w", err)
	}
	return data, nil
}

// IsAuthenticated проверяет, есть ли токен, который еще не истек
// (или который можно обновить)
func (s *Service) IsAuthenticated(ctx context.Context) (bool, error) {
	data, err := s.Current(ctx)
	if errors.Is(err, ErrNotAuthenticated) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !s.expired(data.ExpiresAt) || data.RefreshToken != "", nil
}

// Token возвращает действующий access token, при необходимости обновляя его.
// Вызывается при каждом (пере)подключении транспорта и каждом REST запросе.
func (s *Service) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.Current(ctx)
	if err != nil {
		return "", err
	}

	if !s.expiring(data.ExpiresAt) {
		return data.AccessToken, nil
	}

	if data.RefreshToken == "" {
		if s.expired(data.ExpiresAt) {
			return "", ErrSessionExpired
		}
		return data.AccessToken, nil
	}

	refreshed, err := s.refresh(ctx, data)
	if err != nil {
		// токен еще действует - отдаем его, refresh повторится при следующем вызове
		if !s.expired(data.ExpiresAt) {
			s.logger.Warn("token refresh failed, using current token", "error", err)
			return data.AccessToken, nil
		}
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return refreshed.AccessToken, nil
}

func (s *Service) refresh(ctx context.Context, data *storage.AuthData) (*storage.AuthData, error) {
	resp, err := s.client.Refresh(ctx, data.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if resp.Bearer() == "" {
		return nil, fmt.Errorf("failed to refresh token: server returned no token")
	}

	next := *data
	next.AccessToken = resp.Bearer()
	next.ExpiresAt = s.expiresAt(resp.Bearer(), resp.ExpiresIn)
	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}

	if err := s.store.SaveAuth(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to save auth data: %w", err)
	}

	s.logger.Debug("access token refreshed", "expires_at", next.ExpiresAt)
	return &next, nil
}

// expiresAt определяет срок действия токена: claim exp, иначе expiresIn.
// 0 - срок неизвестен, токен считается бессрочным.
func (s *Service) expiresAt(token string, expiresIn int64) int64 {
	if exp, ok := TokenExpiry(token); ok {
		return exp.Unix()
	}
	if expiresIn > 0 {
		return s.now().Add(time.Duration(expiresIn) * time.Second).Unix()
	}
	return 0
}

func (s *Service) expiring(expiresAt int64) bool {
	if expiresAt == 0 {
		return false
	}
	return !s.now().Add(s.skew).Before(time.Unix(expiresAt, 0))
}

func (s *Service) expired(expiresAt int64) bool {
	if expiresAt == 0 {
		return false
	}
	return !s.now().Before(time.Unix(expiresAt, 0))
}

// TokenExpiry читает claim exp из JWT без проверки подписи:
// ключа сервера у клиента нет, подпись проверяет бэкенд.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
