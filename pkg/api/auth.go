package api

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Email    string `json:"email"`    // email пользователя
	Password string `json:"password"` // пароль
}

// RefreshRequest представляет запрос на обновление access token
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// User представляет пользователя в ответе авторизации
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// TokenResponse представляет ответ с токенами доступа.
// Бэкенд отдает токен как "token" или "accessToken".
type TokenResponse struct {
	User         *User  `json:"user,omitempty"`
	Token        string `json:"token,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"` // время жизни access token в секундах
}

// Bearer возвращает access token независимо от имени поля
func (r *TokenResponse) Bearer() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`   // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
	Success bool   `json:"success"`
}

// Text возвращает самое информативное сообщение об ошибке
func (r *ErrorResponse) Text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}
