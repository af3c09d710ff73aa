package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

// APIError ответ сервера с не-2xx статусом
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Kind классифицирует ошибку для SyncError
func (e *APIError) Kind() models.ErrorKind {
	switch {
	case e.StatusCode == http.StatusConflict:
		return models.ErrorKindConflict
	case e.StatusCode == http.StatusRequestTimeout:
		return models.ErrorKindTimeout
	case IsTransient(e):
		return models.ErrorKindTransport
	default:
		return models.ErrorKindValidation
	}
}

// IsTransient сообщает, имеет ли смысл повторить запрос позже.
// Сетевые ошибки, 401 (токен обновится), 408, 429 и 5xx - временные;
// остальные ответы 4xx окончательны.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return apiErr.StatusCode >= 500
}
