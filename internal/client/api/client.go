package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/pkg/api"
)

// TokenSource выдает bearer credential для запросов
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client представляет HTTP клиент для REST API бэкенда
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
	mu         sync.RWMutex
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetTokenSource задает источник токена. Разрывает цикл Client <-> TokenProvider при сборке сессии.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/auth/login", req, &resp, false); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	if resp.Bearer() == "" {
		return nil, fmt.Errorf("login response has no token")
	}
	return &resp, nil
}

// Refresh обменивает refresh token на новый access token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	err := c.doRequest(ctx, http.MethodPost, "/auth/refresh", api.RefreshRequest{RefreshToken: refreshToken}, &resp, false)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	if resp.Bearer() == "" {
		return nil, fmt.Errorf("refresh response has no token")
	}
	return &resp, nil
}

// List загружает все записи ресурса: GET /{resource}
func (c *Client) List(ctx context.Context, resource string) ([]*models.Entity, error) {
	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, "/"+resource, nil, &raw, true); err != nil {
		return nil, fmt.Errorf("list %s failed: %w", resource, err)
	}

	items, err := decodeList(unwrap(raw), resource)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s list: %w", resource, err)
	}
	return items, nil
}

// Get загружает одну запись: GET /{resource}/{id}
func (c *Client) Get(ctx context.Context, resource, id string) (*models.Entity, error) {
	return c.entityRequest(ctx, http.MethodGet, resource, id, nil)
}

// Create создает запись: POST /{resource}
func (c *Client) Create(ctx context.Context, resource string, payload map[string]any) (*models.Entity, error) {
	return c.entityRequest(ctx, http.MethodPost, resource, "", payload)
}

// Update обновляет запись: PUT /{resource}/{id}
func (c *Client) Update(ctx context.Context, resource, id string, payload map[string]any) (*models.Entity, error) {
	return c.entityRequest(ctx, http.MethodPut, resource, id, payload)
}

// Delete удаляет запись: DELETE /{resource}/{id}
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	if err := c.doRequest(ctx, http.MethodDelete, entityPath(resource, id), nil, nil, true); err != nil {
		return fmt.Errorf("delete %s/%s failed: %w", resource, id, err)
	}
	return nil
}

func (c *Client) entityRequest(ctx context.Context, method, resource, id string, payload map[string]any) (*models.Entity, error) {
	var body any
	if payload != nil {
		body = payload
	}

	var raw json.RawMessage
	if err := c.doRequest(ctx, method, entityPath(resource, id), body, &raw, true); err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", strings.ToLower(method), entityPath(resource, id), err)
	}

	// 204 или пустое тело: подтверждение без записи
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	entity, err := models.DecodeEntity(unwrapEntity(unwrap(raw), resource))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", resource, err)
	}
	return entity, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any, authorized bool) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if authorized {
		c.mu.RLock()
		tokens := c.tokens
		c.mu.RUnlock()
		if tokens != nil {
			token, err := tokens.Token(ctx)
			if err != nil {
				return fmt.Errorf("failed to get token: %w", err)
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Text() != "" {
			apiErr.Message = errResp.Text()
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func entityPath(resource, id string) string {
	if id == "" {
		return "/" + resource
	}
	return "/" + resource + "/" + url.PathEscape(id)
}

// unwrap снимает конверт {data: ...}; голый ресурс возвращается как есть
func unwrap(raw json.RawMessage) json.RawMessage {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return raw
	}
	if data, ok := env["data"]; ok && len(data) > 0 && string(data) != "null" {
		return data
	}
	return raw
}

// unwrapEntity снимает вложенность {umzug: {...}} вида {<singular>: {...}}
func unwrapEntity(raw json.RawMessage, resource string) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	if _, hasID := obj[models.FieldID]; hasID {
		return raw
	}
	if _, hasID := obj[models.FieldMongoID]; hasID {
		return raw
	}
	// единственное вложенное значение-объект считается записью
	if len(obj) == 1 {
		for _, inner := range obj {
			if len(inner) > 0 && inner[0] == '{' {
				return inner
			}
		}
	}
	return raw
}

// decodeList принимает массив или объект с массивом под именем ресурса/items
func decodeList(raw json.RawMessage, resource string) ([]*models.Entity, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, err
		}
		found := false
		for _, key := range []string{resource, "items", "results"} {
			if inner, ok := obj[key]; ok {
				trimmed = inner
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("response object has no %q array", resource)
		}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}

	entities := make([]*models.Entity, 0, len(items))
	for i, item := range items {
		e, err := models.DecodeEntity(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if e.ID == "" {
			return nil, fmt.Errorf("item %d has no id", i)
		}
		entities = append(entities, e)
	}
	return entities, nil
}
