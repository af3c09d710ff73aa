package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/pkg/api"
)

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

// newTestServer поднимает REST бэкенд на gorilla/mux
func newTestServer(t *testing.T, register func(r *mux.Router)) *Client {
	t.Helper()
	r := mux.NewRouter()
	register(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	client := NewClient(server.URL + "/")
	client.SetTokenSource(staticTokens("tok"))
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:5000/api/")

	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:5000/api", client.baseURL)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestClient_List_ToleratesEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bare array", body: `[{"_id":"u1","kunde":"Meier"},{"_id":"u2","kunde":"Schulz"}]`},
		{name: "data envelope", body: `{"success":true,"data":[{"id":"u1","kunde":"Meier"},{"id":"u2","kunde":"Schulz"}]}`},
		{name: "named array", body: `{"success":true,"data":{"umzuege":[{"id":"u1","kunde":"Meier"},{"id":"u2","kunde":"Schulz"}],"total":2}}`},
		{name: "items", body: `{"items":[{"id":"u1","kunde":"Meier"},{"id":"u2","kunde":"Schulz"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(r *mux.Router) {
				r.HandleFunc("/umzuege", func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
					writeJSON(w, http.StatusOK, tt.body)
				}).Methods(http.MethodGet)
			})

			items, err := client.List(context.Background(), "umzuege")
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, "u1", items[0].ID)
			assert.Equal(t, "Meier", items[0].GetString("kunde"))
			assert.Equal(t, "u2", items[1].ID)
		})
	}
}

func TestClient_List_BadShape(t *testing.T) {
	client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/tasks", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"data":{"count":3}}`)
		})
	})

	_, err := client.List(context.Background(), "tasks")
	assert.Error(t, err)
}

func TestClient_CRUD(t *testing.T) {
	client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/tasks", func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "Kartons", payload["title"])
			writeJSON(w, http.StatusCreated, `{"success":true,"data":{"task":{"_id":"srv-1","title":"Kartons","_version":1}}}`)
		}).Methods(http.MethodPost)
		r.HandleFunc("/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "srv-1", mux.Vars(r)["id"])
			writeJSON(w, http.StatusOK, `{"id":"srv-1","title":"Kartons","done":true,"_version":2}`)
		}).Methods(http.MethodPut)
		r.HandleFunc("/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"data":{"id":"srv-1","title":"Kartons"}}`)
		}).Methods(http.MethodGet)
		r.HandleFunc("/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}).Methods(http.MethodDelete)
	})
	ctx := context.Background()

	created, err := client.Create(ctx, "tasks", map[string]any{"title": "Kartons"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", created.ID)
	assert.Equal(t, int64(1), created.Version)

	updated, err := client.Update(ctx, "tasks", "srv-1", map[string]any{"done": true})
	require.NoError(t, err)
	assert.Equal(t, true, updated.Get("done"))
	assert.Equal(t, int64(2), updated.Version)

	got, err := client.Get(ctx, "tasks", "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "Kartons", got.GetString("title"))

	require.NoError(t, client.Delete(ctx, "tasks", "srv-1"))
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		body      string
		wantMsg   string
		wantKind  models.ErrorKind
		status    int
		transient bool
	}{
		{status: http.StatusBadRequest, body: `{"success":false,"message":"Datum fehlt"}`, wantMsg: "Datum fehlt", wantKind: models.ErrorKindValidation},
		{status: http.StatusUnprocessableEntity, body: `{"error":"invalid status"}`, wantMsg: "invalid status", wantKind: models.ErrorKindValidation},
		{status: http.StatusConflict, body: `{"message":"version mismatch"}`, wantMsg: "version mismatch", wantKind: models.ErrorKindConflict},
		{status: http.StatusNotFound, body: ``, wantMsg: "Not Found", wantKind: models.ErrorKindValidation},
		{status: http.StatusInternalServerError, body: `oops`, wantMsg: "oops", wantKind: models.ErrorKindTransport, transient: true},
		{status: http.StatusServiceUnavailable, body: ``, wantMsg: "Service Unavailable", wantKind: models.ErrorKindTransport, transient: true},
		{status: http.StatusUnauthorized, body: `{"message":"jwt expired"}`, wantMsg: "jwt expired", wantKind: models.ErrorKindTransport, transient: true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestServer(t, func(r *mux.Router) {
				r.HandleFunc("/umzuege/{id}", func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, tt.status, tt.body)
				})
			})

			_, err := client.Update(context.Background(), "umzuege", "u1", map[string]any{"status": "x"})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.wantKind, apiErr.Kind())
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestIsTransient_NetworkError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_, err := client.List(context.Background(), "tasks")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(nil))
}

func TestClient_LoginRefresh(t *testing.T) {
	client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			// вход не требует токена
			assert.Empty(t, r.Header.Get("Authorization"))
			var req api.LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Password != "sehrgeheim" {
				writeJSON(w, http.StatusUnauthorized, `{"message":"Ungültige Anmeldedaten"}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"success":true,"token":"access-1","refreshToken":"refresh-1","user":{"id":"usr-1","email":"a@b.de"}}`)
		}).Methods(http.MethodPost)
		r.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
			var req api.RefreshRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "refresh-1", req.RefreshToken)
			writeJSON(w, http.StatusOK, `{"accessToken":"access-2","expiresIn":900}`)
		}).Methods(http.MethodPost)
	})
	ctx := context.Background()

	resp, err := client.Login(ctx, api.LoginRequest{Email: "a@b.de", Password: "sehrgeheim"})
	require.NoError(t, err)
	assert.Equal(t, "access-1", resp.Bearer())
	assert.Equal(t, "refresh-1", resp.RefreshToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, "usr-1", resp.User.ID)

	_, err = client.Login(ctx, api.LoginRequest{Email: "a@b.de", Password: "falsch"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ungültige Anmeldedaten")

	refreshed, err := client.Refresh(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", refreshed.Bearer())
	assert.Equal(t, int64(900), refreshed.ExpiresIn)
}

func TestClient_ContextCancellation(t *testing.T) {
	client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/tasks", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.List(ctx, "tasks")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
