package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/sync"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/config"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// backend фейковый бэкенд: REST на gorilla/mux и WebSocket, подтверждающий мутации
type backend struct {
	server    *httptest.Server
	mutations []api.MutationData
	nextID    int
	mu        stdsync.Mutex
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	upgrader := websocket.Upgrader{}

	r := mux.NewRouter()
	r.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != "geheim123" {
			writeJSON(w, http.StatusUnauthorized, `{"success":false,"message":"Ungültige Anmeldedaten"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"token":"tok","expiresIn":3600,"user":{"id":"user-1","email":"`+req.Email+`"}}`)
	}).Methods(http.MethodPost)

	r.HandleFunc("/api/umzuege", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"data":[{"_id":"u1","kunde":"Meier","_version":5},{"_id":"u2","kunde":"Schulz","_version":6}]}`)
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/{collection}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[]`)
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/{collection}", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		data := api.MutationData{Collection: mux.Vars(r)["collection"], Action: "create", Payload: payload}
		entity, _ := json.Marshal(b.confirm(data))
		writeJSON(w, http.StatusCreated, `{"success":true,"data":`+string(entity)+`}`)
	}).Methods(http.MethodPost)

	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var frame api.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Type != api.FrameMutation {
				continue
			}
			var data api.MutationData
			if err := json.Unmarshal(frame.Data, &data); err != nil {
				return
			}
			entity, _ := json.Marshal(b.confirm(data))
			ack, _ := json.Marshal(api.MutationAck{OpID: frame.OpID, Status: api.AckStatusOK, Entity: entity})
			if err := conn.WriteJSON(api.Frame{Type: api.FrameMutationAck, Data: ack}); err != nil {
				return
			}
		}
	})

	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)
	return b
}

// confirm записывает мутацию и возвращает серверную копию записи
func (b *backend) confirm(data api.MutationData) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mutations = append(b.mutations, data)
	b.nextID++
	entity := map[string]any{}
	for k, v := range data.Payload {
		entity[k] = v
	}
	entity["id"] = data.ID
	if data.ID == "" {
		entity["id"] = fmt.Sprintf("srv-%d", b.nextID)
	}
	entity["_version"] = 100 + b.nextID
	return entity
}

func (b *backend) received() []api.MutationData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.MutationData(nil), b.mutations...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func testConfig(t *testing.T, b *backend, dir string) *config.Config {
	t.Helper()
	return &config.Config{
		APIURL:       b.server.URL + "/api",
		WSURL:        "ws" + strings.TrimPrefix(b.server.URL, "http") + "/ws",
		DBPath:       filepath.Join(dir, "umzugsync.db"),
		QueueBackend: config.QueueBackendBolt,
		SQLitePath:   filepath.Join(dir, "queue.sqlite"),
		Dispatch:     config.DispatchWS,
		LogLevel:     "info",
		Collections:  []string{"umzuege", "tasks"},
		AckTimeout:   5 * time.Second,
		Reconnect:    config.ReconnectConfig{BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, MaxAttempts: 1},
		WS:           config.WSConfig{WriteWait: time.Second, PongWait: 10 * time.Second, PingPeriod: 9 * time.Second},
		Queue:        config.QueueConfig{MaxAttempts: 5},
	}
}

func openSession(t *testing.T, cfg *config.Config) *Session {
	t.Helper()
	s, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	return s
}

func idle(s *Session) func() bool {
	return func() bool {
		st := s.Sync().Status()
		return st.Queued == 0 && st.InFlight == 0
	}
}

func TestSession_LoginHydrateStatus(t *testing.T) {
	b := newBackend(t)
	cfg := testConfig(t, b, t.TempDir())
	ctx := context.Background()

	s := openSession(t, cfg)
	defer s.Close(ctx)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Authenticated)
	assert.Empty(t, st.LastFetch)
	assert.Equal(t, models.StateDisconnected, st.Sync.State)

	// без токена соединение не открывается
	require.Error(t, s.Connect(ctx))

	_, err = s.Auth().Login(ctx, "disponent@hummert.de", "falsch123")
	require.Error(t, err)

	data, err := s.Auth().Login(ctx, "disponent@hummert.de", "geheim123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", data.UserID)

	require.NoError(t, s.Hydrate(ctx))
	all := s.Sync().GetAll("umzuege")
	require.Len(t, all, 2)
	assert.Equal(t, "u1", all[0].ID)
	assert.Equal(t, "Meier", all[0].GetString("kunde"))
	assert.Empty(t, s.Sync().GetAll("tasks"))

	st, err = s.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Authenticated)
	assert.Equal(t, "disponent@hummert.de", st.User)
	assert.False(t, st.TokenExpires.IsZero())
	assert.Contains(t, st.LastFetch, "umzuege")
	assert.Contains(t, st.LastFetch, "tasks")

	require.NoError(t, s.Auth().Logout(ctx))
	st, err = s.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Authenticated)
}

func TestSession_ConnectedMutationIsAcknowledged(t *testing.T) {
	b := newBackend(t)
	cfg := testConfig(t, b, t.TempDir())
	ctx := context.Background()

	s := openSession(t, cfg)
	defer s.Close(ctx)

	_, err := s.Auth().Login(ctx, "disponent@hummert.de", "geheim123")
	require.NoError(t, err)
	require.NoError(t, s.Hydrate(ctx))
	require.NoError(t, s.Connect(ctx))
	assert.Equal(t, models.StateConnected, s.Sync().ConnectionState())

	res, err := s.Sync().Mutate(ctx, "umzuege", models.OpUpdate, "u1", map[string]any{"status": "geplant"})
	require.NoError(t, err)
	assert.False(t, res.Queued)

	require.Eventually(t, idle(s), 2*time.Second, 10*time.Millisecond)

	e, ok := s.Sync().Get("umzuege", "u1")
	require.True(t, ok)
	assert.False(t, e.IsOptimistic)
	assert.Equal(t, "geplant", e.GetString("status"))

	got := b.received()
	require.Len(t, got, 1)
	assert.Equal(t, "update", got[0].Action)
	assert.Equal(t, "u1", got[0].ID)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.WaitIdle(waitCtx, 10*time.Millisecond))
}

func TestSession_OfflineMutationSurvivesRestart(t *testing.T) {
	b := newBackend(t)
	dir := t.TempDir()
	cfg := testConfig(t, b, dir)
	ctx := context.Background()

	s := openSession(t, cfg)
	res, err := s.Sync().Mutate(ctx, "umzuege", models.OpCreate, "", map[string]any{"kunde": "Wagner"})
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.True(t, strings.HasPrefix(res.TempID, sync.TempIDPrefix))

	// офлайн WaitIdle не ждет: операции остаются в очереди
	require.NoError(t, s.WaitIdle(ctx, 10*time.Millisecond))
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx), "close is idempotent")

	s = openSession(t, cfg)
	defer s.Close(ctx)

	assert.Equal(t, 1, s.Sync().Status().Queued)
	restored, ok := s.Sync().Get("umzuege", res.TempID)
	require.True(t, ok, "optimistic record restored from snapshot")
	assert.Equal(t, "Wagner", restored.GetString("kunde"))

	_, err = s.Auth().Login(ctx, "disponent@hummert.de", "geheim123")
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))

	require.Eventually(t, idle(s), 2*time.Second, 10*time.Millisecond)

	finalID, ok := s.Sync().ResolveID("umzuege", res.TempID)
	require.True(t, ok)
	assert.Equal(t, "srv-1", finalID)

	e, ok := s.Sync().Get("umzuege", "srv-1")
	require.True(t, ok)
	assert.False(t, e.IsOptimistic)
	assert.Equal(t, "Wagner", e.GetString("kunde"))
	_, ok = s.Sync().Get("umzuege", res.TempID)
	assert.False(t, ok)

	got := b.received()
	require.Len(t, got, 1)
	assert.Empty(t, got[0].ID, "temporary id is not sent")
}

func TestSession_SQLiteQueueBackend(t *testing.T) {
	b := newBackend(t)
	cfg := testConfig(t, b, t.TempDir())
	cfg.QueueBackend = config.QueueBackendSQLite
	ctx := context.Background()

	s := openSession(t, cfg)
	_, err := s.Sync().Mutate(ctx, "tasks", models.OpCreate, "t1", map[string]any{"titel": "Kartons packen"})
	require.NoError(t, err)
	_, err = s.Sync().Mutate(ctx, "tasks", models.OpUpdate, "t1", map[string]any{"erledigt": true})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	s = openSession(t, cfg)
	defer s.Close(ctx)
	assert.Equal(t, 2, s.Sync().Status().Queued)

	_, err = s.Auth().Login(ctx, "disponent@hummert.de", "geheim123")
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))
	require.Eventually(t, idle(s), 2*time.Second, 10*time.Millisecond)

	got := b.received()
	require.Len(t, got, 2)
	assert.Equal(t, "create", got[0].Action)
	assert.Equal(t, "update", got[1].Action)

	e, ok := s.Sync().Get("tasks", "t1")
	require.True(t, ok)
	assert.Equal(t, true, e.Get("erledigt"))
}

func TestSession_RESTDispatch(t *testing.T) {
	b := newBackend(t)
	cfg := testConfig(t, b, t.TempDir())
	cfg.Dispatch = config.DispatchREST
	ctx := context.Background()

	s := openSession(t, cfg)
	defer s.Close(ctx)

	_, err := s.Auth().Login(ctx, "disponent@hummert.de", "geheim123")
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))

	res, err := s.Sync().Mutate(ctx, "umzuege", models.OpCreate, "", map[string]any{"kunde": "Becker"})
	require.NoError(t, err)

	require.Eventually(t, idle(s), 2*time.Second, 10*time.Millisecond)

	finalID, ok := s.Sync().ResolveID("umzuege", res.TempID)
	require.True(t, ok)
	e, ok := s.Sync().Get("umzuege", finalID)
	require.True(t, ok)
	assert.Equal(t, "Becker", e.GetString("kunde"))
	assert.Empty(t, s.Sync().SyncErrors())
}
