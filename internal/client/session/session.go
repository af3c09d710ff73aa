// Package session assembles the client sync layer: storage, cache, queue,
// transport, router and orchestrator, wired into one injectable instance.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	httpClient "github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/api"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/auth"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/cache"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/queue"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/router"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage/boltdb"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage/sqlite"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/sync"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/transport"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/config"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

// Session одна сессия синхронизации. Создается через New, закрывается Close.
type Session struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *boltdb.Storage
	queueDB   *sqlite.Storage
	cache     *cache.Cache
	queue     *queue.Queue
	api       *httpClient.Client
	auth      *auth.Service
	manager   *transport.Manager
	router    *router.Router
	sync      *sync.Service
	rest      *sync.RESTDispatcher
	stop      context.CancelFunc
	closeOnce stdsync.Once
	closeErr  error
}

type options struct {
	dialer transport.Dialer
}

// Option настраивает сборку сессии
type Option func(*options)

// WithDialer подменяет WebSocket dialer
func WithDialer(d transport.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// Status сводка для команды status
type Status struct {
	TokenExpires  time.Time
	LastFetch     map[string]time.Time
	User          string
	Sync          sync.Status
	DeadLetters   int
	Authenticated bool
}

// New открывает хранилища, восстанавливает кэш и очередь и связывает компоненты.
// Соединение не открывается: для этого есть Connect.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Session, error) {
	o := options{dialer: transport.NewWebsocketDialer(cfg.Transport().DialTimeout)}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Session{cfg: cfg, logger: logger, store: store, cache: cache.New()}

	var ops storage.OperationStorage = store
	if cfg.QueueBackend == config.QueueBackendSQLite {
		s.queueDB, err = sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to open queue database: %w", err)
		}
		ops = s.queueDB
	}

	if err := s.restoreCache(ctx); err != nil {
		s.closeStores()
		return nil, err
	}

	s.queue, err = queue.New(ctx, ops, logger,
		queue.WithMaxAttempts(cfg.Queue.MaxAttempts),
		queue.WithDeadLetterHandler(func(op *models.PendingOperation) {
			s.sync.HandleDeadLetter(op)
		}),
	)
	if err != nil {
		s.closeStores()
		return nil, fmt.Errorf("failed to restore queue: %w", err)
	}

	s.api = httpClient.NewClient(cfg.APIURL)
	s.auth = auth.NewService(s.api, store, logger)
	s.api.SetTokenSource(s.auth)

	s.manager = transport.NewManager(cfg.Transport(), o.dialer, logger, transport.WithTokenSource(s.auth))

	var dispatcher sync.Dispatcher
	if cfg.Dispatch == config.DispatchREST {
		s.rest = sync.NewRESTDispatcher(s.api, logger, sync.DefaultRESTBuffer)
		dispatcher = s.rest
	} else {
		dispatcher = sync.NewWSDispatcher(s.manager)
	}

	s.sync = sync.New(s.cache, s.queue, dispatcher, logger, cfg.Sync(),
		sync.WithFetcher(s.api),
		sync.WithMetadata(store),
	)
	s.router = router.New(s.sync, logger)

	s.manager.SetFrameHandler(s.router.Route)
	s.manager.SetStateHandler(s.sync.HandleStateChange)

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = stop
	if s.rest != nil {
		s.rest.SetResultHandler(s.sync)
		s.rest.Start(runCtx)
	}

	logger.Debug("Session ready",
		"dispatch", cfg.Dispatch,
		"queue_backend", cfg.QueueBackend,
		"queued", s.queue.Size(),
		"collections", len(s.cache.Collections()))

	return s, nil
}

// Connect открывает WebSocket с текущим токеном. Переподключения берут токен сами.
func (s *Session) Connect(ctx context.Context) error {
	token, err := s.auth.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get credential: %w", err)
	}
	return s.manager.Connect(ctx, token)
}

// Disconnect закрывает соединение; очередь и кэш остаются
func (s *Session) Disconnect() {
	s.manager.Disconnect()
}

// Hydrate загружает по REST все настроенные коллекции
func (s *Session) Hydrate(ctx context.Context) error {
	var errs []error
	for _, name := range s.cfg.Collections {
		if _, err := s.sync.Fetch(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WaitIdle ждет, пока отправленные мутации не будут подтверждены
// (или пока соединение не пропадет, тогда операции ждут в очереди).
func (s *Session) WaitIdle(ctx context.Context, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		st := s.sync.Status()
		if st.InFlight == 0 && (st.Queued == 0 || st.State != models.StateConnected) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Status собирает сводку по авторизации, очереди и гидрации
func (s *Session) Status(ctx context.Context) (Status, error) {
	st := Status{Sync: s.sync.Status(), LastFetch: make(map[string]time.Time)}

	data, err := s.auth.Current(ctx)
	switch {
	case err == nil:
		st.Authenticated = true
		st.User = data.Username
		st.TokenExpires = data.Expiry()
	case errors.Is(err, auth.ErrNotAuthenticated):
	default:
		return Status{}, err
	}

	dead, err := s.sync.DeadLetters(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to list dead letters: %w", err)
	}
	st.DeadLetters = len(dead)

	for _, name := range s.cfg.Collections {
		at, err := s.sync.LastFetch(ctx, name)
		if err != nil {
			return Status{}, fmt.Errorf("failed to read fetch time: %w", err)
		}
		if !at.IsZero() {
			st.LastFetch[name] = at
		}
	}
	return st, nil
}

// Sync оркестратор: Mutate, Subscribe, Get, GetAll, SyncErrors
func (s *Session) Sync() *sync.Service {
	return s.sync
}

// Auth провайдер токенов: Login, Logout
func (s *Session) Auth() *auth.Service {
	return s.auth
}

// Router подписки на типы push-событий (notification:* и т.п.)
func (s *Session) Router() *router.Router {
	return s.router
}

// Transport подписки на события соединения (ws:*)
func (s *Session) Transport() *transport.Manager {
	return s.manager
}

// Close закрывает соединение, возвращает неподтвержденные операции в очередь,
// сохраняет снимок кэша и закрывает хранилища. Повторный вызов ничего не делает.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		var errs []error

		s.manager.Disconnect()
		if err := s.sync.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		if s.rest != nil {
			s.rest.Close()
		}
		s.stop()

		if err := s.saveSnapshot(ctx); err != nil {
			errs = append(errs, err)
		}
		s.closeStores()

		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *Session) restoreCache(ctx context.Context) error {
	snapshot, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cache snapshot: %w", err)
	}
	for name, entities := range snapshot {
		s.cache.ReplaceAll(name, entities, nil)
	}
	return nil
}

func (s *Session) saveSnapshot(ctx context.Context) error {
	for name, entities := range s.cache.Snapshot() {
		if err := s.store.SaveSnapshot(ctx, name, entities); err != nil {
			return fmt.Errorf("failed to save %s snapshot: %w", name, err)
		}
	}
	return nil
}

func (s *Session) closeStores() {
	if s.queueDB != nil {
		if err := s.queueDB.Close(); err != nil {
			s.logger.Error("Failed to close queue database", "error", err)
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close database", "error", err)
	}
}
