// Package sync is the orchestrator of the client sync layer: it applies
// optimistic mutations to the local cache, dispatches them to the server,
// reconciles acknowledgements and server pushes, and rolls back on failure.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/cache"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/queue"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/router"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/transport"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/crdt"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/validation"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/pkg/api"
)

// TempIDPrefix префикс временных id записей, созданных офлайн
const TempIDPrefix = "tmp-"

// Config параметры оркестратора
type Config struct {
	AckTimeout     time.Duration // AckTimeout сколько ждать подтверждения мутации (0 - без ограничения)
	DrainRetryBase time.Duration // DrainRetryBase задержка повтора прерванного drain
	DrainRetryMax  time.Duration // DrainRetryMax верхняя граница задержки повтора
}

// DefaultConfig возвращает параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		AckTimeout:     30 * time.Second,
		DrainRetryBase: time.Second,
		DrainRetryMax:  30 * time.Second,
	}
}

//go:generate moq -out fetcher_mock.go . Fetcher

// Fetcher загружает коллекцию целиком (REST GET /{resource})
type Fetcher interface {
	List(ctx context.Context, resource string) ([]*models.Entity, error)
}

// Option настраивает Service
type Option func(*Service)

// WithScheduler подменяет планировщик таймеров (ack timeout, повтор drain)
func WithScheduler(s transport.Scheduler) Option {
	return func(svc *Service) {
		svc.schedule = s
	}
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		svc.now = now
	}
}

// WithFetcher подключает REST гидрацию коллекций
func WithFetcher(f Fetcher) Option {
	return func(svc *Service) {
		svc.fetcher = f
	}
}

// WithMetadata сохраняет время последней гидрации
func WithMetadata(m storage.MetadataStorage) Option {
	return func(svc *Service) {
		svc.metadata = m
	}
}

// MutationResult результат Mutate
type MutationResult struct {
	OpID     string // OpID идентификатор операции для сопоставления с ack
	TempID   string // TempID временный id созданной записи (только create без id)
	EntityID string // EntityID id записи в кэше
	Queued   bool   // Queued операция отложена до подключения
}

// Status сводка для индикатора синхронизации
type Status struct {
	State    models.ConnectionState
	Queued   int
	InFlight int
	Errors   int
}

// tracked неразрешенная операция: в очереди или отправлена и ждет ack
type tracked struct {
	op       *models.PendingOperation
	cancel   func() bool
	inFlight bool
}

// Service оркестратор синхронизации.
// Единственный компонент, который пишет в кэш и очередь.
// Вся сверка выполняется под одним мьютексом; подписчики кэша и ошибок
// вызываются под ним и не должны синхронно вызывать Mutate.
type Service struct {
	cache       *cache.Cache
	queue       *queue.Queue
	dispatcher  Dispatcher
	fetcher     Fetcher
	metadata    storage.MetadataStorage
	errs        *ErrorLog
	clock       *crdt.VersionClock
	logger      *slog.Logger
	schedule    transport.Scheduler
	now         func() time.Time
	byOp        map[string]*tracked
	ids         map[string]string
	cancelDrain func() bool
	pending     []*tracked
	buffered    []router.Push
	state       models.ConnectionState
	cfg         Config
	drainFails  int
	mu          stdsync.Mutex
	draining    bool
	closed      bool
}

var (
	_ router.Sink   = (*Service)(nil)
	_ ResultHandler = (*Service)(nil)
)

// New создает оркестратор над уже восстановленными кэшем и очередью
func New(c *cache.Cache, q *queue.Queue, d Dispatcher, logger *slog.Logger, cfg Config, opts ...Option) *Service {
	s := &Service{
		cache:      c,
		queue:      q,
		dispatcher: d,
		errs:       NewErrorLog(),
		clock:      crdt.NewVersionClock(0),
		logger:     logger,
		schedule:   transport.TimerScheduler,
		now:        time.Now,
		byOp:       make(map[string]*tracked),
		ids:        make(map[string]string),
		state:      models.StateDisconnected,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, name := range c.Collections() {
		for _, e := range c.GetAll(name) {
			s.clock.Observe(e.Version)
		}
	}
	for _, op := range q.PeekAll() {
		s.track(&tracked{op: op})
	}

	return s
}

// Mutate применяет оптимистичное изменение и отправляет его (или ставит в очередь офлайн).
// Ошибка возвращается только при некорректном вызове; отказ сервера приходит в SyncErrors.
func (s *Service) Mutate(ctx context.Context, collection string, opType models.OpType, entityID string, payload map[string]any) (MutationResult, error) {
	err := validation.ValidateMutation(validation.MutationRequest{
		Collection: collection,
		Action:     string(opType),
		EntityID:   entityID,
		Payload:    payload,
	})
	if err != nil {
		return MutationResult{}, fmt.Errorf("invalid mutation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return MutationResult{}, ErrClosed
	}
	if final, ok := s.ids[models.EntityKey(collection, entityID)]; ok {
		entityID = final
	}

	op := &models.PendingOperation{
		OpID:       uuid.New().String(),
		Type:       opType,
		Collection: collection,
		EntityID:   entityID,
		Payload:    models.CloneFields(payload),
		EnqueuedAt: s.now().UTC(),
	}
	result := MutationResult{OpID: op.OpID}

	switch opType {
	case models.OpCreate:
		if entityID == "" {
			op.EntityID = TempIDPrefix + uuid.New().String()
			op.TempID = op.EntityID
			result.TempID = op.TempID
		} else if _, exists := s.cache.Get(collection, entityID); exists {
			return MutationResult{}, fmt.Errorf("%w: %s/%s", ErrEntityExists, collection, entityID)
		}
		entity := models.NewEntity(op.EntityID, op.Payload)
		entity.Version = s.clock.Next()
		entity.IsOptimistic = true
		s.cache.Upsert(collection, entity)

	case models.OpUpdate:
		current, ok := s.cache.Get(collection, entityID)
		if !ok {
			return MutationResult{}, fmt.Errorf("%w: %s/%s", ErrEntityNotFound, collection, entityID)
		}
		op.PreImage = current
		s.clock.Observe(current.Version)
		next := current.Merge(op.Payload)
		next.Version = s.clock.Next()
		next.IsOptimistic = true
		s.cache.Upsert(collection, next)

	case models.OpDelete:
		current, ok := s.cache.Get(collection, entityID)
		if !ok {
			return MutationResult{}, fmt.Errorf("%w: %s/%s", ErrEntityNotFound, collection, entityID)
		}
		op.PreImage = current
		s.cache.Delete(collection, entityID)
	}
	result.EntityID = op.EntityID

	t := &tracked{op: op}
	s.track(t)

	if s.state == models.StateConnected && !s.draining && s.queue.Size() == 0 && !s.awaitingIDLocked(t) {
		err := s.dispatchLocked(ctx, t)
		if err == nil {
			s.logger.Debug("Mutation sent",
				"op_id", op.OpID,
				"collection", collection,
				"entity_id", op.EntityID,
				"type", opType)
			return result, nil
		}
		s.logger.Warn("Direct send failed, queueing mutation", "op_id", op.OpID, "error", err)
	}

	if _, err := s.queue.Enqueue(ctx, op); err != nil {
		s.rollbackLocked(ctx, t)
		return MutationResult{}, fmt.Errorf("failed to queue mutation: %w", err)
	}
	result.Queued = true

	s.logger.Debug("Mutation queued",
		"op_id", op.OpID,
		"collection", collection,
		"entity_id", op.EntityID,
		"type", opType,
		"queue_size", s.queue.Size())

	return result, nil
}

// HandleAck сверяет подтверждение или отказ сервера с операцией по opId
func (s *Service) HandleAck(ack api.MutationAck) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	t, ok := s.byOp[ack.OpID]
	if !ok {
		s.logger.Warn("Ack for unknown operation", "op_id", ack.OpID, "status", ack.Status)
		return
	}
	if !t.inFlight {
		// операция вернулась в очередь после разрыва, но сервер успел ответить
		if _, err := s.queue.Dequeue(ctx, t.op.OpID); err != nil {
			s.logger.Error("Failed to remove acknowledged operation from queue", "op_id", t.op.OpID, "error", err)
		}
	}

	if ack.OK() {
		var confirmed *models.Entity
		if len(ack.Entity) > 0 && string(ack.Entity) != "null" {
			e, err := models.DecodeEntity(ack.Entity)
			if err != nil {
				s.logger.Warn("Ack carries malformed entity, keeping optimistic copy", "op_id", ack.OpID, "error", err)
			} else {
				confirmed = e
			}
		}
		s.commitLocked(ctx, t, confirmed)
		s.logger.Debug("Mutation confirmed", "op_id", t.op.OpID, "collection", t.op.Collection)
	} else {
		kind := models.ErrorKindValidation
		if ack.Code == http.StatusConflict {
			kind = models.ErrorKindConflict
		}
		s.rollbackLocked(ctx, t)
		s.reportLocked(t.op, models.SourceMutation, kind, ack.Reason())
		s.logger.Warn("Mutation rejected",
			"op_id", t.op.OpID,
			"collection", t.op.Collection,
			"entity_id", t.op.EntityID,
			"kind", kind,
			"reason", ack.Reason())
	}

	s.kickDrainLocked()
}

// HandleSendFailure возвращает операцию в очередь после временной ошибки отправки
func (s *Service) HandleSendFailure(op *models.PendingOperation, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byOp[op.OpID]
	if !ok || !t.inFlight {
		return
	}
	s.settle(t)
	t.op.Attempts++
	t.op.LastError = err.Error()

	ctx := context.Background()
	if t.op.Attempts > s.queue.MaxAttempts() {
		if qerr := s.queue.MoveToDeadLetter(ctx, t.op); qerr != nil {
			s.logger.Error("Failed to move operation to dead letters", "op_id", op.OpID, "error", qerr)
		} else {
			s.deadLetterLocked(t.op)
			return
		}
	}

	if qerr := s.requeueLocked(ctx, t); qerr != nil {
		s.logger.Error("Failed to requeue operation", "op_id", op.OpID, "error", qerr)
		return
	}
	s.logger.Warn("Send failed, operation queued again", "op_id", op.OpID, "attempts", t.op.Attempts, "error", err)
}

// HandleDeadLetter откатывает операцию, исчерпавшую попытки, и сообщает об ошибке.
// Подключается к очереди через queue.WithDeadLetterHandler.
func (s *Service) HandleDeadLetter(op *models.PendingOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadLetterLocked(op)
}

func (s *Service) deadLetterLocked(op *models.PendingOperation) {
	if t, ok := s.byOp[op.OpID]; ok {
		s.rollbackLocked(context.Background(), t)
	}
	msg := fmt.Sprintf("gave up after %d attempts", op.Attempts)
	if op.LastError != "" {
		msg += ": " + op.LastError
	}
	s.reportLocked(op, models.SourceQueue, models.ErrorKindDeadLetter, msg)
}

// HandlePush применяет push-событие сервера. Во время drain события буферизуются.
func (s *Service) HandlePush(push router.Push) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining {
		s.buffered = append(s.buffered, push)
		return
	}
	s.applyPushLocked(push)
}

// HandleStateChange получает смену состояния соединения от транспорта.
// Переход в connected запускает drain очереди до обработки новых push-событий.
func (s *Service) HandleStateChange(state models.ConnectionState) {
	s.mu.Lock()
	prev := s.state
	if state == prev {
		s.mu.Unlock()
		return
	}
	s.state = state

	if state == models.StateConnected {
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.draining = true
		s.mu.Unlock()
		s.drain(context.Background())
		return
	}

	s.stopDrainRetryLocked()
	if prev == models.StateConnected {
		s.suspendInFlightLocked(context.Background())
	}
	if state == models.StateFailed {
		s.errs.Add(models.SyncError{
			Timestamp:   s.now().UTC(),
			Source:      models.SourceTransport,
			Kind:        models.ErrorKindTransport,
			Message:     "connection failed, reconnect attempts exhausted",
			Recoverable: true,
		})
	}
	s.mu.Unlock()
}

// Flush запускает drain вне переподключения (например, после временной ошибки REST)
func (s *Service) Flush(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.draining || s.state != models.StateConnected {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	s.drain(ctx)
}

// Fetch загружает коллекцию по REST и заменяет ею содержимое кэша.
// Записи с неподтвержденными локальными операциями остаются как есть,
// серверная копия становится их базой для отката.
func (s *Service) Fetch(ctx context.Context, collection string) (int, error) {
	if s.fetcher == nil {
		return 0, fmt.Errorf("fetch %s: no fetcher configured", collection)
	}
	if err := validation.ValidateCollection(collection); err != nil {
		return 0, err
	}

	entities, err := s.fetcher.List(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s: %w", collection, err)
	}

	s.mu.Lock()
	fresh := make([]*models.Entity, 0, len(entities))
	for _, e := range entities {
		if e == nil {
			continue
		}
		s.clock.Observe(e.Version)
		e.IsOptimistic = false
		if pend := s.pendingForLocked(collection, e.ID); len(pend) > 0 {
			// локальное состояние (в том числе удаление) остается видимым до подтверждения
			s.rebaseLocked(ctx, pend[0], e)
			continue
		}
		fresh = append(fresh, e)
	}
	s.cache.ReplaceAll(collection, fresh, func(id string) bool {
		return s.hasPendingLocked(collection, id)
	})
	s.mu.Unlock()

	if s.metadata != nil {
		if err := s.metadata.SaveLastFetch(ctx, collection, s.now()); err != nil {
			s.logger.Warn("Failed to save fetch time", "collection", collection, "error", err)
		}
	}

	s.logger.Info("Collection fetched", "collection", collection, "count", len(entities))
	return len(entities), nil
}

// LastFetch время последней гидрации коллекции (zero, если не было)
func (s *Service) LastFetch(ctx context.Context, collection string) (time.Time, error) {
	if s.metadata == nil {
		return time.Time{}, nil
	}
	return s.metadata.GetLastFetch(ctx, collection)
}

// ResolveID возвращает окончательный id записи, созданной с временным id.
// false, если для id нет сопоставления.
func (s *Service) ResolveID(collection, id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	final, ok := s.ids[models.EntityKey(collection, id)]
	if !ok {
		return id, false
	}
	return final, true
}

// DeadLetters операции, исчерпавшие лимит попыток
func (s *Service) DeadLetters(ctx context.Context) ([]*models.PendingOperation, error) {
	return s.queue.DeadLetters(ctx)
}

// RetryDeadLetter явно повторяет операцию из dead-letter как новую мутацию с новым opId
func (s *Service) RetryDeadLetter(ctx context.Context, opID string) (MutationResult, error) {
	dead, err := s.queue.DeadLetters(ctx)
	if err != nil {
		return MutationResult{}, err
	}

	var op *models.PendingOperation
	for _, d := range dead {
		if d.OpID == opID {
			op = d
			break
		}
	}
	if op == nil {
		return MutationResult{}, fmt.Errorf("%w: %s", queue.ErrNotFound, opID)
	}

	entityID := op.EntityID
	if op.Type == models.OpCreate && op.TempID != "" {
		// запись с временным id откатилась, создаем заново
		entityID = ""
	}

	result, err := s.Mutate(ctx, op.Collection, op.Type, entityID, op.Payload)
	if err != nil {
		return MutationResult{}, fmt.Errorf("failed to retry %s: %w", opID, err)
	}
	if _, err := s.queue.TakeDeadLetter(ctx, opID); err != nil {
		s.logger.Warn("Failed to remove retried dead letter", "op_id", opID, "error", err)
	}

	s.logger.Info("Dead letter retried", "op_id", opID, "new_op_id", result.OpID)
	return result, nil
}

// Subscribe подписывает listener на изменения коллекции
func (s *Service) Subscribe(collection string, listener cache.Listener) (unsubscribe func()) {
	return s.cache.Subscribe(collection, listener)
}

// Get возвращает копию записи
func (s *Service) Get(collection, id string) (*models.Entity, bool) {
	return s.cache.Get(collection, id)
}

// GetAll возвращает копии записей коллекции в порядке вставки
func (s *Service) GetAll(collection string) []*models.Entity {
	return s.cache.GetAll(collection)
}

// ConnectionState текущее состояние соединения, как его видит оркестратор
func (s *Service) ConnectionState() models.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SyncErrors список ошибок синхронизации
func (s *Service) SyncErrors() []models.SyncError {
	return s.errs.List()
}

// ClearSyncErrors очищает список ошибок
func (s *Service) ClearSyncErrors() {
	s.errs.Clear()
}

// SubscribeErrors подписывает callback на новые ошибки синхронизации
func (s *Service) SubscribeErrors(fn func(models.SyncError)) (unsubscribe func()) {
	return s.errs.Subscribe(fn)
}

// Status сводка состояния синхронизации
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.state, Queued: s.queue.Size(), Errors: s.errs.Len()}
	for _, t := range s.pending {
		if t.inFlight {
			st.InFlight++
		}
	}
	return st
}

// Close останавливает таймеры и возвращает отправленные, но не подтвержденные
// операции в очередь, чтобы они пережили перезапуск.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.stopDrainRetryLocked()

	var errs []error
	for _, t := range s.pending {
		if !t.inFlight {
			continue
		}
		s.settle(t)
		if err := s.requeueLocked(ctx, t); err != nil {
			errs = append(errs, fmt.Errorf("failed to requeue %s: %w", t.op.OpID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) drain(ctx context.Context) {
	sent, err := s.queue.Drain(ctx, s.sendQueued)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.draining = false
	if err != nil {
		s.logger.Warn("Queue drain interrupted", "sent", sent, "remaining", s.queue.Size(), "error", err)
		if s.state == models.StateConnected && !s.closed {
			delay := transport.Backoff(s.drainFails, s.cfg.DrainRetryBase, s.cfg.DrainRetryMax)
			s.drainFails++
			s.stopDrainRetryLocked()
			s.cancelDrain = s.schedule(delay, s.retryDrain)
		}
	} else {
		s.drainFails = 0
		if sent > 0 {
			s.logger.Info("Queue drained", "sent", sent, "remaining", s.queue.Size())
		}
	}

	buffered := s.buffered
	s.buffered = nil
	for _, p := range buffered {
		s.applyPushLocked(p)
	}
}

func (s *Service) retryDrain() {
	s.mu.Lock()
	s.cancelDrain = nil
	s.mu.Unlock()

	s.Flush(context.Background())
}

// kickDrainLocked планирует drain, если в очереди остались операции (например, ждавшие id)
func (s *Service) kickDrainLocked() {
	if s.closed || s.draining || s.cancelDrain != nil || s.state != models.StateConnected || s.queue.Size() == 0 {
		return
	}
	s.cancelDrain = s.schedule(0, s.retryDrain)
}

func (s *Service) stopDrainRetryLocked() {
	if s.cancelDrain != nil {
		s.cancelDrain()
		s.cancelDrain = nil
	}
}

// sendQueued функция отправки для queue.Drain
func (s *Service) sendQueued(ctx context.Context, op *models.PendingOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != models.StateConnected {
		return transport.ErrNotConnected
	}

	t, ok := s.byOp[op.OpID]
	if !ok {
		t = &tracked{op: op.Clone()}
		s.track(t)
	}
	if t.inFlight {
		// уже отправлена напрямую, копия в очереди лишняя
		return nil
	}
	if s.awaitingIDLocked(t) {
		return queue.ErrDeferred
	}
	t.op.Attempts = op.Attempts
	if err := s.dispatchLocked(ctx, t); err != nil {
		return err
	}
	// снимаем с очереди сразу: результат REST может прийти раньше, чем Drain удалит операцию
	if _, err := s.queue.Dequeue(ctx, op.OpID); err != nil {
		s.logger.Error("Failed to remove sent operation from queue", "op_id", op.OpID, "error", err)
	}
	return nil
}

func (s *Service) dispatchLocked(ctx context.Context, t *tracked) error {
	t.inFlight = true
	if s.cfg.AckTimeout > 0 {
		opID := t.op.OpID
		t.cancel = s.schedule(s.cfg.AckTimeout, func() { s.expire(opID) })
	}
	if err := s.dispatcher.Dispatch(ctx, t.op.Clone()); err != nil {
		s.settle(t)
		return err
	}
	return nil
}

// expire откатывает операцию без подтверждения. Автоматического повтора нет.
func (s *Service) expire(opID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byOp[opID]
	if !ok || !t.inFlight {
		return
	}
	t.cancel = nil
	s.rollbackLocked(context.Background(), t)
	s.reportLocked(t.op, models.SourceMutation, models.ErrorKindTimeout,
		fmt.Sprintf("no acknowledgement within %s", s.cfg.AckTimeout))
	s.logger.Warn("Mutation timed out", "op_id", opID, "collection", t.op.Collection)
}

// suspendInFlightLocked возвращает в очередь операции, чьи ack потеряны вместе с соединением
func (s *Service) suspendInFlightLocked(ctx context.Context) {
	if cb, ok := s.dispatcher.(connectionBound); !ok || !cb.ConnectionBound() {
		return
	}
	for _, t := range s.pending {
		if !t.inFlight {
			continue
		}
		s.settle(t)
		if err := s.requeueLocked(ctx, t); err != nil {
			s.logger.Error("Failed to requeue in-flight operation", "op_id", t.op.OpID, "error", err)
			continue
		}
		s.logger.Debug("In-flight operation queued again", "op_id", t.op.OpID)
	}
}

// requeueLocked возвращает операцию в очередь перед первой более поздней
// операцией, которая еще ждет отправки, чтобы сохранить порядок Mutate.
func (s *Service) requeueLocked(ctx context.Context, t *tracked) error {
	before := ""
	found := false
	for _, other := range s.pending {
		if other == t {
			found = true
			continue
		}
		if found && !other.inFlight {
			before = other.op.OpID
			break
		}
	}
	return s.queue.RequeueBefore(ctx, t.op, before)
}

// commitLocked заменяет оптимистичную запись подтвержденной
func (s *Service) commitLocked(ctx context.Context, t *tracked, confirmed *models.Entity) {
	op := t.op
	later := s.untrack(t)

	if op.Type == models.OpDelete {
		if len(later) == 0 {
			s.cache.Delete(op.Collection, op.EntityID)
		}
		return
	}

	base := confirmed
	if base == nil {
		base = applyOp(op, op.PreImage)
	}
	if base.ID == "" {
		base.ID = op.EntityID
	}

	if base.ID != op.EntityID {
		s.cache.Delete(op.Collection, op.EntityID)
		s.ids[op.Key()] = base.ID
		s.rewriteEntityIDLocked(ctx, op.Collection, op.EntityID, base.ID)
	}

	s.clock.Observe(base.Version)
	base.IsOptimistic = false
	s.replayLocked(ctx, op.Collection, base.ID, base, later)
}

// rollbackLocked восстанавливает состояние до операции.
// Более поздние операции по той же записи перебазируются на восстановленное состояние;
// если откатывается create, они теряют смысл и отклоняются вместе с ним.
func (s *Service) rollbackLocked(ctx context.Context, t *tracked) {
	op := t.op
	later := s.untrack(t)

	if op.Type == models.OpCreate && op.PreImage == nil {
		s.cache.Delete(op.Collection, op.EntityID)
		for _, l := range later {
			s.untrack(l)
			if _, err := s.queue.Dequeue(ctx, l.op.OpID); err != nil {
				s.logger.Error("Failed to drop dependent operation", "op_id", l.op.OpID, "error", err)
			}
			s.reportLocked(l.op, models.SourceMutation, models.ErrorKindValidation,
				fmt.Sprintf("depends on rejected create %s", op.OpID))
		}
		return
	}

	s.replayLocked(ctx, op.Collection, op.EntityID, op.PreImage, later)
}

// replayLocked делает base видимым состоянием записи и заново применяет поверх
// оставшиеся операции. PreImage каждой из них становится состоянием перед ней.
func (s *Service) replayLocked(ctx context.Context, collection, id string, base *models.Entity, later []*tracked) {
	visible := base.Clone()
	for _, l := range later {
		l.op.PreImage = visible.Clone()
		s.persistLocked(ctx, l)
		visible = applyOp(l.op, visible)
	}

	if visible == nil {
		s.cache.Delete(collection, id)
		return
	}
	visible.ID = id
	visible.IsOptimistic = s.hasPendingLocked(collection, id)
	s.cache.Upsert(collection, visible)
}

// rebaseLocked делает серверную копию базой отката первой ожидающей операции
func (s *Service) rebaseLocked(ctx context.Context, t *tracked, base *models.Entity) {
	if base != nil {
		s.clock.Observe(base.Version)
		base = base.Clone()
		base.IsOptimistic = false
	}
	t.op.PreImage = base
	s.persistLocked(ctx, t)
}

func (s *Service) applyPushLocked(push router.Push) {
	ctx := context.Background()
	id := push.ID
	if id == "" && push.Entity != nil {
		id = push.Entity.ID
	}
	if id == "" || push.Collection == "" {
		s.logger.Debug("Push without entity id", "type", push.Type)
		return
	}

	pend := s.pendingForLocked(push.Collection, id)
	current, _ := s.cache.Get(push.Collection, id)

	switch push.Action {
	case router.ActionDelete:
		var version int64
		if push.Entity != nil {
			version = push.Entity.Version
		}
		switch crdt.ResolveDelete(current, version, len(pend) > 0) {
		case crdt.DecisionApply:
			s.cache.Delete(push.Collection, id)
		case crdt.DecisionRebase:
			s.rebaseLocked(ctx, pend[0], nil)
		default:
			s.logger.Debug("Stale delete ignored", "collection", push.Collection, "id", id)
		}

	case router.ActionPatch:
		if push.Entity == nil {
			return
		}
		if len(pend) > 0 {
			if pre := pend[0].op.PreImage; pre != nil {
				s.rebaseLocked(ctx, pend[0], pre.Merge(push.Entity.Fields))
			}
			return
		}
		if current == nil {
			s.logger.Debug("Patch for unknown entity ignored", "collection", push.Collection, "id", id)
			return
		}
		if crdt.Resolve(current, push.Entity, false) == crdt.DecisionDiscard {
			return
		}
		merged := current.Merge(push.Entity.Fields)
		if push.Entity.Version > 0 {
			merged.Version = push.Entity.Version
		}
		merged.IsOptimistic = false
		s.clock.Observe(merged.Version)
		s.cache.Upsert(push.Collection, merged)

	default:
		if push.Entity == nil {
			return
		}
		incoming := push.Entity.Clone()
		incoming.ID = id
		incoming.IsOptimistic = false

		switch crdt.Resolve(current, incoming, len(pend) > 0) {
		case crdt.DecisionApply:
			s.clock.Observe(incoming.Version)
			s.cache.Upsert(push.Collection, incoming)
		case crdt.DecisionRebase:
			s.rebaseLocked(ctx, pend[0], incoming)
		default:
			s.logger.Debug("Stale push ignored",
				"collection", push.Collection,
				"id", id,
				"version", incoming.Version)
		}
	}
}

// rewriteEntityIDLocked переводит ожидающие операции с временного id на серверный
func (s *Service) rewriteEntityIDLocked(ctx context.Context, collection, oldID, newID string) {
	for _, t := range s.pending {
		if t.op.Collection != collection || t.op.EntityID != oldID {
			continue
		}
		t.op.EntityID = newID
		if t.op.PreImage != nil && t.op.PreImage.ID == oldID {
			t.op.PreImage.ID = newID
		}
	}
	n, err := s.queue.UpdateEntityID(ctx, collection, oldID, newID)
	if err != nil {
		s.logger.Error("Failed to rewrite queued operations", "collection", collection, "temp_id", oldID, "error", err)
		return
	}
	s.logger.Debug("Temporary id resolved", "collection", collection, "temp_id", oldID, "id", newID, "rewritten", n)
}

func (s *Service) persistLocked(ctx context.Context, t *tracked) {
	if t.inFlight {
		return
	}
	if err := s.queue.Update(ctx, t.op); err != nil && !errors.Is(err, queue.ErrNotFound) {
		s.logger.Error("Failed to update queued operation", "op_id", t.op.OpID, "error", err)
	}
}

func (s *Service) reportLocked(op *models.PendingOperation, source string, kind models.ErrorKind, msg string) {
	s.errs.Add(models.SyncError{
		Timestamp:   s.now().UTC(),
		Source:      source,
		Kind:        kind,
		Message:     msg,
		OpID:        op.OpID,
		Collection:  op.Collection,
		EntityID:    op.EntityID,
		Recoverable: kind.Recoverable(),
	})
}

// awaitingIDLocked: операция ссылается на временный id, чей create еще не подтвержден
func (s *Service) awaitingIDLocked(t *tracked) bool {
	for _, other := range s.pending {
		if other == t {
			return false
		}
		if other.inFlight && other.op.Type == models.OpCreate && other.op.TempID != "" &&
			other.op.Collection == t.op.Collection && other.op.EntityID == t.op.EntityID {
			return true
		}
	}
	return false
}

func (s *Service) hasPendingLocked(collection, id string) bool {
	key := models.EntityKey(collection, id)
	for _, t := range s.pending {
		if t.op.Key() == key {
			return true
		}
	}
	return false
}

func (s *Service) pendingForLocked(collection, id string) []*tracked {
	key := models.EntityKey(collection, id)
	var out []*tracked
	for _, t := range s.pending {
		if t.op.Key() == key {
			out = append(out, t)
		}
	}
	return out
}

func (s *Service) track(t *tracked) {
	s.pending = append(s.pending, t)
	s.byOp[t.op.OpID] = t
}

// untrack снимает операцию с учета и возвращает следующие за ней операции по той же записи
func (s *Service) untrack(t *tracked) []*tracked {
	s.settle(t)
	delete(s.byOp, t.op.OpID)

	key := t.op.Key()
	idx := -1
	for i, p := range s.pending {
		if p == t {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	s.pending = append(s.pending[:idx:idx], s.pending[idx+1:]...)

	var later []*tracked
	for _, p := range s.pending[idx:] {
		if p.op.Key() == key {
			later = append(later, p)
		}
	}
	return later
}

// settle отменяет таймер ack; операция больше не считается отправленной
func (s *Service) settle(t *tracked) {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.inFlight = false
}

// applyOp применяет операцию к состоянию записи (nil - записи нет)
func applyOp(op *models.PendingOperation, e *models.Entity) *models.Entity {
	switch op.Type {
	case models.OpCreate:
		created := models.NewEntity(op.EntityID, op.Payload)
		if e != nil {
			created.Version = e.Version
		}
		return created
	case models.OpUpdate:
		if e == nil {
			return nil
		}
		return e.Merge(op.Payload)
	default:
		return nil
	}
}
