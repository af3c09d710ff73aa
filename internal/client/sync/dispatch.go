package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	stdsync "sync"

	httpClient "github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/api"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/pkg/api"
)

// Dispatcher отправляет операцию на сервер.
// nil означает, что операция принята к отправке; подтверждение приходит позже
// через ResultHandler (WebSocket ack или ответ REST).
type Dispatcher interface {
	Dispatch(ctx context.Context, op *models.PendingOperation) error
}

// ResultHandler получатель результатов отправки (Service)
type ResultHandler interface {
	// HandleAck подтверждение или отказ сервера
	HandleAck(ack api.MutationAck)

	// HandleSendFailure временная ошибка: операция возвращается в очередь
	HandleSendFailure(op *models.PendingOperation, err error)
}

// connectionBound реализуют диспетчеры, чьи подтверждения теряются вместе с соединением
type connectionBound interface {
	ConnectionBound() bool
}

// FrameSender часть transport.Manager, нужная диспетчеру
type FrameSender interface {
	SendFrame(frame api.Frame) error
}

// WSDispatcher отправляет мутации кадром "mutation" через WebSocket.
// Подтверждение приходит кадром mutation:ack и доставляется роутером.
type WSDispatcher struct {
	sender FrameSender
}

var _ Dispatcher = (*WSDispatcher)(nil)

// NewWSDispatcher создает диспетчер поверх транспорта
func NewWSDispatcher(sender FrameSender) *WSDispatcher {
	return &WSDispatcher{sender: sender}
}

// Dispatch пишет кадр {"type":"mutation","opId":...,"data":{collection,action,id,payload}}
func (d *WSDispatcher) Dispatch(_ context.Context, op *models.PendingOperation) error {
	data := api.MutationData{
		Collection: op.Collection,
		Action:     string(op.Type),
		Payload:    op.Payload,
	}
	// временный id сервер не знает
	if op.Type != models.OpCreate || op.TempID == "" {
		data.ID = op.EntityID
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal mutation: %w", err)
	}
	return d.sender.SendFrame(api.Frame{Type: api.FrameMutation, OpID: op.OpID, Data: raw})
}

// ConnectionBound ack по WebSocket не переживает разрыв соединения
func (d *WSDispatcher) ConnectionBound() bool {
	return true
}

//go:generate moq -out resource_mock.go . ResourceClient

// ResourceClient CRUD часть REST клиента
type ResourceClient interface {
	Create(ctx context.Context, resource string, payload map[string]any) (*models.Entity, error)
	Update(ctx context.Context, resource, id string, payload map[string]any) (*models.Entity, error)
	Delete(ctx context.Context, resource, id string) error
}

// DefaultRESTBuffer размер очереди REST диспетчера
const DefaultRESTBuffer = 256

// RESTDispatcher выполняет мутации через REST CRUD эндпоинты.
// Запросы идут строго по одному в порядке Dispatch; ответ сервера служит подтверждением.
type RESTDispatcher struct {
	client  ResourceClient
	handler ResultHandler
	logger  *slog.Logger
	jobs    chan *models.PendingOperation
	wg      stdsync.WaitGroup
	mu      stdsync.RWMutex
	started bool
	closed  bool
}

var _ Dispatcher = (*RESTDispatcher)(nil)

// NewRESTDispatcher создает диспетчер; Start запускает обработчик
func NewRESTDispatcher(client ResourceClient, logger *slog.Logger, buffer int) *RESTDispatcher {
	if buffer <= 0 {
		buffer = DefaultRESTBuffer
	}
	return &RESTDispatcher{
		client: client,
		logger: logger,
		jobs:   make(chan *models.PendingOperation, buffer),
	}
}

// SetResultHandler задает получателя результатов (до Start)
func (d *RESTDispatcher) SetResultHandler(h ResultHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

// Start запускает обработку очереди запросов
func (d *RESTDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for op := range d.jobs {
			d.process(ctx, op)
		}
	}()
}

// Dispatch ставит операцию в очередь запросов
func (d *RESTDispatcher) Dispatch(_ context.Context, op *models.PendingOperation) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.jobs <- op.Clone():
		return nil
	default:
		return ErrDispatcherBusy
	}
}

// Close останавливает обработчик и ждет завершения текущего запроса.
// Неотправленные операции возвращаются получателю как временные ошибки.
func (d *RESTDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	started := d.started
	close(d.jobs)
	d.mu.Unlock()

	if !started {
		d.failRemaining(ErrClosed)
		return
	}
	d.wg.Wait()
}

func (d *RESTDispatcher) process(ctx context.Context, op *models.PendingOperation) {
	if ctx.Err() != nil {
		d.fail(op, ctx.Err())
		return
	}

	ack, err := d.execute(ctx, op)
	if err != nil && httpClient.IsTransient(err) {
		d.logger.Warn("REST mutation failed, returning to queue",
			"op_id", op.OpID,
			"collection", op.Collection,
			"error", err)
		d.fail(op, err)
		// следующие операции зависят от порядка - возвращаем их тоже
		d.failRemaining(err)
		return
	}
	if err != nil {
		ack = rejectionAck(op.OpID, err)
	}

	if h := d.resultHandler(); h != nil {
		h.HandleAck(ack)
	}
}

func (d *RESTDispatcher) execute(ctx context.Context, op *models.PendingOperation) (api.MutationAck, error) {
	var (
		entity *models.Entity
		err    error
	)
	switch op.Type {
	case models.OpCreate:
		entity, err = d.client.Create(ctx, op.Collection, op.Payload)
	case models.OpUpdate:
		entity, err = d.client.Update(ctx, op.Collection, op.EntityID, op.Payload)
	case models.OpDelete:
		err = d.client.Delete(ctx, op.Collection, op.EntityID)
	default:
		err = &httpClient.APIError{StatusCode: http.StatusBadRequest, Message: fmt.Sprintf("unknown operation type %q", op.Type)}
	}
	if err != nil {
		return api.MutationAck{}, err
	}

	ack := api.MutationAck{OpID: op.OpID, Status: api.AckStatusOK}
	if entity != nil {
		raw, err := json.Marshal(entity)
		if err != nil {
			return api.MutationAck{}, fmt.Errorf("failed to marshal confirmed entity: %w", err)
		}
		ack.Entity = raw
	}
	return ack, nil
}

func (d *RESTDispatcher) fail(op *models.PendingOperation, err error) {
	if h := d.resultHandler(); h != nil {
		h.HandleSendFailure(op, err)
	}
}

func (d *RESTDispatcher) failRemaining(err error) {
	for {
		select {
		case op, ok := <-d.jobs:
			if !ok {
				return
			}
			d.fail(op, err)
		default:
			return
		}
	}
}

func (d *RESTDispatcher) resultHandler() ResultHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handler
}

// rejectionAck переводит постоянную ошибку REST в отказ с HTTP кодом
func rejectionAck(opID string, err error) api.MutationAck {
	ack := api.MutationAck{OpID: opID, Status: api.AckStatusError, Message: err.Error()}
	var apiErr *httpClient.APIError
	if errors.As(err, &apiErr) {
		ack.Code = apiErr.StatusCode
		ack.Message = apiErr.Message
	}
	return ack
}
