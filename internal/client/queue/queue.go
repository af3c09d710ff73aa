// Package queue implements the durable, ordered queue of pending mutations.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

// DefaultMaxAttempts число неудачных попыток, после которого операция уходит в dead-letter
const DefaultMaxAttempts = 10

// SendFunc отправляет операцию. nil означает, что операция обработана
// и может быть удалена из очереди.
type SendFunc func(ctx context.Context, op *models.PendingOperation) error

// Queue упорядоченная очередь операций, ожидающих отправки.
// Состояние зеркалируется в памяти, источником правды служит OperationStorage.
type Queue struct {
	store        storage.OperationStorage
	logger       *slog.Logger
	onDeadLetter func(op *models.PendingOperation)
	now          func() time.Time
	seen         map[string]struct{}
	ops          []*models.PendingOperation
	maxAttempts  int
	mu           sync.Mutex
	drainMu      sync.Mutex
}

// Option настраивает Queue
type Option func(*Queue)

// WithMaxAttempts задает лимит попыток
func WithMaxAttempts(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

// WithDeadLetterHandler регистрирует callback для операций, ушедших в dead-letter.
// Вызывается вне блокировок очереди.
func WithDeadLetterHandler(fn func(op *models.PendingOperation)) Option {
	return func(q *Queue) {
		q.onDeadLetter = fn
	}
}

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// New создает очередь и восстанавливает ее состояние из хранилища
func New(ctx context.Context, store storage.OperationStorage, logger *slog.Logger, opts ...Option) (*Queue, error) {
	q := &Queue{
		store:       store,
		logger:      logger,
		now:         time.Now,
		seen:        make(map[string]struct{}),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(q)
	}

	ops, err := store.ListOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore queue: %w", err)
	}
	dead, err := store.ListDeadLetters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore dead letters: %w", err)
	}

	q.ops = ops
	for _, op := range ops {
		q.seen[op.OpID] = struct{}{}
	}
	for _, op := range dead {
		q.seen[op.OpID] = struct{}{}
	}

	if len(ops) > 0 {
		logger.Info("Restored pending operations", "count", len(ops), "dead_letters", len(dead))
	}

	return q, nil
}

// Enqueue добавляет операцию в конец очереди и возвращает ее opId.
// Пустой opId генерируется; повторное использование opId отклоняется.
func (q *Queue) Enqueue(ctx context.Context, op *models.PendingOperation) (string, error) {
	if op == nil || !op.Type.Valid() || op.Collection == "" {
		return "", ErrInvalidOperation
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	stored := op.Clone()
	if stored.OpID == "" {
		stored.OpID = uuid.New().String()
	}
	if _, used := q.seen[stored.OpID]; used {
		return "", fmt.Errorf("%w: %s", ErrDuplicateOp, stored.OpID)
	}
	if stored.EnqueuedAt.IsZero() {
		stored.EnqueuedAt = q.now().UTC()
	}

	seq, err := q.store.AppendOperation(ctx, stored)
	if err != nil {
		return "", fmt.Errorf("failed to persist operation: %w", err)
	}
	stored.Seq = seq

	q.seen[stored.OpID] = struct{}{}
	q.ops = append(q.ops, stored)

	q.logger.Debug("Operation enqueued",
		"op_id", stored.OpID,
		"collection", stored.Collection,
		"entity_id", stored.EntityID,
		"type", stored.Type,
		"size", len(q.ops))

	return stored.OpID, nil
}

// RequeueBefore возвращает в очередь уже выданную операцию (например, in-flight при закрытии)
// перед beforeOpID. Пустой или отсутствующий beforeOpID означает хвост очереди.
// В отличие от Enqueue допускает известный opId, но не дубликат в самой очереди.
func (q *Queue) RequeueBefore(ctx context.Context, op *models.PendingOperation, beforeOpID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexOf(op.OpID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateOp, op.OpID)
	}

	pos := len(q.ops)
	if beforeOpID != "" {
		if i := q.indexOf(beforeOpID); i >= 0 {
			pos = i
		}
	}
	head := q.ops[:pos:pos]
	tail := append([]*models.PendingOperation(nil), q.ops[pos:]...)

	// хранилище отдает операции по sequence, поэтому хвост перезаписывается после вставки
	for _, t := range tail {
		if err := q.store.DeleteOperation(ctx, t.OpID); err != nil {
			return fmt.Errorf("failed to reorder queue: %w", err)
		}
	}

	stored := op.Clone()
	seq, err := q.store.AppendOperation(ctx, stored)
	if err != nil {
		err = fmt.Errorf("failed to persist operation: %w", err)
	} else {
		stored.Seq = seq
		q.seen[stored.OpID] = struct{}{}
		head = append(head, stored)
	}

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	for _, t := range tail {
		seq, err := q.store.AppendOperation(ctx, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to persist %s: %w", t.OpID, err))
		} else {
			t.Seq = seq
		}
		head = append(head, t)
	}
	q.ops = head
	return errors.Join(errs...)
}

// Dequeue удаляет операцию по opId. Возвращает удаленную операцию или nil, если ее не было.
func (q *Queue) Dequeue(ctx context.Context, opID string) (*models.PendingOperation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(opID)
	if i < 0 {
		return nil, nil
	}
	if err := q.store.DeleteOperation(ctx, opID); err != nil {
		return nil, fmt.Errorf("failed to delete operation: %w", err)
	}
	op := q.ops[i]
	q.ops = append(q.ops[:i:i], q.ops[i+1:]...)
	return op, nil
}

// Drain отправляет операции строго по порядку.
// Операция удаляется только после успешной отправки; на первой ошибке обход
// останавливается, а у операции увеличивается счетчик попыток.
// ErrDeferred от send останавливает обход без учета попытки.
// Возвращает число отправленных операций.
func (q *Queue) Drain(ctx context.Context, send SendFunc) (int, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	sent := 0
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		q.mu.Lock()
		if len(q.ops) == 0 {
			q.mu.Unlock()
			return sent, nil
		}
		head := q.ops[0].Clone()
		q.mu.Unlock()

		sendErr := send(ctx, head)
		if sendErr == nil {
			if _, err := q.Dequeue(ctx, head.OpID); err != nil {
				return sent, err
			}
			sent++
			continue
		}
		if errors.Is(sendErr, ErrDeferred) {
			// операция ждет другую, попытка не засчитывается
			return sent, nil
		}

		dead, err := q.recordFailure(ctx, head.OpID, sendErr)
		if err != nil {
			return sent, errors.Join(sendErr, err)
		}
		if dead != nil {
			q.logger.Warn("Operation moved to dead letters",
				"op_id", dead.OpID,
				"collection", dead.Collection,
				"attempts", dead.Attempts,
				"error", sendErr)
			if q.onDeadLetter != nil {
				q.onDeadLetter(dead.Clone())
			}
		}
		return sent, fmt.Errorf("drain stopped at %s: %w", head.OpID, sendErr)
	}
}

// recordFailure увеличивает счетчик попыток; при превышении лимита переносит операцию в dead-letter
func (q *Queue) recordFailure(ctx context.Context, opID string, cause error) (*models.PendingOperation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(opID)
	if i < 0 {
		// операцию удалили во время отправки
		return nil, nil
	}

	op := q.ops[i]
	op.Attempts++
	op.LastError = cause.Error()

	if op.Attempts > q.maxAttempts {
		if err := q.store.SaveDeadLetter(ctx, op); err != nil {
			return nil, fmt.Errorf("failed to save dead letter: %w", err)
		}
		q.ops = append(q.ops[:i:i], q.ops[i+1:]...)
		return op, nil
	}

	if err := q.store.UpdateOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to update operation: %w", err)
	}
	return nil, nil
}

// MaxAttempts лимит неудачных попыток, после которого операция уходит в dead-letter
func (q *Queue) MaxAttempts() int {
	return q.maxAttempts
}

// MoveToDeadLetter переносит операцию в dead-letter в обход Drain
// (ошибка пришла асинхронно, например от REST-диспетчера).
// Обработчик WithDeadLetterHandler не вызывается: об откате сообщает вызывающий.
func (q *Queue) MoveToDeadLetter(ctx context.Context, op *models.PendingOperation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	stored := op.Clone()
	if err := q.store.SaveDeadLetter(ctx, stored); err != nil {
		return fmt.Errorf("failed to save dead letter: %w", err)
	}
	// SaveDeadLetter сам убирает операцию из хранимой очереди
	if i := q.indexOf(op.OpID); i >= 0 {
		q.ops = append(q.ops[:i:i], q.ops[i+1:]...)
	}
	q.seen[op.OpID] = struct{}{}

	q.logger.Warn("Operation moved to dead letters",
		"op_id", op.OpID,
		"collection", op.Collection,
		"attempts", op.Attempts,
		"error", op.LastError)
	return nil
}

// Size число операций в очереди
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// PeekAll возвращает копии всех операций в порядке очереди
func (q *Queue) PeekAll() []*models.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*models.PendingOperation, len(q.ops))
	for i, op := range q.ops {
		out[i] = op.Clone()
	}
	return out
}

// Update перезаписывает операцию в очереди, сохраняя ее позицию
func (q *Queue) Update(ctx context.Context, op *models.PendingOperation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(op.OpID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, op.OpID)
	}

	stored := op.Clone()
	stored.Seq = q.ops[i].Seq
	if err := q.store.UpdateOperation(ctx, stored); err != nil {
		return fmt.Errorf("failed to update operation: %w", err)
	}
	q.ops[i] = stored
	return nil
}

// UpdateEntityID переписывает операции, ссылающиеся на временный id, на id сервера.
// Возвращает число переписанных операций.
func (q *Queue) UpdateEntityID(ctx context.Context, collection, oldID, newID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rewritten := 0
	for _, op := range q.ops {
		if op.Collection != collection || op.EntityID != oldID {
			continue
		}
		op.EntityID = newID
		if op.PreImage != nil && op.PreImage.ID == oldID {
			op.PreImage.ID = newID
		}
		if err := q.store.UpdateOperation(ctx, op); err != nil {
			return rewritten, fmt.Errorf("failed to rewrite operation %s: %w", op.OpID, err)
		}
		rewritten++
	}
	return rewritten, nil
}

// DeadLetters возвращает операции, исчерпавшие лимит попыток
func (q *Queue) DeadLetters(ctx context.Context) ([]*models.PendingOperation, error) {
	ops, err := q.store.ListDeadLetters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return ops, nil
}

// TakeDeadLetter удаляет операцию из dead-letter и возвращает ее для явного повтора
func (q *Queue) TakeDeadLetter(ctx context.Context, opID string) (*models.PendingOperation, error) {
	ops, err := q.store.ListDeadLetters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	for _, op := range ops {
		if op.OpID != opID {
			continue
		}
		if err := q.store.DeleteDeadLetter(ctx, opID); err != nil {
			return nil, fmt.Errorf("failed to delete dead letter: %w", err)
		}
		return op, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, opID)
}

func (q *Queue) indexOf(opID string) int {
	for i, op := range q.ops {
		if op.OpID == opID {
			return i
		}
	}
	return -1
}
