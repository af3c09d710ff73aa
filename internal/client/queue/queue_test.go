package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage/boltdb"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBoltStore(t *testing.T, dir string) *boltdb.Storage {
	t.Helper()
	store, err := boltdb.New(context.Background(), filepath.Join(dir, "queue.db"))
	require.NoError(t, err)
	return store
}

func newTestQueue(t *testing.T, opts ...Option) *Queue {
	t.Helper()
	store := newBoltStore(t, t.TempDir())
	t.Cleanup(func() { _ = store.Close() })

	q, err := New(context.Background(), store, testLogger(), opts...)
	require.NoError(t, err)
	return q
}

func updateOp(collection, id string, payload map[string]any) *models.PendingOperation {
	return &models.PendingOperation{
		Type:       models.OpUpdate,
		Collection: collection,
		EntityID:   id,
		Payload:    payload,
	}
}

func TestEnqueue_GeneratesAndRejectsReusedOpID(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	opID, err := q.Enqueue(ctx, updateOp("tasks", "t1", map[string]any{"done": true}))
	require.NoError(t, err)
	assert.NotEmpty(t, opID)

	explicit := updateOp("tasks", "t2", nil)
	explicit.OpID = "op-fixed"
	got, err := q.Enqueue(ctx, explicit)
	require.NoError(t, err)
	assert.Equal(t, "op-fixed", got)

	// повторное использование opId отклоняется
	_, err = q.Enqueue(ctx, explicit)
	assert.ErrorIs(t, err, ErrDuplicateOp)

	// даже после удаления из очереди
	removed, err := q.Dequeue(ctx, "op-fixed")
	require.NoError(t, err)
	require.NotNil(t, removed)
	_, err = q.Enqueue(ctx, explicit)
	assert.ErrorIs(t, err, ErrDuplicateOp)

	assert.Equal(t, 1, q.Size())
}

func TestEnqueue_Invalid(t *testing.T) {
	q := newTestQueue(t)

	tests := []struct {
		op   *models.PendingOperation
		name string
	}{
		{name: "nil", op: nil},
		{name: "unknown type", op: &models.PendingOperation{Type: "upsert", Collection: "tasks"}},
		{name: "no collection", op: &models.PendingOperation{Type: models.OpDelete, EntityID: "t1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.Enqueue(context.Background(), tt.op)
			assert.ErrorIs(t, err, ErrInvalidOperation)
		})
	}
}

func TestDrain_PreservesEnqueueOrder(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	var want []string
	for i, col := range []string{"tasks", "umzuege", "tasks", "notifications", "umzuege"} {
		id, err := q.Enqueue(ctx, updateOp(col, "e1", map[string]any{"n": i}))
		require.NoError(t, err)
		want = append(want, id)
	}

	var sent []string
	n, err := q.Drain(ctx, func(ctx context.Context, op *models.PendingOperation) error {
		sent = append(sent, op.OpID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, want, sent)
	assert.Equal(t, 0, q.Size())
}

func TestDrain_StopsOnFirstFailure(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := q.Enqueue(ctx, updateOp("tasks", "t1", map[string]any{"n": i}))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	errOffline := errors.New("offline")
	calls := 0
	n, err := q.Drain(ctx, func(ctx context.Context, op *models.PendingOperation) error {
		calls++
		if op.OpID == ids[1] {
			return errOffline
		}
		return nil
	})
	require.ErrorIs(t, err, errOffline)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, calls)

	pending := q.PeekAll()
	require.Len(t, pending, 2)
	assert.Equal(t, ids[1], pending[0].OpID)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "offline", pending[0].LastError)
	assert.Equal(t, ids[2], pending[1].OpID)
	assert.Equal(t, 0, pending[1].Attempts)
}

func TestDrain_DeadLetterAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()

	var dead []*models.PendingOperation
	q := newTestQueue(t,
		WithMaxAttempts(2),
		WithDeadLetterHandler(func(op *models.PendingOperation) {
			dead = append(dead, op)
		}),
	)

	poison, err := q.Enqueue(ctx, updateOp("tasks", "t1", map[string]any{"bad": true}))
	require.NoError(t, err)
	healthy, err := q.Enqueue(ctx, updateOp("tasks", "t2", map[string]any{"ok": true}))
	require.NoError(t, err)

	failing := func(ctx context.Context, op *models.PendingOperation) error {
		if op.OpID == poison {
			return errors.New("server exploded")
		}
		return nil
	}

	// две попытки в пределах лимита
	for i := 0; i < 2; i++ {
		_, err := q.Drain(ctx, failing)
		require.Error(t, err)
		assert.Empty(t, dead)
	}

	// третья превышает лимит
	_, err = q.Drain(ctx, failing)
	require.Error(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, poison, dead[0].OpID)
	assert.Equal(t, 3, dead[0].Attempts)

	letters, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)

	// dead-letter больше не отправляется автоматически
	n, err := q.Drain(ctx, failing)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, q.Size())
	_ = healthy

	// явный повтор забирает операцию из dead-letter
	op, err := q.TakeDeadLetter(ctx, poison)
	require.NoError(t, err)
	assert.Equal(t, poison, op.OpID)
	_, err = q.TakeDeadLetter(ctx, poison)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueue_RestoresFromStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := newBoltStore(t, dir)
	q, err := New(ctx, store, testLogger())
	require.NoError(t, err)

	first, err := q.Enqueue(ctx, updateOp("umzuege", "u1", map[string]any{"status": "geplant"}))
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, updateOp("umzuege", "u1", map[string]any{"status": "fertig"}))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store = newBoltStore(t, dir)
	defer func() { _ = store.Close() }()
	restored, err := New(ctx, store, testLogger())
	require.NoError(t, err)

	ops := restored.PeekAll()
	require.Len(t, ops, 2)
	assert.Equal(t, first, ops[0].OpID)
	assert.Equal(t, second, ops[1].OpID)
	assert.Equal(t, "u1", ops[1].EntityID)

	// opId из восстановленной очереди тоже считается использованным
	dup := updateOp("umzuege", "u1", nil)
	dup.OpID = first
	_, err = restored.Enqueue(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateOp)
}

func TestUpdateEntityID_RewritesTempIDs(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	_, err := q.Enqueue(ctx, updateOp("tasks", "tmp-1", map[string]any{"a": 1}))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, &models.PendingOperation{Type: models.OpDelete, Collection: "tasks", EntityID: "tmp-1"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, updateOp("umzuege", "tmp-1", map[string]any{"a": 1}))
	require.NoError(t, err)

	n, err := q.UpdateEntityID(ctx, "tasks", "tmp-1", "srv-42")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys := make([]string, 0, 3)
	for _, op := range q.PeekAll() {
		keys = append(keys, op.Key())
	}
	// другая коллекция не затронута
	assert.Equal(t, []string{
		models.EntityKey("tasks", "srv-42"),
		models.EntityKey("tasks", "srv-42"),
		models.EntityKey("umzuege", "tmp-1"),
	}, keys)
}

func TestUpdate_KeepsPosition(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	first, err := q.Enqueue(ctx, updateOp("tasks", "t1", map[string]any{"a": 1}))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, updateOp("tasks", "t2", map[string]any{"a": 2}))
	require.NoError(t, err)

	ops := q.PeekAll()
	ops[0].PreImage = models.NewEntity("t1", map[string]any{"a": 0, "_version": 7})
	require.NoError(t, q.Update(ctx, ops[0]))

	ops = q.PeekAll()
	assert.Equal(t, first, ops[0].OpID)
	require.NotNil(t, ops[0].PreImage)
	assert.Equal(t, int64(7), ops[0].PreImage.Version)

	err = q.Update(ctx, &models.PendingOperation{OpID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnqueue_StorageFailure(t *testing.T) {
	ctx := context.Background()
	errDisk := errors.New("disk full")

	store := &storage.OperationStorageMock{
		ListOperationsFunc: func(ctx context.Context) ([]*models.PendingOperation, error) {
			return nil, nil
		},
		ListDeadLettersFunc: func(ctx context.Context) ([]*models.PendingOperation, error) {
			return nil, nil
		},
		AppendOperationFunc: func(ctx context.Context, op *models.PendingOperation) (uint64, error) {
			return 0, errDisk
		},
	}

	q, err := New(ctx, store, testLogger())
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, updateOp("tasks", "t1", map[string]any{"a": 1}))
	require.ErrorIs(t, err, errDisk)
	assert.Equal(t, 0, q.Size())
	assert.Len(t, store.AppendOperationCalls(), 1)

	// opId не помечается использованным, если запись не удалась
	op := updateOp("tasks", "t1", map[string]any{"a": 1})
	op.OpID = "op-1"
	_, err = q.Enqueue(ctx, op)
	require.ErrorIs(t, err, errDisk)
	_, err = q.Enqueue(ctx, op)
	assert.NotErrorIs(t, err, ErrDuplicateOp)
}

func TestNew_RestoreFailure(t *testing.T) {
	store := &storage.OperationStorageMock{
		ListOperationsFunc: func(ctx context.Context) ([]*models.PendingOperation, error) {
			return nil, errors.New("corrupted")
		},
	}

	q, err := New(context.Background(), store, testLogger())
	assert.Error(t, err)
	assert.Nil(t, q)
}

func TestDrain_ContextCanceled(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Enqueue(context.Background(), updateOp("tasks", "t1", map[string]any{"a": 1}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := q.Drain(ctx, func(ctx context.Context, op *models.PendingOperation) error {
		t.Fatal("send must not be called")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, q.Size())
}

func TestDrain_DeferredDoesNotCountAttempt(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	_, err := q.Enqueue(ctx, updateOp("tasks", "tmp-1", map[string]any{"done": true}))
	require.NoError(t, err)

	sent, err := q.Drain(ctx, func(ctx context.Context, op *models.PendingOperation) error {
		return ErrDeferred
	})
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	ops := q.PeekAll()
	require.Len(t, ops, 1)
	assert.Equal(t, 0, ops[0].Attempts)
}

func TestRequeueBefore_KeepsOrderAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := newBoltStore(t, dir)
	q, err := New(ctx, store, testLogger())
	require.NoError(t, err)

	later, err := q.Enqueue(ctx, updateOp("umzuege", "u1", map[string]any{"status": "fertig"}))
	require.NoError(t, err)

	first := updateOp("umzuege", "u1", map[string]any{"status": "geplant"})
	first.OpID = "op-first"
	second := updateOp("umzuege", "u2", nil)
	second.OpID = "op-second"
	require.NoError(t, q.RequeueBefore(ctx, first, later))
	require.NoError(t, q.RequeueBefore(ctx, second, later))
	tail := updateOp("tasks", "t1", nil)
	tail.OpID = "op-tail"
	require.NoError(t, q.RequeueBefore(ctx, tail, ""))

	err = q.RequeueBefore(ctx, first, "")
	assert.ErrorIs(t, err, ErrDuplicateOp)

	want := []string{"op-first", "op-second", later}
	ops := q.PeekAll()
	require.Len(t, ops, 4)
	for i, id := range want {
		assert.Equal(t, id, ops[i].OpID)
	}
	require.NoError(t, store.Close())

	store = newBoltStore(t, dir)
	defer func() { _ = store.Close() }()
	restored, err := New(ctx, store, testLogger())
	require.NoError(t, err)

	ops = restored.PeekAll()
	require.Len(t, ops, 4)
	for i, id := range want {
		assert.Equal(t, id, ops[i].OpID)
	}
	assert.Equal(t, "tasks", ops[3].Collection)
}

func TestMoveToDeadLetter(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	queued, err := q.Enqueue(ctx, updateOp("umzuege", "u1", map[string]any{"status": "geplant"}))
	require.NoError(t, err)
	kept, err := q.Enqueue(ctx, updateOp("umzuege", "u2", nil))
	require.NoError(t, err)

	op := q.PeekAll()[0]
	op.Attempts = 3
	op.LastError = "server error (503): maintenance"
	require.NoError(t, q.MoveToDeadLetter(ctx, op))

	// операция, которой нет в очереди (была in-flight), тоже переносится
	inFlight := updateOp("tasks", "t1", nil)
	inFlight.OpID = "op-in-flight"
	require.NoError(t, q.MoveToDeadLetter(ctx, inFlight))

	ops := q.PeekAll()
	require.Len(t, ops, 1)
	assert.Equal(t, kept, ops[0].OpID)

	dead, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 2)
	ids := []string{dead[0].OpID, dead[1].OpID}
	assert.ElementsMatch(t, []string{queued, "op-in-flight"}, ids)

	dup := updateOp("umzuege", "u1", nil)
	dup.OpID = queued
	_, err = q.Enqueue(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateOp)
}
