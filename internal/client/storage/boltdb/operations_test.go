package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/storage"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

func newTestOp(opID, entityID string) *models.PendingOperation {
	return &models.PendingOperation{
		OpID:       opID,
		Type:       models.OpUpdate,
		Collection: "umzuege",
		EntityID:   entityID,
		Payload:    map[string]any{"status": "geplant"},
		EnqueuedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestAppendOperation_KeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	ids := []string{"op-c", "op-a", "op-b"}
	var lastSeq uint64
	for _, id := range ids {
		seq, err := store.AppendOperation(ctx, newTestOp(id, "u1"))
		require.NoError(t, err)
		assert.Greater(t, seq, lastSeq)
		lastSeq = seq
	}

	ops, err := store.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, len(ids))
	for i, op := range ops {
		assert.Equal(t, ids[i], op.OpID)
		assert.NotZero(t, op.Seq)
		assert.Equal(t, "geplant", op.Payload["status"])
	}
}

func TestAppendOperation_DuplicateOpID(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	_, err := store.AppendOperation(ctx, newTestOp("op-1", "u1"))
	require.NoError(t, err)

	_, err = store.AppendOperation(ctx, newTestOp("op-1", "u2"))
	assert.Error(t, err)

	ops, err := store.ListOperations(ctx)
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestUpdateOperation(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	_, err := store.AppendOperation(ctx, newTestOp("op-1", "u1"))
	require.NoError(t, err)
	_, err = store.AppendOperation(ctx, newTestOp("op-2", "u1"))
	require.NoError(t, err)

	op := newTestOp("op-1", "final-1")
	op.Attempts = 3
	op.LastError = "timeout"
	require.NoError(t, store.UpdateOperation(ctx, op))

	ops, err := store.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	// позиция в очереди не меняется
	assert.Equal(t, "op-1", ops[0].OpID)
	assert.Equal(t, "final-1", ops[0].EntityID)
	assert.Equal(t, 3, ops[0].Attempts)
	assert.Equal(t, "timeout", ops[0].LastError)

	err = store.UpdateOperation(ctx, newTestOp("missing", "u1"))
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
}

func TestDeleteOperation(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	for _, id := range []string{"op-1", "op-2", "op-3"} {
		_, err := store.AppendOperation(ctx, newTestOp(id, "u1"))
		require.NoError(t, err)
	}

	require.NoError(t, store.DeleteOperation(ctx, "op-2"))
	// отсутствующая операция - не ошибка
	require.NoError(t, store.DeleteOperation(ctx, "op-2"))

	ops, err := store.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "op-1", ops[0].OpID)
	assert.Equal(t, "op-3", ops[1].OpID)

	// opID освободился и может быть использован повторно хранилищем
	_, err = store.AppendOperation(ctx, newTestOp("op-2", "u1"))
	assert.NoError(t, err)
}

func TestDeadLetters(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	_, err := store.AppendOperation(ctx, newTestOp("op-1", "u1"))
	require.NoError(t, err)
	_, err = store.AppendOperation(ctx, newTestOp("op-2", "u2"))
	require.NoError(t, err)

	dead := newTestOp("op-1", "u1")
	dead.Attempts = 11
	require.NoError(t, store.SaveDeadLetter(ctx, dead))

	ops, err := store.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "op-2", ops[0].OpID)

	letters, err := store.ListDeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "op-1", letters[0].OpID)
	assert.Equal(t, 11, letters[0].Attempts)

	require.NoError(t, store.DeleteDeadLetter(ctx, "op-1"))
	assert.ErrorIs(t, store.DeleteDeadLetter(ctx, "op-1"), storage.ErrOperationNotFound)

	letters, err = store.ListDeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, letters)
}

func TestOperations_SurviveReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	for _, id := range []string{"op-1", "op-2"} {
		_, err := store.AppendOperation(ctx, newTestOp(id, "u1"))
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())

	store, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	ops, err := store.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "op-1", ops[0].OpID)
	assert.Equal(t, "op-2", ops[1].OpID)

	// новые операции получают seq после восстановленных
	seq, err := store.AppendOperation(ctx, newTestOp("op-3", "u1"))
	require.NoError(t, err)
	assert.Greater(t, seq, ops[1].Seq)
}
