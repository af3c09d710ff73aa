package sqlite

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

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	// Используем in-memory database для тестов
	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func newTestOp(opID string) *models.PendingOperation {
	return &models.PendingOperation{
		OpID:       opID,
		Type:       models.OpUpdate,
		Collection: "tasks",
		EntityID:   "t1",
		Payload:    map[string]any{"done": true},
		PreImage:   models.NewEntity("t1", map[string]any{"done": false, "_version": 4}),
		EnqueuedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestOperationStorage_AppendList(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	ids := []string{"op-3", "op-1", "op-2"}
	for _, id := range ids {
		_, err := s.AppendOperation(ctx, newTestOp(id))
		require.NoError(t, err)
	}

	ops, err := s.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 3)

	for i, op := range ops {
		assert.Equal(t, ids[i], op.OpID)
		assert.Equal(t, models.OpUpdate, op.Type)
		assert.Equal(t, true, op.Payload["done"])
		require.NotNil(t, op.PreImage)
		assert.Equal(t, int64(4), op.PreImage.Version)
		if i > 0 {
			assert.Greater(t, op.Seq, ops[i-1].Seq)
		}
	}
}

func TestOperationStorage_DuplicateOpID(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	_, err := s.AppendOperation(ctx, newTestOp("op-1"))
	require.NoError(t, err)
	_, err = s.AppendOperation(ctx, newTestOp("op-1"))
	assert.Error(t, err)
}

func TestOperationStorage_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	create := newTestOp("op-1")
	create.Type = models.OpCreate
	create.PreImage = nil
	create.EntityID = "tmp-1"
	create.TempID = "tmp-1"
	_, err := s.AppendOperation(ctx, create)
	require.NoError(t, err)

	create.EntityID = "final-1"
	create.Attempts = 2
	create.LastError = "server unavailable"
	require.NoError(t, s.UpdateOperation(ctx, create))

	ops, err := s.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "final-1", ops[0].EntityID)
	assert.Equal(t, "tmp-1", ops[0].TempID)
	assert.Equal(t, 2, ops[0].Attempts)
	assert.Nil(t, ops[0].PreImage)

	assert.ErrorIs(t, s.UpdateOperation(ctx, newTestOp("missing")), storage.ErrOperationNotFound)

	require.NoError(t, s.DeleteOperation(ctx, "op-1"))
	require.NoError(t, s.DeleteOperation(ctx, "op-1"))

	ops, err = s.ListOperations(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestOperationStorage_DeadLetters(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	_, err := s.AppendOperation(ctx, newTestOp("op-1"))
	require.NoError(t, err)
	_, err = s.AppendOperation(ctx, newTestOp("op-2"))
	require.NoError(t, err)

	ops, err := s.ListOperations(ctx)
	require.NoError(t, err)
	dead := ops[0]
	dead.Attempts = 11
	require.NoError(t, s.SaveDeadLetter(ctx, dead))

	ops, err = s.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "op-2", ops[0].OpID)

	letters, err := s.ListDeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "op-1", letters[0].OpID)
	assert.Equal(t, 11, letters[0].Attempts)

	require.NoError(t, s.DeleteDeadLetter(ctx, "op-1"))
	assert.ErrorIs(t, s.DeleteDeadLetter(ctx, "op-1"), storage.ErrOperationNotFound)
}

func TestOperationStorage_FileReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "queue.db")

	s, err := New(ctx, dbPath)
	require.NoError(t, err)
	_, err = s.AppendOperation(ctx, newTestOp("op-1"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// миграции повторно применяются без ошибок
	s, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ops, err := s.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "op-1", ops[0].OpID)
}

func TestOperationStorage_Closed(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, ":memory:")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.AppendOperation(ctx, newTestOp("op-1"))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = s.ListOperations(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
