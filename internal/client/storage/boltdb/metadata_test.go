package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndGetLastFetch(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	// Коллекция еще не загружалась
	at, err := store.GetLastFetch(ctx, "umzuege")
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	now := time.Now().Truncate(time.Millisecond)
	require.NoError(t, store.SaveLastFetch(ctx, "umzuege", now))

	at, err = store.GetLastFetch(ctx, "umzuege")
	require.NoError(t, err)
	assert.True(t, now.Equal(at))

	// другие коллекции не затронуты
	at, err = store.GetLastFetch(ctx, "tasks")
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}
