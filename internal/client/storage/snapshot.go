package storage

import (
	"context"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

// SnapshotStorage persists the local cache between sessions
type SnapshotStorage interface {
	// SaveSnapshot replaces the stored snapshot of a collection
	SaveSnapshot(ctx context.Context, collection string, entities []*models.Entity) error

	// LoadSnapshot returns every stored collection
	LoadSnapshot(ctx context.Context) (map[string][]*models.Entity, error)
}
