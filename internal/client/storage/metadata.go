package storage

import (
	"context"
	"time"
)

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// SaveLastFetch saves the time a collection was last hydrated from REST
	SaveLastFetch(ctx context.Context, collection string, at time.Time) error

	// GetLastFetch returns the last hydration time of a collection
	// Returns zero time if the collection was never fetched
	GetLastFetch(ctx context.Context, collection string) (time.Time, error)
}
