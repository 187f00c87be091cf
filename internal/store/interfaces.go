// Package store persists the dataset registry and supporting state.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/quarry-io/quarry/internal/model"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("not found")

// DatasetStore records datasets and their versions. The registry is
// bookkeeping on top of the git/dvc source of truth: rows are written after
// the corresponding repository state is pushed.
type DatasetStore interface {
	CreateDataset(ctx context.Context, dataset *model.Dataset) error
	GetDataset(ctx context.Context, id string) (*model.Dataset, error)
	DeleteDataset(ctx context.Context, id string) error

	RecordVersion(ctx context.Context, version *model.Version) error
	ListVersions(ctx context.Context, datasetID string) ([]*model.Version, error)

	Ping(ctx context.Context) error
	Close()
}

// IdempotencyStore keeps completed operation results keyed by request
// identity, so redelivered requests return the original outcome.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Cache is an in-memory TTL cache. Used for file trees and listings, which
// are immutable for a given (repository, tag) pair.
type Cache interface {
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
