package store

import (
	"context"
	"sort"
	"sync"

	"github.com/quarry-io/quarry/internal/model"
	"github.com/quarry-io/quarry/internal/qerrors"
)

// InMemoryDatasetStore implements DatasetStore with maps. Used in tests and
// in single-node deployments that do not configure a database.
type InMemoryDatasetStore struct {
	mu       sync.RWMutex
	datasets map[string]*model.Dataset
	versions map[string][]*model.Version
}

// NewInMemoryDatasetStore creates a new in-memory dataset store
func NewInMemoryDatasetStore() *InMemoryDatasetStore {
	return &InMemoryDatasetStore{
		datasets: make(map[string]*model.Dataset),
		versions: make(map[string][]*model.Version),
	}
}

// CreateDataset registers a dataset
func (s *InMemoryDatasetStore) CreateDataset(ctx context.Context, dataset *model.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.datasets[dataset.ID]; exists {
		return qerrors.New("store.CreateDataset", qerrors.KindConflict, "dataset already exists")
	}

	copied := *dataset
	s.datasets[dataset.ID] = &copied
	return nil
}

// GetDataset retrieves a dataset by ID
func (s *InMemoryDatasetStore) GetDataset(ctx context.Context, id string) (*model.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dataset, exists := s.datasets[id]
	if !exists {
		return nil, ErrNotFound
	}

	copied := *dataset
	return &copied, nil
}

// DeleteDataset removes a dataset and its versions
func (s *InMemoryDatasetStore) DeleteDataset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.datasets[id]; !exists {
		return ErrNotFound
	}

	delete(s.datasets, id)
	delete(s.versions, id)
	return nil
}

// RecordVersion appends a version and refreshes the dataset totals
func (s *InMemoryDatasetStore) RecordVersion(ctx context.Context, version *model.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.versions[version.DatasetID] {
		if existing.Tag == version.Tag {
			return qerrors.New("store.RecordVersion", qerrors.KindConflict,
				"version %s already recorded", version.Tag)
		}
	}

	copied := *version
	s.versions[version.DatasetID] = append(s.versions[version.DatasetID], &copied)

	if dataset, exists := s.datasets[version.DatasetID]; exists {
		dataset.FileCount = version.FileCount
		dataset.TotalSize = version.TotalSize
		dataset.UpdatedAt = version.CreatedAt
	}

	return nil
}

// ListVersions retrieves all versions of a dataset, newest first
func (s *InMemoryDatasetStore) ListVersions(ctx context.Context, datasetID string) ([]*model.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := make([]*model.Version, 0, len(s.versions[datasetID]))
	for _, v := range s.versions[datasetID] {
		copied := *v
		versions = append(versions, &copied)
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})

	return versions, nil
}

// Ping always succeeds
func (s *InMemoryDatasetStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *InMemoryDatasetStore) Close() {}
