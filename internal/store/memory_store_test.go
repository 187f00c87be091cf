package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/model"
	"github.com/quarry-io/quarry/internal/qerrors"
)

func TestInMemoryDatasetStore_CreateAndGet(t *testing.T) {
	s := NewInMemoryDatasetStore()
	ctx := context.Background()

	dataset := &model.Dataset{
		ID:        "ds-1",
		Name:      "images",
		Tenant:    "acme",
		RepoURL:   "http://gitea.local/acme/images.git",
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateDataset(ctx, dataset))

	got, err := s.GetDataset(ctx, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, "images", got.Name)

	// Returned value is a copy, not shared state
	got.Name = "mutated"
	again, err := s.GetDataset(ctx, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, "images", again.Name)
}

func TestInMemoryDatasetStore_DuplicateCreateConflicts(t *testing.T) {
	s := NewInMemoryDatasetStore()
	ctx := context.Background()

	dataset := &model.Dataset{ID: "ds-1", Name: "images"}
	require.NoError(t, s.CreateDataset(ctx, dataset))

	err := s.CreateDataset(ctx, dataset)
	require.Error(t, err)
	assert.Equal(t, qerrors.KindConflict, qerrors.KindOf(err))
}

func TestInMemoryDatasetStore_DuplicateTagMessage(t *testing.T) {
	s := NewInMemoryDatasetStore()
	ctx := context.Background()

	require.NoError(t, s.CreateDataset(ctx, &model.Dataset{ID: "ds-1", Name: "images"}))
	require.NoError(t, s.RecordVersion(ctx, &model.Version{ID: "v-1", DatasetID: "ds-1", Tag: "v1-100%"}))

	// Tag text reaches the message untouched, even with formatting verbs in it
	err := s.RecordVersion(ctx, &model.Version{ID: "v-2", DatasetID: "ds-1", Tag: "v1-100%"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version v1-100% already recorded")
}

func TestInMemoryDatasetStore_GetMissing(t *testing.T) {
	s := NewInMemoryDatasetStore()

	_, err := s.GetDataset(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryDatasetStore_RecordVersion(t *testing.T) {
	s := NewInMemoryDatasetStore()
	ctx := context.Background()

	require.NoError(t, s.CreateDataset(ctx, &model.Dataset{ID: "ds-1", Name: "images"}))

	base := time.Now()
	require.NoError(t, s.RecordVersion(ctx, &model.Version{
		ID: "v-1", DatasetID: "ds-1", Tag: "v1", FileCount: 3, TotalSize: 30, CreatedAt: base,
	}))
	require.NoError(t, s.RecordVersion(ctx, &model.Version{
		ID: "v-2", DatasetID: "ds-1", Tag: "v2", FileCount: 5, TotalSize: 50, CreatedAt: base.Add(time.Minute),
	}))

	// Duplicate tag is a conflict
	err := s.RecordVersion(ctx, &model.Version{ID: "v-3", DatasetID: "ds-1", Tag: "v2"})
	require.Error(t, err)
	assert.Equal(t, qerrors.KindConflict, qerrors.KindOf(err))

	// Newest first
	versions, err := s.ListVersions(ctx, "ds-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "v2", versions[0].Tag)
	assert.Equal(t, "v1", versions[1].Tag)

	// Dataset totals follow the latest version
	dataset, err := s.GetDataset(ctx, "ds-1")
	require.NoError(t, err)
	assert.Equal(t, 5, dataset.FileCount)
	assert.Equal(t, int64(50), dataset.TotalSize)
}

func TestInMemoryDatasetStore_DeleteRemovesVersions(t *testing.T) {
	s := NewInMemoryDatasetStore()
	ctx := context.Background()

	require.NoError(t, s.CreateDataset(ctx, &model.Dataset{ID: "ds-1"}))
	require.NoError(t, s.RecordVersion(ctx, &model.Version{ID: "v-1", DatasetID: "ds-1", Tag: "v1"}))

	require.NoError(t, s.DeleteDataset(ctx, "ds-1"))

	_, err := s.GetDataset(ctx, "ds-1")
	assert.ErrorIs(t, err, ErrNotFound)

	versions, err := s.ListVersions(ctx, "ds-1")
	require.NoError(t, err)
	assert.Empty(t, versions)

	assert.ErrorIs(t, s.DeleteDataset(ctx, "ds-1"), ErrNotFound)
}

func TestInMemoryIdempotencyStore_TTL(t *testing.T) {
	s := NewInMemoryIdempotencyStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "req-1", []byte(`{"ok":true}`), 50*time.Millisecond))

	value, err := s.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"ok":true}`), value)

	time.Sleep(70 * time.Millisecond)

	_, err = s.Get(ctx, "req-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryCache_SetGetDelete(t *testing.T) {
	c := NewInMemoryCache(10, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "tree:ds-1:v1", "payload", time.Minute))

	value, err := c.Get(ctx, "tree:ds-1:v1")
	require.NoError(t, err)
	assert.Equal(t, "payload", value)

	require.NoError(t, c.Delete(ctx, "tree:ds-1:v1"))
	_, err = c.Get(ctx, "tree:ds-1:v1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryCache_Expiry(t *testing.T) {
	c := NewInMemoryCache(10, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryCache_EvictsAtMaxSize(t *testing.T) {
	c := NewInMemoryCache(2, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, c.Set(ctx, "c", 3, time.Minute))

	// One of the earlier entries was evicted to make room
	hits := 0
	for _, key := range []string{"a", "b", "c"} {
		if _, err := c.Get(ctx, key); err == nil {
			hits++
		}
	}
	assert.Equal(t, 2, hits)
}
