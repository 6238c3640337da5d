package database

import (
	"testing"
	"time"

	"github.com/PhD-Shin/PKM/core/cache"
	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterCacheNewClusterCacheDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewClusterCacheDBHandler", func(t *testing.T) {
		clusterCacheDbHandler, err := NewClusterCacheDBHandler(database, true)
		assert.NoError(t, err, "Expected NewClusterCacheDBHandler to not return an error")
		require.NotNil(t, clusterCacheDbHandler, "Expected NewClusterCacheDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewClusterCacheDBHandler with nil database", func(t *testing.T) {
		_, err := NewClusterCacheDBHandler(nil, false)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "database connection is nil")
	})
}

func TestClusterCacheEntries(t *testing.T) {
	database := initDB(t)

	clusterCacheDbHandler, err := NewClusterCacheDBHandler(database, true)
	require.NoError(t, err)

	key := uuid.NewString()
	computedAt := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("Select unknown entry returns ErrNotFound", func(t *testing.T) {
		_, err := clusterCacheDbHandler.SelectCacheEntry(key)
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("Upsert and select entry", func(t *testing.T) {
		payload := []byte(`{"clusters":[],"edges":[],"total_nodes":0}`)
		entry := &model.CacheEntry{
			Key:        key,
			Payload:    payload,
			Checksum:   cache.Checksum(payload),
			Method:     model.MethodTypeBased,
			ComputedAt: computedAt,
			ExpiresAt:  computedAt.Add(12 * time.Hour),
		}
		require.NoError(t, clusterCacheDbHandler.UpsertCacheEntry(entry))

		retrieved, err := clusterCacheDbHandler.SelectCacheEntry(key)
		assert.NoError(t, err)
		require.NotNil(t, retrieved)
		assert.Equal(t, payload, retrieved.Payload, "Expected payload bytes to be kept unchanged")
		assert.Equal(t, entry.Checksum, retrieved.Checksum)
		assert.True(t, computedAt.Equal(retrieved.ComputedAt))

		entry.Method = model.MethodSemantic
		require.NoError(t, clusterCacheDbHandler.UpsertCacheEntry(entry))
		retrieved, err = clusterCacheDbHandler.SelectCacheEntry(key)
		assert.NoError(t, err)
		assert.Equal(t, model.MethodSemantic, retrieved.Method, "Expected last write to win")
	})

	t.Run("Delete expired entries", func(t *testing.T) {
		expiredKey := uuid.NewString()
		require.NoError(t, clusterCacheDbHandler.UpsertCacheEntry(&model.CacheEntry{
			Key:        expiredKey,
			Payload:    []byte(`{}`),
			Checksum:   cache.Checksum([]byte(`{}`)),
			ComputedAt: computedAt.Add(-2 * time.Hour),
			ExpiresAt:  computedAt.Add(-time.Hour),
		}))

		deleted, err := clusterCacheDbHandler.DeleteExpiredCacheEntries()
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, deleted, 1)

		_, err = clusterCacheDbHandler.SelectCacheEntry(expiredKey)
		assert.ErrorIs(t, err, cache.ErrNotFound)
		_, err = clusterCacheDbHandler.SelectCacheEntry(key)
		assert.NoError(t, err, "Expected fresh entry to be kept")
	})

	t.Run("Delete entry", func(t *testing.T) {
		assert.NoError(t, clusterCacheDbHandler.DeleteCacheEntry(key))
		_, err := clusterCacheDbHandler.SelectCacheEntry(key)
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("Works as the store of the cluster cache", func(t *testing.T) {
		c := cache.New(clusterCacheDbHandler, nil, nil)
		result := &model.ClusterResult{
			Status:     model.StatusSuccess,
			Clusters:   []*model.Cluster{{ID: "cluster_1", Name: "Goal", NodeCount: 1}},
			Edges:      []*model.ClusterEdge{},
			TotalNodes: 1,
			Method:     model.MethodPKMType,
		}
		_, err := c.Set(key, result, time.Hour)
		require.NoError(t, err)

		cached, err := c.Get(key)
		require.NoError(t, err)
		require.NotNil(t, cached)
		assert.True(t, cached.FromCache)
		assert.Equal(t, "Goal", cached.Clusters[0].Name)

		require.NoError(t, c.Invalidate(key))
	})
}

func TestClusterCacheTasks(t *testing.T) {
	database := initDB(t)

	clusterCacheDbHandler, err := NewClusterCacheDBHandler(database, true)
	require.NoError(t, err)

	key := uuid.NewString()

	t.Run("Select unknown task returns ErrNotFound", func(t *testing.T) {
		_, err := clusterCacheDbHandler.SelectTask(key)
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("Upsert and select task", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, clusterCacheDbHandler.UpsertTask(&model.ClusterTask{Key: key, Status: model.TaskStatusRunning, UpdatedAt: now}))
		require.NoError(t, clusterCacheDbHandler.UpsertTask(&model.ClusterTask{Key: key, Status: model.TaskStatusFailed, Error: "boom", UpdatedAt: now}))

		task, err := clusterCacheDbHandler.SelectTask(key)
		assert.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, model.TaskStatusFailed, task.Status)
		assert.Equal(t, "boom", task.Error)
		assert.True(t, now.Equal(task.UpdatedAt))
	})
}
