package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/PhD-Shin/PKM/core/cache"
	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	loadSql "github.com/PhD-Shin/PKM/sql"
)

// ClusterCacheDBHandlerFunctions defines the interface for cluster cache database operations.
// It is the Postgres backed cache.Store.
type ClusterCacheDBHandlerFunctions interface {
	cache.Store
	DeleteExpiredCacheEntries() (int, error)
}

// ClusterCacheDBHandler stores materialized cluster results and warmup tasks
type ClusterCacheDBHandler struct {
	db *helper.Database
}

var _ ClusterCacheDBHandlerFunctions = (*ClusterCacheDBHandler)(nil)

// NewClusterCacheDBHandler creates a new cluster cache database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewClusterCacheDBHandler(db *helper.Database, force bool) (*ClusterCacheDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	clusterCacheDbHandler := &ClusterCacheDBHandler{
		db: db,
	}

	err := loadSql.LoadClusterCacheSql(clusterCacheDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load cluster cache sql", err)
	}

	err = clusterCacheDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ClusterCacheDBHandler")

	return clusterCacheDbHandler, nil
}

// CreateTable creates the 'cluster_cache' and 'cluster_tasks' tables in the database.
func (h *ClusterCacheDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_cluster_cache();`)
	if err != nil {
		log.Panicf("error initializing cluster cache tables: %#v", err)
	}

	h.db.Logger.Info("Checked/created tables cluster_cache and cluster_tasks")

	return nil
}

// SelectCacheEntry retrieves the entry of a scope key. Unknown keys return cache.ErrNotFound.
func (h *ClusterCacheDBHandler) SelectCacheEntry(key string) (*model.CacheEntry, error) {
	entry := &model.CacheEntry{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_cluster_cache($1)`,
		key,
	)

	err := row.Scan(
		&entry.Key,
		&entry.Payload,
		&entry.Checksum,
		&entry.Method,
		&entry.ComputedAt,
		&entry.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entry, nil
}

// UpsertCacheEntry inserts or replaces the entry of its scope key
func (h *ClusterCacheDBHandler) UpsertCacheEntry(entry *model.CacheEntry) error {
	_, err := h.db.Instance.Exec(
		`SELECT upsert_cluster_cache($1, $2, $3, $4, $5, $6)`,
		entry.Key,
		entry.Payload,
		entry.Checksum,
		entry.Method,
		entry.ComputedAt,
		entry.ExpiresAt,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteCacheEntry deletes the entry of a scope key
func (h *ClusterCacheDBHandler) DeleteCacheEntry(key string) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_cluster_cache($1)`,
		key,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteExpiredCacheEntries deletes every expired entry and returns their number
func (h *ClusterCacheDBHandler) DeleteExpiredCacheEntries() (int, error) {
	var deleted int
	err := h.db.Instance.QueryRow(`SELECT delete_expired_cluster_cache()`).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return deleted, nil
}

// SelectTask retrieves the warmup task of a scope key. Unknown keys return cache.ErrNotFound.
func (h *ClusterCacheDBHandler) SelectTask(key string) (*model.ClusterTask, error) {
	task := &model.ClusterTask{}
	var status string
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_cluster_task($1)`,
		key,
	)

	err := row.Scan(
		&task.Key,
		&status,
		&task.Error,
		&task.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}
	task.Status = model.TaskStatus(status)

	return task, nil
}

// UpsertTask inserts or replaces the warmup task of its scope key
func (h *ClusterCacheDBHandler) UpsertTask(task *model.ClusterTask) error {
	_, err := h.db.Instance.Exec(
		`SELECT upsert_cluster_task($1, $2, $3, $4)`,
		task.Key,
		string(task.Status),
		task.Error,
		task.UpdatedAt,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
