package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cluster_cache (
	scope_key   TEXT PRIMARY KEY,
	payload     BLOB NOT NULL,
	checksum    TEXT NOT NULL,
	method      TEXT NOT NULL DEFAULT '',
	computed_at TEXT NOT NULL,
	expires_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS cluster_tasks (
	scope_key  TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);
`

// SQLiteStore is a Store in a local SQLite file. ":memory:" keeps everything in process.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates) the database at path and migrates the cache tables.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, helper.NewError("create cache directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, helper.NewError("open cache database", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, helper.NewError("ping cache database", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, helper.NewError(fmt.Sprintf("set pragma %q", p), err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, helper.NewError("migrate cache database", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteStore) SelectCacheEntry(key string) (*model.CacheEntry, error) {
	row := s.db.QueryRow(
		`SELECT scope_key, payload, checksum, method, computed_at, expires_at FROM cluster_cache WHERE scope_key = ?`,
		key,
	)

	entry := &model.CacheEntry{}
	var computedAt, expiresAt string
	err := row.Scan(&entry.Key, &entry.Payload, &entry.Checksum, &entry.Method, &computedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	if entry.ComputedAt, err = time.Parse(time.RFC3339Nano, computedAt); err != nil {
		return nil, helper.NewError("parse computed_at", err)
	}
	if entry.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return nil, helper.NewError("parse expires_at", err)
	}
	return entry, nil
}

func (s *SQLiteStore) UpsertCacheEntry(entry *model.CacheEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO cluster_cache (scope_key, payload, checksum, method, computed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope_key) DO UPDATE SET
			payload = excluded.payload,
			checksum = excluded.checksum,
			method = excluded.method,
			computed_at = excluded.computed_at,
			expires_at = excluded.expires_at`,
		entry.Key,
		entry.Payload,
		entry.Checksum,
		entry.Method,
		formatTime(entry.ComputedAt),
		formatTime(entry.ExpiresAt),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteCacheEntry(key string) error {
	_, err := s.db.Exec(`DELETE FROM cluster_cache WHERE scope_key = ?`, key)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func (s *SQLiteStore) SelectTask(key string) (*model.ClusterTask, error) {
	row := s.db.QueryRow(`SELECT scope_key, status, error, updated_at FROM cluster_tasks WHERE scope_key = ?`, key)

	task := &model.ClusterTask{}
	var status, updatedAt string
	err := row.Scan(&task.Key, &status, &task.Error, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}
	task.Status = model.TaskStatus(status)
	if task.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, helper.NewError("parse updated_at", err)
	}
	return task, nil
}

func (s *SQLiteStore) UpsertTask(task *model.ClusterTask) error {
	_, err := s.db.Exec(
		`INSERT INTO cluster_tasks (scope_key, status, error, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope_key) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		task.Key,
		string(task.Status),
		task.Error,
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
