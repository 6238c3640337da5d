package model

import (
	"time"
)

// CacheEntry is one stored cluster result of a scope key.
// Payload is the JSON encoded clusters and edges, Checksum its blake3 digest.
type CacheEntry struct {
	Key        string    `json:"scope_key"`
	Payload    []byte    `json:"payload"`
	Checksum   string    `json:"checksum"`
	Method     string    `json:"method"`
	ComputedAt time.Time `json:"computed_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TaskStatus is the state of a background cluster computation.
type TaskStatus string

const (
	TaskStatusNone    TaskStatus = ""
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// InProgress reports whether a computation is queued or running.
func (s TaskStatus) InProgress() bool {
	return s == TaskStatusPending || s == TaskStatusRunning
}

// ClusterTask tracks the warmup of one scope key.
type ClusterTask struct {
	Key       string     `json:"scope_key"`
	Status    TaskStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
