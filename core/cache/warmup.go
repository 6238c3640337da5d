package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	"golang.org/x/sync/singleflight"
)

// DefaultAbandonAfter is the age after which a pending or running task is considered dead.
const DefaultAbandonAfter = 30 * time.Minute

// ComputeFunc produces the cluster result of one scope key.
type ComputeFunc func(ctx context.Context) (*model.ClusterResult, error)

// WarmupResult is returned by Runner.Warmup.
type WarmupResult struct {
	Key               string           `json:"scope_key"`
	Status            model.TaskStatus `json:"status"`
	AlreadyInProgress bool             `json:"already_in_progress"`
	Message           string           `json:"message"`
}

// Runner computes cluster results in the background and records the task state beside
// the cache entry. Computations of the same key are shared.
type Runner struct {
	cache        *ClusterCache
	group        singleflight.Group
	wg           sync.WaitGroup
	mu           sync.Mutex
	log          *slog.Logger
	now          func() time.Time
	AbandonAfter time.Duration
}

// NewRunner creates a Runner writing into cache.
func NewRunner(cache *ClusterCache, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cache:        cache,
		log:          logger,
		now:          func() time.Time { return time.Now().UTC() },
		AbandonAfter: DefaultAbandonAfter,
	}
}

// Status returns the task state of key. Unknown keys report TaskStatusNone.
func (r *Runner) Status(key string) (model.TaskStatus, error) {
	task, err := r.cache.store.SelectTask(key)
	if errors.Is(err, ErrNotFound) {
		return model.TaskStatusNone, nil
	}
	if err != nil {
		return model.TaskStatusNone, helper.NewError("select task", err)
	}
	if task.Status.InProgress() && r.abandoned(task) {
		return model.TaskStatusFailed, nil
	}
	return task.Status, nil
}

func (r *Runner) abandoned(task *model.ClusterTask) bool {
	return r.AbandonAfter > 0 && r.now().Sub(task.UpdatedAt) > r.AbandonAfter
}

func (r *Runner) setStatus(key string, status model.TaskStatus, taskErr error) {
	task := &model.ClusterTask{
		Key:       key,
		Status:    status,
		UpdatedAt: r.now(),
	}
	if taskErr != nil {
		task.Error = taskErr.Error()
	}
	if err := r.cache.store.UpsertTask(task); err != nil {
		r.log.Error("Failed to update cluster task", slog.String("key", key), slog.String("status", string(status)), slog.Any("error", err))
	}
}

// Warmup schedules the computation of key and returns immediately. If a computation
// of key is pending or running, nothing new is scheduled.
// The computation outlives ctx cancellation but keeps its values.
func (r *Runner) Warmup(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (*WarmupResult, error) {
	r.mu.Lock()
	status, err := r.Status(key)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if status.InProgress() {
		r.mu.Unlock()
		r.log.Info("Cluster warmup already in progress", slog.String("key", key), slog.String("status", string(status)))
		return &WarmupResult{
			Key:               key,
			Status:            status,
			AlreadyInProgress: true,
			Message:           "already in progress",
		}, nil
	}
	r.setStatus(key, model.TaskStatusPending, nil)
	r.mu.Unlock()

	bgCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, _ = r.Run(bgCtx, key, ttl, compute)
	}()

	r.log.Info("Scheduled cluster warmup", slog.String("key", key))
	return &WarmupResult{
		Key:     key,
		Status:  model.TaskStatusPending,
		Message: fmt.Sprintf("computing clusters for %s", key),
	}, nil
}

// Run computes key now, stores a successful result and records the task state.
// Concurrent calls for the same key share one computation.
func (r *Runner) Run(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (*model.ClusterResult, error) {
	resultI, err, shared := r.group.Do(key, func() (any, error) {
		r.setStatus(key, model.TaskStatusRunning, nil)
		start := r.now()

		result, err := compute(ctx)
		if err != nil {
			r.setStatus(key, model.TaskStatusFailed, err)
			r.log.Error("Cluster computation failed", slog.String("key", key), slog.Any("error", err))
			return nil, err
		}

		if result.Status == model.StatusSuccess {
			entry, err := r.cache.Set(key, result, ttl)
			if err != nil {
				r.setStatus(key, model.TaskStatusFailed, err)
				return nil, err
			}
			result.ComputedAt = entry.ComputedAt
		}

		r.setStatus(key, model.TaskStatusDone, nil)
		r.log.Info("Cluster computation finished", slog.String("key", key), slog.String("method", result.Method), slog.Int("clusters", len(result.Clusters)), slog.Duration("took", r.now().Sub(start)))
		return result, nil
	})
	if err != nil {
		return nil, helper.NewError("compute clusters", err)
	}
	result := resultI.(*model.ClusterResult)
	if shared {
		r.log.Debug("Shared cluster computation", slog.String("key", key))
		// Every caller gets its own result and slices.
		out := *result
		out.Clusters = slices.Clone(result.Clusters)
		out.Edges = slices.Clone(result.Edges)
		return &out, nil
	}
	return result, nil
}

// Wait blocks until every scheduled warmup finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
