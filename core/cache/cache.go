package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	"github.com/zeebo/blake3"
)

var (
	// ErrNotFound is returned by a Store for unknown keys.
	ErrNotFound = errors.New("cache entry not found")
	// ErrCorruptEntry marks a stored payload that does not match its checksum or cannot be decoded.
	ErrCorruptEntry = errors.New("corrupt cache entry")
)

// Store persists cache entries and warmup tasks. Writes to the same key are last writer wins.
type Store interface {
	SelectCacheEntry(key string) (*model.CacheEntry, error)
	UpsertCacheEntry(entry *model.CacheEntry) error
	DeleteCacheEntry(key string) error
	SelectTask(key string) (*model.ClusterTask, error)
	UpsertTask(task *model.ClusterTask) error
}

// SourceClock reports the latest update time of the documents of a vault.
// ok is false if the vault has no documents.
type SourceClock interface {
	LatestUpdate(vaultID string) (latest time.Time, ok bool, err error)
}

// payload is the stored form of a result.
type payload struct {
	Clusters   []*model.Cluster     `json:"clusters"`
	Edges      []*model.ClusterEdge `json:"edges"`
	TotalNodes int                  `json:"total_nodes"`
}

// ClusterCache materializes cluster results per scope key with a TTL and
// detects results computed before the latest change of their source documents.
type ClusterCache struct {
	store Store
	clock SourceClock
	log   *slog.Logger
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock serialises writes of one key. It is dropped once no writer holds or waits for it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a ClusterCache. A nil clock disables the staleness check.
func New(store Store, clock SourceClock, logger *slog.Logger) *ClusterCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClusterCache{
		store: store,
		clock: clock,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
		locks: map[string]*keyLock{},
	}
}

// Store returns the backing store.
func (c *ClusterCache) Store() Store {
	return c.store
}

// lock acquires the write lock of key and returns its release function.
func (c *ClusterCache) lock(key string) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}

// Checksum is the hex encoded blake3 digest of b.
func Checksum(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result of key, or nil if there is none or it expired.
// A corrupt entry counts as missing.
func (c *ClusterCache) Get(key string) (*model.ClusterResult, error) {
	entry, err := c.store.SelectCacheEntry(key)
	if errors.Is(err, ErrNotFound) {
		c.log.Debug("Cluster cache miss", slog.String("key", key))
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("select cache entry", err)
	}
	if entry.Expired(c.now()) {
		c.log.Debug("Cluster cache entry expired", slog.String("key", key), slog.Time("expires_at", entry.ExpiresAt))
		return nil, nil
	}

	result, err := decode(entry)
	if err != nil {
		c.log.Warn("Ignoring corrupt cluster cache entry", slog.String("key", key), slog.Any("error", err))
		return nil, nil
	}

	c.log.Debug("Cluster cache hit", slog.String("key", key), slog.String("method", entry.Method))
	return result, nil
}

func decode(entry *model.CacheEntry) (*model.ClusterResult, error) {
	if entry.Checksum != Checksum(entry.Payload) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptEntry)
	}
	var p payload
	if err := json.Unmarshal(entry.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if p.Clusters == nil {
		p.Clusters = []*model.Cluster{}
	}
	if p.Edges == nil {
		p.Edges = []*model.ClusterEdge{}
	}
	return &model.ClusterResult{
		Status:     model.StatusSuccess,
		Clusters:   p.Clusters,
		Edges:      p.Edges,
		TotalNodes: p.TotalNodes,
		Method:     entry.Method,
		ComputedAt: entry.ComputedAt,
		FromCache:  true,
	}, nil
}

// Set stores result under key for ttl. computed_at is the current time.
func (c *ClusterCache) Set(key string, result *model.ClusterResult, ttl time.Duration) (*model.CacheEntry, error) {
	if result == nil {
		return nil, helper.NewError("set cache entry", fmt.Errorf("result is nil"))
	}
	b, err := json.Marshal(payload{
		Clusters:   result.Clusters,
		Edges:      result.Edges,
		TotalNodes: result.TotalNodes,
	})
	if err != nil {
		return nil, helper.NewError("marshal cache payload", err)
	}

	now := c.now()
	entry := &model.CacheEntry{
		Key:        key,
		Payload:    b,
		Checksum:   Checksum(b),
		Method:     result.Method,
		ComputedAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	unlock := c.lock(key)
	defer unlock()

	if err := c.store.UpsertCacheEntry(entry); err != nil {
		return nil, helper.NewError("upsert cache entry", err)
	}
	c.log.Debug("Stored cluster cache entry", slog.String("key", key), slog.String("method", entry.Method), slog.Time("expires_at", entry.ExpiresAt))
	return entry, nil
}

// Invalidate deletes the entry of key. Deleting a missing entry is not an error.
func (c *ClusterCache) Invalidate(key string) error {
	unlock := c.lock(key)
	defer unlock()

	err := c.store.DeleteCacheEntry(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return helper.NewError("delete cache entry", err)
	}
	c.log.Info("Invalidated cluster cache", slog.String("key", key))
	return nil
}

// IsStale reports whether a result of key computed at computedAt (RFC 3339) predates
// the latest update of the key's source documents. A missing or unparsable
// computedAt is stale. Without source documents the result is not stale.
func (c *ClusterCache) IsStale(key string, computedAt string) bool {
	if computedAt == "" {
		return true
	}
	t, err := time.Parse(time.RFC3339Nano, computedAt)
	if err != nil {
		return true
	}
	return c.isStaleAt(key, t)
}

func (c *ClusterCache) isStaleAt(key string, computedAt time.Time) bool {
	if c.clock == nil {
		return false
	}
	vaultID, _ := model.SplitCacheKey(key)
	latest, ok, err := c.clock.LatestUpdate(vaultID)
	if err != nil {
		c.log.Error("Failed to check cluster cache staleness", slog.String("key", key), slog.Any("error", err))
		return true
	}
	if !ok {
		c.log.Warn("No source documents for cluster cache key, keeping entry", slog.String("key", key))
		return false
	}
	return latest.After(computedAt)
}

// Fetch returns the cached result of key if it is fresh. Otherwise it runs compute,
// stores a successful result for ttl and returns it.
func (c *ClusterCache) Fetch(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (*model.ClusterResult, error)) (*model.ClusterResult, error) {
	cached, err := c.Get(key)
	if err != nil {
		c.log.Error("Failed to read cluster cache", slog.String("key", key), slog.Any("error", err))
	}
	if cached != nil && !c.isStaleAt(key, cached.ComputedAt) {
		return cached, nil
	}

	result, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if result.Status != model.StatusSuccess {
		return result, nil
	}

	entry, err := c.Set(key, result, ttl)
	if err != nil {
		c.log.Error("Failed to store cluster cache", slog.String("key", key), slog.Any("error", err))
		return result, nil
	}
	result.ComputedAt = entry.ComputedAt
	return result, nil
}
