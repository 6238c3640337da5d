package pkm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/PhD-Shin/PKM/core/cache"
	"github.com/PhD-Shin/PKM/core/community"
	"github.com/PhD-Shin/PKM/core/embedding"
	"github.com/PhD-Shin/PKM/core/graph"
	"github.com/PhD-Shin/PKM/core/orchestrator"
	"github.com/PhD-Shin/PKM/database"
	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	loadSql "github.com/PhD-Shin/PKM/sql"
	"github.com/google/uuid"
)

// Options configure NewPKM. The zero value uses the default cluster configuration
// and keeps the cluster cache in Postgres.
type Options struct {
	Cluster *model.ClusterConfig
	// CacheStore replaces the Postgres cluster cache, e.g. with cache.NewSQLiteStore.
	// PKM owns it and closes it on Close if it implements io.Closer.
	CacheStore cache.Store
	Logger     *slog.Logger
	// ForceSql reloads the SQL functions even if they already exist.
	ForceSql bool
}

// PKM provides a unified interface to the vault tables and the cluster engine
type PKM struct {
	DB           *helper.Database
	Documents    *database.DocumentsDBHandler
	Entities     *database.EntitiesDBHandler
	Mentions     *database.MentionsDBHandler
	Edges        *database.EdgesDBHandler
	Orchestrator *orchestrator.Orchestrator
	Cache        *cache.ClusterCache
	Warmup       *cache.Runner

	config model.ClusterConfig
	store  cache.Store
	// Logging
	log *slog.Logger
}

// ClusterRequest selects what Clusters computes.
type ClusterRequest struct {
	Scope model.Scope
	Kind  model.ClusterKind
	// ForceRecompute ignores a cached result.
	ForceRecompute bool
	// NoWait schedules the computation in the background and returns StatusComputing
	// instead of blocking when no fresh result is cached.
	NoWait bool
}

// NewPKM creates a new PKM instance with all handlers initialized
func NewPKM(config *helper.DatabaseConfiguration, opts Options) (*PKM, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(helper.NewPrettyHandler(os.Stdout, helper.PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{
				Level: slog.LevelInfo,
			},
		}))
	}

	clusterConfig := model.DefaultClusterConfig()
	if opts.Cluster != nil {
		clusterConfig = *opts.Cluster
	}
	if err := clusterConfig.Validate(); err != nil {
		return nil, err
	}

	db := helper.NewDatabase("pkm", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Mentions and edges reference documents and entities, so those go first.
	documents, err := database.NewDocumentsDBHandler(db, opts.ForceSql)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	entities, err := database.NewEntitiesDBHandler(db, opts.ForceSql)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	mentions, err := database.NewMentionsDBHandler(db, opts.ForceSql)
	if err != nil {
		return nil, helper.NewError("create mentions handler", err)
	}

	edges, err := database.NewEdgesDBHandler(db, opts.ForceSql)
	if err != nil {
		return nil, helper.NewError("create edges handler", err)
	}

	store := opts.CacheStore
	if store == nil {
		store, err = database.NewClusterCacheDBHandler(db, opts.ForceSql)
		if err != nil {
			return nil, helper.NewError("create cluster cache handler", err)
		}
	}

	clusterer := embedding.NewClusterer(embedding.Options{
		Seed:       clusterConfig.Seed,
		MinPoints:  clusterConfig.MinPoints,
		MinSamples: clusterConfig.MinSamples,
		Epsilon:    clusterConfig.Epsilon,
	}, logger)
	detector := community.NewDetector(community.Options{
		Resolution: clusterConfig.Resolution,
		Seed:       clusterConfig.Seed,
	}, logger)

	clusterCache := cache.New(store, documents, logger)

	return &PKM{
		DB:           db,
		Documents:    documents,
		Entities:     entities,
		Mentions:     mentions,
		Edges:        edges,
		Orchestrator: orchestrator.New(clusterConfig, clusterer, detector, logger),
		Cache:        clusterCache,
		Warmup:       cache.NewRunner(clusterCache, logger),
		config:       clusterConfig,
		store:        store,
		log:          logger,
	}, nil
}

// Close waits for running warmups and closes the cache store and the database connection
func (p *PKM) Close() error {
	if p.Warmup != nil {
		p.Warmup.Wait()
	}

	var errs []error
	if closer, ok := p.store.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, p.DB.Close())
	return errors.Join(errs...)
}

// Config returns the cluster configuration in use.
func (p *PKM) Config() model.ClusterConfig {
	return p.config
}

// LoadSnapshot reads the documents, entities, mentions and edges of a scope.
func (p *PKM) LoadSnapshot(scope model.Scope) (*model.Snapshot, error) {
	if scope.VaultID == "" {
		return nil, helper.NewError("load snapshot", fmt.Errorf("vault id is empty"))
	}

	documents, err := p.Documents.SelectDocumentsByVault(scope.VaultID, scope.FolderPrefix)
	if err != nil {
		return nil, helper.NewError("select documents", err)
	}

	entities, err := p.Entities.SelectEntitiesByVault(scope.VaultID)
	if err != nil {
		return nil, helper.NewError("select entities", err)
	}

	mentions, err := p.Mentions.SelectMentionsByVault(scope.VaultID)
	if err != nil {
		return nil, helper.NewError("select mentions", err)
	}

	edges, err := p.Edges.SelectEdgesByVault(scope.VaultID)
	if err != nil {
		return nil, helper.NewError("select edges", err)
	}

	p.log.Debug("Loaded snapshot", slog.String("vault", scope.VaultID), slog.String("folder", scope.FolderPrefix), slog.Int("documents", len(documents)), slog.Int("entities", len(entities)), slog.Int("edges", len(edges)))

	return &model.Snapshot{
		Scope:     scope,
		Documents: documents,
		Entities:  entities,
		Mentions:  mentions,
		Edges:     edges,
	}, nil
}

func (p *PKM) compute(scope model.Scope, kind model.ClusterKind) cache.ComputeFunc {
	return func(ctx context.Context) (*model.ClusterResult, error) {
		snapshot, err := p.LoadSnapshot(scope)
		if err != nil {
			return nil, err
		}
		if kind == model.ClusterKindEntities {
			return p.Orchestrator.ComputeEntityClusters(ctx, snapshot)
		}
		return p.Orchestrator.ComputeDocumentClusters(ctx, snapshot)
	}
}

// Clusters returns the clusters of a scope. Fresh cached results are returned as they are.
// Requests for a sub-scope are always computed and never cached.
func (p *PKM) Clusters(ctx context.Context, req ClusterRequest) (*model.ClusterResult, error) {
	compute := p.compute(req.Scope, req.Kind)
	if req.Scope.IsSubScope() {
		return compute(ctx)
	}

	key := model.CacheKey(req.Scope.VaultID, req.Kind)
	if !req.ForceRecompute {
		cached, err := p.Cache.Get(key)
		if err != nil {
			p.log.Error("Failed to read cluster cache", slog.String("key", key), slog.Any("error", err))
		}
		if cached != nil && !p.Cache.IsStale(key, cached.ComputedAt.Format(time.RFC3339Nano)) {
			return cached, nil
		}
	}

	if req.NoWait {
		warmup, err := p.Warmup.Warmup(ctx, key, p.config.CacheTTL, compute)
		if err != nil {
			return nil, err
		}
		return &model.ClusterResult{
			Status:   model.StatusComputing,
			Clusters: []*model.Cluster{},
			Edges:    []*model.ClusterEdge{},
			Message:  warmup.Message,
		}, nil
	}

	return p.Warmup.Run(ctx, key, p.config.CacheTTL, compute)
}

// ClusterDetail describes one entity cluster of a vault. The entity clusters are taken
// from the cache when possible.
func (p *PKM) ClusterDetail(ctx context.Context, vaultID string, clusterID string) (*model.ClusterDetail, error) {
	scope := model.Scope{VaultID: vaultID}
	key := model.CacheKey(vaultID, model.ClusterKindEntities)

	result, err := p.Cache.Fetch(ctx, key, p.config.CacheTTL, p.compute(scope, model.ClusterKindEntities))
	if err != nil {
		return nil, helper.NewError("entity clusters", err)
	}

	snapshot, err := p.LoadSnapshot(scope)
	if err != nil {
		return nil, err
	}
	return p.Orchestrator.Detail(snapshot, result, clusterID)
}

// RelatedEntities returns the entities reachable from entityID over relation edges
// within maxHops, nearest first. The entity itself is the first result.
func (p *PKM) RelatedEntities(vaultID string, entityID uuid.UUID, maxHops int) ([]*graph.TraversalResult, error) {
	entities, err := p.Entities.SelectEntitiesByVault(vaultID)
	if err != nil {
		return nil, helper.NewError("select entities", err)
	}
	edges, err := p.Edges.SelectEdgesByVault(vaultID)
	if err != nil {
		return nil, helper.NewError("select edges", err)
	}

	ids := make([]uuid.UUID, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return graph.New(ids, edges).BFS(entityID, maxHops), nil
}

// WarmupClusters schedules the computation of the clusters of a vault in the background.
func (p *PKM) WarmupClusters(ctx context.Context, vaultID string, kind model.ClusterKind) (*cache.WarmupResult, error) {
	scope := model.Scope{VaultID: vaultID}
	return p.Warmup.Warmup(ctx, model.CacheKey(vaultID, kind), p.config.CacheTTL, p.compute(scope, kind))
}

// ClusterStatus returns the state of the background computation of a vault's clusters.
func (p *PKM) ClusterStatus(vaultID string, kind model.ClusterKind) (model.TaskStatus, error) {
	return p.Warmup.Status(model.CacheKey(vaultID, kind))
}

// InvalidateClusters drops the cached document and entity clusters of a vault.
func (p *PKM) InvalidateClusters(vaultID string) error {
	for _, kind := range []model.ClusterKind{model.ClusterKindDocuments, model.ClusterKindEntities} {
		if err := p.Cache.Invalidate(model.CacheKey(vaultID, kind)); err != nil {
			return err
		}
	}
	return nil
}
