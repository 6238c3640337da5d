package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/PhD-Shin/PKM/core/centrality"
	"github.com/PhD-Shin/PKM/core/embedding"
	"github.com/PhD-Shin/PKM/core/graph"
	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
)

const (
	maxSampleEntities  = 10
	maxSampleDocuments = 5
	maxDocumentIDs     = 20
	maxImportance      = 10.0
	centralityScale    = 8.0
)

// EmbeddingClusterer groups embeddings into density clusters. See embedding.Clusterer.
type EmbeddingClusterer interface {
	Cluster(ctx context.Context, items []embedding.Item) (model.Assignment, error)
}

// CommunityDetector partitions an entity graph. See community.Detector.
type CommunityDetector interface {
	Detect(ctx context.Context, g *graph.EntityGraph) (model.Assignment, error)
}

// Orchestrator turns a snapshot into clusters. It runs semantic clustering of documents
// and falls back to grouping entities by type whenever that is not possible.
// It holds no state between calls.
type Orchestrator struct {
	cfg       model.ClusterConfig
	clusterer EmbeddingClusterer
	detector  CommunityDetector
	scorer    *centrality.Scorer
	relations *RelationTable
	log       *slog.Logger
	now       func() time.Time
}

// New creates an Orchestrator. A nil clusterer disables semantic clustering,
// a nil detector puts all entities into one graph community.
func New(cfg model.ClusterConfig, clusterer EmbeddingClusterer, detector CommunityDetector, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinPoints < 2 {
		cfg.MinPoints = 5
	}
	return &Orchestrator{
		cfg:       cfg,
		clusterer: clusterer,
		detector:  detector,
		scorer:    centrality.NewScorer(cfg.Denylist),
		relations: NewRelationTable(cfg.Relations),
		log:       logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Relations returns the relation table used to label edges.
func (o *Orchestrator) Relations() *RelationTable {
	return o.relations
}

// semanticFailure carries the fallback reason out of the semantic state.
type semanticFailure struct {
	reason model.FallbackReason
	err    error
}

func (f *semanticFailure) Error() string {
	if f.err == nil {
		return string(f.reason)
	}
	return fmt.Sprintf("%s: %v", f.reason, f.err)
}

func (f *semanticFailure) Unwrap() error {
	return f.err
}

// ComputeDocumentClusters clusters the documents of the snapshot by their embeddings and
// describes every cluster by the entities its documents mention.
// The snapshot is filtered with the configured entity filter first.
//
// Data sparsity never results in an error: the result then groups entities by type and
// its method records the reason. An error is only returned when grouping by type fails.
func (o *Orchestrator) ComputeDocumentClusters(ctx context.Context, snapshot *model.Snapshot) (*model.ClusterResult, error) {
	snap := snapshot.Filter(o.cfg.EntityFilter)

	result, err := o.semantic(ctx, snap)
	if err == nil {
		return result, nil
	}

	var failure *semanticFailure
	if !errors.As(err, &failure) {
		failure = &semanticFailure{reason: model.ReasonException, err: err}
	}
	if failure.reason == model.ReasonException {
		o.log.Error("Semantic clustering failed", slog.String("scope", snap.Scope.VaultID), slog.String("folder", snap.Scope.FolderPrefix), slog.Any("error", failure.err))
	}
	o.log.Warn("Falling back to type based clustering", slog.String("scope", snap.Scope.VaultID), slog.String("reason", string(failure.reason)))

	fallback, err := o.typeBased(ctx, snap)
	if err != nil {
		return nil, helper.NewError("type based clustering", err)
	}
	fallback.Method = model.SemanticFallbackMethod(failure.reason)
	return fallback, nil
}

// semantic runs the SEMANTIC state. Every failure is a *semanticFailure.
func (o *Orchestrator) semantic(ctx context.Context, snap *model.Snapshot) (result *model.ClusterResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &semanticFailure{reason: model.ReasonException, err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if o.clusterer == nil {
		return nil, &semanticFailure{reason: model.ReasonDependencyMissing}
	}

	var docs []*model.Document
	var items []embedding.Item
	for _, d := range snap.Documents {
		if !d.HasEmbedding() {
			continue
		}
		docs = append(docs, d)
		items = append(items, embedding.Item{ID: d.RID, Vector: d.Embedding})
	}
	if len(items) == 0 {
		return nil, &semanticFailure{reason: model.ReasonNoEmbeddings}
	}
	if len(items) < o.cfg.MinPoints {
		return nil, &semanticFailure{reason: model.ReasonInsufficientSamples, err: fmt.Errorf("%d embeddings, need %d", len(items), o.cfg.MinPoints)}
	}

	assignment, err := o.clusterer.Cluster(ctx, items)
	switch {
	case errors.Is(err, embedding.ErrUnavailable):
		return nil, &semanticFailure{reason: model.ReasonDependencyMissing, err: err}
	case errors.Is(err, embedding.ErrInsufficientData):
		return nil, &semanticFailure{reason: model.ReasonInsufficientSamples, err: err}
	case errors.Is(err, embedding.ErrNoClusters):
		return nil, &semanticFailure{reason: model.ReasonNoClusters, err: err}
	case err != nil:
		return nil, &semanticFailure{reason: model.ReasonException, err: err}
	}

	labels := assignment.Labels()
	if len(labels) == 0 {
		return nil, &semanticFailure{reason: model.ReasonNoClusters}
	}

	now := o.now()
	entities := snap.EntityIndex()
	mentions := snap.EntitiesByDocument()

	clusters := []*model.Cluster{}
	for _, label := range labels {
		var members []*model.Document
		for _, d := range docs {
			if assignment.Label(d.RID) == label {
				members = append(members, d)
			}
		}

		c := o.describe(members, mentions, entities, now)
		if c == nil {
			continue
		}
		c.ID = fmt.Sprintf("cluster_%d", label+1)
		c.Method = model.MethodSemantic
		clusters = append(clusters, c)
	}

	if len(clusters) == 0 {
		return nil, &semanticFailure{reason: model.ReasonEmptyResult}
	}

	total := 0
	for _, c := range clusters {
		total += c.NodeCount
	}

	o.log.Info("Computed semantic clusters", slog.String("scope", snap.Scope.VaultID), slog.Int("documents", len(docs)), slog.Int("clusters", len(clusters)))

	return &model.ClusterResult{
		Status:     model.StatusSuccess,
		Clusters:   clusters,
		Edges:      SharedEntityEdges(clusters),
		TotalNodes: total,
		Method:     model.MethodSemantic,
		ComputedAt: now,
	}, nil
}

// describe scores the entities mentioned by documents and builds the cluster record
// without id and method. It returns nil if the documents mention no known entity.
func (o *Orchestrator) describe(documents []*model.Document, mentions map[uuid.UUID][]uuid.UUID, entities map[uuid.UUID]*model.Entity, now time.Time) *model.Cluster {
	window := centrality.Window{
		DocumentIDs: make([]uuid.UUID, len(documents)),
		Mentions:    mentions,
		Entities:    entities,
	}
	titles := []string{}
	updates := make([]time.Time, len(documents))
	for i, d := range documents {
		window.DocumentIDs[i] = d.RID
		updates[i] = d.UpdatedAt
		if len(titles) < maxSampleDocuments {
			titles = append(titles, d.Title)
		}
	}

	scores := o.scorer.Score(window)
	if len(scores) == 0 {
		return nil
	}

	hubs := centrality.SelectHubs(scores, o.cfg.TopK)
	typeCounts := centrality.TypeCounts(scores)
	name := centrality.Name(hubs, typeCounts)
	bonus, recent := centrality.RecencyBonus(updates, now, o.cfg.RecentWindow)

	return &model.Cluster{
		Name:             name,
		Level:            1,
		MemberIDs:        centrality.IDs(scores),
		NodeCount:        len(scores),
		Hubs:             hubs,
		SampleEntities:   centrality.Names(scores, maxSampleEntities),
		SampleDocuments:  titles,
		DocumentIDs:      limitIDs(window.DocumentIDs, maxDocumentIDs),
		TypeDistribution: typeCounts,
		ImportanceScore:  math.Min(maxImportance, centrality.Average(scores)*centralityScale+bonus),
		RecentUpdates:    recent,
		Summary:          fmt.Sprintf("%s cluster (%d entities)", name, len(scores)),
		KeyInsights:      centrality.Insights(hubs, recent, typeCounts, len(documents)),
		ComputedAt:       now,
	}
}

// typeBased runs the TYPE_BASED state: one cluster per entity type, types in alphabetical order.
func (o *Orchestrator) typeBased(ctx context.Context, snap *model.Snapshot) (*model.ClusterResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := o.now()
	byType := map[string][]*model.Entity{}
	for _, e := range snap.Entities {
		t := strings.TrimSpace(e.Type)
		if t == "" {
			t = "Unknown"
		}
		byType[t] = append(byType[t], e)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	clusters := make([]*model.Cluster, 0, len(types))
	for i, t := range types {
		members := byType[t]
		clusters = append(clusters, typeCluster(fmt.Sprintf("cluster_%d", i+1), t, members, model.MethodTypeBased, now))
	}

	result := &model.ClusterResult{
		Status:     model.StatusSuccess,
		Clusters:   clusters,
		Edges:      SharedEntityEdges(clusters),
		TotalNodes: len(snap.Entities),
		Method:     model.MethodTypeBased,
		ComputedAt: now,
	}
	if len(clusters) == 0 {
		result.Status = model.StatusUnavailable
		result.Message = "no entities found"
	}
	return result, nil
}

// typeCluster builds the cluster of all members of one entity type.
func typeCluster(id, entityType string, members []*model.Entity, method string, now time.Time) *model.Cluster {
	ids := make([]uuid.UUID, len(members))
	names := []string{}
	mentions := 0
	for i, e := range members {
		ids[i] = e.ID
		mentions += e.MentionCount
		if len(names) < maxSampleEntities {
			names = append(names, e.Name)
		}
	}

	return &model.Cluster{
		ID:               id,
		Name:             fmt.Sprintf("%s Cluster", entityType),
		Level:            1,
		MemberIDs:        ids,
		NodeCount:        len(members),
		Hubs:             []model.HubEntity{},
		SampleEntities:   names,
		DocumentIDs:      []uuid.UUID{},
		TypeDistribution: map[string]int{strings.ToLower(entityType): len(members)},
		ImportanceScore:  math.Min(maxImportance, float64(mentions)/10),
		Summary:          fmt.Sprintf("Contains %d %s entities", len(members), entityType),
		KeyInsights: []string{
			fmt.Sprintf("Total mentions: %d", mentions),
			fmt.Sprintf("Entity type: %s", entityType),
		},
		Method:     method,
		ComputedAt: now,
	}
}

func limitIDs(ids []uuid.UUID, limit int) []uuid.UUID {
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return append([]uuid.UUID{}, ids...)
}
