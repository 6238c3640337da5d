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
	"github.com/PhD-Shin/PKM/core/community"
	"github.com/PhD-Shin/PKM/core/embedding"
	"github.com/PhD-Shin/PKM/core/graph"
	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
)

// ErrClusterNotFound is returned by Detail for an unknown cluster id.
var ErrClusterNotFound = errors.New("cluster not found")

const maxDetailDocuments = 5

// PKMTypes are the core entity types in the order of the productivity flow.
var PKMTypes = []string{"Goal", "Project", "Task", "Topic", "Concept", "Question", "Insight", "Resource"}

// PKMType maps an entity type onto one of PKMTypes. Person and unknown types become Topic.
func PKMType(entityType string) string {
	for _, t := range PKMTypes {
		if strings.EqualFold(t, strings.TrimSpace(entityType)) {
			return t
		}
	}
	return defaultEntityType
}

// ComputeEntityClusters clusters the entities of the snapshot themselves. Graph communities
// of the relation edges are merged with density clusters of the entity embeddings.
// Without enough entity embeddings the entities are grouped by their PKM type instead.
func (o *Orchestrator) ComputeEntityClusters(ctx context.Context, snapshot *model.Snapshot) (*model.ClusterResult, error) {
	snap := snapshot.Filter(o.cfg.EntityView)

	result, reason, err := o.entityHybrid(ctx, snap)
	if err != nil {
		return nil, helper.NewError("entity clustering", err)
	}
	if result != nil {
		return result, nil
	}

	o.log.Warn("Falling back to PKM type clustering", slog.String("scope", snap.Scope.VaultID), slog.String("reason", string(reason)))

	result, err = o.pkmTypes(ctx, snap)
	if err != nil {
		return nil, helper.NewError("PKM type clustering", err)
	}
	result.Method = model.EntityHybridFallbackMethod(reason)
	return result, nil
}

// entityHybrid returns either a result, or a fallback reason, or a hard error.
func (o *Orchestrator) entityHybrid(ctx context.Context, snap *model.Snapshot) (*model.ClusterResult, model.FallbackReason, error) {
	if len(snap.Entities) == 0 {
		return nil, model.ReasonNoEmbeddings, nil
	}
	if o.clusterer == nil {
		return nil, model.ReasonDependencyMissing, nil
	}

	ids := make([]uuid.UUID, len(snap.Entities))
	var items []embedding.Item
	for i, e := range snap.Entities {
		ids[i] = e.ID
		if e.HasEmbedding() {
			items = append(items, embedding.Item{ID: e.ID, Vector: e.Embedding})
		}
	}
	if len(items) == 0 {
		return nil, model.ReasonNoEmbeddings, nil
	}
	if len(items) < o.cfg.MinPoints {
		return nil, model.ReasonInsufficientSamples, nil
	}

	g := graph.New(ids, snap.Edges)

	embeddingClusters, err := o.clusterer.Cluster(ctx, items)
	switch {
	case errors.Is(err, embedding.ErrUnavailable):
		return nil, model.ReasonDependencyMissing, nil
	case errors.Is(err, embedding.ErrInsufficientData):
		return nil, model.ReasonInsufficientSamples, nil
	case errors.Is(err, embedding.ErrNoClusters):
		embeddingClusters = model.Assignment{}
	case err != nil:
		return nil, "", err
	}

	graphClusters := model.Assignment{}
	if o.detector != nil {
		graphClusters, err = o.detector.Detect(ctx, g)
		if err != nil {
			return nil, "", err
		}
	} else {
		for _, id := range ids {
			graphClusters[id] = 0
		}
	}

	final := community.Merge(ids, graphClusters, embeddingClusters)

	now := o.now()
	entities := snap.EntityIndex()
	documents := snap.DocumentIndex()
	documentsOf := snap.DocumentsByEntity()
	mentions := snap.EntitiesByDocument()
	documentOrder := make(map[uuid.UUID]int, len(snap.Documents))
	for i, d := range snap.Documents {
		documentOrder[d.RID] = i
	}

	clusters := []*model.Cluster{}
	clusterTypes := map[string]string{}
	for i, label := range final.Labels() {
		members := final.Members(label, ids)
		c := o.entityCluster(members, entities, documents, documentsOf, documentOrder, mentions, now)
		c.ID = fmt.Sprintf("cluster_%d", i+1)
		c.InternalEdges = g.InternalEdges(members)
		c.Cohesion = float64(c.InternalEdges) / math.Max(float64(len(members)), 1)
		clusters = append(clusters, c)
		clusterTypes[c.ID] = PKMType(centrality.DominantType(c.TypeDistribution))
	}

	o.log.Info("Computed entity clusters", slog.String("scope", snap.Scope.VaultID), slog.Int("entities", len(ids)), slog.Int("embedded", len(items)), slog.Int("clusters", len(clusters)))

	return &model.ClusterResult{
		Status:     model.StatusSuccess,
		Clusters:   clusters,
		Edges:      CrossingEdges(clusters, clusterTypes, snap.Edges, o.relations),
		TotalNodes: len(ids),
		Method:     model.MethodEntityHybrid,
		ComputedAt: now,
	}, "", nil
}

// entityCluster describes a group of entities. Members are scored over the documents
// mentioning them; members without mentions follow the scored ones.
func (o *Orchestrator) entityCluster(
	members []uuid.UUID,
	entities map[uuid.UUID]*model.Entity,
	documents map[uuid.UUID]*model.Document,
	documentsOf map[uuid.UUID][]uuid.UUID,
	documentOrder map[uuid.UUID]int,
	mentions map[uuid.UUID][]uuid.UUID,
	now time.Time,
) *model.Cluster {
	memberEntities := make(map[uuid.UUID]*model.Entity, len(members))
	docSet := map[uuid.UUID]bool{}
	for _, id := range members {
		memberEntities[id] = entities[id]
		for _, d := range documentsOf[id] {
			docSet[d] = true
		}
	}
	docIDs := make([]uuid.UUID, 0, len(docSet))
	for d := range docSet {
		docIDs = append(docIDs, d)
	}
	sort.Slice(docIDs, func(a, b int) bool {
		return documentOrder[docIDs[a]] < documentOrder[docIDs[b]]
	})

	scores := o.scorer.Score(centrality.Window{
		DocumentIDs: docIDs,
		Mentions:    mentions,
		Entities:    memberEntities,
	})

	ordered := centrality.IDs(scores)
	scored := make(map[uuid.UUID]bool, len(ordered))
	for _, id := range ordered {
		scored[id] = true
	}
	for _, id := range members {
		if !scored[id] {
			ordered = append(ordered, id)
		}
	}

	typeCounts := map[string]int{}
	names := []string{}
	for _, id := range ordered {
		e := memberEntities[id]
		typeCounts[strings.ToLower(entityType(e.Type))]++
		if len(names) < maxSampleEntities {
			names = append(names, e.Name)
		}
	}

	titles := []string{}
	updates := make([]time.Time, 0, len(docIDs))
	for _, d := range docIDs {
		doc := documents[d]
		if doc == nil {
			continue
		}
		updates = append(updates, doc.UpdatedAt)
		if len(titles) < maxSampleDocuments {
			titles = append(titles, doc.Title)
		}
	}

	hubs := centrality.SelectHubs(scores, o.cfg.TopK)
	name := centrality.Name(hubs, typeCounts)
	bonus, recent := centrality.RecencyBonus(updates, now, o.cfg.RecentWindow)

	sumScores := centrality.Average(scores) * float64(len(scores))
	average := sumScores / math.Max(float64(len(ordered)), 1)

	return &model.Cluster{
		Name:             name,
		Level:            1,
		MemberIDs:        ordered,
		NodeCount:        len(ordered),
		Hubs:             hubs,
		SampleEntities:   names,
		SampleDocuments:  titles,
		DocumentIDs:      limitIDs(docIDs, maxDocumentIDs),
		TypeDistribution: typeCounts,
		ImportanceScore:  math.Min(maxImportance, average*centralityScale+bonus),
		RecentUpdates:    recent,
		Summary:          fmt.Sprintf("%s cluster (%d entities)", name, len(ordered)),
		KeyInsights:      centrality.Insights(hubs, recent, typeCounts, len(docIDs)),
		Method:           model.MethodEntityHybrid,
		ComputedAt:       now,
	}
}

// pkmTypes groups entities by their PKM type. Only types with members become clusters.
func (o *Orchestrator) pkmTypes(ctx context.Context, snap *model.Snapshot) (*model.ClusterResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := o.now()
	byType := map[string][]*model.Entity{}
	for _, e := range snap.Entities {
		t := PKMType(e.Type)
		byType[t] = append(byType[t], e)
	}

	ids := make([]uuid.UUID, len(snap.Entities))
	for i, e := range snap.Entities {
		ids[i] = e.ID
	}
	g := graph.New(ids, snap.Edges)

	clusters := []*model.Cluster{}
	clusterTypes := map[string]string{}
	for _, t := range PKMTypes {
		members := byType[t]
		if len(members) == 0 {
			continue
		}
		c := typeCluster("cluster_"+strings.ToLower(t), t, members, model.MethodPKMType, now)
		c.Name = t
		c.InternalEdges = g.InternalEdges(c.MemberIDs)
		c.Cohesion = float64(c.InternalEdges) / math.Max(float64(len(members)), 1)
		clusters = append(clusters, c)
		clusterTypes[c.ID] = t
	}

	result := &model.ClusterResult{
		Status:     model.StatusSuccess,
		Clusters:   clusters,
		Edges:      CrossingEdges(clusters, clusterTypes, snap.Edges, o.relations),
		TotalNodes: len(snap.Entities),
		Method:     model.MethodPKMType,
		ComputedAt: now,
	}
	if len(clusters) == 0 {
		result.Status = model.StatusUnavailable
		result.Message = "no entities found"
	}
	return result, nil
}

// Detail describes the members of one cluster of result and the relation edges between them.
// The snapshot is filtered with the entity view filter first.
func (o *Orchestrator) Detail(snapshot *model.Snapshot, result *model.ClusterResult, clusterID string) (*model.ClusterDetail, error) {
	cluster, ok := result.Cluster(clusterID)
	if !ok {
		return nil, helper.NewError(fmt.Sprintf("cluster %s", clusterID), ErrClusterNotFound)
	}

	snap := snapshot.Filter(o.cfg.EntityView)
	entities := snap.EntityIndex()
	documentsOf := snap.DocumentsByEntity()

	inCluster := make(map[uuid.UUID]bool, len(cluster.MemberIDs))
	for _, id := range cluster.MemberIDs {
		inCluster[id] = true
	}

	connections := map[uuid.UUID]int{}
	relations := []*model.RelationDetail{}
	for _, e := range snap.Edges {
		from, to := entities[e.SourceEntityID], entities[e.TargetEntityID]
		if from == nil || to == nil || !inCluster[from.ID] || !inCluster[to.ID] {
			continue
		}
		connections[e.SourceEntityID]++
		if e.TargetEntityID != e.SourceEntityID {
			connections[e.TargetEntityID]++
		}

		relation := o.relations.Infer(from.Type, to.Type)
		relations = append(relations, &model.RelationDetail{
			Edge:        e,
			Relation:    relation.EdgeType,
			Label:       relation.Label,
			Description: relation.Description,
		})
	}

	details := []*model.EntityDetail{}
	for _, id := range cluster.MemberIDs {
		e, ok := entities[id]
		if !ok {
			continue
		}
		docs := documentsOf[id]
		if len(docs) > maxDetailDocuments {
			docs = docs[:maxDetailDocuments]
		}
		details = append(details, &model.EntityDetail{
			Entity:      e,
			Connections: connections[id],
			DocumentIDs: append([]uuid.UUID{}, docs...),
		})
	}
	sort.SliceStable(details, func(i, j int) bool {
		return details[i].Connections > details[j].Connections
	})

	return &model.ClusterDetail{
		Cluster:   cluster,
		Entities:  details,
		Relations: relations,
	}, nil
}
