package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/PhD-Shin/PKM/core/community"
	"github.com/PhD-Shin/PKM/core/embedding"
	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entityConfig() model.ClusterConfig {
	cfg := model.DefaultClusterConfig()
	cfg.EntityView.MinConnections = 0
	return cfg
}

// pkmSnapshot has no entity embeddings and covers Goal, Task and Person (Topic) entities.
func pkmSnapshot() (*snapshotBuilder, map[string]*model.Entity) {
	b := newSnapshot()
	e := map[string]*model.Entity{
		"goal":   b.entity("Graduate", "Goal", nil),
		"task1":  b.entity("Write thesis", "Task", nil),
		"task2":  b.entity("Submit thesis", "task", nil),
		"person": b.entity("Advisor", "Person", nil),
		"topic":  b.entity("Machine Learning", "Topic", nil),
	}
	b.relate(e["goal"], e["task1"])
	b.relate(e["task1"], e["task2"])
	b.relate(e["person"], e["topic"])
	b.relate(e["goal"], e["topic"])
	return b, e
}

func TestPKMType(t *testing.T) {
	assert.Equal(t, "Goal", PKMType("goal"))
	assert.Equal(t, "Resource", PKMType(" Resource "))
	assert.Equal(t, "Topic", PKMType("Person"))
	assert.Equal(t, "Topic", PKMType(""))
	assert.Equal(t, "Topic", PKMType("Spaceship"))
}

func TestComputeEntityClusters(t *testing.T) {
	ctx := context.Background()

	t.Run("Default configuration keeps every PKM type", func(t *testing.T) {
		b, e := pkmSnapshot()
		e["concept"] = b.entity("Modularity", "Concept", nil)
		d := b.doc("notes", nil)
		for _, entity := range e {
			b.mention(d, entity)
		}
		clusterer := embedding.NewClusterer(embedding.Options{Seed: 42}, nil)

		result, err := newTestOrchestrator(model.DefaultClusterConfig(), clusterer, nil).ComputeEntityClusters(ctx, b.snap)
		require.NoError(t, err)

		assert.Equal(t, 6, result.TotalNodes, "Expected no entity to be dropped by type")
		ids := []string{}
		for _, c := range result.Clusters {
			ids = append(ids, c.ID)
		}
		assert.Equal(t, []string{"cluster_goal", "cluster_task", "cluster_topic", "cluster_concept"}, ids)
		assertTotalCoverage(t, result, b.snap.Entities)
	})

	t.Run("Without entity embeddings entities are grouped by PKM type", func(t *testing.T) {
		b, e := pkmSnapshot()
		clusterer := embedding.NewClusterer(embedding.Options{Seed: 42}, nil)

		result, err := newTestOrchestrator(entityConfig(), clusterer, nil).ComputeEntityClusters(ctx, b.snap)
		require.NoError(t, err)

		assert.Equal(t, "entity_hybrid_fallback:no_embeddings", result.Method)
		assert.Equal(t, 5, result.TotalNodes)
		require.Len(t, result.Clusters, 3)

		goal, task, topic := result.Clusters[0], result.Clusters[1], result.Clusters[2]
		assert.Equal(t, "cluster_goal", goal.ID)
		assert.Equal(t, "Goal", goal.Name)
		assert.Equal(t, []uuid.UUID{e["goal"].ID}, goal.MemberIDs)
		assert.Equal(t, 0, goal.InternalEdges)

		assert.Equal(t, "cluster_task", task.ID)
		assert.ElementsMatch(t, []uuid.UUID{e["task1"].ID, e["task2"].ID}, task.MemberIDs)
		assert.Equal(t, 1, task.InternalEdges)
		assert.InDelta(t, 0.5, task.Cohesion, 1e-9)
		assert.Equal(t, map[string]int{"task": 2}, task.TypeDistribution)
		assert.Equal(t, model.MethodPKMType, task.Method)

		assert.Equal(t, "cluster_topic", topic.ID)
		assert.ElementsMatch(t, []uuid.UUID{e["person"].ID, e["topic"].ID}, topic.MemberIDs, "Expected people folded into topics")
		assert.Equal(t, 1, topic.InternalEdges)

		require.Len(t, result.Edges, 2)
		assert.Equal(t, &model.ClusterEdge{
			From:         "cluster_goal",
			To:           "cluster_task",
			Weight:       1,
			RelationType: "REQUIRES",
			Label:        "required task",
			Description:  "Work needed to reach the goal",
		}, result.Edges[0])
		assert.Equal(t, "cluster_goal", result.Edges[1].From)
		assert.Equal(t, "cluster_topic", result.Edges[1].To)
		assert.Equal(t, model.EdgeType("FOCUSES_ON"), result.Edges[1].RelationType)

		assertTotalCoverage(t, result, b.snap.Entities)
	})

	t.Run("Hybrid clusters merge embedding clusters with graph communities", func(t *testing.T) {
		b := newSnapshot()
		stub := &stubClusterer{labels: map[uuid.UUID]int{}}
		var entities []*model.Entity
		for i := 0; i < 8; i++ {
			entityType := "Topic"
			switch {
			case i >= 4 && i < 7:
				entityType = "Project"
			case i == 7:
				entityType = "Task"
			}
			e := b.entity(fmt.Sprintf("e%d", i), entityType, []float32{1, float32(i)})
			entities = append(entities, e)
			switch {
			case i < 4:
				stub.labels[e.ID] = 0
			case i < 7:
				stub.labels[e.ID] = 1
			}
		}
		b.relate(entities[0], entities[1])
		b.relate(entities[1], entities[2])
		b.relate(entities[2], entities[3])
		b.relate(entities[4], entities[5])
		b.relate(entities[5], entities[6])
		b.relate(entities[7], entities[4])

		d0 := b.doc("note-0", nil)
		d1 := b.doc("note-1", nil)
		b.mention(d0, entities[0], entities[1])
		b.mention(d1, entities[0], entities[2])

		detector := community.NewDetector(community.Options{Seed: 42}, nil)
		result, err := newTestOrchestrator(entityConfig(), stub, detector).ComputeEntityClusters(ctx, b.snap)
		require.NoError(t, err)

		assert.Equal(t, model.MethodEntityHybrid, result.Method)
		assert.Equal(t, 8, result.TotalNodes)
		require.Len(t, result.Clusters, 3)
		assertTotalCoverage(t, result, b.snap.Entities)

		first, second, third := result.Clusters[0], result.Clusters[1], result.Clusters[2]
		assert.Equal(t, "cluster_1", first.ID)
		assert.ElementsMatch(t, []uuid.UUID{entities[0].ID, entities[1].ID, entities[2].ID, entities[3].ID}, first.MemberIDs)
		assert.Equal(t, entities[0].ID, first.MemberIDs[0], "Expected the most central entity first")
		assert.Equal(t, 3, first.InternalEdges)
		assert.InDelta(t, 0.75, first.Cohesion, 1e-9)
		require.NotEmpty(t, first.Hubs)
		assert.Equal(t, "e0", first.Hubs[0].Name)
		assert.Len(t, first.DocumentIDs, 2)

		assert.ElementsMatch(t, []uuid.UUID{entities[4].ID, entities[5].ID, entities[6].ID}, second.MemberIDs)
		assert.Equal(t, 2, second.InternalEdges)
		assert.Empty(t, second.Hubs)
		assert.Equal(t, "Project Cluster", second.Name)

		assert.Equal(t, []uuid.UUID{entities[7].ID}, third.MemberIDs, "Expected the noise entity in its own graph community")

		require.Len(t, result.Edges, 1)
		assert.Equal(t, "cluster_2", result.Edges[0].From)
		assert.Equal(t, "cluster_3", result.Edges[0].To)
		assert.Equal(t, model.EdgeType("REQUIRES"), result.Edges[0].RelationType)
		assert.Equal(t, "required work", result.Edges[0].Label)

		again, err := newTestOrchestrator(entityConfig(), stub, detector).ComputeEntityClusters(ctx, b.snap)
		require.NoError(t, err)
		assert.Equal(t, result, again, "Expected identical results for identical input")
	})

	t.Run("All noise embeddings leave the graph communities", func(t *testing.T) {
		b := newSnapshot()
		var entities []*model.Entity
		for i := 0; i < 6; i++ {
			entities = append(entities, b.entity(fmt.Sprintf("e%d", i), "Topic", []float32{1, float32(i)}))
		}
		b.relate(entities[0], entities[1])
		b.relate(entities[1], entities[2])
		b.relate(entities[2], entities[0])
		b.relate(entities[3], entities[4])
		b.relate(entities[4], entities[5])
		b.relate(entities[5], entities[3])
		b.relate(entities[2], entities[3])

		stub := &stubClusterer{err: embedding.ErrNoClusters}
		detector := community.NewDetector(community.Options{Seed: 42}, nil)

		result, err := newTestOrchestrator(entityConfig(), stub, detector).ComputeEntityClusters(ctx, b.snap)
		require.NoError(t, err)
		assert.Equal(t, model.MethodEntityHybrid, result.Method)
		require.Len(t, result.Clusters, 2)
		assertTotalCoverage(t, result, b.snap.Entities)
		require.Len(t, result.Edges, 1)
		assert.Equal(t, 1.0, result.Edges[0].Weight)
		assert.Equal(t, model.EdgeType("RELATED_TO"), result.Edges[0].RelationType, "Expected the topic to topic relation")
	})

	t.Run("Missing clusterer falls back", func(t *testing.T) {
		b, _ := pkmSnapshot()

		result, err := newTestOrchestrator(entityConfig(), nil, nil).ComputeEntityClusters(ctx, b.snap)
		require.NoError(t, err)
		assert.Equal(t, "entity_hybrid_fallback:dependency_missing", result.Method)
	})

	t.Run("Too few entity embeddings falls back", func(t *testing.T) {
		b, e := pkmSnapshot()
		e["goal"].Embedding = []float32{1, 0}
		stub := &stubClusterer{}

		result, err := newTestOrchestrator(entityConfig(), stub, nil).ComputeEntityClusters(ctx, b.snap)
		require.NoError(t, err)
		assert.Equal(t, "entity_hybrid_fallback:insufficient_samples", result.Method)
		assert.Equal(t, 0, stub.calls)
	})

	t.Run("No entities", func(t *testing.T) {
		result, err := newTestOrchestrator(entityConfig(), nil, nil).ComputeEntityClusters(ctx, &model.Snapshot{})
		require.NoError(t, err)
		assert.Empty(t, result.Clusters)
		assert.Equal(t, model.StatusUnavailable, result.Status)
		assert.Equal(t, "no entities found", result.Message)
	})
}

func TestDetail(t *testing.T) {
	ctx := context.Background()
	b, e := pkmSnapshot()
	d := b.doc("thesis plan", nil)
	b.mention(d, e["task1"], e["task2"])

	o := newTestOrchestrator(entityConfig(), nil, nil)
	result, err := o.ComputeEntityClusters(ctx, b.snap)
	require.NoError(t, err)

	t.Run("Members and labelled internal relations", func(t *testing.T) {
		detail, err := o.Detail(b.snap, result, "cluster_task")
		require.NoError(t, err)

		assert.Equal(t, "cluster_task", detail.Cluster.ID)
		require.Len(t, detail.Entities, 2)
		for _, entity := range detail.Entities {
			assert.Equal(t, 1, entity.Connections)
			assert.Equal(t, []uuid.UUID{d.RID}, entity.DocumentIDs)
		}

		require.Len(t, detail.Relations, 1)
		assert.Equal(t, e["task1"].ID, detail.Relations[0].Edge.SourceEntityID)
		assert.Equal(t, model.EdgeType("BLOCKS"), detail.Relations[0].Relation)
		assert.Equal(t, "blocking task", detail.Relations[0].Label)
	})

	t.Run("People relate to topics by interest", func(t *testing.T) {
		detail, err := o.Detail(b.snap, result, "cluster_topic")
		require.NoError(t, err)
		require.Len(t, detail.Relations, 1)
		assert.Equal(t, model.EdgeType("INTERESTED_IN"), detail.Relations[0].Relation)
	})

	t.Run("Unknown cluster", func(t *testing.T) {
		_, err := o.Detail(b.snap, result, "cluster_nope")
		assert.ErrorIs(t, err, ErrClusterNotFound)
	})
}
