package orchestrator

import (
	"testing"

	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedEntityEdges(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	t.Run("Weight is the number of shared members", func(t *testing.T) {
		clusters := []*model.Cluster{
			{ID: "cluster_1", MemberIDs: []uuid.UUID{a, b, c}},
			{ID: "cluster_2", MemberIDs: []uuid.UUID{b, c, d}},
			{ID: "cluster_3", MemberIDs: []uuid.UUID{d}},
			{ID: "cluster_4"},
		}

		edges := SharedEntityEdges(clusters)

		assert.Equal(t, []*model.ClusterEdge{
			{From: "cluster_1", To: "cluster_2", Weight: 2, RelationType: model.EdgeTypeRelatedTo},
			{From: "cluster_2", To: "cluster_3", Weight: 1, RelationType: model.EdgeTypeRelatedTo},
		}, edges)
	})

	t.Run("Disjoint clusters have no edges", func(t *testing.T) {
		edges := SharedEntityEdges([]*model.Cluster{
			{ID: "cluster_1", MemberIDs: []uuid.UUID{a}},
			{ID: "cluster_2", MemberIDs: []uuid.UUID{b}},
		})
		assert.Empty(t, edges)
		assert.Empty(t, SharedEntityEdges(nil))
	})
}

func TestCrossingEdges(t *testing.T) {
	goal, project, task1, task2, outsider := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()
	clusters := []*model.Cluster{
		{ID: "cluster_goal", MemberIDs: []uuid.UUID{goal}},
		{ID: "cluster_project", MemberIDs: []uuid.UUID{project}},
		{ID: "cluster_task", MemberIDs: []uuid.UUID{task1, task2}},
	}
	types := map[string]string{"cluster_goal": "Goal", "cluster_project": "Project", "cluster_task": "Task"}
	edge := func(from, to uuid.UUID) *model.Edge {
		return &model.Edge{SourceEntityID: from, TargetEntityID: to, EdgeType: model.EdgeTypeRelatesTo}
	}

	edges := CrossingEdges(clusters, types, []*model.Edge{
		edge(task1, project),
		edge(project, task2),
		edge(task1, task2),
		edge(goal, outsider),
		edge(task2, goal),
	}, NewRelationTable(nil))

	require.Len(t, edges, 2)
	assert.Equal(t, "cluster_goal", edges[0].From, "Expected pairs ordered by cluster position")
	assert.Equal(t, "cluster_task", edges[0].To)
	assert.Equal(t, 1.0, edges[0].Weight)
	assert.Equal(t, model.EdgeType("REQUIRES"), edges[0].RelationType)

	assert.Equal(t, "cluster_project", edges[1].From)
	assert.Equal(t, "cluster_task", edges[1].To)
	assert.Equal(t, 2.0, edges[1].Weight, "Expected both directions counted")
	assert.Equal(t, "required work", edges[1].Label)
}
