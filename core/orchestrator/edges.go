package orchestrator

import (
	"sort"

	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
)

// SharedEntityEdges connects every pair of clusters sharing at least one member.
// The weight is the number of shared members.
func SharedEntityEdges(clusters []*model.Cluster) []*model.ClusterEdge {
	edges := []*model.ClusterEdge{}
	for i := 0; i < len(clusters); i++ {
		if len(clusters[i].MemberIDs) == 0 {
			continue
		}
		members := make(map[uuid.UUID]bool, len(clusters[i].MemberIDs))
		for _, id := range clusters[i].MemberIDs {
			members[id] = true
		}
		for j := i + 1; j < len(clusters); j++ {
			shared := 0
			counted := map[uuid.UUID]bool{}
			for _, id := range clusters[j].MemberIDs {
				if members[id] && !counted[id] {
					counted[id] = true
					shared++
				}
			}
			if shared == 0 {
				continue
			}
			edges = append(edges, &model.ClusterEdge{
				From:         clusters[i].ID,
				To:           clusters[j].ID,
				Weight:       float64(shared),
				RelationType: model.EdgeTypeRelatedTo,
			})
		}
	}
	return edges
}

// CrossingEdges counts the relation edges running between two different clusters and
// labels every cluster pair with the relation between their types.
// clusterTypes maps a cluster id to the entity type it stands for.
func CrossingEdges(clusters []*model.Cluster, clusterTypes map[string]string, relations []*model.Edge, table *RelationTable) []*model.ClusterEdge {
	clusterOf := map[uuid.UUID]string{}
	position := map[string]int{}
	for i, c := range clusters {
		position[c.ID] = i
		for _, id := range c.MemberIDs {
			clusterOf[id] = c.ID
		}
	}

	counts := map[[2]string]int{}
	for _, e := range relations {
		from, okFrom := clusterOf[e.SourceEntityID]
		to, okTo := clusterOf[e.TargetEntityID]
		if !okFrom || !okTo || from == to {
			continue
		}
		if position[from] > position[to] {
			from, to = to, from
		}
		counts[[2]string{from, to}]++
	}

	keys := make([][2]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if position[keys[a][0]] != position[keys[b][0]] {
			return position[keys[a][0]] < position[keys[b][0]]
		}
		return position[keys[a][1]] < position[keys[b][1]]
	})

	edges := make([]*model.ClusterEdge, 0, len(keys))
	for _, k := range keys {
		relation := table.Infer(clusterTypes[k[0]], clusterTypes[k[1]])
		edges = append(edges, &model.ClusterEdge{
			From:         k[0],
			To:           k[1],
			Weight:       float64(counts[k]),
			RelationType: relation.EdgeType,
			Label:        relation.Label,
			Description:  relation.Description,
		})
	}
	return edges
}
