package graph

import (
	"sort"

	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
)

// EntityGraph is an undirected weighted view of the relation edges between a fixed set of entities.
// Parallel edges are summed and self loops dropped.
type EntityGraph struct {
	ids     []uuid.UUID
	index   map[uuid.UUID]int
	weights map[[2]int]float64
	adj     [][]int
	edges   []*model.Edge
}

// New builds the graph over ids. Edges with an endpoint outside ids are ignored.
// If edgeTypes is non-empty only edges of those types are used.
func New(ids []uuid.UUID, edges []*model.Edge, edgeTypes ...model.EdgeType) *EntityGraph {
	g := &EntityGraph{
		ids:     append([]uuid.UUID(nil), ids...),
		index:   make(map[uuid.UUID]int, len(ids)),
		weights: map[[2]int]float64{},
		adj:     make([][]int, len(ids)),
	}
	for i, id := range g.ids {
		g.index[id] = i
	}

	allowed := map[model.EdgeType]bool{}
	for _, t := range edgeTypes {
		allowed[t] = true
	}

	for _, e := range edges {
		if e == nil || (len(allowed) > 0 && !allowed[e.EdgeType]) {
			continue
		}
		a, okA := g.index[e.SourceEntityID]
		b, okB := g.index[e.TargetEntityID]
		if !okA || !okB {
			continue
		}
		g.edges = append(g.edges, e)
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		key := [2]int{a, b}
		if _, exists := g.weights[key]; !exists {
			g.adj[a] = append(g.adj[a], b)
			g.adj[b] = append(g.adj[b], a)
		}
		g.weights[key] += w
	}
	for i := range g.adj {
		sort.Ints(g.adj[i])
	}
	return g
}

// IDs returns the node ids in construction order.
func (g *EntityGraph) IDs() []uuid.UUID {
	return g.ids
}

// Len is the number of nodes.
func (g *EntityGraph) Len() int {
	return len(g.ids)
}

// Index returns the position of id, false if it is not a node.
func (g *EntityGraph) Index(id uuid.UUID) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Edges returns the relation edges between nodes, self loops included.
func (g *EntityGraph) Edges() []*model.Edge {
	return g.edges
}

// WeightedPairs calls fn for every connected node pair (i < j) in ascending order.
func (g *EntityGraph) WeightedPairs(fn func(i, j int, weight float64)) {
	keys := make([][2]int, 0, len(g.weights))
	for k := range g.weights {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a][0] != keys[b][0] {
			return keys[a][0] < keys[b][0]
		}
		return keys[a][1] < keys[b][1]
	})
	for _, k := range keys {
		fn(k[0], k[1], g.weights[k])
	}
}

// HasEdges reports whether at least two distinct nodes are connected.
func (g *EntityGraph) HasEdges() bool {
	return len(g.weights) > 0
}

// Degree is the number of distinct neighbours of id.
func (g *EntityGraph) Degree(id uuid.UUID) int {
	i, ok := g.index[id]
	if !ok {
		return 0
	}
	return len(g.adj[i])
}

// Neighbors returns the distinct neighbours of id in node order.
func (g *EntityGraph) Neighbors(id uuid.UUID) []uuid.UUID {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(g.adj[i]))
	for _, j := range g.adj[i] {
		out = append(out, g.ids[j])
	}
	return out
}

// InternalEdges counts relation edges with both endpoints in members.
func (g *EntityGraph) InternalEdges(members []uuid.UUID) int {
	set := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		set[m] = true
	}
	count := 0
	for _, e := range g.edges {
		if set[e.SourceEntityID] && set[e.TargetEntityID] {
			count++
		}
	}
	return count
}
