package graph

import (
	"github.com/google/uuid"
)

// TraversalResult is an entity reached from the source and the path taken.
type TraversalResult struct {
	EntityID uuid.UUID
	Distance int
	Path     []uuid.UUID
}

// BFS performs a breadth-first search from source up to maxHops.
// The source itself is the first result. Unknown sources yield nil.
func (g *EntityGraph) BFS(source uuid.UUID, maxHops int) []*TraversalResult {
	start, ok := g.index[source]
	if !ok {
		return nil
	}

	visited := map[int]bool{start: true}
	queue := []*TraversalResult{{
		EntityID: source,
		Distance: 0,
		Path:     []uuid.UUID{source},
	}}

	var results []*TraversalResult
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		results = append(results, current)

		if current.Distance >= maxHops {
			continue
		}

		for _, j := range g.adj[g.index[current.EntityID]] {
			if visited[j] {
				continue
			}
			visited[j] = true

			path := make([]uuid.UUID, len(current.Path), len(current.Path)+1)
			copy(path, current.Path)
			path = append(path, g.ids[j])

			queue = append(queue, &TraversalResult{
				EntityID: g.ids[j],
				Distance: current.Distance + 1,
				Path:     path,
			})
		}
	}

	return results
}
