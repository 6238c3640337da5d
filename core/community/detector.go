package community

import (
	"context"
	"log/slog"
	"sort"

	"github.com/PhD-Shin/PKM/core/graph"
	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// Options configure a Detector.
type Options struct {
	Resolution float64
	Seed       int64
	Disabled   bool
}

// Detector partitions an entity graph into modularity maximising communities (Louvain).
type Detector struct {
	opts Options
	log  *slog.Logger
}

// NewDetector creates a Detector. Resolution defaults to 1.0.
func NewDetector(opts Options, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Resolution <= 0 {
		opts.Resolution = 1.0
	}
	return &Detector{
		opts: opts,
		log:  logger,
	}
}

// Detect returns a community id >= 0 for every node of g.
//
// Without edges every node is its own community, numbered in node order.
// A disabled detector puts every node into community 0.
// Otherwise communities are numbered by the position of their first node so that
// the same graph and seed always give the same assignment.
func (d *Detector) Detect(ctx context.Context, g *graph.EntityGraph) (model.Assignment, error) {
	ids := g.IDs()
	assignment := make(model.Assignment, len(ids))

	if d == nil || d.opts.Disabled {
		for _, id := range ids {
			assignment[id] = 0
		}
		return assignment, nil
	}

	if !g.HasEdges() {
		for i, id := range ids {
			assignment[id] = i
		}
		return assignment, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, helper.NewError("detect communities", err)
	}

	wg := simple.NewWeightedUndirectedGraph(0, 0)
	for i := range ids {
		wg.AddNode(simple.Node(int64(i)))
	}
	g.WeightedPairs(func(i, j int, weight float64) {
		wg.SetWeightedEdge(wg.NewWeightedEdge(simple.Node(int64(i)), simple.Node(int64(j)), weight))
	})

	reduced := community.Modularize(wg, d.opts.Resolution, helper.NewSource(d.opts.Seed))
	raw := reduced.Communities()
	communities := normalize(raw)

	for label, members := range communities {
		for _, i := range members {
			assignment[ids[i]] = label
		}
	}

	d.log.Debug("Detected communities", slog.Int("nodes", len(ids)), slog.Int("communities", len(communities)), slog.Float64("modularity", community.Q(wg, raw, d.opts.Resolution)))

	return assignment, nil
}

// normalize sorts members of each community and orders communities by their first member.
func normalize(communities [][]gonumgraph.Node) [][]int {
	out := make([][]int, 0, len(communities))
	for _, c := range communities {
		if len(c) == 0 {
			continue
		}
		members := make([]int, len(c))
		for i, n := range c {
			members[i] = int(n.ID())
		}
		sort.Ints(members)
		out = append(out, members)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a][0] < out[b][0]
	})
	return out
}
