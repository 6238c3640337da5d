package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
)

var (
	// ErrUnavailable is returned when embedding clustering is switched off.
	ErrUnavailable = errors.New("embedding clustering is unavailable")
	// ErrInsufficientData is returned when fewer than MinPoints embeddings are given.
	ErrInsufficientData = errors.New("not enough embeddings to cluster")
	// ErrNoClusters is returned when every point is classified as noise.
	ErrNoClusters = errors.New("no clusters found")
)

// Item is one embedding to cluster.
type Item struct {
	ID     uuid.UUID
	Vector []float32
}

// Options configure a Clusterer.
type Options struct {
	Seed       int64
	MinPoints  int
	MinSamples int
	Epsilon    float64
	Disabled   bool
}

// Clusterer groups embeddings by reducing them to a few dimensions and running HDBSCAN.
type Clusterer struct {
	opts Options
	log  *slog.Logger
}

// NewClusterer creates a Clusterer. A nil logger uses slog.Default().
func NewClusterer(opts Options, logger *slog.Logger) *Clusterer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MinPoints < 2 {
		opts.MinPoints = 5
	}
	if opts.MinSamples < 1 {
		opts.MinSamples = 2
	}
	return &Clusterer{
		opts: opts,
		log:  logger,
	}
}

// MinPoints is the smallest number of embeddings Cluster accepts.
func (c *Clusterer) MinPoints() int {
	return c.opts.MinPoints
}

// Cluster assigns every item a label. Items without a vector, or with a dimension
// differing from the first vector, are labelled as noise.
// The same input and seed always produce the same assignment.
func (c *Clusterer) Cluster(ctx context.Context, items []Item) (model.Assignment, error) {
	if c == nil || c.opts.Disabled {
		return nil, ErrUnavailable
	}

	assignment := make(model.Assignment, len(items))
	var ids []uuid.UUID
	var data [][]float64
	dim := 0
	for _, item := range items {
		assignment[item.ID] = model.NoiseLabel
		if len(item.Vector) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(item.Vector)
		}
		if len(item.Vector) != dim {
			c.log.Warn("Skipping embedding with mismatched dimension", slog.String("id", item.ID.String()), slog.Int("dimension", len(item.Vector)), slog.Int("expected", dim))
			continue
		}
		row := make([]float64, dim)
		for i, v := range item.Vector {
			row[i] = float64(v)
		}
		ids = append(ids, item.ID)
		data = append(data, row)
	}

	n := len(data)
	if n < c.opts.MinPoints {
		return nil, helper.NewError(fmt.Sprintf("cluster %d embeddings", n), ErrInsufficientData)
	}

	reducer := NewReducer(n, c.opts.Seed)
	reduced, err := reducer.FitTransform(ctx, data)
	if err != nil {
		return nil, helper.NewError("reduce embeddings", err)
	}

	minClusterSize := n / 50
	if minClusterSize < c.opts.MinPoints {
		minClusterSize = c.opts.MinPoints
	}
	hdbscan := &HDBSCAN{
		MinClusterSize: minClusterSize,
		MinSamples:     c.opts.MinSamples,
		Epsilon:        c.opts.Epsilon,
	}
	labels := hdbscan.Fit(reduced)

	clusters := 0
	noise := 0
	for i, l := range labels {
		assignment[ids[i]] = l
		if l == model.NoiseLabel {
			noise++
		} else if l+1 > clusters {
			clusters = l + 1
		}
	}

	c.log.Debug("Clustered embeddings", slog.Int("points", n), slog.Int("components", reducer.Components), slog.Int("clusters", clusters), slog.Int("noise", noise))

	if clusters == 0 {
		return nil, ErrNoClusters
	}
	return assignment, nil
}
