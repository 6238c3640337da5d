package community

import (
	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
)

// Merge reconciles a graph partition and an embedding partition over ids into one
// total, disjoint partition.
//
// Embedding clusters win. Embedding noise takes its graph community shifted past the
// largest embedding label. Ids unresolved by both adopt the majority final label of
// their graph community peers (ties go to the label seen first), and the rest get
// fresh singleton labels.
func Merge(ids []uuid.UUID, graphClusters, embeddingClusters model.Assignment) model.Assignment {
	maxEmbedding := model.NoiseLabel
	for _, id := range ids {
		if l := embeddingClusters.Label(id); l > maxEmbedding {
			maxEmbedding = l
		}
	}
	offset := maxEmbedding + 1

	final := make(model.Assignment, len(ids))
	var unresolved []uuid.UUID
	for _, id := range ids {
		if l := embeddingClusters.Label(id); l >= 0 {
			final[id] = l
			continue
		}
		if g := graphClusters.Label(id); g >= 0 {
			final[id] = g + offset
			continue
		}
		final[id] = model.NoiseLabel
		unresolved = append(unresolved, id)
	}

	for _, id := range unresolved {
		g := graphClusters.Label(id)
		if g < 0 {
			continue
		}
		counts := map[int]int{}
		var order []int
		for _, peer := range ids {
			if peer == id || graphClusters.Label(peer) != g {
				continue
			}
			l := final[peer]
			if l < 0 {
				continue
			}
			if counts[l] == 0 {
				order = append(order, l)
			}
			counts[l]++
		}
		best, bestCount := model.NoiseLabel, 0
		for _, l := range order {
			if counts[l] > bestCount {
				best, bestCount = l, counts[l]
			}
		}
		final[id] = best
	}

	next := 0
	for _, l := range final {
		if l >= next {
			next = l + 1
		}
	}
	for _, id := range ids {
		if final[id] < 0 {
			final[id] = next
			next++
		}
	}

	return final
}
