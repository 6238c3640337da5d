package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/PhD-Shin/PKM/helper"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Curve parameters of the low dimensional similarity 1/(1+a*d^(2b)) fitted for min_dist=0.1, spread=1.
const (
	curveA = 1.576943460405378
	curveB = 0.8950608781227859

	negativeSampleRate = 5
	gradientClip       = 4.0
	initScale          = 10.0
	smoothKTolerance   = 1e-5
	minKDistScale      = 1e-3
)

// Reducer embeds high dimensional vectors into a few dimensions while preserving
// cosine neighbourhoods. It builds a fuzzy k-nearest-neighbour graph and lays it out
// with seeded stochastic gradient descent starting from a PCA projection.
type Reducer struct {
	Components int
	Neighbors  int
	Epochs     int
	Seed       int64
}

// NewReducer returns a Reducer with the neighbourhood sizes derived from the number of points.
func NewReducer(n int, seed int64) *Reducer {
	components := 5
	if n-1 < components {
		components = n - 1
	}
	neighbors := n - 1
	if neighbors > 15 {
		neighbors = 15
	}
	if neighbors < 2 {
		neighbors = 2
	}
	epochs := 500
	if n > 10000 {
		epochs = 200
	}
	return &Reducer{
		Components: components,
		Neighbors:  neighbors,
		Epochs:     epochs,
		Seed:       seed,
	}
}

type graphEdge struct {
	head, tail int
	weight     float64
}

// FitTransform returns the low dimensional coordinates of data, one row per input row.
func (r *Reducer) FitTransform(ctx context.Context, data [][]float64) ([][]float64, error) {
	n := len(data)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 points, got %d", n)
	}
	dim := len(data[0])
	components := r.Components
	if components > dim {
		components = dim
	}
	if components < 1 {
		return nil, fmt.Errorf("invalid number of components %d", r.Components)
	}
	k := r.Neighbors
	if k > n-1 {
		k = n - 1
	}

	unit := make([][]float64, n)
	for i, row := range data {
		if len(row) != dim {
			return nil, fmt.Errorf("row %d has dimension %d, expected %d", i, len(row), dim)
		}
		u := make([]float64, dim)
		copy(u, row)
		if norm := floats.Norm(u, 2); norm > 0 {
			floats.Scale(1/norm, u)
		}
		unit[i] = u
	}

	edges := fuzzyGraph(unit, k)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := helper.NewSource(r.Seed)
	embedding := initialLayout(unit, components, rng)

	r.optimize(ctx, embedding, edges, rng)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return embedding, nil
}

func cosineDistance(a, b []float64) float64 {
	d := 1 - floats.Dot(a, b)
	if d < 0 {
		return 0
	}
	return d
}

// fuzzyGraph builds the symmetrised fuzzy simplicial set of the k nearest neighbours.
func fuzzyGraph(unit [][]float64, k int) []graphEdge {
	n := len(unit)
	directed := make(map[[2]int]float64, n*k)

	target := math.Log2(float64(k))
	idx := make([]int, 0, n-1)
	dists := make([]float64, n)

	for i := 0; i < n; i++ {
		idx = idx[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			dists[j] = cosineDistance(unit[i], unit[j])
			idx = append(idx, j)
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return dists[idx[a]] < dists[idx[b]]
		})
		neighbors := idx[:k]

		rho := 0.0
		mean := 0.0
		for _, j := range neighbors {
			mean += dists[j]
			if rho == 0 && dists[j] > 0 {
				rho = dists[j]
			}
		}
		mean /= float64(k)

		sigma := smoothSigma(neighbors, dists, rho, target)
		if minSigma := minKDistScale * mean; sigma < minSigma {
			sigma = minSigma
		}

		for _, j := range neighbors {
			d := dists[j] - rho
			w := 1.0
			if d > 0 && sigma > 0 {
				w = math.Exp(-d / sigma)
			}
			directed[[2]int{i, j}] = w
		}
	}

	edges := make([]graphEdge, 0, len(directed)*2)
	done := make(map[[2]int]bool, len(directed))
	for key := range directed {
		i, j := key[0], key[1]
		if i > j {
			i, j = j, i
		}
		pair := [2]int{i, j}
		if done[pair] {
			continue
		}
		done[pair] = true
		a := directed[[2]int{i, j}]
		b := directed[[2]int{j, i}]
		w := a + b - a*b
		if w <= 0 {
			continue
		}
		edges = append(edges, graphEdge{head: i, tail: j, weight: w}, graphEdge{head: j, tail: i, weight: w})
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].head != edges[b].head {
			return edges[a].head < edges[b].head
		}
		return edges[a].tail < edges[b].tail
	})
	return edges
}

// smoothSigma finds sigma with sum(exp(-(d-rho)/sigma)) == log2(k) by bisection.
func smoothSigma(neighbors []int, dists []float64, rho, target float64) float64 {
	lo, hi, mid := 0.0, math.Inf(1), 1.0
	for iter := 0; iter < 64; iter++ {
		psum := 0.0
		for _, j := range neighbors {
			d := dists[j] - rho
			if d > 0 {
				psum += math.Exp(-d / mid)
			} else {
				psum += 1
			}
		}
		if math.Abs(psum-target) < smoothKTolerance {
			break
		}
		if psum > target {
			hi = mid
			mid = (lo + hi) / 2
		} else {
			lo = mid
			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}
	}
	return mid
}

// initialLayout projects the points on their first principal components and scales
// the result to [-initScale, initScale]. Falls back to a seeded uniform layout.
func initialLayout(unit [][]float64, components int, rng *helper.Source) [][]float64 {
	n, dim := len(unit), len(unit[0])
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, components)
	}

	flat := make([]float64, 0, n*dim)
	for _, row := range unit {
		flat = append(flat, row...)
	}
	x := mat.NewDense(n, dim, flat)

	var pc stat.PC
	ok := pc.PrincipalComponents(x, nil)
	if ok {
		var vecs mat.Dense
		pc.VectorsTo(&vecs)
		_, available := vecs.Dims()
		if available < components {
			ok = false
		} else {
			var proj mat.Dense
			proj.Mul(x, vecs.Slice(0, dim, 0, components))
			for i := 0; i < n; i++ {
				for c := 0; c < components; c++ {
					out[i][c] = proj.At(i, c)
				}
			}
		}
	}
	if !ok {
		for i := range out {
			for c := range out[i] {
				out[i][c] = rng.Float64()*2*initScale - initScale
			}
		}
		return out
	}

	for c := 0; c < components; c++ {
		mean := 0.0
		for i := 0; i < n; i++ {
			mean += out[i][c]
		}
		mean /= float64(n)
		maxAbs := 0.0
		for i := 0; i < n; i++ {
			out[i][c] -= mean
			maxAbs = math.Max(maxAbs, math.Abs(out[i][c]))
		}
		scale := 1.0
		if maxAbs > 0 {
			scale = initScale / maxAbs
		}
		for i := 0; i < n; i++ {
			out[i][c] = out[i][c]*scale + (rng.Float64()-0.5)*1e-4
		}
	}
	return out
}

func clip(v float64) float64 {
	if v > gradientClip {
		return gradientClip
	}
	if v < -gradientClip {
		return -gradientClip
	}
	return v
}

// optimize runs the attractive/repulsive SGD over the fuzzy graph edges in place.
func (r *Reducer) optimize(ctx context.Context, embedding [][]float64, edges []graphEdge, rng *helper.Source) {
	if len(edges) == 0 {
		return
	}
	n := len(embedding)
	dim := len(embedding[0])
	epochs := r.Epochs
	if epochs <= 0 {
		epochs = 200
	}

	maxW := 0.0
	for _, e := range edges {
		maxW = math.Max(maxW, e.weight)
	}

	epochsPerSample := make([]float64, len(edges))
	for i, e := range edges {
		if e.weight < maxW/float64(epochs) {
			epochsPerSample[i] = -1
			continue
		}
		epochsPerSample[i] = maxW / e.weight
	}
	epochsPerNeg := make([]float64, len(edges))
	nextSample := make([]float64, len(edges))
	nextNeg := make([]float64, len(edges))
	for i, eps := range epochsPerSample {
		epochsPerNeg[i] = eps / negativeSampleRate
		nextSample[i] = eps
		nextNeg[i] = epochsPerNeg[i]
	}

	for epoch := 0; epoch < epochs; epoch++ {
		if epoch%50 == 0 && ctx.Err() != nil {
			return
		}
		alpha := 1 - float64(epoch)/float64(epochs)
		fe := float64(epoch)

		for i, e := range edges {
			if epochsPerSample[i] <= 0 || nextSample[i] > fe {
				continue
			}
			current := embedding[e.head]
			other := embedding[e.tail]

			distSq := squaredDistance(current, other)
			if distSq > 0 {
				coeff := -2 * curveA * curveB * math.Pow(distSq, curveB-1) / (curveA*math.Pow(distSq, curveB) + 1)
				for d := 0; d < dim; d++ {
					g := clip(coeff * (current[d] - other[d]))
					current[d] += g * alpha
					other[d] -= g * alpha
				}
			}
			nextSample[i] += epochsPerSample[i]

			negatives := int((fe - nextNeg[i]) / epochsPerNeg[i])
			for p := 0; p < negatives; p++ {
				k := rng.Intn(n)
				if k == e.head {
					continue
				}
				other := embedding[k]
				distSq := squaredDistance(current, other)
				coeff := 0.0
				if distSq > 0 {
					coeff = 2 * curveB / ((0.001 + distSq) * (curveA*math.Pow(distSq, curveB) + 1))
				}
				for d := 0; d < dim; d++ {
					g := gradientClip
					if coeff > 0 {
						g = clip(coeff * (current[d] - other[d]))
					}
					current[d] += g * alpha
				}
			}
			nextNeg[i] += float64(negatives) * epochsPerNeg[i]
		}
	}
}

func squaredDistance(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
