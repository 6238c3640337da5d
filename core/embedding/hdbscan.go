package embedding

import (
	"math"
	"sort"
)

const maxLambda = 1e12

// HDBSCAN is density based hierarchical clustering over euclidean points using
// excess-of-mass cluster selection.
type HDBSCAN struct {
	MinClusterSize int
	MinSamples     int
	Epsilon        float64
}

type mstEdge struct {
	a, b   int
	weight float64
}

type linkage struct {
	left, right int
	distance    float64
	size        int
}

type condensedEdge struct {
	parent, child int
	lambda        float64
	size          int
}

// Fit returns one label per point. -1 marks noise, clusters are numbered from 0.
func (h *HDBSCAN) Fit(points [][]float64) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	minClusterSize := h.MinClusterSize
	if minClusterSize < 2 {
		minClusterSize = 2
	}
	if n < minClusterSize {
		return labels
	}

	core := coreDistances(points, h.MinSamples)
	tree := singleLinkage(n, mutualReachabilityMST(points, core))
	condensed := condenseTree(n, tree, minClusterSize)
	selected := h.selectClusters(n, condensed)
	if len(selected) == 0 {
		return labels
	}

	root := n
	parentOf := map[int]int{}
	pointParent := make([]int, n)
	for _, e := range condensed {
		if e.child < n {
			pointParent[e.child] = e.parent
		} else {
			parentOf[e.child] = e.parent
		}
	}

	ids := make([]int, 0, len(selected))
	for c := range selected {
		ids = append(ids, c)
	}
	sort.Ints(ids)
	labelOf := make(map[int]int, len(ids))
	for i, c := range ids {
		labelOf[c] = i
	}

	for i := 0; i < n; i++ {
		c := pointParent[i]
		for c != root && !selected[c] {
			c = parentOf[c]
		}
		if c != root {
			labels[i] = labelOf[c]
		}
	}
	return labels
}

func euclidean(a, b []float64) float64 {
	return math.Sqrt(squaredDistance(a, b))
}

// coreDistances is the distance of every point to its minSamples-th nearest neighbour,
// counting the point itself.
func coreDistances(points [][]float64, minSamples int) []float64 {
	n := len(points)
	if minSamples < 1 {
		minSamples = 1
	}
	if minSamples > n {
		minSamples = n
	}
	core := make([]float64, n)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			row[j] = euclidean(points[i], points[j])
		}
		sorted := append([]float64(nil), row...)
		sort.Float64s(sorted)
		core[i] = sorted[minSamples-1]
	}
	return core
}

// mutualReachabilityMST runs Prim's algorithm on the complete mutual reachability graph.
func mutualReachabilityMST(points [][]float64, core []float64) []mstEdge {
	n := len(points)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
		from[i] = -1
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			w := math.Max(euclidean(points[current], points[j]), math.Max(core[current], core[j]))
			if w < best[j] {
				best[j] = w
				from[j] = current
			}
		}
		next := -1
		for j := 0; j < n; j++ {
			if !inTree[j] && (next < 0 || best[j] < best[next]) {
				next = j
			}
		}
		edges = append(edges, mstEdge{a: from[next], b: next, weight: best[next]})
		inTree[next] = true
		current = next
	}

	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].weight < edges[j].weight
	})
	return edges
}

// singleLinkage turns the sorted MST into a dendrogram. Node n+i is created by the i-th merge.
func singleLinkage(n int, edges []mstEdge) []linkage {
	parent := make([]int, 2*n-1)
	size := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
		if i < n {
			size[i] = 1
		}
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	tree := make([]linkage, len(edges))
	for i, e := range edges {
		a, b := find(e.a), find(e.b)
		node := n + i
		tree[i] = linkage{left: a, right: b, distance: e.weight, size: size[a] + size[b]}
		parent[a], parent[b] = node, node
		size[node] = size[a] + size[b]
	}
	return tree
}

func lambdaOf(distance float64) float64 {
	if distance <= 1/maxLambda {
		return maxLambda
	}
	return 1 / distance
}

// condenseTree collapses the dendrogram: splits where one side is smaller than
// minClusterSize become points falling out of the parent cluster.
// Cluster labels start at n (the root).
func condenseTree(n int, tree []linkage, minClusterSize int) []condensedEdge {
	root := 2*n - 2
	sizeOf := func(node int) int {
		if node < n {
			return 1
		}
		return tree[node-n].size
	}
	children := func(node int) (int, int) {
		l := tree[node-n]
		return l.left, l.right
	}
	leaves := func(node int, out []int) []int {
		stack := []int{node}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top < n {
				out = append(out, top)
				continue
			}
			l, r := children(top)
			stack = append(stack, r, l)
		}
		return out
	}

	relabel := map[int]int{root: n}
	nextLabel := n + 1
	var result []condensedEdge

	queue := []int{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node < n {
			continue
		}
		left, right := children(node)
		lambda := lambdaOf(tree[node-n].distance)
		leftSize, rightSize := sizeOf(left), sizeOf(right)
		label := relabel[node]

		switch {
		case leftSize >= minClusterSize && rightSize >= minClusterSize:
			relabel[left] = nextLabel
			nextLabel++
			relabel[right] = nextLabel
			nextLabel++
			result = append(result,
				condensedEdge{parent: label, child: relabel[left], lambda: lambda, size: leftSize},
				condensedEdge{parent: label, child: relabel[right], lambda: lambda, size: rightSize},
			)
			queue = append(queue, left, right)
		case leftSize < minClusterSize && rightSize < minClusterSize:
			for _, p := range leaves(left, nil) {
				result = append(result, condensedEdge{parent: label, child: p, lambda: lambda, size: 1})
			}
			for _, p := range leaves(right, nil) {
				result = append(result, condensedEdge{parent: label, child: p, lambda: lambda, size: 1})
			}
		case leftSize < minClusterSize:
			relabel[right] = label
			for _, p := range leaves(left, nil) {
				result = append(result, condensedEdge{parent: label, child: p, lambda: lambda, size: 1})
			}
			queue = append(queue, right)
		default:
			relabel[left] = label
			for _, p := range leaves(right, nil) {
				result = append(result, condensedEdge{parent: label, child: p, lambda: lambda, size: 1})
			}
			queue = append(queue, left)
		}
	}
	return result
}

// selectClusters applies excess-of-mass selection and the epsilon merge.
// The root is never selected.
func (h *HDBSCAN) selectClusters(n int, condensed []condensedEdge) map[int]bool {
	root := n
	births := map[int]float64{root: 0}
	childClusters := map[int][]int{}
	parentOf := map[int]int{}
	maxLabel := root
	for _, e := range condensed {
		if e.child >= n {
			births[e.child] = e.lambda
			childClusters[e.parent] = append(childClusters[e.parent], e.child)
			parentOf[e.child] = e.parent
			if e.child > maxLabel {
				maxLabel = e.child
			}
		}
	}

	stability := map[int]float64{}
	for _, e := range condensed {
		stability[e.parent] += (e.lambda - births[e.parent]) * float64(e.size)
	}

	descendants := func(c int) []int {
		out := []int{}
		stack := append([]int(nil), childClusters[c]...)
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			out = append(out, top)
			stack = append(stack, childClusters[top]...)
		}
		return out
	}

	selected := map[int]bool{}
	for c := root + 1; c <= maxLabel; c++ {
		selected[c] = true
	}
	for c := maxLabel; c > root; c-- {
		childStability := 0.0
		for _, child := range childClusters[c] {
			childStability += stability[child]
		}
		if len(childClusters[c]) > 0 && childStability > stability[c] {
			selected[c] = false
			stability[c] = childStability
		} else {
			for _, d := range descendants(c) {
				selected[d] = false
			}
		}
	}

	out := map[int]bool{}
	for c, ok := range selected {
		if ok {
			out[c] = true
		}
	}
	if h.Epsilon <= 0 || len(out) == 0 {
		return out
	}

	epsilonOf := func(c int) float64 {
		if births[c] <= 0 {
			return math.Inf(1)
		}
		return 1 / births[c]
	}
	var upwards func(c int) int
	upwards = func(c int) int {
		parent := parentOf[c]
		if parent == root {
			return c
		}
		if epsilonOf(parent) > h.Epsilon {
			return parent
		}
		return upwards(parent)
	}

	leaves := make([]int, 0, len(out))
	for c := range out {
		leaves = append(leaves, c)
	}
	sort.Ints(leaves)

	merged := map[int]bool{}
	processed := map[int]bool{}
	for _, c := range leaves {
		if processed[c] {
			continue
		}
		if epsilonOf(c) >= h.Epsilon {
			merged[c] = true
			continue
		}
		candidate := upwards(c)
		merged[candidate] = true
		processed[candidate] = true
		for _, d := range descendants(candidate) {
			processed[d] = true
			delete(merged, d)
		}
	}
	return merged
}
