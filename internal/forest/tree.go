package forest

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
)

const leafFeature = -1

// minDecrease is the smallest weighted impurity decrease accepted for a split.
const minDecrease = 1e-12

// Node is one node of a flattened tree. Internal nodes send x to Left when
// x[Feature] <= Threshold. Leaves have Feature -1 and carry the normalised
// weighted class distribution in Value.
type Node struct {
	Feature   int       `msgpack:"f"`
	Threshold float64   `msgpack:"t"`
	Left      int       `msgpack:"l"`
	Right     int       `msgpack:"r"`
	Value     []float64 `msgpack:"v,omitempty"`
}

// IsLeaf reports whether n is a leaf.
func (n Node) IsLeaf() bool {
	return n.Feature == leafFeature
}

// Tree is a CART classification tree stored in pre-order, so children always
// have larger indexes than their parent.
type Tree struct {
	Nodes []Node `msgpack:"nodes"`
	// Importance is the tree's normalised impurity decrease per feature.
	Importance []float64 `msgpack:"importance"`
}

// Predict returns the class distribution of the leaf x falls into.
func (t *Tree) Predict(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// Leaves returns the number of leaves.
func (t *Tree) Leaves() int {
	count := 0
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			count++
		}
	}
	return count
}

func (t *Tree) validate(numFeatures, numClasses int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.Importance) != numFeatures {
		return fmt.Errorf("tree importance has %d entries, expected %d", len(t.Importance), numFeatures)
	}
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			if len(n.Value) != numClasses {
				return fmt.Errorf("leaf %d has %d class values, expected %d", i, len(n.Value), numClasses)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= numFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, numFeatures)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// treeBuilder grows one tree over a bootstrap sample.
type treeBuilder struct {
	ctx        context.Context
	x          [][]float64
	y          []int
	weight     []float64
	numClasses int
	params     Params
	mtry       int
	rng        *rand.Rand

	nodes      []Node
	importance []float64
	scratch    []int
}

// fitTree grows a tree on the samples in idx, where weight[i] already folds
// in bootstrap multiplicity and class weight.
func fitTree(ctx context.Context, x [][]float64, y []int, weight []float64, idx []int,
	numClasses int, params Params, rng *rand.Rand) (*Tree, error) {
	numFeatures := len(x[0])
	b := &treeBuilder{
		ctx:        ctx,
		x:          x,
		y:          y,
		weight:     weight,
		numClasses: numClasses,
		params:     params,
		mtry:       params.featuresPerSplit(numFeatures),
		rng:        rng,
		importance: make([]float64, numFeatures),
		scratch:    make([]int, len(idx)),
	}
	if _, err := b.grow(idx, 0); err != nil {
		return nil, err
	}

	total := 0.0
	for _, v := range b.importance {
		total += v
	}
	if total > 0 {
		for i := range b.importance {
			b.importance[i] /= total
		}
	}
	return &Tree{Nodes: b.nodes, Importance: b.importance}, nil
}

func (b *treeBuilder) grow(idx []int, depth int) (int, error) {
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}

	counts := make([]float64, b.numClasses)
	total := 0.0
	for _, i := range idx {
		counts[b.y[i]] += b.weight[i]
		total += b.weight[i]
	}

	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leafFeature})

	if b.stop(idx, depth, counts) {
		b.nodes[self].Value = normalized(counts, total)
		return self, nil
	}

	s, ok := b.bestSplit(idx, counts, total)
	if !ok {
		b.nodes[self].Value = normalized(counts, total)
		return self, nil
	}
	b.importance[s.feature] += s.decrease

	left := make([]int, 0, s.numLeft)
	right := make([]int, 0, len(idx)-s.numLeft)
	for _, i := range idx {
		if b.x[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l, err := b.grow(left, depth+1)
	if err != nil {
		return 0, err
	}
	r, err := b.grow(right, depth+1)
	if err != nil {
		return 0, err
	}
	b.nodes[self] = Node{Feature: s.feature, Threshold: s.threshold, Left: l, Right: r}
	return self, nil
}

func (b *treeBuilder) stop(idx []int, depth int, counts []float64) bool {
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return true
	}
	if len(idx) < b.params.MinSamplesSplit || len(idx) < 2*b.params.MinSamplesLeaf {
		return true
	}
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

type split struct {
	feature   int
	threshold float64
	decrease  float64
	numLeft   int
}

// bestSplit scans features in random order until mtry non-constant features
// have been examined and returns the split with the largest weighted Gini
// decrease.
func (b *treeBuilder) bestSplit(idx []int, parent []float64, total float64) (split, bool) {
	best := split{decrease: minDecrease}
	found := false
	parentImpurity := total * gini(parent, total)

	sorted := b.scratch[:len(idx)]
	left := make([]float64, b.numClasses)
	right := make([]float64, b.numClasses)

	visited := 0
	for _, f := range b.rng.Perm(len(b.importance)) {
		if visited >= b.mtry {
			break
		}
		copy(sorted, idx)
		slices.SortFunc(sorted, func(i, j int) int {
			switch {
			case b.x[i][f] < b.x[j][f]:
				return -1
			case b.x[i][f] > b.x[j][f]:
				return 1
			}
			return i - j
		})
		if b.x[sorted[0]][f] == b.x[sorted[len(sorted)-1]][f] {
			continue
		}
		visited++

		clear(left)
		leftTotal := 0.0
		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			left[b.y[i]] += b.weight[i]
			leftTotal += b.weight[i]

			lo, hi := b.x[i][f], b.x[sorted[pos+1]][f]
			if lo == hi {
				continue
			}
			numLeft := pos + 1
			if numLeft < b.params.MinSamplesLeaf || len(sorted)-numLeft < b.params.MinSamplesLeaf {
				continue
			}
			rightTotal := total - leftTotal
			for c := range right {
				right[c] = parent[c] - left[c]
			}
			decrease := parentImpurity - leftTotal*gini(left, leftTotal) - rightTotal*gini(right, rightTotal)
			if decrease > best.decrease {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, decrease: decrease, numLeft: numLeft}
				found = true
			}
		}
	}
	return best, found
}

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

func normalized(counts []float64, total float64) []float64 {
	out := make([]float64, len(counts))
	if total <= 0 {
		for i := range out {
			out[i] = 1 / float64(len(out))
		}
		return out
	}
	for i, c := range counts {
		out[i] = c / total
	}
	return out
}
