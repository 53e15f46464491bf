package classifier

import (
	"math/rand/v2"
	"sort"

	"insureguard/risk-api/internal/features"
)

// treeNode is one node of a flattened CART regression tree. Leaves have
// Feature == -1.
type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

type regressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

// leaf returns the index of the leaf x falls into.
func (t *regressionTree) leaf(x features.Vector) int {
	i := 0
	for t.Nodes[i].Feature >= 0 {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

func (t *regressionTree) predict(x features.Vector) float64 {
	return t.Nodes[t.leaf(x)].Value
}

type treeParams struct {
	MaxDepth    int
	MinLeaf     int
	MaxFeatures int        // 0 means every feature is considered at each split
	rng         *rand.Rand // required when MaxFeatures > 0
}

type treeBuilder struct {
	X          []features.Vector
	target     []float64
	p          treeParams
	nodes      []treeNode
	importance features.Vector
}

// growTree fits a least-squares regression tree to target over the rows in
// idx. It returns the tree and the total squared-error reduction credited to
// each feature.
func growTree(X []features.Vector, target []float64, idx []int, p treeParams) (*regressionTree, features.Vector) {
	if p.MaxDepth <= 0 {
		p.MaxDepth = 4
	}
	if p.MinLeaf <= 0 {
		p.MinLeaf = 1
	}
	b := &treeBuilder{X: X, target: target, p: p}
	b.build(append([]int(nil), idx...), 0)
	return &regressionTree{Nodes: b.nodes}, b.importance
}

func (b *treeBuilder) build(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{Feature: -1, Value: b.mean(idx)})

	if depth >= b.p.MaxDepth || len(idx) < 2*b.p.MinLeaf {
		return self
	}

	feature, threshold, gain, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.importance[feature] += gain
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self].Feature = feature
	b.nodes[self].Threshold = threshold
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

func (b *treeBuilder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var s float64
	for _, i := range idx {
		s += b.target[i]
	}
	return s / float64(len(idx))
}

func (b *treeBuilder) candidateFeatures() []int {
	if b.p.MaxFeatures <= 0 || b.p.MaxFeatures >= features.NumFeatures || b.p.rng == nil {
		all := make([]int, features.NumFeatures)
		for j := range all {
			all[j] = j
		}
		return all
	}
	fs := b.p.rng.Perm(features.NumFeatures)[:b.p.MaxFeatures]
	sort.Ints(fs)
	return fs
}

// bestSplit scans every candidate feature for the threshold with the largest
// reduction in squared error. Ties keep the first feature and lowest threshold.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold, gain float64, ok bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.target[i]
	}
	base := total * total / float64(n)

	sorted := make([]int, n)
	for _, f := range b.candidateFeatures() {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		var left float64
		for k := 1; k < n; k++ {
			left += b.target[sorted[k-1]]
			lo, hi := b.X[sorted[k-1]][f], b.X[sorted[k]][f]
			if lo == hi || k < b.p.MinLeaf || n-k < b.p.MinLeaf {
				continue
			}
			right := total - left
			g := left*left/float64(k) + right*right/float64(n-k) - base
			if g > gain+1e-12 {
				feature, threshold, gain, ok = f, (lo+hi)/2, g, true
			}
		}
	}
	return feature, threshold, gain, ok
}

// importanceAttribution spreads normalised feature importance over the
// standardised deviation of x from the training mean, signed by the
// direction in which each feature moved the training labels.
func importanceAttribution(importance, direction features.Vector, s scaler, x features.Vector) features.Vector {
	z := s.transform(x)
	var c features.Vector
	for j := range c {
		c[j] = importance[j] * z[j] * direction[j]
	}
	return c
}

// directions returns +1 for features positively correlated with the fraud
// label in the training data and -1 otherwise.
func directions(X []features.Vector, y []int, s scaler) features.Vector {
	var ybar float64
	for _, v := range y {
		ybar += float64(v)
	}
	ybar /= float64(len(y))

	var cov features.Vector
	for i, x := range X {
		z := s.transform(x)
		for j := range z {
			cov[j] += z[j] * (float64(y[i]) - ybar)
		}
	}
	var d features.Vector
	for j := range cov {
		d[j] = 1
		if cov[j] < 0 {
			d[j] = -1
		}
	}
	return d
}

func normalise(v features.Vector) features.Vector {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return v
	}
	for j := range v {
		v[j] /= sum
	}
	return v
}
