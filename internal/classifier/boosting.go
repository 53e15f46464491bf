package classifier

import (
	"math"
	"math/rand/v2"

	"insureguard/risk-api/internal/features"
)

// GradientBoosting fits shallow regression trees to the log-loss gradient.
// Leaf values are re-estimated with a single Newton step.
type GradientBoosting struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
	MinLeaf      int
	Subsample    float64 // fraction of rows per round, 0 or 1 uses all rows
	Seed         uint64
}

// NewGradientBoosting returns the strategy with its default settings.
func NewGradientBoosting(seed uint64) *GradientBoosting {
	return &GradientBoosting{Rounds: 100, LearningRate: 0.1, MaxDepth: 3, MinLeaf: 3, Subsample: 0.8, Seed: seed}
}

func (s *GradientBoosting) Name() string { return KindGradientBoosting }

func (s *GradientBoosting) Fit(X []features.Vector, y []int) (Model, error) {
	if err := checkTrainingInput(X, y); err != nil {
		return nil, err
	}
	rounds, lr := s.Rounds, s.LearningRate
	if rounds <= 0 {
		rounds = 100
	}
	if lr <= 0 {
		lr = 0.1
	}

	n := len(X)
	var pos float64
	for _, v := range y {
		pos += float64(v)
	}
	prior := math.Min(math.Max(pos/float64(n), 1e-6), 1-1e-6)

	m := &boostedModel{
		Init:         math.Log(prior / (1 - prior)),
		LearningRate: lr,
		Scaler:       fitScaler(X),
	}
	m.Direction = directions(X, y, m.Scaler)

	F := make([]float64, n)
	for i := range F {
		F[i] = m.Init
	}

	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0xb005))
	residual := make([]float64, n)
	var importance features.Vector

	for r := 0; r < rounds; r++ {
		for i := range residual {
			residual[i] = float64(y[i]) - sigmoid(F[i])
		}

		idx := make([]int, 0, n)
		for i := 0; i < n; i++ {
			if s.Subsample <= 0 || s.Subsample >= 1 || rng.Float64() < s.Subsample {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			continue
		}

		tree, imp := growTree(X, residual, idx, treeParams{MaxDepth: s.MaxDepth, MinLeaf: s.MinLeaf})
		newtonLeaves(tree, X, y, F, idx)

		for i := range F {
			F[i] += lr * tree.predict(X[i])
		}
		m.Trees = append(m.Trees, *tree)
		for j := range imp {
			importance[j] += imp[j]
		}
	}
	m.Importance = normalise(importance)
	return m, nil
}

// newtonLeaves replaces each leaf value with sum(residual) / sum(p(1-p)) over
// the rows that reached it.
func newtonLeaves(t *regressionTree, X []features.Vector, y []int, F []float64, idx []int) {
	num := make([]float64, len(t.Nodes))
	den := make([]float64, len(t.Nodes))
	for _, i := range idx {
		l := t.leaf(X[i])
		p := sigmoid(F[i])
		num[l] += float64(y[i]) - p
		den[l] += p * (1 - p)
	}
	for l := range t.Nodes {
		if t.Nodes[l].Feature >= 0 {
			continue
		}
		if den[l] < 1e-12 {
			t.Nodes[l].Value = 0
			continue
		}
		// Clip to keep a single leaf from saturating the logit.
		t.Nodes[l].Value = math.Max(-4, math.Min(4, num[l]/den[l]))
	}
}

type boostedModel struct {
	Init         float64          `json:"init"`
	LearningRate float64          `json:"learning_rate"`
	Trees        []regressionTree `json:"trees"`
	Importance   features.Vector  `json:"importance"`
	Direction    features.Vector  `json:"direction"`
	Scaler       scaler           `json:"scaler"`
}

func (m *boostedModel) Kind() string { return KindGradientBoosting }

func (m *boostedModel) PredictProba(x features.Vector) float64 {
	f := m.Init
	for i := range m.Trees {
		f += m.LearningRate * m.Trees[i].predict(x)
	}
	return sigmoid(f)
}

func (m *boostedModel) Contributions(x features.Vector) features.Vector {
	return importanceAttribution(m.Importance, m.Direction, m.Scaler, x)
}
