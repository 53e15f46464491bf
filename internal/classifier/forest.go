package classifier

import (
	"math"
	"math/rand/v2"

	"insureguard/risk-api/internal/features"
)

// RandomForest fits bagged CART trees on bootstrap samples. Leaves hold the
// fraud rate of their samples, so the forest average is a probability.
type RandomForest struct {
	Trees       int
	MaxDepth    int
	MinLeaf     int
	MaxFeatures int // 0 means sqrt(NumFeatures)
	Seed        uint64
}

// NewRandomForest returns the strategy with its default settings.
func NewRandomForest(seed uint64) *RandomForest {
	return &RandomForest{Trees: 100, MaxDepth: 6, MinLeaf: 2, Seed: seed}
}

func (s *RandomForest) Name() string { return KindRandomForest }

func (s *RandomForest) Fit(X []features.Vector, y []int) (Model, error) {
	if err := checkTrainingInput(X, y); err != nil {
		return nil, err
	}
	trees := s.Trees
	if trees <= 0 {
		trees = 100
	}
	maxFeatures := s.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Round(math.Sqrt(features.NumFeatures)))
	}

	target := make([]float64, len(y))
	for i, v := range y {
		target[i] = float64(v)
	}

	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x5eed))
	m := &forestModel{Scaler: fitScaler(X)}
	m.Direction = directions(X, y, m.Scaler)

	var importance features.Vector
	for t := 0; t < trees; t++ {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = rng.IntN(len(X))
		}
		tree, imp := growTree(X, target, idx, treeParams{
			MaxDepth:    s.MaxDepth,
			MinLeaf:     s.MinLeaf,
			MaxFeatures: maxFeatures,
			rng:         rng,
		})
		m.Trees = append(m.Trees, *tree)
		for j := range imp {
			importance[j] += imp[j]
		}
	}
	m.Importance = normalise(importance)
	return m, nil
}

type forestModel struct {
	Trees      []regressionTree `json:"trees"`
	Importance features.Vector  `json:"importance"`
	Direction  features.Vector  `json:"direction"`
	Scaler     scaler           `json:"scaler"`
}

func (m *forestModel) Kind() string { return KindRandomForest }

func (m *forestModel) PredictProba(x features.Vector) float64 {
	if len(m.Trees) == 0 {
		return 0
	}
	var sum float64
	for i := range m.Trees {
		sum += m.Trees[i].predict(x)
	}
	return math.Max(0, math.Min(1, sum/float64(len(m.Trees))))
}

func (m *forestModel) Contributions(x features.Vector) features.Vector {
	return importanceAttribution(m.Importance, m.Direction, m.Scaler, x)
}
