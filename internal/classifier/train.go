package classifier

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/features"
)

// Dataset is a labelled feature matrix. Y holds 1 for fraud, 0 for genuine.
type Dataset struct {
	X []features.Vector
	Y []int
}

func (d Dataset) classCounts() (pos, neg int) {
	for _, y := range d.Y {
		if y == 1 {
			pos++
		} else {
			neg++
		}
	}
	return pos, neg
}

// TrainingConfig controls one training run.
type TrainingConfig struct {
	MinSamples      int        `json:"min_samples" koanf:"min_samples" yaml:"min_samples"`
	TestFraction    float64    `json:"test_fraction" koanf:"test_fraction" yaml:"test_fraction"`
	OversampleRatio float64    `json:"oversample_ratio" koanf:"oversample_ratio" yaml:"oversample_ratio"` // minority/majority after oversampling
	Seed            uint64     `json:"seed" koanf:"seed" yaml:"seed"`
	Metric          string     `json:"metric" koanf:"metric" yaml:"metric"`
	Costs           Costs      `json:"costs" koanf:"costs" yaml:"costs"`
	Candidates      []float64  `json:"-" koanf:"-" yaml:"-"`
	Strategies      []Strategy `json:"-" koanf:"-" yaml:"-"`

	// Now stamps the artifact. Defaults to time.Now.
	Now func() time.Time `json:"-" koanf:"-" yaml:"-"`
}

// DefaultTrainingConfig returns the standard training settings.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		MinSamples:      20,
		TestFraction:    0.2,
		OversampleRatio: 1.0,
		Seed:            42,
		Metric:          MetricROCAUC,
		Costs:           DefaultCosts(),
	}
}

// DefaultStrategies returns the three built-in model families.
func DefaultStrategies(seed uint64) []Strategy {
	return []Strategy{
		NewLogisticRegression(),
		NewRandomForest(seed),
		NewGradientBoosting(seed),
	}
}

func (c TrainingConfig) withDefaults() TrainingConfig {
	d := DefaultTrainingConfig()
	if c.MinSamples <= 0 {
		c.MinSamples = d.MinSamples
	}
	if c.TestFraction == 0 {
		c.TestFraction = d.TestFraction
	}
	if c.OversampleRatio == 0 {
		c.OversampleRatio = d.OversampleRatio
	}
	if c.Metric == "" {
		c.Metric = d.Metric
	}
	if c.Costs == (Costs{}) {
		c.Costs = d.Costs
	}
	if len(c.Candidates) == 0 {
		c.Candidates = DefaultCandidates()
	}
	if len(c.Strategies) == 0 {
		c.Strategies = DefaultStrategies(c.Seed)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Validate rejects settings that cannot produce a meaningful run.
func (c TrainingConfig) Validate() error {
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return &domain.InvalidConfigurationError{Field: "test_fraction", Reason: "must be in (0, 1)"}
	}
	if c.OversampleRatio < 0 || c.OversampleRatio > 1 {
		return &domain.InvalidConfigurationError{Field: "oversample_ratio", Reason: "must be in [0, 1]"}
	}
	if err := validMetric(c.Metric); err != nil {
		return &domain.InvalidConfigurationError{Field: "metric", Reason: err.Error()}
	}
	if c.Costs.FalseNegative < 0 || c.Costs.FalsePositive < 0 {
		return &domain.InvalidConfigurationError{Field: "costs", Reason: "must not be negative"}
	}
	return nil
}

// Train fits every candidate strategy, keeps the best by the configured
// ranking metric, and sweeps for its cost-optimal cutoff. It never publishes
// anything; the caller decides whether the returned artifact goes live.
func Train(ctx context.Context, ds Dataset, cfg TrainingConfig) (*Artifact, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(ds.X) != len(ds.Y) {
		return nil, fmt.Errorf("dataset has %d rows and %d labels", len(ds.X), len(ds.Y))
	}
	for i, y := range ds.Y {
		if y != 0 && y != 1 {
			return nil, fmt.Errorf("label %d at row %d is not binary", y, i)
		}
	}

	pos, neg := ds.classCounts()
	if len(ds.Y) < cfg.MinSamples || pos == 0 || neg == 0 {
		return nil, &domain.InsufficientDataError{Samples: len(ds.Y), Positives: pos, Negatives: neg, Min: cfg.MinSamples}
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x7e57))
	train, test := stratifiedSplit(ds, cfg.TestFraction, rng)
	train = oversample(train, cfg.OversampleRatio, rng)

	var (
		candidates []CandidateMetrics
		models     []Model
		best       = -1
	)
	for _, s := range cfg.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, err := s.Fit(train.X, train.Y)
		if err != nil {
			return nil, fmt.Errorf("fit %s: %w", s.Name(), err)
		}

		probs := make([]float64, len(test.X))
		for i, x := range test.X {
			probs[i] = m.PredictProba(x)
		}
		cm := evaluate(s.Name(), test.Y, probs)
		choice, err := SelectThreshold(test.Y, probs, cfg.Costs, cfg.Candidates)
		if err != nil {
			return nil, fmt.Errorf("select threshold for %s: %w", s.Name(), err)
		}
		cm.Cutoff, cm.Cost = choice.Cutoff, choice.Cost

		if best < 0 || cm.score(cfg.Metric) > candidates[best].score(cfg.Metric) {
			best = len(candidates)
		}
		candidates = append(candidates, cm)
		models = append(models, m)
	}
	candidates[best].Selected = true

	trainedAt := cfg.Now().UTC()
	return &Artifact{
		ArtifactMetadata: ArtifactMetadata{
			Version:      trainedAt.Format(versionLayout),
			TrainedAt:    trainedAt,
			ModelKind:    models[best].Kind(),
			Metric:       cfg.Metric,
			Cutoff:       candidates[best].Cutoff,
			Costs:        cfg.Costs,
			Candidates:   candidates,
			FeatureNames: append([]string(nil), features.Names[:]...),
			TrainSamples: len(train.Y),
			TestSamples:  len(test.Y),
			Positives:    pos,
			Negatives:    neg,
		},
		Model: models[best],
	}, nil
}

// stratifiedSplit holds out testFraction of each class. A class with at least
// two rows always keeps one on each side.
func stratifiedSplit(ds Dataset, testFraction float64, rng *rand.Rand) (train, test Dataset) {
	byClass := [2][]int{}
	for i, y := range ds.Y {
		byClass[y] = append(byClass[y], i)
	}
	for _, idx := range byClass {
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })

		nTest := int(math.Round(testFraction * float64(len(idx))))
		if len(idx) >= 2 {
			nTest = max(1, min(nTest, len(idx)-1))
		} else {
			nTest = 0
		}
		for k, i := range idx {
			if k < nTest {
				test.X = append(test.X, ds.X[i])
				test.Y = append(test.Y, ds.Y[i])
			} else {
				train.X = append(train.X, ds.X[i])
				train.Y = append(train.Y, ds.Y[i])
			}
		}
	}
	return train, test
}

// oversample draws minority rows with replacement until
// minority/majority >= ratio.
func oversample(ds Dataset, ratio float64, rng *rand.Rand) Dataset {
	pos, neg := ds.classCounts()
	minority := 1
	if pos > neg {
		minority = 0
	}
	nMin, nMaj := min(pos, neg), max(pos, neg)
	target := int(math.Ceil(ratio * float64(nMaj)))
	if nMin == 0 || nMin >= target {
		return ds
	}

	var pool []int
	for i, y := range ds.Y {
		if y == minority {
			pool = append(pool, i)
		}
	}
	out := Dataset{
		X: append([]features.Vector(nil), ds.X...),
		Y: append([]int(nil), ds.Y...),
	}
	for k := nMin; k < target; k++ {
		i := pool[rng.IntN(len(pool))]
		out.X = append(out.X, ds.X[i])
		out.Y = append(out.Y, ds.Y[i])
	}
	return out
}
