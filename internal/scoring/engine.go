// Package scoring turns a claim into a RiskAssessment.
//
// Architecture:
//
//	The Scorer is a pure function of (claim, history, thresholds, artifact).
//	It reads the live artifact through the classifier registry and never
//	writes anywhere. The Service wraps it with the claim store: it gathers
//	history, persists the assessment and owns model retraining.
//
// Categories:
//
//	low    probability <  Low
//	medium Low <= probability < High
//	high   probability >= High
package scoring

import (
	"math"
	"sort"
	"time"

	"insureguard/risk-api/internal/classifier"
	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/features"
)

// TopFactorCount is the number of contributing features reported per claim.
const TopFactorCount = 5

// ─── Thresholds ───────────────────────────────────────────────────────────────

// Thresholds are the probability cut points between risk categories.
type Thresholds struct {
	Low  float64 `json:"low" koanf:"low" yaml:"low"`
	High float64 `json:"high" koanf:"high" yaml:"high"`
}

// DefaultThresholds returns the standard 0.3 / 0.7 split.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 0.3, High: 0.7}
}

// Validate requires 0 <= Low < High <= 1. Out-of-order values are rejected,
// never clamped.
func (t Thresholds) Validate() error {
	switch {
	case math.IsNaN(t.Low) || t.Low < 0 || t.Low > 1:
		return &domain.InvalidConfigurationError{Field: "low", Reason: "must be within [0, 1]"}
	case math.IsNaN(t.High) || t.High < 0 || t.High > 1:
		return &domain.InvalidConfigurationError{Field: "high", Reason: "must be within [0, 1]"}
	case t.Low >= t.High:
		return &domain.InvalidConfigurationError{Field: "low", Reason: "must be lower than high"}
	}
	return nil
}

// Categorize maps a probability to its risk category.
func (t Thresholds) Categorize(p float64) string {
	switch {
	case p >= t.High:
		return domain.RiskHigh
	case p < t.Low:
		return domain.RiskLow
	default:
		return domain.RiskMedium
	}
}

// ─── Scorer ───────────────────────────────────────────────────────────────────

// Scorer is the stateless risk scorer.
type Scorer struct {
	extractor *features.Extractor
	registry  *classifier.Registry
	now       func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithClock overrides the clock used to stamp assessments.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// NewScorer creates a scorer that reads the live model from registry.
func NewScorer(ext *features.Extractor, registry *classifier.Registry, opts ...Option) *Scorer {
	s := &Scorer{extractor: ext, registry: registry, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Extractor returns the scorer's feature extractor.
func (s *Scorer) Extractor() *features.Extractor { return s.extractor }

// ScoreClaim extracts the claim's features and scores them. It fails fast on
// malformed claim data and never returns a default probability when no model
// is live.
func (s *Scorer) ScoreClaim(c *domain.Claim, h features.History, th Thresholds) (domain.RiskAssessment, error) {
	if err := th.Validate(); err != nil {
		return domain.RiskAssessment{}, err
	}
	ex, err := s.extractor.Extract(c, h)
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	a, err := s.ScoreVector(ex.Vector, th)
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	a.Notes = ex.Notes
	return a, nil
}

// ScoreVector scores an already extracted feature vector.
func (s *Scorer) ScoreVector(v features.Vector, th Thresholds) (domain.RiskAssessment, error) {
	if err := th.Validate(); err != nil {
		return domain.RiskAssessment{}, err
	}
	art, err := s.registry.Current()
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	p := art.Model.PredictProba(v)
	if math.IsNaN(p) {
		p = 0
	}
	p = math.Max(0, math.Min(1, p))

	category := th.Categorize(p)
	flagged := p >= art.Cutoff

	return domain.RiskAssessment{
		FraudProbability: p,
		RiskScore:        math.Round(p*1000) / 10,
		RiskCategory:     category,
		Flagged:          flagged,
		Recommendation:   Recommend(category, flagged),
		TopFactors:       TopFactors(v, art.Model.Contributions(v), TopFactorCount),
		ModelVersion:     art.Version,
		ScoredAt:         s.now().UTC(),
	}, nil
}

// Recommend returns the workflow action for a risk category. High risk is
// escalated automatically; a low-risk claim above the model's cost-optimal
// cutoff still goes to review.
func Recommend(category string, flagged bool) string {
	switch {
	case category == domain.RiskHigh:
		return domain.ActionEscalate
	case category == domain.RiskMedium || flagged:
		return domain.ActionReview
	default:
		return domain.ActionFastTrack
	}
}

// TopFactors ranks features by signed contribution, largest first, and
// returns the first n. Equal contributions keep canonical feature order.
func TopFactors(v, contributions features.Vector, n int) []domain.FactorContribution {
	order := make([]int, features.NumFeatures)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return contributions[order[a]] > contributions[order[b]]
	})

	n = min(n, features.NumFeatures)
	out := make([]domain.FactorContribution, 0, n)
	for _, i := range order[:n] {
		out = append(out, domain.FactorContribution{
			Feature:      features.Names[i],
			Label:        features.Labels[i],
			Value:        v[i],
			Contribution: contributions[i],
		})
	}
	return out
}
