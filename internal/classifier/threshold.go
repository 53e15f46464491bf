package classifier

import (
	"fmt"
	"sort"
)

// Costs weights the two misclassification outcomes.
type Costs struct {
	FalseNegative float64 `json:"false_negative" koanf:"false_negative" yaml:"false_negative"`
	FalsePositive float64 `json:"false_positive" koanf:"false_positive" yaml:"false_positive"`
}

// DefaultCosts weights a missed fraud ten times a false alarm.
func DefaultCosts() Costs {
	return Costs{FalseNegative: 10, FalsePositive: 1}
}

// DefaultCandidates returns the cutoffs 0.10, 0.11, ... 0.89.
func DefaultCandidates() []float64 {
	out := make([]float64, 0, 80)
	for i := 10; i < 90; i++ {
		out = append(out, float64(i)/100)
	}
	return out
}

// ThresholdChoice is the outcome of a cutoff sweep.
type ThresholdChoice struct {
	Cutoff    float64   `json:"cutoff"`
	Cost      float64   `json:"cost"`
	Confusion Confusion `json:"confusion_matrix"`
}

// SelectThreshold returns the candidate cutoff with the lowest expected cost
// FN×costs.FalseNegative + FP×costs.FalsePositive. Ties keep the lowest
// cutoff.
func SelectThreshold(labels []int, probs []float64, costs Costs, candidates []float64) (ThresholdChoice, error) {
	if len(labels) != len(probs) {
		return ThresholdChoice{}, fmt.Errorf("labels (%d) and probabilities (%d) differ", len(labels), len(probs))
	}
	if len(candidates) == 0 {
		return ThresholdChoice{}, fmt.Errorf("no candidate cutoffs")
	}
	if costs.FalseNegative < 0 || costs.FalsePositive < 0 {
		return ThresholdChoice{}, fmt.Errorf("misclassification costs must not be negative")
	}

	sorted := append([]float64(nil), candidates...)
	sort.Float64s(sorted)

	var best ThresholdChoice
	for i, cutoff := range sorted {
		c := ConfusionAt(labels, probs, cutoff)
		cost := float64(c.FN)*costs.FalseNegative + float64(c.FP)*costs.FalsePositive
		if i == 0 || cost < best.Cost {
			best = ThresholdChoice{Cutoff: cutoff, Cost: cost, Confusion: c}
		}
	}
	return best, nil
}
