// Package classifier trains, persists and serves the binary fraud classifier.
//
// A trained classifier is published as an immutable Artifact holding the
// fitted Model, its cost-optimal probability cutoff and the evaluation
// metrics of every candidate strategy considered during training.
package classifier

import (
	"encoding/json"
	"fmt"
	"math"

	"insureguard/risk-api/internal/features"
)

// Model kinds, used to tag persisted models.
const (
	KindLogistic         = "logistic_regression"
	KindRandomForest     = "random_forest"
	KindGradientBoosting = "gradient_boosting"
)

// Model is a fitted classifier. Implementations are immutable and safe for
// concurrent use.
type Model interface {
	Kind() string
	// PredictProba returns P(fraud | x) in [0, 1].
	PredictProba(x features.Vector) float64
	// Contributions returns the signed attribution of every feature slot.
	// Positive values push towards fraud.
	Contributions(x features.Vector) features.Vector
}

// Strategy fits one model family.
type Strategy interface {
	Name() string
	Fit(X []features.Vector, y []int) (Model, error)
}

// envelope is the kind-tagged persisted form of a Model.
type envelope struct {
	Kind  string          `json:"kind"`
	Model json.RawMessage `json:"model"`
}

// MarshalModel encodes m with its kind tag.
func MarshalModel(m Model) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s model: %w", m.Kind(), err)
	}
	return json.Marshal(envelope{Kind: m.Kind(), Model: raw})
}

// UnmarshalModel decodes a model previously encoded by MarshalModel.
func UnmarshalModel(data []byte) (Model, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode model envelope: %w", err)
	}

	var m Model
	switch env.Kind {
	case KindLogistic:
		m = &logisticModel{}
	case KindRandomForest:
		m = &forestModel{}
	case KindGradientBoosting:
		m = &boostedModel{}
	default:
		return nil, fmt.Errorf("unknown model kind %q", env.Kind)
	}
	if err := json.Unmarshal(env.Model, m); err != nil {
		return nil, fmt.Errorf("decode %s model: %w", env.Kind, err)
	}
	return m, nil
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

// scaler standardises feature slots to zero mean and unit variance.
// Constant slots keep a unit scale so they standardise to zero.
type scaler struct {
	Mean features.Vector `json:"mean"`
	Std  features.Vector `json:"std"`
}

func fitScaler(X []features.Vector) scaler {
	var s scaler
	n := float64(len(X))
	if n == 0 {
		for j := range s.Std {
			s.Std[j] = 1
		}
		return s
	}
	for _, x := range X {
		for j, v := range x {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}
	for _, x := range X {
		for j, v := range x {
			d := v - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / n)
		if s.Std[j] < 1e-12 {
			s.Std[j] = 1
		}
	}
	return s
}

func (s scaler) transform(x features.Vector) features.Vector {
	var z features.Vector
	for j := range x {
		z[j] = (x[j] - s.Mean[j]) / s.Std[j]
	}
	return z
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func checkTrainingInput(X []features.Vector, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("no training samples")
	}
	if len(X) != len(y) {
		return fmt.Errorf("feature rows (%d) and labels (%d) differ", len(X), len(y))
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("label %d at row %d is not binary", v, i)
		}
	}
	return nil
}
