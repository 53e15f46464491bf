package classifier

import (
	"insureguard/risk-api/internal/features"
)

// LogisticRegression fits an L2-regularised logistic regression on
// standardised inputs with full-batch gradient descent.
type LogisticRegression struct {
	LearningRate float64
	Epochs       int
	L2           float64
}

// NewLogisticRegression returns the strategy with its default settings.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{LearningRate: 0.1, Epochs: 500, L2: 0.01}
}

func (s *LogisticRegression) Name() string { return KindLogistic }

func (s *LogisticRegression) Fit(X []features.Vector, y []int) (Model, error) {
	if err := checkTrainingInput(X, y); err != nil {
		return nil, err
	}
	lr, epochs := s.LearningRate, s.Epochs
	if lr <= 0 {
		lr = 0.1
	}
	if epochs <= 0 {
		epochs = 500
	}

	m := &logisticModel{Scaler: fitScaler(X)}
	Z := make([]features.Vector, len(X))
	for i, x := range X {
		Z[i] = m.Scaler.transform(x)
	}

	n := float64(len(Z))
	for epoch := 0; epoch < epochs; epoch++ {
		var gw features.Vector
		var gb float64
		for i, z := range Z {
			r := m.logit(z)
			d := sigmoid(r) - float64(y[i])
			for j := range z {
				gw[j] += d * z[j]
			}
			gb += d
		}
		for j := range m.Weights {
			m.Weights[j] -= lr * (gw[j]/n + s.L2*m.Weights[j])
		}
		m.Bias -= lr * gb / n
	}
	return m, nil
}

type logisticModel struct {
	Scaler  scaler          `json:"scaler"`
	Weights features.Vector `json:"weights"`
	Bias    float64         `json:"bias"`
}

func (m *logisticModel) Kind() string { return KindLogistic }

func (m *logisticModel) logit(z features.Vector) float64 {
	r := m.Bias
	for j := range z {
		r += m.Weights[j] * z[j]
	}
	return r
}

func (m *logisticModel) PredictProba(x features.Vector) float64 {
	return sigmoid(m.logit(m.Scaler.transform(x)))
}

// Contributions are coefficient × standardised value, in log-odds units.
func (m *logisticModel) Contributions(x features.Vector) features.Vector {
	z := m.Scaler.transform(x)
	var c features.Vector
	for j := range z {
		c[j] = m.Weights[j] * z[j]
	}
	return c
}
