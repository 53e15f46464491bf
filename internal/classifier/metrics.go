package classifier

import (
	"fmt"
	"sort"
)

// Ranking metrics accepted by TrainingConfig.Metric.
const (
	MetricROCAUC    = "roc_auc"
	MetricF1        = "f1"
	MetricRecall    = "recall"
	MetricPrecision = "precision"
)

// Confusion is a binary confusion matrix.
type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// ConfusionAt counts outcomes when every probability >= cutoff is predicted
// fraud.
func ConfusionAt(labels []int, probs []float64, cutoff float64) Confusion {
	var c Confusion
	for i, y := range labels {
		pred := probs[i] >= cutoff
		switch {
		case y == 1 && pred:
			c.TP++
		case y == 1:
			c.FN++
		case pred:
			c.FP++
		default:
			c.TN++
		}
	}
	return c
}

func (c Confusion) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

func (c Confusion) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// ROCAUC is the probability that a random positive outranks a random
// negative, with ties counting half. It is 0.5 when either class is absent.
func ROCAUC(labels []int, probs []float64) float64 {
	n := len(labels)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	// Average ranks over tied groups (Mann-Whitney U).
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && probs[idx[j+1]] == probs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var pos, neg int
	var rankSum float64
	for i, y := range labels {
		if y == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}
	u := rankSum - float64(pos*(pos+1))/2
	return u / float64(pos*neg)
}

// CandidateMetrics is the evaluation of one fitted strategy on the test split.
type CandidateMetrics struct {
	Model     string    `json:"model"`
	ROCAUC    float64   `json:"roc_auc"`
	F1        float64   `json:"f1"`
	Recall    float64   `json:"recall"`
	Precision float64   `json:"precision"`
	Confusion Confusion `json:"confusion_matrix"` // at 0.5
	Cutoff    float64   `json:"cutoff"`
	Cost      float64   `json:"cost"` // at Cutoff
	Selected  bool      `json:"selected"`
}

func (m CandidateMetrics) score(metric string) float64 {
	switch metric {
	case MetricF1:
		return m.F1
	case MetricRecall:
		return m.Recall
	case MetricPrecision:
		return m.Precision
	default:
		return m.ROCAUC
	}
}

func validMetric(metric string) error {
	switch metric {
	case MetricROCAUC, MetricF1, MetricRecall, MetricPrecision:
		return nil
	}
	return fmt.Errorf("unknown ranking metric %q", metric)
}

func evaluate(name string, labels []int, probs []float64) CandidateMetrics {
	c := ConfusionAt(labels, probs, 0.5)
	return CandidateMetrics{
		Model:     name,
		ROCAUC:    ROCAUC(labels, probs),
		F1:        c.F1(),
		Recall:    c.Recall(),
		Precision: c.Precision(),
		Confusion: c,
	}
}
