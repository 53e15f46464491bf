package classifier

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"insureguard/risk-api/internal/domain"
)

// versionLayout renders the training timestamp as the artifact version.
const versionLayout = "20060102T150405.000000000Z"

// ArtifactMetadata describes a trained artifact without its model weights.
type ArtifactMetadata struct {
	Version      string             `json:"version"`
	TrainedAt    time.Time          `json:"trained_at"`
	ModelKind    string             `json:"model_kind"`
	Metric       string             `json:"metric"`
	Cutoff       float64            `json:"cutoff"`
	Costs        Costs              `json:"costs"`
	Candidates   []CandidateMetrics `json:"candidates"`
	FeatureNames []string           `json:"feature_names"`
	TrainSamples int                `json:"train_samples"`
	TestSamples  int                `json:"test_samples"`
	Positives    int                `json:"positives"`
	Negatives    int                `json:"negatives"`
}

// Artifact is one immutable trained classifier: model, cutoff and the metric
// snapshot it was chosen on. Never mutate an artifact after publishing it.
type Artifact struct {
	ArtifactMetadata
	Model Model `json:"-"`
}

// Metadata returns a copy of the artifact's descriptive fields.
func (a *Artifact) Metadata() ArtifactMetadata {
	md := a.ArtifactMetadata
	md.Candidates = append([]CandidateMetrics(nil), a.Candidates...)
	md.FeatureNames = append([]string(nil), a.FeatureNames...)
	return md
}

type artifactJSON struct {
	ArtifactMetadata
	Model json.RawMessage `json:"model"`
}

func (a *Artifact) MarshalJSON() ([]byte, error) {
	if a.Model == nil {
		return nil, fmt.Errorf("artifact %s has no model", a.Version)
	}
	raw, err := MarshalModel(a.Model)
	if err != nil {
		return nil, err
	}
	return json.Marshal(artifactJSON{ArtifactMetadata: a.ArtifactMetadata, Model: raw})
}

func (a *Artifact) UnmarshalJSON(data []byte) error {
	var aj artifactJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return err
	}
	m, err := UnmarshalModel(aj.Model)
	if err != nil {
		return fmt.Errorf("artifact %s: %w", aj.Version, err)
	}
	a.ArtifactMetadata = aj.ArtifactMetadata
	a.Model = m
	return nil
}

// ─── Registry ─────────────────────────────────────────────────────────────────

// Registry serves the live artifact to scorers. Reads are lock-free; a
// retrain publishes a fully built artifact with a single pointer swap.
type Registry struct {
	current atomic.Pointer[Artifact]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Publish makes a the live artifact.
func (r *Registry) Publish(a *Artifact) {
	r.current.Store(a)
}

// Current returns the live artifact, or *domain.ModelNotReadyError when none
// has been published.
func (r *Registry) Current() (*Artifact, error) {
	a := r.current.Load()
	if a == nil || a.Model == nil {
		return nil, &domain.ModelNotReadyError{Reason: "no trained model has been published"}
	}
	return a, nil
}
