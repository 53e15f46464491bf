package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"insureguard/risk-api/internal/classifier"
	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/features"
	"insureguard/risk-api/internal/metrics"
	"insureguard/risk-api/internal/store"
)

// ClaimStore is the slice of the claim corpus the service needs.
type ClaimStore interface {
	GetClaim(id string) (domain.Claim, bool)
	ClaimsByClaimant(claimantID string) []domain.Claim
	CountByRepairShop(name, excludeID string) int
	AttachAssessment(id string, a *domain.RiskAssessment) error
	Labelled() []domain.Claim
}

// ThresholdSource supplies the risk thresholds in force for each call.
type ThresholdSource interface {
	Thresholds() Thresholds
}

// ServiceDeps wires a Service. Artifacts and Metrics are optional.
type ServiceDeps struct {
	Store      ClaimStore
	Scorer     *Scorer
	Registry   *classifier.Registry
	Artifacts  classifier.ArtifactStore
	Thresholds ThresholdSource
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Service scores stored claims and retrains the model from reviewer labels.
// Scoring never waits on training: a retrain builds its artifact off to the
// side and publishes it with one atomic swap.
type Service struct {
	store      ClaimStore
	scorer     *Scorer
	registry   *classifier.Registry
	artifacts  classifier.ArtifactStore
	thresholds ThresholdSource
	logger     *zap.Logger
	metrics    *metrics.Metrics

	trainMu sync.Mutex
}

// NewService creates a Service from its dependencies.
func NewService(d ServiceDeps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		store:      d.Store,
		scorer:     d.Scorer,
		registry:   d.Registry,
		artifacts:  d.Artifacts,
		thresholds: d.Thresholds,
		logger:     d.Logger,
		metrics:    d.Metrics,
	}
}

// History assembles the scoring context for c from the store.
func (s *Service) History(c *domain.Claim) features.History {
	var own []domain.Claim
	for _, other := range s.store.ClaimsByClaimant(c.ClaimantID) {
		if other.ID != c.ID {
			own = append(own, other)
		}
	}
	h := features.History{ClaimantClaims: own}
	if c.RepairShopName != "" {
		h.RepairShopClaims = s.store.CountByRepairShop(c.RepairShopName, c.ID)
	}
	return h
}

// ScoreClaim scores the stored claim and attaches the assessment to it.
func (s *Service) ScoreClaim(_ context.Context, id string) (domain.RiskAssessment, error) {
	c, ok := s.store.GetClaim(id)
	if !ok {
		return domain.RiskAssessment{}, fmt.Errorf("score claim %s: %w", id, store.ErrClaimNotFound)
	}

	start := time.Now()
	a, err := s.scorer.ScoreClaim(&c, s.History(&c), s.thresholds.Thresholds())
	if err != nil {
		s.recordFailure(id, err)
		return domain.RiskAssessment{}, err
	}
	if err := s.store.AttachAssessment(id, &a); err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("attach assessment to %s: %w", id, err)
	}
	s.metrics.ClaimScored(a.RiskCategory, time.Since(start))

	s.logger.Debug("claim scored",
		zap.String("claim_id", id),
		zap.Float64("fraud_probability", a.FraudProbability),
		zap.String("risk_category", a.RiskCategory),
		zap.String("model_version", a.ModelVersion),
	)
	return a, nil
}

func (s *Service) recordFailure(id string, err error) {
	var coded domain.CodedError
	code := "INTERNAL"
	if errors.As(err, &coded) {
		code = coded.Code()
	}
	s.metrics.ScoringFailed(code)
	s.logger.Warn("claim scoring failed", zap.String("claim_id", id), zap.String("code", code), zap.Error(err))
}

// Dataset builds the labelled training set from reviewer-labelled claims.
// Claims that fail extraction are skipped and counted.
func (s *Service) Dataset() (classifier.Dataset, int) {
	var (
		ds      classifier.Dataset
		skipped int
	)
	ext := s.scorer.Extractor()
	for _, c := range s.store.Labelled() {
		ex, err := ext.Extract(&c, s.History(&c))
		if err != nil {
			skipped++
			s.logger.Warn("skipping labelled claim", zap.String("claim_id", c.ID), zap.Error(err))
			continue
		}
		y := 0
		if c.Label == domain.LabelFraud {
			y = 1
		}
		ds.X = append(ds.X, ex.Vector)
		ds.Y = append(ds.Y, y)
	}
	return ds, skipped
}

// TrainModel retrains from the labelled corpus, persists the artifact and
// then publishes it. On any failure the previous artifact stays live.
func (s *Service) TrainModel(ctx context.Context, cfg classifier.TrainingConfig) (classifier.ArtifactMetadata, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	start := time.Now()
	ds, skipped := s.Dataset()
	s.metrics.ClaimsSkipped("training", skipped)

	art, err := classifier.Train(ctx, ds, cfg)
	if err != nil {
		s.metrics.TrainingFinished("failed", time.Since(start))
		s.logger.Warn("model training aborted", zap.Int("samples", len(ds.Y)), zap.Error(err))
		return classifier.ArtifactMetadata{}, err
	}

	if s.artifacts != nil {
		if err := s.artifacts.Save(ctx, art); err != nil {
			s.metrics.TrainingFinished("failed", time.Since(start))
			return classifier.ArtifactMetadata{}, fmt.Errorf("persist artifact %s: %w", art.Version, err)
		}
	}
	s.publish(art)
	s.metrics.TrainingFinished("success", time.Since(start))

	s.logger.Info("model trained",
		zap.String("version", art.Version),
		zap.String("model", art.ModelKind),
		zap.Float64("cutoff", art.Cutoff),
		zap.Int("train_samples", art.TrainSamples),
		zap.Int("test_samples", art.TestSamples),
		zap.Int("skipped", skipped),
		zap.Duration("took", time.Since(start)),
	)
	return art.Metadata(), nil
}

// LoadLatest publishes the most recent persisted artifact, if any. It reports
// whether an artifact was loaded.
func (s *Service) LoadLatest(ctx context.Context) (bool, error) {
	if s.artifacts == nil {
		return false, nil
	}
	art, err := s.artifacts.Latest(ctx)
	if errors.Is(err, classifier.ErrNoArtifact) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.publish(art)
	s.logger.Info("model artifact loaded", zap.String("version", art.Version), zap.String("model", art.ModelKind))
	return true, nil
}

func (s *Service) publish(a *classifier.Artifact) {
	s.registry.Publish(a)
	s.metrics.ModelPublished(a.Cutoff)
}

// Model describes the live artifact.
func (s *Service) Model() (classifier.ArtifactMetadata, error) {
	a, err := s.registry.Current()
	if err != nil {
		return classifier.ArtifactMetadata{}, err
	}
	return a.Metadata(), nil
}
