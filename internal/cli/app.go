package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"insureguard/risk-api/internal/api"
	"insureguard/risk-api/internal/classifier"
	"insureguard/risk-api/internal/config"
	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/features"
	"insureguard/risk-api/internal/intel"
	"insureguard/risk-api/internal/metrics"
	"insureguard/risk-api/internal/scoring"
	"insureguard/risk-api/internal/seed"
	"insureguard/risk-api/internal/store"
	"insureguard/risk-api/internal/webhook"
)

// newLogger builds the process logger: JSON in production, console output in
// development.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development() {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// app is the fully wired service.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	store     *store.Store
	runtime   *config.Runtime
	service   *scoring.Service
	notifier  *webhook.Notifier
	handler   *api.Handler
	artifacts classifier.ArtifactStore

	closers []func() error
}

// newApp wires every component from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New(), store: store.New(), runtime: config.NewRuntime(cfg)}

	artifacts, err := a.openArtifacts(ctx)
	if err != nil {
		return nil, err
	}
	a.artifacts = artifacts

	registry := classifier.NewRegistry()
	scorer := scoring.NewScorer(features.NewExtractor(cfg.Features), registry)
	a.service = scoring.NewService(scoring.ServiceDeps{
		Store:      a.store,
		Scorer:     scorer,
		Registry:   registry,
		Artifacts:  artifacts,
		Thresholds: a.runtime,
		Logger:     logger.Named("scoring"),
		Metrics:    a.metrics,
	})
	a.notifier = webhook.New(a.store, cfg.Webhook, logger, a.metrics)
	a.handler = api.NewHandler(api.Deps{
		Store:          a.store,
		Service:        a.service,
		Scorer:         scorer,
		Analyzer:       intel.NewAnalyzer(logger.Named("intel"), a.metrics),
		Runtime:        a.runtime,
		Notifier:       a.notifier,
		Metrics:        a.metrics,
		Logger:         logger,
		Training:       cfg.Training.Classifier(),
		Seed:           cfg.Seed.Options,
		CacheTTL:       cfg.Cache.TTL,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	return a, nil
}

// openArtifacts returns the configured artifact store. The memory backend
// keeps the live model only and returns nil.
func (a *app) openArtifacts(ctx context.Context) (classifier.ArtifactStore, error) {
	ac := a.cfg.Artifacts
	switch ac.Backend {
	case config.BackendFile:
		fs, err := classifier.NewFileStore(ac.Dir)
		if err != nil {
			return nil, fmt.Errorf("open artifact dir %s: %w", ac.Dir, err)
		}
		return fs, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     ac.RedisAddr,
			Password: ac.RedisPassword,
			DB:       ac.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", ac.RedisAddr, err)
		}
		a.closers = append(a.closers, client.Close)
		return classifier.NewRedisStore(client, ac.RedisPrefix), nil
	}
	return nil, nil
}

// router returns the HTTP handler for the service.
func (a *app) router() http.Handler { return api.NewRouter(a.handler) }

// Close waits for in-flight webhook deliveries and releases connections.
func (a *app) Close() error {
	a.notifier.Wait()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// ─── Startup ──────────────────────────────────────────────────────────────────

// load stores claims, skipping duplicates. It returns the number stored.
func (a *app) load(claims []domain.Claim) int {
	var loaded, skipped int
	for i := range claims {
		if err := a.store.SaveClaim(&claims[i]); err != nil {
			skipped++
			continue
		}
		loaded++
	}
	a.logger.Info("claims loaded", zap.Int("loaded", loaded), zap.Int("skipped", skipped))
	return loaded
}

// bootstrap brings the service to a scoring state: the latest persisted
// artifact is published, the seed corpus is loaded, and if no artifact was
// found and training on startup is enabled a model is trained. Every stored
// claim is then scored against the live model.
func (a *app) bootstrap(ctx context.Context, claims []domain.Claim) error {
	loaded, err := a.service.LoadLatest(ctx)
	if err != nil {
		// The service can still train a fresh model.
		a.logger.Warn("model artifact not loaded", zap.Error(err))
	}

	if len(claims) > 0 {
		a.load(claims)
	}

	if !loaded && a.cfg.Training.OnStartup {
		if _, err := a.service.TrainModel(ctx, a.cfg.Training.Classifier()); err != nil {
			var insufficient *domain.InsufficientDataError
			if !errors.As(err, &insufficient) {
				return fmt.Errorf("train on startup: %w", err)
			}
			a.logger.Warn("no model trained on startup", zap.Error(err))
		}
	}

	if _, err := a.service.Model(); err != nil {
		return nil
	}
	var scored int
	for _, c := range a.store.Snapshot() {
		if _, err := a.service.ScoreClaim(ctx, c.ID); err == nil {
			scored++
		}
	}
	a.logger.Info("stored claims scored", zap.Int("scored", scored))
	return nil
}

// startupClaims returns the claims to load at startup: a JSON file when
// path is set, otherwise the synthetic corpus when seeding is enabled.
func startupClaims(cfg *config.Config, path string) ([]domain.Claim, error) {
	if path != "" {
		return readClaims(path)
	}
	if cfg.Seed.OnStartup {
		return seed.Generate(cfg.Seed.Options), nil
	}
	return nil, nil
}

// readClaims reads a JSON array of claims, ordered by filing date.
func readClaims(path string) ([]domain.Claim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var claims []domain.Claim
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].FiledDate.Before(claims[j].FiledDate)
	})
	return claims, nil
}

// writeClaims writes claims as indented JSON.
func writeClaims(path string, claims []domain.Claim) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(claims); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
