// Package config loads the service configuration and holds the runtime
// settings that may change while the process is running.
//
// Load order: built-in defaults, then an optional YAML file, then
// INSUREGUARD_ environment variables. Nested keys use a double underscore in
// the environment, e.g. INSUREGUARD_SERVER__ADDR or
// INSUREGUARD_THRESHOLDS__HIGH.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"insureguard/risk-api/internal/classifier"
	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/features"
	"insureguard/risk-api/internal/intel"
	"insureguard/risk-api/internal/scoring"
	"insureguard/risk-api/internal/seed"
	"insureguard/risk-api/internal/webhook"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INSUREGUARD_"

// Artifact store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

type Config struct {
	Environment string `koanf:"environment" yaml:"environment"`
	LogLevel    string `koanf:"log_level" yaml:"log_level"`

	Server     ServerConfig       `koanf:"server" yaml:"server"`
	Thresholds scoring.Thresholds `koanf:"thresholds" yaml:"thresholds"`
	Training   TrainingConfig     `koanf:"training" yaml:"training"`
	Features   features.Config    `koanf:"features" yaml:"features"`
	Intel      intel.Settings     `koanf:"intel" yaml:"intel"`
	Artifacts  ArtifactConfig     `koanf:"artifacts" yaml:"artifacts"`
	Webhook    webhook.Options    `koanf:"webhook" yaml:"webhook"`
	Cache      CacheConfig        `koanf:"cache" yaml:"cache"`
	Seed       SeedConfig         `koanf:"seed" yaml:"seed"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout" yaml:"request_timeout"`
}

type TrainingConfig struct {
	MinSamples      int              `koanf:"min_samples" yaml:"min_samples"`
	TestFraction    float64          `koanf:"test_fraction" yaml:"test_fraction"`
	OversampleRatio float64          `koanf:"oversample_ratio" yaml:"oversample_ratio"`
	Seed            uint64           `koanf:"seed" yaml:"seed"`
	Metric          string           `koanf:"metric" yaml:"metric"`
	Costs           classifier.Costs `koanf:"costs" yaml:"costs"`
	// OnStartup trains from the labelled corpus when no artifact could be
	// loaded.
	OnStartup bool `koanf:"on_startup" yaml:"on_startup"`
}

// Classifier converts the settings into a training run configuration.
func (t TrainingConfig) Classifier() classifier.TrainingConfig {
	return classifier.TrainingConfig{
		MinSamples:      t.MinSamples,
		TestFraction:    t.TestFraction,
		OversampleRatio: t.OversampleRatio,
		Seed:            t.Seed,
		Metric:          t.Metric,
		Costs:           t.Costs,
	}
}

type ArtifactConfig struct {
	Backend       string `koanf:"backend" yaml:"backend"` // memory | file | redis
	Dir           string `koanf:"dir" yaml:"dir"`
	RedisAddr     string `koanf:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `koanf:"redis_password" yaml:"-"`
	RedisDB       int    `koanf:"redis_db" yaml:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix" yaml:"redis_prefix"`
}

type CacheConfig struct {
	TTL time.Duration `koanf:"ttl" yaml:"ttl"`
}

type SeedConfig struct {
	OnStartup bool         `koanf:"on_startup" yaml:"on_startup"`
	Options   seed.Options `koanf:"options" yaml:"options"`
}

// Default returns the built-in configuration.
func Default() *Config {
	tc := classifier.DefaultTrainingConfig()
	return &Config{
		Environment: "production",
		LogLevel:    "info",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Thresholds: scoring.DefaultThresholds(),
		Training: TrainingConfig{
			MinSamples:      tc.MinSamples,
			TestFraction:    tc.TestFraction,
			OversampleRatio: tc.OversampleRatio,
			Seed:            tc.Seed,
			Metric:          tc.Metric,
			Costs:           tc.Costs,
			OnStartup:       true,
		},
		Features:  features.DefaultConfig(),
		Intel:     intel.DefaultSettings(),
		Artifacts: ArtifactConfig{Backend: BackendFile, Dir: "data/models", RedisAddr: "localhost:6379", RedisPrefix: "insureguard:model"},
		Webhook:   webhook.DefaultOptions(),
		Cache:     CacheConfig{TTL: 30 * time.Second},
		Seed:      SeedConfig{OnStartup: true, Options: seed.DefaultOptions()},
	}
}

// Load reads the configuration. path may be empty; a missing file is not an
// error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps INSUREGUARD_SERVER__READ_TIMEOUT to server.read_timeout.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.Training.Classifier().Validate(); err != nil {
		return err
	}
	if c.Training.MinSamples < 2 {
		return &domain.InvalidConfigurationError{Field: "training.min_samples", Reason: "must be at least 2"}
	}
	if err := c.Intel.Validate(); err != nil {
		return err
	}
	if c.Features.LateReportingDays < 0 {
		return &domain.InvalidConfigurationError{Field: "features.late_reporting_days", Reason: "must not be negative"}
	}
	switch c.Artifacts.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Artifacts.Dir == "" {
			return &domain.InvalidConfigurationError{Field: "artifacts.dir", Reason: "is required for the file backend"}
		}
	case BackendRedis:
		if c.Artifacts.RedisAddr == "" {
			return &domain.InvalidConfigurationError{Field: "artifacts.redis_addr", Reason: "is required for the redis backend"}
		}
	default:
		return &domain.InvalidConfigurationError{Field: "artifacts.backend", Reason: fmt.Sprintf("unknown backend %q", c.Artifacts.Backend)}
	}
	if c.Server.Addr == "" {
		return &domain.InvalidConfigurationError{Field: "server.addr", Reason: "is required"}
	}
	return nil
}

// Development reports whether the service runs in development mode.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}
