package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insureguard/risk-api/internal/config"
	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/scoring"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, scoring.DefaultThresholds(), cfg.Thresholds)
	assert.Equal(t, 10.0, cfg.Training.Costs.FalseNegative)
	assert.Equal(t, 30, cfg.Intel.Alerts.RapidRepeatDays)
	assert.Equal(t, 30, cfg.Features.LateReportingDays)
	assert.Equal(t, config.BackendFile, cfg.Artifacts.Backend)
}

func TestLoad_FileThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insureguard.yaml")
	yaml := `
log_level: debug
server:
  addr: ":9090"
  read_timeout: 3s
thresholds:
  low: 0.2
  high: 0.6
intel:
  repetition:
    min_occurrences: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("INSUREGUARD_THRESHOLDS__HIGH", "0.8")
	t.Setenv("INSUREGUARD_LOG_LEVEL", "warn")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 0.2, cfg.Thresholds.Low)
	assert.Equal(t, 0.8, cfg.Thresholds.High)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Intel.Repetition.MinOccurrences)
	assert.Equal(t, 2, cfg.Intel.Repetition.MinDistinctClaimants)
}

func TestLoad_RejectsInvertedThresholds(t *testing.T) {
	t.Setenv("INSUREGUARD_THRESHOLDS__LOW", "0.9")
	_, err := config.Load("")
	var cfgErr *domain.InvalidConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Artifacts.Backend = "s3"
	assert.Error(t, cfg.Validate())
}

func TestRuntime_SetThresholds(t *testing.T) {
	rt := config.NewRuntime(config.Default())
	assert.Equal(t, scoring.DefaultThresholds(), rt.Thresholds())

	require.NoError(t, rt.SetThresholds(scoring.Thresholds{Low: 0.1, High: 0.5}))
	assert.Equal(t, 0.5, rt.Thresholds().High)

	err := rt.SetThresholds(scoring.Thresholds{Low: 0.6, High: 0.4})
	var cfgErr *domain.InvalidConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 0.5, rt.Thresholds().High, "rejected update must leave thresholds unchanged")
}

func TestRuntime_SetIntel(t *testing.T) {
	rt := config.NewRuntime(config.Default())
	s := rt.Intel()
	s.Alerts.RapidRepeatDays = 0
	assert.Error(t, rt.SetIntel(s))
	assert.Equal(t, 30, rt.Intel().Alerts.RapidRepeatDays)
}
